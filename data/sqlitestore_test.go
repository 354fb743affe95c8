// Copyright 2021-2022
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package data_test

import (
	"context"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-risk/data"
)

var _ = Describe("SQLiteStore", func() {
	var (
		ctx   context.Context
		store *data.SQLiteStore
		now   time.Time
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		now = time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)

		store, err = data.NewSQLiteStore(ctx, filepath.Join(GinkgoT().TempDir(), "prices.db"))
		Expect(err).To(BeNil())
	})

	AfterEach(func() {
		Expect(store.Close()).To(Succeed())
	})

	It("has no entry for an unknown key", func() {
		entry, err := store.Lookup(ctx, "SPY", data.Period1Year)
		Expect(err).To(BeNil())
		Expect(entry).To(BeNil())
	})

	It("replaces and reads back a key", func() {
		Expect(store.Replace(ctx, "SPY", data.Period1Year, makeBars("SPY", 3, 400), now)).To(Succeed())
		Expect(store.Replace(ctx, "SPY", data.Period1Year, makeBars("SPY", 2, 500), now.Add(time.Hour))).To(Succeed())

		entry, err := store.Lookup(ctx, "SPY", data.Period1Year)
		Expect(err).To(BeNil())
		Expect(entry.RowCount).To(Equal(2))
		Expect(entry.Valid).To(BeTrue())
		Expect(entry.LastUpdated).To(BeTemporally("==", now.Add(time.Hour)))
		Expect(entry.DataStartDate).To(BeTemporally("==", time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)))

		bars, err := store.Bars(ctx, "SPY", data.Period1Year)
		Expect(err).To(BeNil())
		Expect(bars).To(HaveLen(2))
		Expect(bars[0].Close).To(Equal(500.0))
		Expect(bars[1].Date).To(BeTemporally("==", time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC)))
	})

	It("keeps periods separate", func() {
		Expect(store.Replace(ctx, "SPY", data.Period1Year, makeBars("SPY", 3, 400), now)).To(Succeed())
		Expect(store.Replace(ctx, "SPY", data.Period5Days, makeBars("SPY", 1, 400), now)).To(Succeed())

		bars, err := store.Bars(ctx, "SPY", data.Period1Year)
		Expect(err).To(BeNil())
		Expect(bars).To(HaveLen(3))
	})

	It("reads back the max period", func() {
		Expect(store.Replace(ctx, "SPY", data.PeriodMax, makeBars("SPY", 3, 400), now)).To(Succeed())

		var bars []*data.PriceBar
		Expect(func() {
			var err error
			bars, err = store.Bars(ctx, "SPY", data.PeriodMax)
			Expect(err).To(BeNil())
		}).NotTo(Panic())
		Expect(bars).To(HaveLen(3))
	})

	It("serves a max request from the durable tier after write-through", func() {
		provider := &fakeProvider{name: "primary", bars: map[string][]*data.PriceBar{"SPY": makeBars("SPY", 4, 400)}}
		cfg := data.DefaultConfig()
		cfg.CallDelay = 0
		cfg.Now = func() time.Time { return now }
		manager, err := data.NewManager(cfg, nil, store, provider)
		Expect(err).To(BeNil())

		df, err := manager.FetchSeries(ctx, []string{"SPY"}, data.PeriodMax, data.IntervalDaily)
		Expect(err).To(BeNil())
		Expect(df.Len()).To(Equal(4))

		df, err = manager.FetchSeries(ctx, []string{"SPY"}, data.PeriodMax, data.IntervalDaily)
		Expect(err).To(BeNil())
		Expect(df.Len()).To(Equal(4))
		Expect(provider.Calls()).To(Equal(1))
	})

	It("backs the orchestrator's durable tier", func() {
		Expect(store.Replace(ctx, "SPY", data.Period1Year, makeBars("SPY", 3, 400), now.Add(-time.Hour))).To(Succeed())

		provider := &fakeProvider{name: "primary"}
		cfg := data.DefaultConfig()
		cfg.Now = func() time.Time { return now }
		manager, err := data.NewManager(cfg, nil, store, provider)
		Expect(err).To(BeNil())

		df, err := manager.FetchSeries(ctx, []string{"SPY"}, data.Period1Year, data.IntervalDaily)
		Expect(err).To(BeNil())
		Expect(df.Len()).To(Equal(3))
		Expect(provider.Calls()).To(Equal(0))
	})
})
