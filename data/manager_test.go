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
	"errors"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-risk/common"
	"github.com/penny-vault/pv-risk/data"
)

var _ = Describe("Manager", func() {
	var (
		ctx       context.Context
		now       time.Time
		primary   *fakeProvider
		secondary *fakeProvider
		store     *memStore
		manager   *data.Manager
	)

	newManager := func() *data.Manager {
		blobs, err := common.NewBlobCache(64, 5*time.Minute, nil)
		Expect(err).To(BeNil())

		cfg := data.DefaultConfig()
		cfg.CallDelay = 0
		cfg.Now = func() time.Time { return now }

		m, err := data.NewManager(cfg, data.NewEphemeralCache(blobs), store, primary, secondary)
		Expect(err).To(BeNil())
		return m
	}

	BeforeEach(func() {
		ctx = context.Background()
		now = time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
		primary = &fakeProvider{
			name:    "primary",
			metered: true,
			bars: map[string][]*data.PriceBar{
				"AAA": makeBars("AAA", 10, 100),
				"BBB": makeBars("BBB", 10, 50),
			},
			quotes: map[string]float64{"AAA": 110, "BBB": 60},
		}
		secondary = &fakeProvider{
			name: "secondary",
			bars: map[string][]*data.PriceBar{
				"AAA": makeBars("AAA", 10, 200),
				"BBB": makeBars("BBB", 10, 300),
				"CCC": makeBars("CCC", 10, 400),
			},
			quotes: map[string]float64{"AAA": 210, "BBB": 310, "CCC": 410},
		}
		store = newMemStore()
		manager = newManager()
	})

	Context("when fetching price history", func() {
		It("rejects an empty symbol list", func() {
			_, err := manager.FetchSeries(ctx, []string{" ", ""}, data.Period1Year, data.IntervalDaily)
			Expect(errors.Is(err, data.ErrNoSymbols)).To(BeTrue())
		})

		It("rejects an unknown period", func() {
			_, err := manager.FetchSeries(ctx, []string{"AAA"}, data.Period("7w"), data.IntervalDaily)
			Expect(errors.Is(err, data.ErrInvalidPeriod)).To(BeTrue())
		})

		It("uses the primary provider and writes through both tiers", func() {
			df, err := manager.FetchSeries(ctx, []string{"aaa"}, data.Period1Year, data.IntervalDaily)
			Expect(err).To(BeNil())
			Expect(df.Len()).To(Equal(10))
			Expect(df.ColNames).To(Equal([]string{"Open", "High", "Low", "Close", "Volume", "AdjustedClose"}))
			Expect(df.Column("Close")[0]).To(Equal(100.0))
			Expect(primary.Calls()).To(Equal(1))
			Expect(secondary.Calls()).To(Equal(0))
			Expect(store.replaced).To(Equal(1))

			// second request is served from the ephemeral cache
			df, err = manager.FetchSeries(ctx, []string{"AAA"}, data.Period1Year, data.IntervalDaily)
			Expect(err).To(BeNil())
			Expect(df.Len()).To(Equal(10))
			Expect(primary.Calls()).To(Equal(1))
		})

		It("trims the history to the requested period", func() {
			primary.bars["AAA"] = makeBars("AAA", 300, 100)
			df, err := manager.FetchSeries(ctx, []string{"AAA"}, data.Period1Year, data.IntervalDaily)
			Expect(err).To(BeNil())
			Expect(df.Len()).To(Equal(252))
			Expect(df.Column("Close")[251]).To(Equal(399.0))

			df, err = manager.FetchSeries(ctx, []string{"AAA"}, data.Period5Days, data.IntervalDaily)
			Expect(err).To(BeNil())
			Expect(df.Len()).To(Equal(5))
		})

		It("normalizes the period before trimming and caching", func() {
			primary.bars["AAA"] = makeBars("AAA", 300, 100)
			df, err := manager.FetchSeries(ctx, []string{"AAA"}, data.Period(" 1Y "), data.IntervalDaily)
			Expect(err).To(BeNil())
			Expect(df.Len()).To(Equal(252))

			entry, _ := store.Lookup(ctx, "AAA", data.Period1Year)
			Expect(entry).NotTo(BeNil())

			df, err = manager.FetchSeries(ctx, []string{"AAA"}, data.Period1Year, data.IntervalDaily)
			Expect(err).To(BeNil())
			Expect(df.Len()).To(Equal(252))
			Expect(primary.Calls()).To(Equal(1))
		})

		It("serves a fresh durable entry without calling a provider", func() {
			store.put("AAA", data.Period1Year, makeBars("AAA", 5, 900), now.Add(-1*time.Hour))

			df, err := manager.FetchSeries(ctx, []string{"AAA"}, data.Period1Year, data.IntervalDaily)
			Expect(err).To(BeNil())
			Expect(df.Len()).To(Equal(5))
			Expect(df.Column("Close")[0]).To(Equal(900.0))
			Expect(primary.Calls()).To(Equal(0))
			Expect(secondary.Calls()).To(Equal(0))
		})

		It("refetches a stale durable entry", func() {
			store.put("AAA", data.Period1Year, makeBars("AAA", 5, 900), now.Add(-48*time.Hour))

			df, err := manager.FetchSeries(ctx, []string{"AAA"}, data.Period1Year, data.IntervalDaily)
			Expect(err).To(BeNil())
			Expect(df.Len()).To(Equal(10))
			Expect(df.Column("Close")[0]).To(Equal(100.0))
			Expect(primary.Calls()).To(Equal(1))
			Expect(store.replaced).To(Equal(1))

			entry, _ := store.Lookup(ctx, "AAA", data.Period1Year)
			Expect(entry.LastUpdated).To(Equal(now))
			Expect(entry.RowCount).To(Equal(10))
		})

		It("ignores an invalid durable entry", func() {
			store.put("AAA", data.Period1Year, makeBars("AAA", 5, 900), now.Add(-1*time.Hour))
			store.entries["AAA/1y"].Valid = false

			_, err := manager.FetchSeries(ctx, []string{"AAA"}, data.Period1Year, data.IntervalDaily)
			Expect(err).To(BeNil())
			Expect(primary.Calls()).To(Equal(1))
		})

		It("treats durable store errors as a miss", func() {
			store.failing = errors.New("disk on fire")

			df, err := manager.FetchSeries(ctx, []string{"AAA"}, data.Period1Year, data.IntervalDaily)
			Expect(err).To(BeNil())
			Expect(df.Len()).To(Equal(10))
		})

		It("merges a multi ticker request by date", func() {
			primary.bars["BBB"] = makeBars("BBB", 10, 50)[2:]

			df, err := manager.FetchSeries(ctx, []string{"BBB", "AAA"}, data.Period1Year, data.IntervalDaily)
			Expect(err).To(BeNil())
			Expect(df.Len()).To(Equal(10))
			Expect(df.ColIndex("AAA:Close")).To(BeNumerically(">=", 0))
			Expect(df.ColIndex("BBB:Close")).To(BeNumerically(">=", 0))
			Expect(df.Column("BBB:Close")[0]).To(Satisfy(math.IsNaN))
			Expect(df.Column("BBB:Close")[2]).To(Equal(52.0))
		})

		It("skips an exhausted provider for the rest of the batch", func() {
			primary.err = &data.ProviderError{Provider: "primary", Kind: data.QuotaExceeded, Err: data.ErrAlphaVantageQuota}

			df, err := manager.FetchSeries(ctx, []string{"AAA", "BBB", "CCC"}, data.Period1Year, data.IntervalDaily)
			Expect(err).To(BeNil())
			Expect(df.Column("AAA:Close")[0]).To(Equal(200.0))
			Expect(df.Column("CCC:Close")[0]).To(Equal(400.0))
			Expect(primary.Calls()).To(Equal(1))
			Expect(secondary.Calls()).To(Equal(3))
		})

		It("keeps trying the primary after a transient failure", func() {
			primary.errs = map[string]error{
				"AAA": &data.ProviderError{Provider: "primary", Symbol: "AAA", Kind: data.Transient, Err: data.ErrRateLimited},
			}

			df, err := manager.FetchSeries(ctx, []string{"AAA", "BBB"}, data.Period1Year, data.IntervalDaily)
			Expect(err).To(BeNil())
			Expect(df.Column("AAA:Close")[0]).To(Equal(200.0))
			Expect(df.Column("BBB:Close")[0]).To(Equal(50.0))
			Expect(primary.Calls()).To(Equal(2))
			Expect(secondary.Calls()).To(Equal(1))
		})

		It("returns an empty table when every provider fails", func() {
			primary.err = &data.ProviderError{Provider: "primary", Kind: data.PremiumOnly, Err: errors.New("premium endpoint")}
			secondary.err = &data.ProviderError{Provider: "secondary", Kind: data.Transient, Err: errors.New("timeout")}

			df, err := manager.FetchSeries(ctx, []string{"AAA"}, data.Period1Year, data.IntervalDaily)
			Expect(err).To(BeNil())
			Expect(df.Len()).To(Equal(0))
			Expect(store.replaced).To(Equal(0))
		})

		It("omits tickers nobody knows", func() {
			df, err := manager.FetchSeries(ctx, []string{"AAA", "ZZZ"}, data.Period1Year, data.IntervalDaily)
			Expect(err).To(BeNil())
			Expect(df.ColIndex("AAA:Close")).To(BeNumerically(">=", 0))
			Expect(df.ColIndex("ZZZ:Close")).To(Equal(-1))
		})

		It("returns close series per ticker", func() {
			closes, err := manager.CloseSeries(ctx, []string{"AAA", "BBB"}, data.Period1Year)
			Expect(err).To(BeNil())
			Expect(closes.Keys()).To(Equal([]string{"AAA", "BBB"}))
			Expect(closes["BBB"].Column("BBB")[0]).To(Equal(50.0))
		})

		It("fetches the benchmark series", func() {
			primary.bars["SPY"] = makeBars("SPY", 10, 400)
			df, err := manager.FetchMarketSeries(ctx, "", data.Period1Year)
			Expect(err).To(BeNil())
			Expect(df.Column("SPY")[0]).To(Equal(400.0))
		})
	})

	Context("when fetching quotes", func() {
		It("falls back per symbol and leaves unknown symbols nil", func() {
			quotes, err := manager.FetchQuotes(ctx, []string{"AAA", "CCC", "ZZZ"}, false)
			Expect(err).To(BeNil())
			Expect(quotes).To(HaveLen(3))
			Expect(*quotes["AAA"]).To(Equal(110.0))
			Expect(*quotes["CCC"]).To(Equal(410.0))
			Expect(quotes["ZZZ"]).To(BeNil())
		})

		It("serves repeated requests from the cache unless forced", func() {
			_, err := manager.FetchQuotes(ctx, []string{"AAA"}, false)
			Expect(err).To(BeNil())
			Expect(primary.Calls()).To(Equal(1))

			_, err = manager.FetchQuotes(ctx, []string{"aaa"}, false)
			Expect(err).To(BeNil())
			Expect(primary.Calls()).To(Equal(1))

			primary.quotes["AAA"] = 111
			quotes, err := manager.FetchQuotes(ctx, []string{"AAA"}, true)
			Expect(err).To(BeNil())
			Expect(primary.Calls()).To(Equal(2))
			Expect(*quotes["AAA"]).To(Equal(111.0))

			// forced results repopulate the cache
			quotes, err = manager.FetchQuotes(ctx, []string{"AAA"}, false)
			Expect(err).To(BeNil())
			Expect(*quotes["AAA"]).To(Equal(111.0))
			Expect(primary.Calls()).To(Equal(2))
		})

		It("clears the ephemeral cache", func() {
			_, err := manager.FetchQuotes(ctx, []string{"AAA"}, false)
			Expect(err).To(BeNil())
			Expect(manager.ClearCache(ctx)).To(Succeed())

			_, err = manager.FetchQuotes(ctx, []string{"AAA"}, false)
			Expect(err).To(BeNil())
			Expect(primary.Calls()).To(Equal(2))
		})
	})
})
