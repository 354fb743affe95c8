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
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pashagolub/pgxmock"

	"github.com/penny-vault/pv-risk/data"
	"github.com/penny-vault/pv-risk/data/database"
	"github.com/penny-vault/pv-risk/pgxmockhelper"
)

var _ = Describe("PgStore", func() {
	var (
		ctx    context.Context
		dbPool pgxmock.PgxConnIface
		store  *data.PgStore
		now    time.Time
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		now = time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)

		dbPool, err = pgxmock.NewConn()
		Expect(err).To(BeNil())
		store = data.NewPgStore(dbPool)
	})

	AfterEach(func() {
		Expect(dbPool.ExpectationsWereMet()).To(Succeed())
		dbPool.Close(ctx)
	})

	It("returns nil for a missing entry", func() {
		dbPool.ExpectBegin()
		dbPool.ExpectQuery("SELECT data_start_date").WithArgs("SPY", "1y").
			WillReturnRows(pgxmock.NewRows([]string{"data_start_date", "data_end_date", "row_count", "last_updated", "valid"}))
		dbPool.ExpectCommit()

		entry, err := store.Lookup(ctx, "SPY", data.Period1Year)
		Expect(err).To(BeNil())
		Expect(entry).To(BeNil())
	})

	It("loads an entry", func() {
		start := time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC)
		end := time.Date(2023, 5, 31, 0, 0, 0, 0, time.UTC)

		dbPool.ExpectBegin()
		dbPool.ExpectQuery("SELECT data_start_date").WithArgs("SPY", "1y").
			WillReturnRows(pgxmock.NewRows([]string{"data_start_date", "data_end_date", "row_count", "last_updated", "valid"}).
				AddRow(start, end, 102, now, true))
		dbPool.ExpectCommit()

		entry, err := store.Lookup(ctx, "SPY", data.Period1Year)
		Expect(err).To(BeNil())
		Expect(entry.RowCount).To(Equal(102))
		Expect(entry.DataStartDate).To(Equal(start))
		Expect(entry.Servable(now.Add(time.Hour), 24*time.Hour)).To(BeTrue())
	})

	It("loads bars from the fixture", func() {
		pgxmockhelper.MockPriceBarsQuery(dbPool, "../testdata/spy.csv", "SPY", "5d",
			time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC))

		bars, err := store.Bars(ctx, "SPY", data.Period5Days)
		Expect(err).To(BeNil())
		Expect(bars).To(HaveLen(5))
		Expect(bars[0].Ticker).To(Equal("SPY"))
		Expect(bars[0].Close).To(Equal(472.65))
	})

	It("reads bars for the max period", func() {
		dbPool.ExpectBegin()
		dbPool.ExpectQuery("SELECT event_date, open, high, low, close, volume, adj_close FROM price_bars").
			WithArgs("SPY", "max").
			WillReturnRows(pgxmock.NewRows([]string{"event_date", "open", "high", "low", "close", "volume", "adj_close"}).
				AddRow(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), 470.0, 475.0, 468.0, 472.0, 1e6, 472.0))
		dbPool.ExpectCommit()

		var bars []*data.PriceBar
		Expect(func() {
			var err error
			bars, err = store.Bars(ctx, "SPY", data.PeriodMax)
			Expect(err).To(BeNil())
		}).NotTo(Panic())
		Expect(bars).To(HaveLen(1))
	})

	It("stops tracking a transaction once it is committed", func() {
		open := database.NumOpenTransactions()
		pgxmockhelper.MockPriceBarsQuery(dbPool, "../testdata/spy.csv", "SPY", "5d",
			time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC))

		_, err := store.Bars(ctx, "SPY", data.Period5Days)
		Expect(err).To(BeNil())
		Expect(database.NumOpenTransactions()).To(Equal(open))
	})

	It("reports a failed begin as a persistence error", func() {
		dbPool.ExpectBegin().WillReturnError(errors.New("too many connections"))

		_, err := store.Bars(ctx, "SPY", data.Period1Year)
		var pe *data.PersistenceError
		Expect(errors.As(err, &pe)).To(BeTrue())
		Expect(pe.Op).To(Equal("bars"))
	})

	It("replaces a key in one transaction", func() {
		bars := makeBars("SPY", 2, 400)

		dbPool.ExpectBegin()
		dbPool.ExpectExec("DELETE FROM price_bars").WithArgs("SPY", "1y").WillReturnResult(pgxmock.NewResult("DELETE", 2))
		dbPool.ExpectExec("INSERT INTO price_bars").WillReturnResult(pgxmock.NewResult("INSERT", 1))
		dbPool.ExpectExec("INSERT INTO price_bars").WillReturnResult(pgxmock.NewResult("INSERT", 1))
		dbPool.ExpectExec("INSERT INTO price_cache").
			WithArgs("SPY", "1y", bars[0].Date, bars[1].Date, 2, now, true).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		dbPool.ExpectCommit()

		Expect(store.Replace(ctx, "SPY", data.Period1Year, bars, now)).To(Succeed())
	})

	It("rolls back when an insert fails", func() {
		bars := makeBars("SPY", 2, 400)

		dbPool.ExpectBegin()
		dbPool.ExpectExec("DELETE FROM price_bars").WillReturnResult(pgxmock.NewResult("DELETE", 2))
		dbPool.ExpectExec("INSERT INTO price_bars").WillReturnError(errors.New("connection reset"))
		dbPool.ExpectRollback()

		err := store.Replace(ctx, "SPY", data.Period1Year, bars, now)
		var pe *data.PersistenceError
		Expect(errors.As(err, &pe)).To(BeTrue())
		Expect(pe.Op).To(Equal("replace"))
	})
})
