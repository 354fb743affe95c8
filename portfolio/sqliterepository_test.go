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

package portfolio_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-risk/data/database"
	"github.com/penny-vault/pv-risk/portfolio"
)

var _ = Describe("SQLiteRepository", func() {
	var (
		ctx   context.Context
		db    *sql.DB
		repo  *portfolio.SQLiteRepository
		today time.Time
		clock portfolio.Option
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = database.OpenSQLite(ctx, filepath.Join(GinkgoT().TempDir(), "ledger.db"), portfolio.SQLiteLedgerSchema)
		Expect(err).To(BeNil())
		repo = portfolio.NewSQLiteRepository(db)
		today = time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)
		clock = portfolio.WithClock(func() time.Time { return today })
	})

	AfterEach(func() {
		Expect(db.Close()).To(Succeed())
	})

	It("returns ErrPortfolioNotFound for an unknown id", func() {
		_, err := repo.Load(ctx, portfolio.IDForName("nobody"))
		Expect(errors.Is(err, portfolio.ErrPortfolioNotFound)).To(BeTrue())
	})

	It("round trips positions and transactions", func() {
		pm, err := portfolio.Open(ctx, "ira", portfolio.WithRepository(repo), clock)
		Expect(err).To(BeNil())

		Expect(pm.AddPosition(ctx, portfolio.AddRequest{Symbol: "AAPL", PurchasePrice: ptr(50.0), Quantity: ptr(10.0), Memo: "first lot"}).Success).To(BeTrue())
		Expect(pm.AddPosition(ctx, portfolio.AddRequest{Symbol: "BND", AssetClass: portfolio.AssetBond, Allocation: ptr(500.0)}).Success).To(BeTrue())
		Expect(pm.SellPosition(ctx, "AAPL", 4, 60, nil).Success).To(BeTrue())

		reopened, err := portfolio.Open(ctx, "ira", portfolio.WithRepository(repo))
		Expect(err).To(BeNil())
		snap := reopened.Snapshot()

		Expect(snap.Symbols()).To(Equal([]string{"AAPL", "BND"}))
		aapl, _ := snap.Position("AAPL")
		Expect(*aapl.Quantity).To(Equal(6.0))
		Expect(aapl.Allocation).To(Equal(300.0))
		Expect(aapl.RealizedPnL).To(Equal(40.0))
		Expect(*aapl.PurchaseDate).To(BeTemporally("==", today))
		Expect(aapl.Weight).To(BeNumerically("~", 0.375, 1e-12))

		bnd, _ := snap.Position("BND")
		Expect(bnd.Quantity).To(BeNil())
		Expect(bnd.AssetClass).To(Equal(portfolio.AssetBond))

		Expect(snap.Transactions).To(HaveLen(2))
		Expect(snap.Transactions[0].Kind).To(Equal(portfolio.BuyTransaction))
		Expect(snap.Transactions[0].Memo).To(Equal("first lot"))
		Expect(snap.Transactions[0].Date).To(BeTemporally("==", today))
		Expect(snap.Transactions[1].Kind).To(Equal(portfolio.SellTransaction))
		Expect(*snap.Transactions[1].GainLoss).To(Equal(40.0))
		Expect(reopened.RealizedPnL()).To(Equal(40.0))
	})

	It("removes deleted positions", func() {
		pm, err := portfolio.Open(ctx, "ira", portfolio.WithRepository(repo), clock)
		Expect(err).To(BeNil())
		pm.AddPosition(ctx, portfolio.AddRequest{Symbol: "A", Allocation: ptr(100.0)})
		pm.AddPosition(ctx, portfolio.AddRequest{Symbol: "B", Allocation: ptr(100.0)})
		Expect(pm.RemovePosition(ctx, "A").Success).To(BeTrue())

		reopened, err := portfolio.Open(ctx, "ira", portfolio.WithRepository(repo))
		Expect(err).To(BeNil())
		Expect(reopened.Snapshot().Symbols()).To(Equal([]string{"B"}))
	})
})
