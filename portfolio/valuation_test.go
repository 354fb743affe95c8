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
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-risk/data"
	"github.com/penny-vault/pv-risk/portfolio"
	"github.com/penny-vault/pv-risk/risk"
)

var _ = Describe("Valuation", func() {
	var (
		ctx    context.Context
		pm     *portfolio.Model
		market *fakeMarket
	)

	BeforeEach(func() {
		ctx = context.Background()
		pm = portfolio.NewPortfolio("valuation")
		market = &fakeMarket{
			quotes: map[string]*float64{
				"AAPL": ptr(60.0),
				"VTI":  ptr(110.0),
				"BND":  ptr(75.0),
			},
			closes: map[string][]float64{
				"VTI": {100, 104, 108, 106, 110},
			},
			start: time.Date(2024, 2, 26, 0, 0, 0, 0, time.UTC),
		}
	})

	It("handles each combination of trade details and market data", func() {
		pm.AddPosition(ctx, portfolio.AddRequest{Symbol: "AAPL", PurchasePrice: ptr(50.0), Quantity: ptr(10.0)})
		pm.AddPosition(ctx, portfolio.AddRequest{Symbol: "VTI", AssetClass: portfolio.AssetETF, Allocation: ptr(1000.0)})
		pm.AddPosition(ctx, portfolio.AddRequest{Symbol: "BND", AssetClass: portfolio.AssetBond, Allocation: ptr(200.0)})
		pm.AddPosition(ctx, portfolio.AddRequest{Symbol: "GONE", Allocation: ptr(300.0)})

		val, err := pm.Valuation(ctx, market)
		Expect(err).To(BeNil())
		Expect(val.Positions).To(HaveLen(4))

		// live x quantity
		Expect(val.Positions[0].CurrentValue).To(Equal(600.0))
		Expect(val.Positions[0].Degraded).To(BeFalse())

		// allocation x live / earliest close
		Expect(val.Positions[1].CurrentValue).To(BeNumerically("~", 1100.0, 1e-9))
		Expect(*val.Positions[1].Baseline).To(Equal(100.0))

		// no baseline
		Expect(val.Positions[2].CurrentValue).To(Equal(200.0))
		Expect(val.Positions[2].Degraded).To(BeTrue())

		// no live price
		Expect(val.Positions[3].CurrentValue).To(Equal(300.0))
		Expect(val.Positions[3].LivePrice).To(BeNil())
		Expect(val.Positions[3].Degraded).To(BeTrue())

		Expect(val.TotalCost).To(Equal(2000.0))
		Expect(val.UnrealizedPnL).To(BeNumerically("~", 200.0, 1e-9))
		Expect(market.periods).To(ConsistOf(data.Period5Days))
	})

	It("reports realized and unrealized P&L separately", func() {
		pm.AddPosition(ctx, portfolio.AddRequest{Symbol: "AAPL", PurchasePrice: ptr(50.0), Quantity: ptr(10.0)})
		pm.SellPosition(ctx, "AAPL", 4, 60, nil)

		val, err := pm.Valuation(ctx, market)
		Expect(err).To(BeNil())
		Expect(val.RealizedPnL).To(Equal(40.0))
		// 6 shares at 60 against a 300 cost basis
		Expect(val.UnrealizedPnL).To(Equal(60.0))

		unrealized, err := pm.UnrealizedPnL(ctx, market)
		Expect(err).To(BeNil())
		Expect(unrealized).To(Equal(60.0))
	})

	It("values an empty portfolio at zero", func() {
		val, err := pm.Valuation(ctx, market)
		Expect(err).To(BeNil())
		Expect(val.TotalValue).To(Equal(0.0))
	})

	It("summarizes by asset class", func() {
		pm.AddPosition(ctx, portfolio.AddRequest{Symbol: "AAPL", PurchasePrice: ptr(50.0), Quantity: ptr(10.0)})
		pm.AddPosition(ctx, portfolio.AddRequest{Symbol: "MSFT", Allocation: ptr(500.0)})
		pm.AddPosition(ctx, portfolio.AddRequest{Symbol: "VTI", AssetClass: portfolio.AssetETF, Allocation: ptr(1000.0)})

		summary, err := pm.Summary(ctx, nil)
		Expect(err).To(BeNil())
		Expect(summary.TotalAssets).To(Equal(3))
		Expect(summary.TotalAllocation).To(Equal(2000.0))
		Expect(summary.AssetClasses).To(HaveLen(2))
		Expect(summary.AssetClasses[portfolio.AssetStock].Count).To(Equal(2))
		Expect(summary.AssetClasses[portfolio.AssetStock].Share).To(Equal(0.5))
		Expect(summary.AssetClasses[portfolio.AssetETF].Symbols).To(Equal([]string{"VTI"}))
		Expect(summary.Valuation).To(BeNil())

		summary, err = pm.Summary(ctx, market)
		Expect(err).To(BeNil())
		Expect(summary.Valuation).ToNot(BeNil())
		// AAPL +100, MSFT degraded, VTI +100
		Expect(summary.PnLPercent).To(BeNumerically("~", 10.0, 1e-9))
	})
})

var _ = Describe("Returns", func() {
	var (
		ctx    context.Context
		pm     *portfolio.Model
		market *fakeMarket
	)

	BeforeEach(func() {
		ctx = context.Background()
		pm = portfolio.NewPortfolio("returns")
		market = &fakeMarket{
			closes: map[string][]float64{
				"A": {100, 110, 121},
				"B": {50, 50, 55},
			},
			start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		}
		pm.AddPosition(ctx, portfolio.AddRequest{Symbol: "A", Allocation: ptr(600.0)})
		pm.AddPosition(ctx, portfolio.AddRequest{Symbol: "B", Allocation: ptr(400.0)})
	})

	It("weights each asset's return", func() {
		series, err := pm.Returns(ctx, market, data.Period1Year)
		Expect(err).To(BeNil())
		Expect(series.Name).To(Equal("returns"))
		Expect(series.Values).To(HaveLen(2))
		Expect(series.Values[0]).To(BeNumerically("~", 0.06, 1e-12))
		Expect(series.Values[1]).To(BeNumerically("~", 0.10, 1e-12))
		Expect(series.Dates[0]).To(Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)))
	})

	It("only uses dates every asset has", func() {
		market.closes["B"] = []float64{50, 55}
		series, err := pm.Returns(ctx, market, data.Period1Year)
		Expect(err).To(BeNil())
		Expect(series.Values).To(HaveLen(1))
	})

	It("rescales weights when a symbol has no history", func() {
		delete(market.closes, "B")
		series, err := pm.Returns(ctx, market, data.Period1Year)
		Expect(err).To(BeNil())
		Expect(series.Values[0]).To(BeNumerically("~", 0.10, 1e-12))
	})

	It("fails without market data", func() {
		market.closes = map[string][]float64{}
		_, err := pm.Returns(ctx, market, data.Period1Year)
		Expect(errors.Is(err, portfolio.ErrNoMarketData)).To(BeTrue())
	})

	It("builds a growth series starting at one", func() {
		growth, err := pm.Growth(ctx, market, data.Period1Year)
		Expect(err).To(BeNil())
		Expect(growth.Values).To(HaveLen(3))
		Expect(growth.Values[0]).To(Equal(1.0))
		Expect(growth.Values[2]).To(BeNumerically("~", 1.06*1.10, 1e-12))
		Expect(growth.Dates[0]).To(Equal(market.start))
	})

	It("analyzes the portfolio against a benchmark", func() {
		market.closes["SPY"] = []float64{400, 404, 410}
		report, err := pm.Analyze(ctx, market, data.Period1Year, risk.DefaultParams())
		Expect(err).To(BeNil())
		Expect(report.Name).To(Equal("returns"))
		Expect(report.Observations).To(Equal(2))
		// too few observations for beta
		Expect(report.Beta.IsNotComputable()).To(BeTrue())
	})
})
