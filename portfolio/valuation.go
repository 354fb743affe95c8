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

package portfolio

import (
	"context"
	"math"
	"time"

	"github.com/penny-vault/pv-risk/data"
	"github.com/penny-vault/pv-risk/dataframe"
	"github.com/rs/zerolog/log"
)

// BaselinePeriod is the history used to find the reference close of positions
// entered without trade details
const BaselinePeriod = data.Period5Days

// MarketData is the subset of *data.Manager used to value a portfolio
type MarketData interface {
	FetchQuotes(ctx context.Context, symbols []string, forceRefresh bool) (map[string]*float64, error)
	CloseSeries(ctx context.Context, tickers []string, period data.Period) (dataframe.Map, error)
}

// PositionValue is the mark to market of one position
type PositionValue struct {
	Symbol        string     `json:"symbol"`
	AssetClass    AssetClass `json:"assetClass"`
	Weight        float64    `json:"weight"`
	CostBasis     float64    `json:"costBasis"`
	LivePrice     *float64   `json:"livePrice,omitempty"`
	Baseline      *float64   `json:"baseline,omitempty"`
	CurrentValue  float64    `json:"currentValue"`
	UnrealizedPnL float64    `json:"unrealizedPnl"`
	Degraded      bool       `json:"degraded"`
}

// Valuation marks every position to market
type Valuation struct {
	AsOf          time.Time       `json:"asOf"`
	Positions     []PositionValue `json:"positions"`
	TotalCost     float64         `json:"totalCost"`
	TotalValue    float64         `json:"totalValue"`
	UnrealizedPnL float64         `json:"unrealizedPnl"`
	UnrealizedPct float64         `json:"unrealizedPct"`
	RealizedPnL   float64         `json:"realizedPnl"`
}

// Valuation prices each position with the latest quote. Positions with a
// share count are worth live x quantity; the rest move with the ratio of the
// live price to the earliest close of the baseline period. Without a live
// price or a baseline the allocation is used and the position is flagged
// degraded.
func (pm *Model) Valuation(ctx context.Context, market MarketData) (*Valuation, error) {
	snap := pm.Snapshot()
	val := &Valuation{
		AsOf:        pm.now(),
		Positions:   make([]PositionValue, 0, len(snap.Positions)),
		RealizedPnL: snap.RealizedPnL(),
	}
	if len(snap.Positions) == 0 {
		return val, nil
	}

	quotes, err := market.FetchQuotes(ctx, snap.Symbols(), false)
	if err != nil {
		return nil, err
	}

	needBaseline := make([]string, 0)
	for _, pos := range snap.Positions {
		if pos.Quantity == nil || pos.PurchasePrice == nil {
			needBaseline = append(needBaseline, pos.Symbol)
		}
	}
	baselines := make(map[string]float64)
	if len(needBaseline) > 0 {
		closes, err := market.CloseSeries(ctx, needBaseline, BaselinePeriod)
		if err != nil {
			log.Warn().Err(err).Strs("Symbols", needBaseline).Msg("could not fetch baseline closes; valuing at allocation")
		}
		for symbol, df := range closes {
			if first, ok := firstClose(df); ok {
				baselines[symbol] = first
			}
		}
	}

	for _, pos := range snap.Positions {
		pv := PositionValue{
			Symbol:     pos.Symbol,
			AssetClass: pos.AssetClass,
			Weight:     pos.Weight,
			CostBasis:  pos.Allocation,
		}
		live := quotes[pos.Symbol]
		baseline, hasBaseline := baselines[pos.Symbol]
		if live != nil {
			price := *live
			pv.LivePrice = &price
		}

		switch {
		case live != nil && pos.Quantity != nil && pos.PurchasePrice != nil:
			pv.CurrentValue = mul(*live, *pos.Quantity)
		case live != nil && hasBaseline:
			pv.Baseline = &baseline
			pv.CurrentValue = scale(pos.Allocation, *live, baseline)
		default:
			pv.CurrentValue = pos.Allocation
			pv.Degraded = true
		}
		pv.UnrealizedPnL = sub(pv.CurrentValue, pv.CostBasis)

		val.TotalCost = add(val.TotalCost, pv.CostBasis)
		val.TotalValue = add(val.TotalValue, pv.CurrentValue)
		val.Positions = append(val.Positions, pv)
	}

	val.UnrealizedPnL = sub(val.TotalValue, val.TotalCost)
	if val.TotalCost > 0 {
		val.UnrealizedPct = val.UnrealizedPnL / val.TotalCost
	}

	log.Debug().Object("Valuation", val).Msg("valued portfolio")
	return val, nil
}

func firstClose(df *dataframe.DataFrame) (float64, bool) {
	if df == nil || df.ColCount() == 0 {
		return 0, false
	}
	for _, v := range df.Vals[0] {
		if !math.IsNaN(v) && v > 0 {
			return v, true
		}
	}
	return 0, false
}

// UnrealizedPnL is the total current value less the total cost basis
func (pm *Model) UnrealizedPnL(ctx context.Context, market MarketData) (float64, error) {
	val, err := pm.Valuation(ctx, market)
	if err != nil {
		return 0, err
	}
	return val.UnrealizedPnL, nil
}

// RealizedPnL sums the gain or loss of every SELL
func (pm *Model) RealizedPnL() float64 {
	return pm.Snapshot().RealizedPnL()
}

// RealizedPnL sums the gain or loss of every SELL
func (s Snapshot) RealizedPnL() float64 {
	total := 0.0
	for _, trx := range s.Transactions {
		if trx.Kind == SellTransaction && trx.GainLoss != nil {
			total = add(total, *trx.GainLoss)
		}
	}
	return total
}

// ClassBreakdown aggregates the positions of one asset class
type ClassBreakdown struct {
	Count      int      `json:"count"`
	Allocation float64  `json:"allocation"`
	Share      float64  `json:"share"`
	Symbols    []string `json:"symbols"`
}

// Summary describes the composition of a portfolio
type Summary struct {
	Name            string                         `json:"name"`
	TotalAssets     int                            `json:"totalAssets"`
	TotalAllocation float64                        `json:"totalAllocation"`
	AssetClasses    map[AssetClass]*ClassBreakdown `json:"assetClasses"`
	Valuation       *Valuation                     `json:"valuation,omitempty"`
	PnLPercent      float64                        `json:"pnlPercent"`
}

// Summary breaks the portfolio down by asset class. When market is not nil the
// portfolio is also valued and PnLPercent is the unrealized gain in percent.
func (pm *Model) Summary(ctx context.Context, market MarketData) (*Summary, error) {
	snap := pm.Snapshot()
	summary := &Summary{
		Name:         snap.Name,
		TotalAssets:  len(snap.Positions),
		AssetClasses: make(map[AssetClass]*ClassBreakdown),
	}

	for _, pos := range snap.Positions {
		summary.TotalAllocation = add(summary.TotalAllocation, pos.Allocation)
		class, ok := summary.AssetClasses[pos.AssetClass]
		if !ok {
			class = &ClassBreakdown{Symbols: make([]string, 0, 1)}
			summary.AssetClasses[pos.AssetClass] = class
		}
		class.Count++
		class.Allocation = add(class.Allocation, pos.Allocation)
		class.Symbols = append(class.Symbols, pos.Symbol)
	}
	for _, class := range summary.AssetClasses {
		if summary.TotalAllocation > 0 {
			class.Share = class.Allocation / summary.TotalAllocation
		}
	}

	if market == nil {
		return summary, nil
	}

	val, err := pm.Valuation(ctx, market)
	if err != nil {
		return nil, err
	}
	summary.Valuation = val
	summary.PnLPercent = val.UnrealizedPct * 100
	return summary, nil
}
