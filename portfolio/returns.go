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
	"fmt"
	"time"

	"github.com/penny-vault/pv-risk/data"
	"github.com/penny-vault/pv-risk/dataframe"
	"github.com/penny-vault/pv-risk/risk"
	"github.com/rs/zerolog/log"
)

// Returns computes the weighted daily return of the held positions over
// period. Only dates on which every held symbol has a close are used. Symbols
// without any price history are left out and the remaining weights are
// rescaled to sum to one.
func (pm *Model) Returns(ctx context.Context, market MarketData, period data.Period) (risk.Series, error) {
	df, _, err := pm.weightedReturns(ctx, market, period)
	if err != nil {
		return risk.Series{}, err
	}
	snap := pm.Snapshot()
	series := risk.SeriesFromDataFrame(df, df.ColNames[0])
	series.Name = snap.Name
	return series, nil
}

// Growth is the value of one unit invested in the portfolio at the start of
// period
func (pm *Model) Growth(ctx context.Context, market MarketData, period data.Period) (risk.Series, error) {
	df, base, err := pm.weightedReturns(ctx, market, period)
	if err != nil {
		return risk.Series{}, err
	}

	snap := pm.Snapshot()
	growth := risk.Series{
		Name:   snap.Name,
		Dates:  make([]time.Time, 0, df.Len()+1),
		Values: make([]float64, 0, df.Len()+1),
	}
	growth.Dates = append(growth.Dates, base)
	growth.Values = append(growth.Values, 1)

	cumulative := df.AddScalar(1).CumProd()
	growth.Dates = append(growth.Dates, cumulative.Dates...)
	growth.Values = append(growth.Values, cumulative.Vals[0]...)
	return growth, nil
}

// Analyze runs the risk engine over the portfolio's growth series with the
// benchmark named in params
func (pm *Model) Analyze(ctx context.Context, market MarketData, period data.Period, params risk.Params) (*risk.Report, error) {
	growth, err := pm.Growth(ctx, market, period)
	if err != nil {
		return nil, err
	}

	if params.Benchmark == "" {
		params.Benchmark = risk.DefaultBenchmark
	}
	var benchmark risk.Series
	closes, err := market.CloseSeries(ctx, []string{params.Benchmark}, period)
	if err != nil {
		log.Warn().Err(err).Str("Benchmark", params.Benchmark).Msg("could not fetch benchmark; beta is not computable")
	}
	if df, ok := closes[params.Benchmark]; ok {
		benchmark = risk.SeriesFromDataFrame(df, df.ColNames[0])
	}

	return risk.Analyze(growth, benchmark, params), nil
}

// weightedReturns returns the single column weighted return table and the
// date of the first aligned close
func (pm *Model) weightedReturns(ctx context.Context, market MarketData, period data.Period) (*dataframe.DataFrame, time.Time, error) {
	snap := pm.Snapshot()
	weights := snap.Weights()

	symbols := make([]string, 0, len(weights))
	for _, symbol := range snap.Symbols() {
		if weights[symbol] > 0 {
			symbols = append(symbols, symbol)
		}
	}
	if len(symbols) == 0 {
		return nil, time.Time{}, ErrNoPositions
	}

	closes, err := market.CloseSeries(ctx, symbols, period)
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(closes) == 0 {
		return nil, time.Time{}, ErrNoMarketData
	}

	total := 0.0
	for _, symbol := range symbols {
		if _, ok := closes[symbol]; !ok {
			log.Warn().Str("Symbol", symbol).Msg("no price history; excluded from portfolio returns")
			continue
		}
		total += weights[symbol]
	}
	available := make(map[string]float64, len(closes))
	for symbol := range closes {
		available[symbol] = weights[symbol] / total
	}

	aligned := closes.Align()
	first := aligned[aligned.Keys()[0]]
	if first.Len() < 2 {
		return nil, time.Time{}, fmt.Errorf("%w: fewer than two common dates", ErrNoMarketData)
	}

	returns := make(dataframe.Map, len(aligned))
	for symbol, df := range aligned {
		returns[symbol] = df.PctChange()
	}

	return returns.WeightedSum("Portfolio", available), first.Dates[0], nil
}
