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

package data

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/penny-vault/pv-risk/dataframe"
)

// normalizeBars puts provider output into canonical form: upper-case ticker,
// dates at UTC midnight, ascending order with one bar per date (the last one
// wins), adjusted close defaulted to close. Bars without a usable close are
// dropped.
func normalizeBars(ticker string, bars []*PriceBar) []*PriceBar {
	ticker = strings.ToUpper(ticker)
	byDate := make(map[time.Time]*PriceBar, len(bars))
	for _, bar := range bars {
		if bar == nil || math.IsNaN(bar.Close) || bar.Close <= 0 {
			continue
		}
		norm := *bar
		norm.Ticker = ticker
		norm.Date = time.Date(bar.Date.Year(), bar.Date.Month(), bar.Date.Day(), 0, 0, 0, 0, time.UTC)
		if norm.AdjClose == 0 || math.IsNaN(norm.AdjClose) {
			norm.AdjClose = norm.Close
		}
		byDate[norm.Date] = &norm
	}

	res := make([]*PriceBar, 0, len(byDate))
	for _, bar := range byDate {
		res = append(res, bar)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Date.Before(res[j].Date) })
	return res
}

// barsToDataFrame converts a single ticker's bars into a table. When prefix is
// true column names are qualified with the ticker (e.g. SPY:Close).
func barsToDataFrame(ticker string, bars []*PriceBar, prefix bool) *dataframe.DataFrame {
	colNames := make([]string, len(Metrics))
	for idx, metric := range Metrics {
		if prefix {
			colNames[idx] = fmt.Sprintf("%s:%s", ticker, metric)
		} else {
			colNames[idx] = string(metric)
		}
	}

	df := dataframe.New(colNames...)
	df.Dates = make([]time.Time, len(bars))
	for colIdx, metric := range Metrics {
		col := make([]float64, len(bars))
		for rowIdx, bar := range bars {
			col[rowIdx] = bar.Value(metric)
		}
		df.Vals[colIdx] = col
	}
	for rowIdx, bar := range bars {
		df.Dates[rowIdx] = bar.Date
	}

	return df
}

// seriesTable builds the price table for a request. Tickers with no bars are
// omitted; if no ticker has data the result is an empty table.
func seriesTable(tickers []string, series map[string][]*PriceBar) *dataframe.DataFrame {
	if len(tickers) == 1 {
		if bars, ok := series[tickers[0]]; ok && len(bars) > 0 {
			return barsToDataFrame(tickers[0], bars, false)
		}
		return dataframe.New()
	}

	dfs := make([]*dataframe.DataFrame, 0, len(tickers))
	for _, ticker := range tickers {
		if bars, ok := series[ticker]; ok && len(bars) > 0 {
			dfs = append(dfs, barsToDataFrame(ticker, bars, true))
		}
	}
	if len(dfs) == 0 {
		return dataframe.New()
	}
	return dataframe.Merge(dfs...)
}
