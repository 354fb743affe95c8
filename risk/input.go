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

package risk

import (
	"math"
	"time"

	"github.com/penny-vault/pv-risk/dataframe"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Input is either a single Series or a Multi collection of named series.
// Only Beta and Correlation accept Multi; every other metric treats it as not
// computable.
type Input interface {
	input()
}

// Series is an ordered sequence of observations. Dates is optional; when
// present it has the same length as Values and is strictly ascending.
type Series struct {
	Name   string
	Dates  []time.Time
	Values []float64
}

func (Series) input() {}

// Multi maps an asset name to its series
type Multi map[string]Series

func (Multi) input() {}

// Names returns the series names in sorted order
func (m Multi) Names() []string {
	names := maps.Keys(m)
	slices.Sort(names)
	return names
}

// SeriesFromDataFrame extracts one column of df
func SeriesFromDataFrame(df *dataframe.DataFrame, colName string) Series {
	s := Series{Name: colName}
	if df == nil {
		return s
	}
	col := df.Column(colName)
	if col == nil {
		return s
	}
	s.Dates = append([]time.Time(nil), df.Dates...)
	s.Values = append([]float64(nil), col...)
	return s
}

// MultiFromMap converts each single column frame of dfMap into a series
func MultiFromMap(dfMap dataframe.Map) Multi {
	m := make(Multi, len(dfMap))
	for name, df := range dfMap {
		if df == nil || df.ColCount() == 0 {
			continue
		}
		s := SeriesFromDataFrame(df, df.ColNames[0])
		s.Name = name
		m[name] = s
	}
	return m
}

func (s Series) Len() int {
	return len(s.Values)
}

// clean drops NaN observations
func (s Series) clean() Series {
	res := Series{Name: s.Name, Values: make([]float64, 0, len(s.Values))}
	hasDates := len(s.Dates) == len(s.Values)
	if hasDates {
		res.Dates = make([]time.Time, 0, len(s.Values))
	}
	for idx, val := range s.Values {
		if math.IsNaN(val) {
			continue
		}
		res.Values = append(res.Values, val)
		if hasDates {
			res.Dates = append(res.Dates, s.Dates[idx])
		}
	}
	return res
}

// single returns the NaN-free values of a Series input
func single(in Input) ([]float64, bool) {
	s, ok := in.(Series)
	if !ok {
		return nil, false
	}
	return s.clean().Values, true
}

// Returns computes period over period fractional changes of prices. The
// result has one fewer observation than prices; changes that cannot be
// computed are dropped.
func Returns(prices Series) Series {
	res := Series{Name: prices.Name}
	if len(prices.Values) < 2 {
		return res
	}

	hasDates := len(prices.Dates) == len(prices.Values)
	res.Values = make([]float64, 0, len(prices.Values)-1)
	if hasDates {
		res.Dates = make([]time.Time, 0, len(prices.Values)-1)
	}
	for idx := 1; idx < len(prices.Values); idx++ {
		prev, cur := prices.Values[idx-1], prices.Values[idx]
		if prev == 0 || math.IsNaN(prev) || math.IsNaN(cur) {
			continue
		}
		res.Values = append(res.Values, cur/prev-1)
		if hasDates {
			res.Dates = append(res.Dates, prices.Dates[idx])
		}
	}
	return res
}

// Cumulative compounds returns into a growth of 1 series: cumprod(1 + r)
func Cumulative(returns Series) Series {
	clean := returns.clean()
	res := Series{Name: returns.Name, Dates: clean.Dates, Values: make([]float64, len(clean.Values))}
	acc := 1.0
	for idx, r := range clean.Values {
		acc *= 1 + r
		res.Values[idx] = acc
	}
	return res
}

// pair returns the observations of a and b that line up. When both series
// carry dates they are matched by date, otherwise the trailing observations
// are matched by position. NaN pairs are dropped.
func pair(a, b Series) ([]float64, []float64) {
	var xs, ys []float64

	if len(a.Dates) == len(a.Values) && len(b.Dates) == len(b.Values) && len(a.Dates) > 0 && len(b.Dates) > 0 {
		byDate := make(map[time.Time]float64, len(b.Values))
		for idx, dt := range b.Dates {
			byDate[dt] = b.Values[idx]
		}
		for idx, dt := range a.Dates {
			y, ok := byDate[dt]
			x := a.Values[idx]
			if !ok || math.IsNaN(x) || math.IsNaN(y) {
				continue
			}
			xs = append(xs, x)
			ys = append(ys, y)
		}
		return xs, ys
	}

	n := len(a.Values)
	if len(b.Values) < n {
		n = len(b.Values)
	}
	offA, offB := len(a.Values)-n, len(b.Values)-n
	for idx := 0; idx < n; idx++ {
		x, y := a.Values[offA+idx], b.Values[offB+idx]
		if math.IsNaN(x) || math.IsNaN(y) {
			continue
		}
		xs = append(xs, x)
		ys = append(ys, y)
	}
	return xs, ys
}
