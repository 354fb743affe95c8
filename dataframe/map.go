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

package dataframe

import (
	"math"
	"sort"
	"time"
)

// Align restricts every dataframe in the map to the dates that all of them share
func (dfMap Map) Align() Map {
	if len(dfMap) == 0 {
		return Map{}
	}

	counts := make(map[time.Time]int)
	for _, df := range dfMap {
		for _, dt := range df.Dates {
			counts[dt]++
		}
	}

	common := make(map[time.Time]bool, len(counts))
	for dt, cnt := range counts {
		if cnt == len(dfMap) {
			common[dt] = true
		}
	}

	aligned := make(Map, len(dfMap))
	for k, df := range dfMap {
		out := New(df.ColNames...)
		for rowIdx, dt := range df.Dates {
			if !common[dt] {
				continue
			}
			out.Dates = append(out.Dates, dt)
			for colIdx := range df.Vals {
				out.Vals[colIdx] = append(out.Vals[colIdx], df.Vals[colIdx][rowIdx])
			}
		}
		aligned[k] = out
	}

	return aligned
}

// Drop calls dataframe.Drop on each dataframe in the map
func (dfMap Map) Drop(val float64) Map {
	for _, v := range dfMap {
		v.Drop(val)
	}
	return dfMap
}

// Keys returns the sorted keys of the map
func (dfMap Map) Keys() []string {
	keys := make([]string, 0, len(dfMap))
	for k := range dfMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DataFrame converts each item in the map to a column in the dataframe. Each
// item contributes its first column named by its key. Items are aligned on
// their common dates first.
func (dfMap Map) DataFrame() *DataFrame {
	aligned := dfMap.Align()
	keys := aligned.Keys()

	df := New()
	for idx, k := range keys {
		v := aligned[k]
		if idx == 0 {
			df.Dates = v.Dates
		}
		if v.ColCount() == 0 {
			continue
		}
		df.Insert(k, v.Vals[0])
	}

	return df
}

// WeightedSum combines the first column of each dataframe into a single
// column named `name`, each scaled by weights[key]. Only dates present in
// every dataframe are included. Keys with no weight contribute nothing.
func (dfMap Map) WeightedSum(name string, weights map[string]float64) *DataFrame {
	aligned := dfMap.Align()
	keys := aligned.Keys()

	res := New(name)
	if len(keys) == 0 {
		return res
	}

	res.Dates = aligned[keys[0]].Dates
	sum := make([]float64, len(res.Dates))
	for _, k := range keys {
		df := aligned[k]
		w := weights[k]
		if df.ColCount() == 0 {
			continue
		}
		for ii, v := range df.Vals[0] {
			if math.IsNaN(v) {
				sum[ii] = math.NaN()
				continue
			}
			sum[ii] += w * v
		}
	}
	res.Vals[0] = sum

	return res
}
