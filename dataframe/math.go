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
	"time"

	"gonum.org/v1/gonum/floats"
)

// AddScalar adds the scalar value to all columns in dataframe df and returns a new dataframe
func (df *DataFrame) AddScalar(scalar float64) *DataFrame {
	df = df.Copy()

	for colIdx := range df.ColNames {
		for rowIdx := range df.Vals[colIdx] {
			df.Vals[colIdx][rowIdx] += scalar
		}
	}
	return df
}

// CumProd computes the running product of every column and returns a new dataframe
func (df *DataFrame) CumProd() *DataFrame {
	df = df.Copy()
	for colIdx := range df.Vals {
		floats.CumProd(df.Vals[colIdx], df.Vals[colIdx])
	}
	return df
}

// PctChange computes the period-over-period fractional change of every column.
// The first row has no predecessor and is removed, so the result is one row
// shorter than the input. A change involving NaN or a zero base is NaN.
func (df *DataFrame) PctChange() *DataFrame {
	if df.Len() < 2 {
		return New(df.ColNames...)
	}

	res := &DataFrame{
		Dates:    make([]time.Time, df.Len()-1),
		ColNames: make([]string, len(df.ColNames)),
		Vals:     make([][]float64, len(df.Vals)),
	}
	copy(res.Dates, df.Dates[1:])
	copy(res.ColNames, df.ColNames)

	for colIdx, col := range df.Vals {
		out := make([]float64, len(col)-1)
		for ii := 1; ii < len(col); ii++ {
			prev := col[ii-1]
			if prev == 0 || math.IsNaN(prev) || math.IsNaN(col[ii]) {
				out[ii-1] = math.NaN()
				continue
			}
			out[ii-1] = col[ii]/prev - 1
		}
		res.Vals[colIdx] = out
	}

	return res
}
