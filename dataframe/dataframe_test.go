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

package dataframe_test

import (
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-risk/dataframe"
)

func day(d int) time.Time {
	return time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, d)
}

var _ = Describe("DataFrame", func() {
	Context("with no values", func() {
		var (
			df *dataframe.DataFrame
		)

		BeforeEach(func() {
			df = &dataframe.DataFrame{}
		})

		It("has zero length", func() {
			Expect(df.Len()).To(Equal(0))
		})

		It("has zero columns", func() {
			Expect(df.ColCount()).To(Equal(0))
		})

		It("does not error on drop", func() {
			df = df.Drop(1)
			Expect(df.Len()).To(Equal(0))
		})

		It("renders a placeholder table", func() {
			Expect(df.Table()).To(Equal("<NO DATA>"))
		})
	})

	Context("with 2 years of values and a single column", func() {
		var (
			df *dataframe.DataFrame
		)

		BeforeEach(func() {
			dates := make([]time.Time, 730)
			vals := make([]float64, 730)
			for idx := range dates {
				dates[idx] = day(idx)
				vals[idx] = float64(idx)
			}
			df = &dataframe.DataFrame{
				ColNames: []string{"Col1"},
				Dates:    dates,
				Vals:     [][]float64{vals},
			}
		})

		It("has length", func() {
			Expect(df.Len()).To(Equal(730))
		})

		It("can remove all 0s with drop", func() {
			df = df.Drop(0)
			Expect(df.Len()).To(Equal(729))
			Expect(df.Vals[0][0]).To(BeNumerically("==", 1.0))
		})

		It("keeps the last n rows with tail", func() {
			tail := df.Tail(252)
			Expect(tail.Len()).To(Equal(252))
			Expect(tail.Start()).To(Equal(day(730 - 252)))
			Expect(tail.End()).To(Equal(day(729)))
			Expect(tail.Vals[0][0]).To(BeNumerically("==", 730-252))
		})

		It("returns everything when tail is longer than the dataframe", func() {
			Expect(df.Tail(1000).Len()).To(Equal(730))
		})
	})

	Context("with NaN values", func() {
		It("drops rows where any column is NaN", func() {
			df := &dataframe.DataFrame{
				ColNames: []string{"Col1", "Col2"},
				Dates:    []time.Time{day(0), day(1), day(2), day(3)},
				Vals: [][]float64{
					{1, 2, math.NaN(), 4},
					{1, math.NaN(), 3, 4},
				},
			}
			df = df.Drop(math.NaN())
			Expect(df.Dates).To(Equal([]time.Time{day(0), day(3)}))
			Expect(df.Vals[0]).To(Equal([]float64{1, 4}))
			Expect(df.Vals[1]).To(Equal([]float64{1, 4}))
		})
	})

	Context("merging", func() {
		It("outer joins on date and fills gaps with NaN", func() {
			a := &dataframe.DataFrame{
				ColNames: []string{"SPY:Close"},
				Dates:    []time.Time{day(0), day(1), day(3)},
				Vals:     [][]float64{{1, 2, 4}},
			}
			b := &dataframe.DataFrame{
				ColNames: []string{"QQQ:Close"},
				Dates:    []time.Time{day(1), day(2)},
				Vals:     [][]float64{{20, 30}},
			}
			m := dataframe.Merge(a, b)
			Expect(m.Dates).To(Equal([]time.Time{day(0), day(1), day(2), day(3)}))
			Expect(m.ColNames).To(Equal([]string{"SPY:Close", "QQQ:Close"}))
			Expect(m.Vals[0][2]).To(Satisfy(math.IsNaN))
			Expect(m.Vals[1][0]).To(Satisfy(math.IsNaN))
			Expect(m.Vals[1][1]).To(Equal(20.0))
			Expect(m.Vals[0][3]).To(Equal(4.0))
		})
	})

	Context("maps of dataframes", func() {
		var dfMap dataframe.Map

		BeforeEach(func() {
			dfMap = dataframe.Map{
				"AAA": {ColNames: []string{"AAA"}, Dates: []time.Time{day(0), day(1), day(2)}, Vals: [][]float64{{0.1, 0.2, 0.3}}},
				"BBB": {ColNames: []string{"BBB"}, Dates: []time.Time{day(1), day(2), day(3)}, Vals: [][]float64{{1.0, 2.0, 3.0}}},
			}
		})

		It("aligns on shared dates", func() {
			aligned := dfMap.Align()
			Expect(aligned["AAA"].Dates).To(Equal([]time.Time{day(1), day(2)}))
			Expect(aligned["BBB"].Vals[0]).To(Equal([]float64{1.0, 2.0}))
		})

		It("builds a weighted sum", func() {
			sum := dfMap.WeightedSum("Portfolio", map[string]float64{"AAA": 0.5, "BBB": 0.5})
			Expect(sum.ColNames).To(Equal([]string{"Portfolio"}))
			Expect(sum.Len()).To(Equal(2))
			Expect(sum.Vals[0][0]).To(BeNumerically("~", 0.6, 1e-12))
			Expect(sum.Vals[0][1]).To(BeNumerically("~", 1.15, 1e-12))
		})

		It("combines into a single dataframe with sorted columns", func() {
			df := dfMap.DataFrame()
			Expect(df.ColNames).To(Equal([]string{"AAA", "BBB"}))
			Expect(df.Len()).To(Equal(2))
		})
	})
})
