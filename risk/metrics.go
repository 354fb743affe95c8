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

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// TradingDays is the number of periods used to annualize daily statistics
const TradingDays = 252

// MinBetaObservations is the smallest paired sample Beta will use
const MinBetaObservations = 30

// quantile returns the p-th sample quantile of x using linear interpolation
// between closest ranks (Hyndman & Fan type 7). x must not be empty.
func quantile(x []float64, p float64) float64 {
	sorted := slices.Clone(x)
	slices.Sort(sorted)

	h := float64(len(sorted)-1) * p
	lo := math.Floor(h)
	loIdx := int(lo)
	if loIdx >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	return sorted[loIdx] + (h-lo)*(sorted[loIdx+1]-sorted[loIdx])
}

// VaR is the historical value at risk: the loss that is not exceeded with
// the given confidence. It is reported as a positive number for a loss, so
// VaR(r, 0.95) = -quantile(r, 0.05).
func VaR(in Input, confidence float64) Value {
	r, ok := single(in)
	if !ok || len(r) == 0 || confidence <= 0 || confidence >= 1 {
		return NotComputable()
	}
	return Number(-quantile(r, 1-confidence))
}

// ES (expected shortfall, or conditional VaR) is the average loss on the
// observations that are worse than VaR at the same confidence
func ES(in Input, confidence float64) Value {
	v := VaR(in, confidence)
	if !v.IsNumber() {
		return NotComputable()
	}
	r, _ := single(in)

	threshold := -v.Float()
	tail := make([]float64, 0, len(r))
	for _, x := range r {
		if x < threshold {
			tail = append(tail, x)
		}
	}
	if len(tail) == 0 {
		return NotComputable()
	}
	return Number(-stat.Mean(tail, nil))
}

// AnnualizedVolatility is the sample standard deviation of returns scaled
// by the square root of the number of trading days in a year
func AnnualizedVolatility(in Input) Value {
	r, ok := single(in)
	if !ok || len(r) < 2 {
		return NotComputable()
	}
	return Number(stat.StdDev(r, nil) * math.Sqrt(TradingDays))
}

// AnnualizedReturn is the arithmetic mean return scaled to a year
func AnnualizedReturn(in Input) Value {
	r, ok := single(in)
	if !ok || len(r) == 0 {
		return NotComputable()
	}
	return Number(stat.Mean(r, nil) * TradingDays)
}

// Sharpe is the excess annualized return per unit of annualized volatility.
// A series with no volatility at all has an infinite ratio.
func Sharpe(in Input, riskFree float64) Value {
	r, ok := single(in)
	if !ok || len(r) == 0 {
		return NotComputable()
	}
	vol := AnnualizedVolatility(in)
	if len(r) >= 2 && vol.Float() == 0 {
		return PosInf()
	}
	if !vol.IsNumber() {
		return NotComputable()
	}
	return Number((stat.Mean(r, nil)*TradingDays - riskFree) / vol.Float())
}

// Sortino is a variation of the Sharpe ratio that only penalizes harmful
// volatility: the denominator is the annualized standard deviation of the
// negative returns. A series that never lost money has an infinite ratio.
func Sortino(in Input, riskFree float64) Value {
	r, ok := single(in)
	if !ok || len(r) == 0 {
		return NotComputable()
	}

	downside := make([]float64, 0, len(r))
	for _, x := range r {
		if x < 0 {
			downside = append(downside, x)
		}
	}

	switch len(downside) {
	case 0:
		return PosInf()
	case 1:
		// sample deviation of one observation is undefined
		return NotComputable()
	}

	dev := stat.StdDev(downside, nil) * math.Sqrt(TradingDays)
	if dev == 0 {
		return PosInf()
	}
	return Number((stat.Mean(r, nil)*TradingDays - riskFree) / dev)
}

// Beta measures the sensitivity of an asset's returns to the market's
// returns: cov(asset, market) / var(market) over the paired observations.
// The result is keyed by series name; a Series input yields one entry.
func Beta(in Input, market Series) map[string]Value {
	switch asset := in.(type) {
	case Series:
		return map[string]Value{asset.Name: beta(asset, market)}
	case Multi:
		res := make(map[string]Value, len(asset))
		for name, s := range asset {
			res[name] = beta(s, market)
		}
		return res
	default:
		return map[string]Value{}
	}
}

func beta(asset, market Series) Value {
	xs, ys := pair(asset, market)
	if len(xs) < MinBetaObservations {
		return NotComputable()
	}
	variance := stat.Variance(ys, nil)
	if variance == 0 || math.IsNaN(variance) {
		return NotComputable()
	}
	return Number(stat.Covariance(xs, ys, nil) / variance)
}

// MaxDrawdown is the largest peak to trough decline of prices as a fraction
// of the peak. It is zero or negative; a series that never fell returns 0.
func MaxDrawdown(in Input) Value {
	prices, ok := single(in)
	if !ok || len(prices) == 0 {
		return NotComputable()
	}

	runMax := math.Inf(-1)
	drawdown := 0.0
	for _, p := range prices {
		if p > runMax {
			runMax = p
		}
		if runMax <= 0 {
			continue
		}
		if dd := (p - runMax) / runMax; dd < drawdown {
			drawdown = dd
		}
	}
	return Number(drawdown)
}

// Calmar is the annualized return divided by the magnitude of the maximum
// drawdown of the compounded returns. With no drawdown the ratio is +Inf,
// unless the series lost money, which makes the ratio not computable.
func Calmar(in Input) Value {
	s, ok := in.(Series)
	if !ok {
		return NotComputable()
	}
	annual := AnnualizedReturn(s)
	if !annual.IsNumber() {
		return NotComputable()
	}

	dd := MaxDrawdown(Cumulative(s))
	if !dd.IsNumber() {
		return NotComputable()
	}
	if dd.Float() == 0 {
		if annual.Float() < 0 {
			return NotComputable()
		}
		return PosInf()
	}
	return Number(annual.Float() / math.Abs(dd.Float()))
}

// Skewness is the sample skewness of returns relative to the normal
// distribution
func Skewness(in Input) Value {
	r, ok := single(in)
	if !ok || len(r) < 3 || stat.Variance(r, nil) == 0 {
		return NotComputable()
	}
	return Number(stat.Skew(r, nil))
}

// Kurtosis is the sample excess kurtosis of returns: how much fatter the
// tails are than a normal distribution's
func Kurtosis(in Input) Value {
	r, ok := single(in)
	if !ok || len(r) < 4 || stat.Variance(r, nil) == 0 {
		return NotComputable()
	}
	return Number(stat.ExKurtosis(r, nil))
}

// CorrelationMatrix holds pairwise correlations of named return series
type CorrelationMatrix struct {
	Names  []string
	Values [][]Value
}

// Correlation computes the pairwise Pearson correlation of every series in a
// Multi input over their paired observations
func Correlation(in Input) *CorrelationMatrix {
	m, ok := in.(Multi)
	if !ok {
		if s, isSeries := in.(Series); isSeries {
			m = Multi{s.Name: s}
		} else {
			return &CorrelationMatrix{}
		}
	}

	names := m.Names()
	res := &CorrelationMatrix{
		Names:  names,
		Values: make([][]Value, len(names)),
	}
	for ii := range names {
		res.Values[ii] = make([]Value, len(names))
	}

	for ii, a := range names {
		for jj := ii; jj < len(names); jj++ {
			xs, ys := pair(m[a], m[names[jj]])
			val := NotComputable()
			if len(xs) >= 2 && stat.Variance(xs, nil) > 0 && stat.Variance(ys, nil) > 0 {
				val = Number(stat.Correlation(xs, ys, nil))
			}
			res.Values[ii][jj] = val
			res.Values[jj][ii] = val
		}
	}
	return res
}

// Get returns the correlation of a and b
func (cm *CorrelationMatrix) Get(a, b string) Value {
	ia, ib := slices.Index(cm.Names, a), slices.Index(cm.Names, b)
	if ia < 0 || ib < 0 {
		return NotComputable()
	}
	return cm.Values[ia][ib]
}

// TotalReturn is the compounded return of the whole series
func TotalReturn(in Input) Value {
	r, ok := single(in)
	if !ok || len(r) == 0 {
		return NotComputable()
	}
	growth := make([]float64, len(r))
	floats.AddConst(1, floats.AddTo(growth, growth, r))
	return Number(floats.Prod(growth) - 1)
}
