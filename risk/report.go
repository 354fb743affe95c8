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
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const (
	DefaultRiskFree  = 0.02
	DefaultBenchmark = "SPY"
)

// DefaultConfidences are the VaR / ES levels reported by Analyze
var DefaultConfidences = []float64{0.95, 0.99}

type Params struct {
	RiskFree    float64
	Benchmark   string
	Confidences []float64
}

// DefaultParams returns a 2% risk free rate, SPY as the benchmark and the
// 95% / 99% tail levels
func DefaultParams() Params {
	return Params{
		RiskFree:    DefaultRiskFree,
		Benchmark:   DefaultBenchmark,
		Confidences: DefaultConfidences,
	}
}

// TailRisk is VaR and ES at one confidence level
type TailRisk struct {
	Confidence float64 `json:"confidence"`
	VaR        Value   `json:"var"`
	ES         Value   `json:"es"`
}

// Report is the full set of risk metrics for one asset or portfolio. Every
// field is always present; metrics the data could not support are
// NotComputable.
type Report struct {
	Name         string     `json:"name"`
	Benchmark    string     `json:"benchmark"`
	Observations int        `json:"observations"`
	Tail         []TailRisk `json:"tail"`
	Volatility   Value      `json:"annualizedVolatility"`
	AnnualReturn Value      `json:"annualizedReturn"`
	Sharpe       Value      `json:"sharpeRatio"`
	Sortino      Value      `json:"sortinoRatio"`
	Calmar       Value      `json:"calmarRatio"`
	Beta         Value      `json:"beta"`
	MaxDrawdown  Value      `json:"maximumDrawdown"`
	Skewness     Value      `json:"skewness"`
	Kurtosis     Value      `json:"kurtosis"`

	// Betas holds one beta per asset when a Multi input was analyzed
	Betas map[string]Value `json:"betas,omitempty"`
}

// Analyze computes a Report from prices. market is the benchmark's price
// series used for beta; it may be empty, which leaves beta not computable.
func Analyze(prices Input, market Series, params Params) *Report {
	if len(params.Confidences) == 0 {
		params.Confidences = DefaultConfidences
	}
	if params.Benchmark == "" {
		params.Benchmark = DefaultBenchmark
	}

	marketReturns := Returns(market)
	report := &Report{
		Benchmark: params.Benchmark,
	}

	var returns Input = Multi{}
	switch p := prices.(type) {
	case Series:
		r := Returns(p)
		returns = r
		report.Name = p.Name
		report.Observations = r.Len()
		report.MaxDrawdown = MaxDrawdown(p)
		report.Beta = beta(r, marketReturns)
	case Multi:
		multiReturns := make(Multi, len(p))
		for name, s := range p {
			multiReturns[name] = Returns(s)
		}
		report.Name = strings.Join(p.Names(), ",")
		report.Betas = Beta(multiReturns, marketReturns)
	}

	for _, c := range params.Confidences {
		report.Tail = append(report.Tail, TailRisk{
			Confidence: c,
			VaR:        VaR(returns, c),
			ES:         ES(returns, c),
		})
	}

	report.Volatility = AnnualizedVolatility(returns)
	report.AnnualReturn = AnnualizedReturn(returns)
	report.Sharpe = Sharpe(returns, params.RiskFree)
	report.Sortino = Sortino(returns, params.RiskFree)
	report.Calmar = Calmar(returns)
	report.Skewness = Skewness(returns)
	report.Kurtosis = Kurtosis(returns)

	log.Debug().Object("Report", report).Msg("risk analysis complete")
	return report
}

// Rows lists every metric as a label and formatted value in display order
func (report *Report) Rows() [][]string {
	rows := make([][]string, 0, 16)
	for _, tail := range report.Tail {
		pct := tail.Confidence * 100
		rows = append(rows,
			[]string{fmt.Sprintf("VaR (%g%%)", pct), tail.VaR.Percent()},
			[]string{fmt.Sprintf("ES (%g%%)", pct), tail.ES.Percent()},
		)
	}
	rows = append(rows,
		[]string{"Annualized Volatility", report.Volatility.Percent()},
		[]string{"Annualized Return", report.AnnualReturn.Percent()},
		[]string{"Sharpe Ratio", report.Sharpe.String()},
		[]string{"Sortino Ratio", report.Sortino.String()},
		[]string{"Calmar Ratio", report.Calmar.String()},
	)

	if report.Betas != nil {
		for _, name := range sortedKeys(report.Betas) {
			rows = append(rows, []string{fmt.Sprintf("Beta %s (vs %s)", name, report.Benchmark), report.Betas[name].String()})
		}
	} else {
		rows = append(rows, []string{fmt.Sprintf("Beta (vs %s)", report.Benchmark), report.Beta.String()})
	}

	rows = append(rows,
		[]string{"Maximum Drawdown", report.MaxDrawdown.Percent()},
		[]string{"Skewness", report.Skewness.String()},
		[]string{"Kurtosis", report.Kurtosis.String()},
	)
	return rows
}

// Table renders the report as an ascii table
func (report *Report) Table() string {
	s := &strings.Builder{}
	table := tablewriter.NewWriter(s)
	table.SetHeader([]string{"Metric", "Value"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.AppendBulk(report.Rows())
	table.Render()
	return s.String()
}

func sortedKeys(m map[string]Value) []string {
	keys := maps.Keys(m)
	slices.Sort(keys)
	return keys
}
