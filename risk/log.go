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

	"github.com/rs/zerolog"
)

func (report *Report) MarshalZerologObject(e *zerolog.Event) {
	e.Str("Name", report.Name)
	e.Str("Benchmark", report.Benchmark)
	e.Int("Observations", report.Observations)
	for _, tail := range report.Tail {
		e.Str(fmt.Sprintf("VaR%g", tail.Confidence*100), tail.VaR.String())
		e.Str(fmt.Sprintf("ES%g", tail.Confidence*100), tail.ES.String())
	}
	e.Str("Volatility", report.Volatility.String())
	e.Str("AnnualReturn", report.AnnualReturn.String())
	e.Str("Sharpe", report.Sharpe.String())
	e.Str("Sortino", report.Sortino.String())
	e.Str("Calmar", report.Calmar.String())
	e.Str("Beta", report.Beta.String())
	e.Str("MaxDrawdown", report.MaxDrawdown.String())
	e.Str("Skewness", report.Skewness.String())
	e.Str("Kurtosis", report.Kurtosis.String())
}
