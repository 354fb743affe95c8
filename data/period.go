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
	"strings"
)

// Period is the look-back window of a price history request
type Period string

const (
	Period5Days   Period = "5d"
	Period1Month  Period = "1mo"
	Period3Months Period = "3mo"
	Period6Months Period = "6mo"
	Period1Year   Period = "1y"
	Period2Years  Period = "2y"
	Period5Years  Period = "5y"
	PeriodMax     Period = "max"
)

// TradingDaysPerYear is the number of sessions in a trading year
const TradingDaysPerYear = 252

var periodRows = map[Period]int{
	Period5Days:   5,
	Period1Month:  21,
	Period3Months: 63,
	Period6Months: 126,
	Period1Year:   TradingDaysPerYear,
	Period2Years:  2 * TradingDaysPerYear,
	Period5Years:  5 * TradingDaysPerYear,
	PeriodMax:     -1,
}

// ParsePeriod validates a period string such as "1y"
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := periodRows[p]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	return p, nil
}

// Rows returns the number of trading days kept for the period; -1 means
// keep everything
func (p Period) Rows() int {
	if n, ok := periodRows[p]; ok {
		return n
	}
	return -1
}

// Interval is the sampling frequency of a request
type Interval string

const (
	IntervalDaily Interval = "1d"
)

// ParseInterval validates an interval string. "daily" is accepted as an alias
// for "1d".
func ParseInterval(s string) (Interval, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "1d", "daily":
		return IntervalDaily, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidInterval, s)
	}
}

// trimToPeriod keeps the trailing rows that belong to the period. bars must be
// sorted by ascending date.
func trimToPeriod(bars []*PriceBar, period Period) []*PriceBar {
	n := period.Rows()
	if n < 0 || len(bars) <= n {
		return bars
	}
	return bars[len(bars)-n:]
}
