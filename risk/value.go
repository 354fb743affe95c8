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
	"math"
	"strconv"
)

// Kind tags the outcome of a metric
type Kind int

const (
	// NotComputableKind means the input did not support the metric (too few
	// observations, zero variance, wrong input shape)
	NotComputableKind Kind = iota
	NumberKind
	PosInfKind
)

// NotAvailable is how a NotComputable value is displayed
const NotAvailable = "N/A"

// Value is the result of a risk metric. The zero value is NotComputable.
type Value struct {
	kind Kind
	x    float64
}

// Number wraps x. NaN becomes NotComputable and +Inf becomes PosInf so callers
// never see a raw non-finite float.
func Number(x float64) Value {
	switch {
	case math.IsNaN(x), math.IsInf(x, -1):
		return Value{}
	case math.IsInf(x, 1):
		return PosInf()
	}
	return Value{kind: NumberKind, x: x}
}

func NotComputable() Value {
	return Value{}
}

func PosInf() Value {
	return Value{kind: PosInfKind, x: math.Inf(1)}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsNumber() bool {
	return v.kind == NumberKind
}

func (v Value) IsPosInf() bool {
	return v.kind == PosInfKind
}

func (v Value) IsNotComputable() bool {
	return v.kind == NotComputableKind
}

// Float returns the value as a float64; NotComputable is NaN
func (v Value) Float() float64 {
	switch v.kind {
	case NumberKind:
		return v.x
	case PosInfKind:
		return math.Inf(1)
	default:
		return math.NaN()
	}
}

func (v Value) String() string {
	switch v.kind {
	case NumberKind:
		return strconv.FormatFloat(v.x, 'f', 4, 64)
	case PosInfKind:
		return "+Inf"
	default:
		return NotAvailable
	}
}

// Percent formats a number as a percentage with two decimals
func (v Value) Percent() string {
	if v.kind != NumberKind {
		return v.String()
	}
	return fmt.Sprintf("%.2f%%", v.x*100)
}

// MarshalJSON encodes numbers as JSON numbers and the other kinds as strings
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case NumberKind:
		return []byte(strconv.FormatFloat(v.x, 'g', -1, 64)), nil
	case PosInfKind:
		return []byte(`"+Inf"`), nil
	default:
		return []byte(`"` + NotAvailable + `"`), nil
	}
}
