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

package portfolio

import (
	"github.com/rs/zerolog"
)

func (o *Position) MarshalZerologObject(e *zerolog.Event) {
	e.Str("Symbol", o.Symbol).
		Str("AssetClass", string(o.AssetClass)).
		Float64("Allocation", o.Allocation).
		Float64("Weight", o.Weight).
		Float64("RealizedPnL", o.RealizedPnL)
	if o.Quantity != nil {
		e.Float64("Quantity", *o.Quantity)
	}
	if o.PurchasePrice != nil {
		e.Float64("PurchasePrice", *o.PurchasePrice)
	}
}

func (o *Transaction) MarshalZerologObject(e *zerolog.Event) {
	e.Str("TransactionID", o.ID.String()).
		Str("SourceID", o.SourceID).
		Time("Date", o.Date).
		Str("Kind", o.Kind).
		Str("Symbol", o.Symbol).
		Float64("Shares", o.Shares).
		Float64("PricePerShare", o.PricePerShare).
		Float64("TotalValue", o.TotalValue).
		Str("Memo", o.Memo)
	if o.GainLoss != nil {
		e.Float64("GainLoss", *o.GainLoss)
	}
}

func (o *Valuation) MarshalZerologObject(e *zerolog.Event) {
	degraded := 0
	for _, pv := range o.Positions {
		if pv.Degraded {
			degraded++
		}
	}
	e.Time("AsOf", o.AsOf).
		Int("NumPositions", len(o.Positions)).
		Int("NumDegraded", degraded).
		Float64("TotalCost", o.TotalCost).
		Float64("TotalValue", o.TotalValue).
		Float64("UnrealizedPnL", o.UnrealizedPnL).
		Float64("RealizedPnL", o.RealizedPnL)
}
