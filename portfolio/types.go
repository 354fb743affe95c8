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
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	SourceName = "PV"
)

const (
	SellTransaction = "SELL"
	BuyTransaction  = "BUY"
)

// AssetClass groups positions in the summary breakdown
type AssetClass string

const (
	AssetStock  AssetClass = "stock"
	AssetETF    AssetClass = "etf"
	AssetBond   AssetClass = "bond"
	AssetCrypto AssetClass = "crypto"
	AssetCash   AssetClass = "cash"
	AssetOther  AssetClass = "other"
)

var assetClasses = []AssetClass{AssetStock, AssetETF, AssetBond, AssetCrypto, AssetCash, AssetOther}

// ParseAssetClass validates s; an empty string is a stock
func ParseAssetClass(s string) (AssetClass, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return AssetStock, nil
	}
	for _, class := range assetClasses {
		if string(class) == s {
			return class, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAssetClass, s)
}

// Position is a holding. Quantity, PurchasePrice and PurchaseDate are nil
// when the position was entered by allocation only.
type Position struct {
	Symbol        string     `json:"symbol"`
	AssetClass    AssetClass `json:"assetClass"`
	Allocation    float64    `json:"allocation"`
	Weight        float64    `json:"weight"`
	Quantity      *float64   `json:"quantity,omitempty"`
	PurchasePrice *float64   `json:"purchasePrice,omitempty"`
	PurchaseDate  *time.Time `json:"purchaseDate,omitempty"`
	RealizedPnL   float64    `json:"realizedPnl"`
}

// CostBasis is the per share cost used to compute realized gains
func (p *Position) CostBasis() (float64, bool) {
	switch {
	case p.PurchasePrice != nil:
		return *p.PurchasePrice, true
	case p.Quantity != nil && *p.Quantity > 0:
		return p.Allocation / *p.Quantity, true
	default:
		return 0, false
	}
}

func (p *Position) clone() *Position {
	cp := *p
	if p.Quantity != nil {
		qty := *p.Quantity
		cp.Quantity = &qty
	}
	if p.PurchasePrice != nil {
		price := *p.PurchasePrice
		cp.PurchasePrice = &price
	}
	if p.PurchaseDate != nil {
		dt := *p.PurchaseDate
		cp.PurchaseDate = &dt
	}
	return &cp
}

// Transaction is an immutable ledger entry
type Transaction struct {
	ID            uuid.UUID `json:"id"`
	SourceID      string    `json:"sourceId"`
	Source        string    `json:"source"`
	Date          time.Time `json:"date"`
	Kind          string    `json:"kind"`
	Symbol        string    `json:"symbol"`
	Shares        float64   `json:"shares"`
	PricePerShare float64   `json:"pricePerShare"`
	TotalValue    float64   `json:"totalValue"`
	GainLoss      *float64  `json:"realizedPnl,omitempty"`
	Memo          string    `json:"memo,omitempty"`
}

// Portfolio is the full ledger state
type Portfolio struct {
	ID           uuid.UUID      `json:"id"`
	Name         string         `json:"name"`
	CreatedAt    time.Time      `json:"createdAt"`
	Positions    []*Position    `json:"positions"`
	Transactions []*Transaction `json:"transactions"`
}

// clone deep copies positions; transactions are immutable so only the slice
// is copied
func (p *Portfolio) clone() *Portfolio {
	cp := &Portfolio{
		ID:           p.ID,
		Name:         p.Name,
		CreatedAt:    p.CreatedAt,
		Positions:    make([]*Position, len(p.Positions)),
		Transactions: make([]*Transaction, len(p.Transactions)),
	}
	for idx, pos := range p.Positions {
		cp.Positions[idx] = pos.clone()
	}
	copy(cp.Transactions, p.Transactions)
	return cp
}

func (p *Portfolio) find(symbol string) (int, *Position) {
	for idx, pos := range p.Positions {
		if pos.Symbol == symbol {
			return idx, pos
		}
	}
	return -1, nil
}

func (p *Portfolio) remove(idx int) {
	p.Positions = append(p.Positions[:idx], p.Positions[idx+1:]...)
}

// TotalAllocation sums the allocation of every position
func (p *Portfolio) TotalAllocation() float64 {
	total := 0.0
	for _, pos := range p.Positions {
		total += pos.Allocation
	}
	return total
}

func (p *Portfolio) recomputeWeights() {
	total := p.TotalAllocation()
	for _, pos := range p.Positions {
		if total > 0 {
			pos.Weight = pos.Allocation / total
		} else {
			pos.Weight = 0
		}
	}
}

// Snapshot is a read-only copy of a portfolio at a point in time
type Snapshot struct {
	ID           uuid.UUID     `json:"id"`
	Name         string        `json:"name"`
	Positions    []Position    `json:"positions"`
	Transactions []Transaction `json:"transactions"`
}

func (p *Portfolio) snapshot() Snapshot {
	snap := Snapshot{
		ID:           p.ID,
		Name:         p.Name,
		Positions:    make([]Position, len(p.Positions)),
		Transactions: make([]Transaction, len(p.Transactions)),
	}
	for idx, pos := range p.Positions {
		snap.Positions[idx] = *pos.clone()
	}
	for idx, trx := range p.Transactions {
		snap.Transactions[idx] = *trx
	}
	return snap
}

// Position returns the holding for symbol
func (s Snapshot) Position(symbol string) (Position, bool) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for _, pos := range s.Positions {
		if pos.Symbol == symbol {
			return pos, true
		}
	}
	return Position{}, false
}

// Weights maps each held symbol to its share of the total allocation
func (s Snapshot) Weights() map[string]float64 {
	weights := make(map[string]float64, len(s.Positions))
	for _, pos := range s.Positions {
		weights[pos.Symbol] = pos.Weight
	}
	return weights
}

// Symbols lists the held symbols in position order
func (s Snapshot) Symbols() []string {
	symbols := make([]string, len(s.Positions))
	for idx, pos := range s.Positions {
		symbols[idx] = pos.Symbol
	}
	return symbols
}

// Result is returned by every ledger operation. On failure Error is set and
// Portfolio is the unchanged state.
type Result struct {
	Success   bool
	Error     error
	Portfolio Snapshot
}
