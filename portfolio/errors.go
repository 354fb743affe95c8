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
	"errors"
	"fmt"
)

var (
	ErrInvalidSymbol     = errors.New("symbol is required")
	ErrUnknownSymbol     = errors.New("symbol not held in portfolio")
	ErrOversell          = errors.New("sell quantity exceeds shares held")
	ErrInvalidAllocation = errors.New("invalid allocation")
	ErrInvalidQuantity   = errors.New("quantity must be greater than zero")
	ErrInvalidPrice      = errors.New("price must be greater than zero")
	ErrQuantityUnknown   = errors.New("position quantity is unknown")
	ErrPortfolioNotFound = errors.New("could not find portfolio ID in database")
	ErrGenerateHash      = errors.New("could not create a new hash")
	ErrNoPositions       = errors.New("portfolio has no positions")
	ErrInvalidAssetClass = errors.New("unknown asset class")
	ErrNoMarketData      = errors.New("no market data for any held symbol")
)

// ValidationError is a ledger operation rejected before any state changed
type ValidationError struct {
	Op     string
	Symbol string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.Symbol, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(op, symbol string, err error, reason string) *ValidationError {
	if reason == "" {
		reason = err.Error()
	}
	return &ValidationError{
		Op:     op,
		Symbol: symbol,
		Reason: reason,
		Err:    err,
	}
}

// PersistenceError is a commit that failed and was rolled back; the in-memory
// portfolio is unchanged
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
