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
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/penny-vault/pv-risk/observability/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// fullExitEpsilon is the remaining quantity below which a sell closes the position
	fullExitEpsilon = 1e-9

	// allocationTolerance is the largest disagreement between a caller supplied
	// allocation and price x quantity accepted without a warning
	allocationTolerance = 0.01
)

// portfolioNamespace derives stable portfolio ids from names
var portfolioNamespace = uuid.MustParse("6c1f8f2e-9d4b-4f53-9a8e-5a1f2b7c3d10")

// Model owns one portfolio. Every mutation is validated and applied to a copy
// which replaces the current state only after the repository commits it.
type Model struct {
	locker    sync.Mutex
	portfolio *Portfolio
	repo      Repository
	metrics   *metrics.Registry
	now       func() time.Time
}

// Option configures a Model
type Option func(*Model)

// WithRepository persists every mutation through repo
func WithRepository(repo Repository) Option {
	return func(pm *Model) {
		pm.repo = repo
	}
}

// WithMetrics counts ledger mutations in reg
func WithMetrics(reg *metrics.Registry) Option {
	return func(pm *Model) {
		pm.metrics = reg
	}
}

// WithClock overrides the time source used for default transaction dates
func WithClock(now func() time.Time) Option {
	return func(pm *Model) {
		pm.now = now
	}
}

// IDForName returns the id of the portfolio called name
func IDForName(name string) uuid.UUID {
	return uuid.NewSHA1(portfolioNamespace, []byte(strings.TrimSpace(name)))
}

// NewPortfolio creates an empty portfolio
func NewPortfolio(name string, opts ...Option) *Model {
	pm := &Model{now: time.Now}
	for _, opt := range opts {
		opt(pm)
	}
	pm.portfolio = &Portfolio{
		ID:           IDForName(name),
		Name:         name,
		CreatedAt:    pm.now(),
		Positions:    make([]*Position, 0),
		Transactions: make([]*Transaction, 0),
	}
	return pm
}

// Open loads the portfolio called name from the configured repository,
// creating an empty one when it does not exist yet
func Open(ctx context.Context, name string, opts ...Option) (*Model, error) {
	pm := NewPortfolio(name, opts...)
	if pm.repo == nil {
		return pm, nil
	}

	p, err := pm.repo.Load(ctx, pm.portfolio.ID)
	if errors.Is(err, ErrPortfolioNotFound) {
		log.Info().Str("Portfolio", name).Msg("creating new portfolio")
		return pm, nil
	}
	if err != nil {
		return nil, err
	}

	p.recomputeWeights()
	for _, pos := range p.Positions {
		log.Debug().Str("Portfolio", name).Object("Position", pos).Msg("loaded position")
	}
	pm.portfolio = p
	return pm, nil
}

// ID returns the portfolio id
func (pm *Model) ID() uuid.UUID {
	return pm.portfolio.ID
}

// Snapshot returns a copy of the current state
func (pm *Model) Snapshot() Snapshot {
	pm.locker.Lock()
	defer pm.locker.Unlock()
	return pm.portfolio.snapshot()
}

// apply runs fn against a copy of the portfolio and commits the result
func (pm *Model) apply(ctx context.Context, op string, fn func(next *Portfolio, change *Change) error) Result {
	pm.locker.Lock()
	defer pm.locker.Unlock()

	subLog := log.With().Str("Op", op).Str("PortfolioID", pm.portfolio.ID.String()).Logger()

	next := pm.portfolio.clone()
	change := &Change{Portfolio: next}
	if err := fn(next, change); err != nil {
		subLog.Warn().Err(err).Msg("ledger operation rejected")
		pm.metrics.LedgerMutation(op, "rejected")
		return Result{Error: err, Portfolio: pm.portfolio.snapshot()}
	}

	next.recomputeWeights()
	next.Transactions = append(next.Transactions, change.Transactions...)

	if pm.repo != nil {
		if err := pm.repo.Commit(ctx, change); err != nil {
			subLog.Error().Err(err).Msg("could not commit ledger change")
			pm.metrics.LedgerMutation(op, "failed")
			var persistErr *PersistenceError
			if !errors.As(err, &persistErr) {
				err = &PersistenceError{Op: op, Err: err}
			}
			return Result{Error: err, Portfolio: pm.portfolio.snapshot()}
		}
	}

	pm.portfolio = next
	pm.metrics.LedgerMutation(op, "ok")
	for _, trx := range change.Transactions {
		subLog.Info().Object("Transaction", trx).Msg("recorded transaction")
	}
	return Result{Success: true, Portfolio: next.snapshot()}
}

// AddRequest describes a purchase or an allocation entered without trade
// details
type AddRequest struct {
	Symbol        string
	AssetClass    AssetClass
	Allocation    *float64
	PurchasePrice *float64
	Quantity      *float64
	Date          *time.Time
	Memo          string
}

func (req *AddRequest) MarshalZerologObject(e *zerolog.Event) {
	e.Str("Symbol", req.Symbol).Str("AssetClass", string(req.AssetClass))
	if req.Allocation != nil {
		e.Float64("Allocation", *req.Allocation)
	}
	if req.PurchasePrice != nil {
		e.Float64("PurchasePrice", *req.PurchasePrice)
	}
	if req.Quantity != nil {
		e.Float64("Quantity", *req.Quantity)
	}
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func (pm *Model) dateOrNow(date *time.Time) time.Time {
	if date != nil {
		return *date
	}
	return pm.now()
}

// AddPosition buys into a symbol. When both price and quantity are known the
// allocation is price x quantity and a BUY is recorded; otherwise the caller's
// allocation is used as is.
func (pm *Model) AddPosition(ctx context.Context, req AddRequest) Result {
	const op = "add"
	symbol := normalizeSymbol(req.Symbol)

	return pm.apply(ctx, op, func(next *Portfolio, change *Change) error {
		if symbol == "" {
			return invalid(op, symbol, ErrInvalidSymbol, "")
		}
		if req.Quantity != nil && *req.Quantity <= 0 {
			return invalid(op, symbol, ErrInvalidQuantity, "")
		}
		if req.PurchasePrice != nil && *req.PurchasePrice <= 0 {
			return invalid(op, symbol, ErrInvalidPrice, "")
		}

		var allocation float64
		traded := false
		switch {
		case req.PurchasePrice != nil && req.Quantity != nil:
			allocation = mul(*req.PurchasePrice, *req.Quantity)
			traded = true
			if req.Allocation != nil && math.Abs(*req.Allocation-allocation) > allocationTolerance {
				log.Warn().Object("Request", &req).Float64("Computed", allocation).
					Msg("allocation disagrees with price x quantity; using price x quantity")
			}
		case req.Allocation != nil:
			allocation = *req.Allocation
		default:
			return invalid(op, symbol, ErrInvalidAllocation, "allocation is required unless both price and quantity are given")
		}
		if allocation < 0 || math.IsNaN(allocation) {
			return invalid(op, symbol, ErrInvalidAllocation, "allocation must not be negative")
		}

		class := req.AssetClass
		if class == "" {
			class = AssetStock
		}

		date := pm.dateOrNow(req.Date)
		_, pos := next.find(symbol)
		switch {
		case pos == nil:
			pos = &Position{
				Symbol:     symbol,
				AssetClass: class,
				Allocation: allocation,
			}
			if traded {
				qty, price := *req.Quantity, *req.PurchasePrice
				pos.Quantity = &qty
				pos.PurchasePrice = &price
				pos.PurchaseDate = &date
			}
			next.Positions = append(next.Positions, pos)
		case traded && pos.Quantity != nil:
			held := *pos.Quantity
			basis, _ := pos.CostBasis()
			price := weightedPrice(basis, held, *req.PurchasePrice, *req.Quantity)
			qty := add(held, *req.Quantity)
			pos.Quantity = &qty
			pos.PurchasePrice = &price
			pos.Allocation = add(pos.Allocation, allocation)
		default:
			// the existing lot has no share count so only the allocation combines
			pos.Allocation = add(pos.Allocation, allocation)
		}

		if traded {
			trx, err := newTransaction(next.ID, len(next.Transactions), BuyTransaction, symbol, *req.Quantity, *req.PurchasePrice, date)
			if err != nil {
				return err
			}
			trx.Memo = req.Memo
			change.Transactions = append(change.Transactions, trx)
		}
		return nil
	})
}

// SellPosition sells qty shares of symbol at price. Selling everything held
// closes the position.
func (pm *Model) SellPosition(ctx context.Context, symbol string, qty, price float64, date *time.Time) Result {
	const op = "sell"
	symbol = normalizeSymbol(symbol)

	return pm.apply(ctx, op, func(next *Portfolio, change *Change) error {
		idx, pos := next.find(symbol)
		if pos == nil {
			return invalid(op, symbol, ErrUnknownSymbol, "")
		}
		if pos.Quantity == nil {
			return invalid(op, symbol, ErrQuantityUnknown, "position was entered without a quantity")
		}
		if qty <= 0 || math.IsNaN(qty) {
			return invalid(op, symbol, ErrInvalidQuantity, "")
		}
		if price <= 0 || math.IsNaN(price) {
			return invalid(op, symbol, ErrInvalidPrice, "")
		}
		held := *pos.Quantity
		if qty > held+fullExitEpsilon {
			return invalid(op, symbol, ErrOversell, fmt.Sprintf("only %g shares held", held))
		}

		basis, _ := pos.CostBasis()
		realized := mul(sub(price, basis), qty)

		remaining := sub(held, qty)
		if remaining <= fullExitEpsilon {
			next.remove(idx)
			change.Removed = append(change.Removed, symbol)
		} else {
			pos.Allocation = scale(pos.Allocation, remaining, held)
			pos.Quantity = &remaining
			pos.RealizedPnL = add(pos.RealizedPnL, realized)
		}

		trx, err := newTransaction(next.ID, len(next.Transactions), SellTransaction, symbol, qty, price, pm.dateOrNow(date))
		if err != nil {
			return err
		}
		trx.GainLoss = &realized
		change.Transactions = append(change.Transactions, trx)
		return nil
	})
}

// Rebalance overwrites the allocation of each named position. Nothing changes
// if any symbol is unknown or any amount is negative.
func (pm *Model) Rebalance(ctx context.Context, targets map[string]float64) Result {
	const op = "rebalance"

	return pm.apply(ctx, op, func(next *Portfolio, change *Change) error {
		if len(targets) == 0 {
			return invalid(op, "", ErrInvalidAllocation, "no targets given")
		}
		for raw, amount := range targets {
			symbol := normalizeSymbol(raw)
			_, pos := next.find(symbol)
			if pos == nil {
				return invalid(op, symbol, ErrUnknownSymbol, "")
			}
			if amount < 0 || math.IsNaN(amount) {
				return invalid(op, symbol, ErrInvalidAllocation, "allocation must not be negative")
			}
			pos.Allocation = amount
		}
		return nil
	})
}

// RemovePosition drops symbol without recording a transaction
func (pm *Model) RemovePosition(ctx context.Context, symbol string) Result {
	const op = "remove"
	symbol = normalizeSymbol(symbol)

	return pm.apply(ctx, op, func(next *Portfolio, change *Change) error {
		idx, pos := next.find(symbol)
		if pos == nil {
			return invalid(op, symbol, ErrUnknownSymbol, "")
		}
		next.remove(idx)
		change.Removed = append(change.Removed, symbol)
		return nil
	})
}
