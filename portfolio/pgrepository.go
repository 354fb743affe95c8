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

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/penny-vault/pv-risk/data/database"
	"github.com/penny-vault/pv-risk/observability/opentelemetry"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// LedgerSchema creates the portfolio tables in PostgreSQL
var LedgerSchema = []string{
	`CREATE TABLE IF NOT EXISTS portfolios (
		id         UUID NOT NULL,
		name       TEXT NOT NULL,
		created    TIMESTAMPTZ NOT NULL,
		lastchanged TIMESTAMPTZ NOT NULL,
		CONSTRAINT portfolios_pkey PRIMARY KEY (id)
	)`,
	`CREATE TABLE IF NOT EXISTS positions (
		portfolio_id   UUID NOT NULL REFERENCES portfolios (id) ON DELETE CASCADE,
		symbol         TEXT NOT NULL,
		asset_class    TEXT NOT NULL,
		allocation     DOUBLE PRECISION NOT NULL,
		quantity       DOUBLE PRECISION,
		purchase_price DOUBLE PRECISION,
		purchase_date  TIMESTAMPTZ,
		realized_pnl   DOUBLE PRECISION NOT NULL DEFAULT 0,
		seq            INTEGER NOT NULL,
		CONSTRAINT positions_pkey PRIMARY KEY (portfolio_id, symbol)
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id              UUID NOT NULL,
		portfolio_id    UUID NOT NULL REFERENCES portfolios (id) ON DELETE CASCADE,
		source_id       TEXT NOT NULL,
		source          TEXT NOT NULL,
		event_date      TIMESTAMPTZ NOT NULL,
		kind            TEXT NOT NULL,
		symbol          TEXT NOT NULL,
		shares          DOUBLE PRECISION NOT NULL,
		price_per_share DOUBLE PRECISION NOT NULL,
		total_value     DOUBLE PRECISION NOT NULL,
		gain_loss       DOUBLE PRECISION,
		memo            TEXT NOT NULL DEFAULT '',
		seq             INTEGER NOT NULL,
		CONSTRAINT transactions_pkey PRIMARY KEY (id),
		CONSTRAINT transactions_source_id_key UNIQUE (source_id)
	)`,
}

// PgRepository keeps portfolios in PostgreSQL
type PgRepository struct {
	db database.PgxIface
}

func NewPgRepository(db database.PgxIface) *PgRepository {
	return &PgRepository{
		db: db,
	}
}

func (repo *PgRepository) Load(ctx context.Context, id uuid.UUID) (*Portfolio, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "pgrepository.Load")
	defer span.End()
	span.SetAttributes(attribute.String("portfolio.id", id.String()))

	subLog := log.With().Str("PortfolioID", id.String()).Logger()

	trx, err := database.Begin(ctx, repo.db)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not begin transaction")
		return nil, &PersistenceError{Op: "load", Err: err}
	}

	fail := func(sql string, err error) (*Portfolio, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		subLog.Error().Stack().Err(err).Str("Query", sql).Msg("could not load portfolio")
		database.Rollback(ctx, trx, subLog)
		return nil, &PersistenceError{Op: "load", Err: err}
	}

	p := &Portfolio{
		ID:           id,
		Positions:    make([]*Position, 0),
		Transactions: make([]*Transaction, 0),
	}

	portfolioSQL := `SELECT name, created FROM portfolios WHERE id=$1`
	if err := trx.QueryRow(ctx, portfolioSQL, id.String()).Scan(&p.Name, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			database.Rollback(ctx, trx, subLog)
			return nil, ErrPortfolioNotFound
		}
		return fail(portfolioSQL, err)
	}

	positionSQL := `SELECT symbol, asset_class, allocation, quantity, purchase_price, purchase_date, realized_pnl FROM positions WHERE portfolio_id=$1 ORDER BY seq`
	rows, err := trx.Query(ctx, positionSQL, id.String())
	if err != nil {
		return fail(positionSQL, err)
	}
	for rows.Next() {
		pos := &Position{}
		var class string
		if err := rows.Scan(&pos.Symbol, &class, &pos.Allocation, &pos.Quantity, &pos.PurchasePrice, &pos.PurchaseDate, &pos.RealizedPnL); err != nil {
			rows.Close()
			return fail(positionSQL, err)
		}
		pos.AssetClass = AssetClass(class)
		p.Positions = append(p.Positions, pos)
	}
	rows.Close()

	transactionSQL := `SELECT id, source_id, source, event_date, kind, symbol, shares, price_per_share, total_value, gain_loss, memo FROM transactions WHERE portfolio_id=$1 ORDER BY seq`
	rows, err = trx.Query(ctx, transactionSQL, id.String())
	if err != nil {
		return fail(transactionSQL, err)
	}
	for rows.Next() {
		t := &Transaction{}
		var trxID string
		if err := rows.Scan(&trxID, &t.SourceID, &t.Source, &t.Date, &t.Kind, &t.Symbol, &t.Shares, &t.PricePerShare, &t.TotalValue, &t.GainLoss, &t.Memo); err != nil {
			rows.Close()
			return fail(transactionSQL, err)
		}
		if t.ID, err = uuid.Parse(trxID); err != nil {
			rows.Close()
			return fail(transactionSQL, err)
		}
		p.Transactions = append(p.Transactions, t)
	}
	rows.Close()

	if err := trx.Commit(ctx); err != nil {
		subLog.Warn().Stack().Err(err).Msg("could not commit transaction")
	}

	subLog.Debug().Int("NumPositions", len(p.Positions)).Int("NumTransactions", len(p.Transactions)).Msg("loaded portfolio")
	return p, nil
}

// Commit writes the full position set of change and appends its transactions
// in a single database transaction
func (repo *PgRepository) Commit(ctx context.Context, change *Change) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "pgrepository.Commit")
	defer span.End()

	p := change.Portfolio
	span.SetAttributes(attribute.String("portfolio.id", p.ID.String()))
	subLog := log.With().Str("PortfolioID", p.ID.String()).Logger()

	trx, err := database.Begin(ctx, repo.db)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not begin transaction")
		return &PersistenceError{Op: "commit", Err: err}
	}

	fail := func(sql string, err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit failed")
		subLog.Error().Stack().Err(err).Str("Query", sql).Msg("could not save portfolio")
		database.Rollback(ctx, trx, subLog)
		return &PersistenceError{Op: "commit", Err: err}
	}

	if sql, err := savePortfolio(ctx, trx, p); err != nil {
		return fail(sql, err)
	}

	deleteSQL := `DELETE FROM positions WHERE portfolio_id=$1 AND symbol=$2`
	for _, symbol := range change.Removed {
		if _, err := trx.Exec(ctx, deleteSQL, p.ID.String(), symbol); err != nil {
			return fail(deleteSQL, err)
		}
	}

	if sql, err := savePositions(ctx, trx, p); err != nil {
		return fail(sql, err)
	}

	if sql, err := saveTransactions(ctx, trx, p.ID, len(p.Transactions)-len(change.Transactions), change.Transactions, subLog); err != nil {
		return fail(sql, err)
	}

	if err := trx.Commit(ctx); err != nil {
		return fail("COMMIT", err)
	}

	return nil
}

func savePortfolio(ctx context.Context, trx pgx.Tx, p *Portfolio) (string, error) {
	sql := `
	INSERT INTO portfolios (
		"id",
		"name",
		"created",
		"lastchanged"
	) VALUES (
		$1,
		$2,
		$3,
		now()
	) ON CONFLICT ON CONSTRAINT portfolios_pkey
	DO UPDATE SET
		name=$2,
		lastchanged=now()`
	_, err := trx.Exec(ctx, sql, p.ID.String(), p.Name, p.CreatedAt)
	return sql, err
}

func savePositions(ctx context.Context, trx pgx.Tx, p *Portfolio) (string, error) {
	sql := `
	INSERT INTO positions (
		"portfolio_id",
		"symbol",
		"asset_class",
		"allocation",
		"quantity",
		"purchase_price",
		"purchase_date",
		"realized_pnl",
		"seq"
	) VALUES (
		$1,
		$2,
		$3,
		$4,
		$5,
		$6,
		$7,
		$8,
		$9
	) ON CONFLICT ON CONSTRAINT positions_pkey
	DO UPDATE SET
		asset_class=$3,
		allocation=$4,
		quantity=$5,
		purchase_price=$6,
		purchase_date=$7,
		realized_pnl=$8,
		seq=$9`
	for idx, pos := range p.Positions {
		if _, err := trx.Exec(ctx, sql, p.ID.String(), pos.Symbol, string(pos.AssetClass), pos.Allocation,
			pos.Quantity, pos.PurchasePrice, pos.PurchaseDate, pos.RealizedPnL, idx); err != nil {
			return sql, err
		}
	}
	return "", nil
}

// saveTransactions appends trxs; a transaction already stored under the same
// source id is skipped
func saveTransactions(ctx context.Context, trx pgx.Tx, portfolioID uuid.UUID, firstSeq int, trxs []*Transaction, subLog zerolog.Logger) (string, error) {
	sql := `
	INSERT INTO transactions (
		"id",
		"portfolio_id",
		"source_id",
		"source",
		"event_date",
		"kind",
		"symbol",
		"shares",
		"price_per_share",
		"total_value",
		"gain_loss",
		"memo",
		"seq"
	) VALUES (
		$1,
		$2,
		$3,
		$4,
		$5,
		$6,
		$7,
		$8,
		$9,
		$10,
		$11,
		$12,
		$13
	) ON CONFLICT (source_id) DO NOTHING`
	for idx, t := range trxs {
		tag, err := trx.Exec(ctx, sql, t.ID.String(), portfolioID.String(), t.SourceID, t.Source, t.Date, t.Kind, t.Symbol,
			t.Shares, t.PricePerShare, t.TotalValue, t.GainLoss, t.Memo, firstSeq+idx)
		if err != nil {
			return sql, err
		}
		if tag.RowsAffected() == 0 {
			subLog.Warn().Str("SourceID", t.SourceID).Msg("transaction already recorded")
		}
	}
	return "", nil
}
