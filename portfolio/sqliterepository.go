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
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/penny-vault/pv-risk/data/database"
	"github.com/rs/zerolog/log"
)

// SQLiteLedgerSchema creates the portfolio tables in SQLite
var SQLiteLedgerSchema = []string{
	`CREATE TABLE IF NOT EXISTS portfolios (
		id          TEXT NOT NULL PRIMARY KEY,
		name        TEXT NOT NULL,
		created     TEXT NOT NULL,
		lastchanged TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS positions (
		portfolio_id   TEXT NOT NULL REFERENCES portfolios (id) ON DELETE CASCADE,
		symbol         TEXT NOT NULL,
		asset_class    TEXT NOT NULL,
		allocation     REAL NOT NULL,
		quantity       REAL,
		purchase_price REAL,
		purchase_date  TEXT,
		realized_pnl   REAL NOT NULL DEFAULT 0,
		seq            INTEGER NOT NULL,
		PRIMARY KEY (portfolio_id, symbol)
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id              TEXT NOT NULL PRIMARY KEY,
		portfolio_id    TEXT NOT NULL REFERENCES portfolios (id) ON DELETE CASCADE,
		source_id       TEXT NOT NULL UNIQUE,
		source          TEXT NOT NULL,
		event_date      TEXT NOT NULL,
		kind            TEXT NOT NULL,
		symbol          TEXT NOT NULL,
		shares          REAL NOT NULL,
		price_per_share REAL NOT NULL,
		total_value     REAL NOT NULL,
		gain_loss       REAL,
		memo            TEXT NOT NULL DEFAULT '',
		seq             INTEGER NOT NULL
	)`,
}

// SQLiteRepository keeps portfolios in a local SQLite file
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository uses db, which must already carry SQLiteLedgerSchema
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseSQLiteTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func (repo *SQLiteRepository) Load(ctx context.Context, id uuid.UUID) (*Portfolio, error) {
	subLog := log.With().Str("PortfolioID", id.String()).Logger()

	trx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &PersistenceError{Op: "load", Err: err}
	}
	defer database.RollbackSQL(trx)

	fail := func(err error) (*Portfolio, error) {
		subLog.Error().Stack().Err(err).Msg("could not load portfolio")
		return nil, &PersistenceError{Op: "load", Err: err}
	}

	p := &Portfolio{
		ID:           id,
		Positions:    make([]*Position, 0),
		Transactions: make([]*Transaction, 0),
	}

	var created string
	err = trx.QueryRowContext(ctx, `SELECT name, created FROM portfolios WHERE id=?`, id.String()).Scan(&p.Name, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPortfolioNotFound
	}
	if err != nil {
		return fail(err)
	}
	if p.CreatedAt, err = parseSQLiteTime(created); err != nil {
		return fail(err)
	}

	rows, err := trx.QueryContext(ctx, `SELECT symbol, asset_class, allocation, quantity, purchase_price, purchase_date, realized_pnl FROM positions WHERE portfolio_id=? ORDER BY seq`, id.String())
	if err != nil {
		return fail(err)
	}
	for rows.Next() {
		var (
			pos          = &Position{}
			class        string
			qty, price   sql.NullFloat64
			purchaseDate sql.NullString
		)
		if err := rows.Scan(&pos.Symbol, &class, &pos.Allocation, &qty, &price, &purchaseDate, &pos.RealizedPnL); err != nil {
			rows.Close()
			return fail(err)
		}
		pos.AssetClass = AssetClass(class)
		if qty.Valid {
			pos.Quantity = &qty.Float64
		}
		if price.Valid {
			pos.PurchasePrice = &price.Float64
		}
		if purchaseDate.Valid {
			dt, err := parseSQLiteTime(purchaseDate.String)
			if err != nil {
				rows.Close()
				return fail(err)
			}
			pos.PurchaseDate = &dt
		}
		p.Positions = append(p.Positions, pos)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fail(err)
	}

	rows, err = trx.QueryContext(ctx, `SELECT id, source_id, source, event_date, kind, symbol, shares, price_per_share, total_value, gain_loss, memo FROM transactions WHERE portfolio_id=? ORDER BY seq`, id.String())
	if err != nil {
		return fail(err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			t         = &Transaction{}
			trxID     string
			eventDate string
			gainLoss  sql.NullFloat64
		)
		if err := rows.Scan(&trxID, &t.SourceID, &t.Source, &eventDate, &t.Kind, &t.Symbol, &t.Shares, &t.PricePerShare, &t.TotalValue, &gainLoss, &t.Memo); err != nil {
			return fail(err)
		}
		if t.ID, err = uuid.Parse(trxID); err != nil {
			return fail(err)
		}
		if t.Date, err = parseSQLiteTime(eventDate); err != nil {
			return fail(err)
		}
		if gainLoss.Valid {
			t.GainLoss = &gainLoss.Float64
		}
		p.Transactions = append(p.Transactions, t)
	}
	if err := rows.Err(); err != nil {
		return fail(err)
	}

	return p, nil
}

func (repo *SQLiteRepository) Commit(ctx context.Context, change *Change) error {
	p := change.Portfolio
	subLog := log.With().Str("PortfolioID", p.ID.String()).Logger()

	trx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return &PersistenceError{Op: "commit", Err: err}
	}

	fail := func(err error) error {
		subLog.Error().Stack().Err(err).Msg("could not save portfolio")
		database.RollbackSQL(trx)
		return &PersistenceError{Op: "commit", Err: err}
	}

	now := formatSQLiteTime(time.Now())
	if _, err := trx.ExecContext(ctx, `INSERT INTO portfolios (id, name, created, lastchanged) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name=excluded.name, lastchanged=excluded.lastchanged`,
		p.ID.String(), p.Name, formatSQLiteTime(p.CreatedAt), now); err != nil {
		return fail(err)
	}

	for _, symbol := range change.Removed {
		if _, err := trx.ExecContext(ctx, `DELETE FROM positions WHERE portfolio_id=? AND symbol=?`, p.ID.String(), symbol); err != nil {
			return fail(err)
		}
	}

	for idx, pos := range p.Positions {
		var purchaseDate sql.NullString
		if pos.PurchaseDate != nil {
			purchaseDate = sql.NullString{String: formatSQLiteTime(*pos.PurchaseDate), Valid: true}
		}
		_, err := trx.ExecContext(ctx, `INSERT INTO positions (portfolio_id, symbol, asset_class, allocation, quantity, purchase_price, purchase_date, realized_pnl, seq)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (portfolio_id, symbol) DO UPDATE SET
				asset_class=excluded.asset_class,
				allocation=excluded.allocation,
				quantity=excluded.quantity,
				purchase_price=excluded.purchase_price,
				purchase_date=excluded.purchase_date,
				realized_pnl=excluded.realized_pnl,
				seq=excluded.seq`,
			p.ID.String(), pos.Symbol, string(pos.AssetClass), pos.Allocation, nullFloat(pos.Quantity), nullFloat(pos.PurchasePrice),
			purchaseDate, pos.RealizedPnL, idx)
		if err != nil {
			return fail(err)
		}
	}

	firstSeq := len(p.Transactions) - len(change.Transactions)
	for idx, t := range change.Transactions {
		res, err := trx.ExecContext(ctx, `INSERT INTO transactions (id, portfolio_id, source_id, source, event_date, kind, symbol, shares, price_per_share, total_value, gain_loss, memo, seq)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (source_id) DO NOTHING`,
			t.ID.String(), p.ID.String(), t.SourceID, t.Source, formatSQLiteTime(t.Date), t.Kind, t.Symbol,
			t.Shares, t.PricePerShare, t.TotalValue, nullFloat(t.GainLoss), t.Memo, firstSeq+idx)
		if err != nil {
			return fail(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			subLog.Warn().Str("SourceID", t.SourceID).Msg("transaction already recorded")
		}
	}

	if err := trx.Commit(); err != nil {
		return fail(err)
	}
	return nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
