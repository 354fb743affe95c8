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
	"context"
	"database/sql"
	"time"

	"github.com/penny-vault/pv-risk/data/database"
	"github.com/rs/zerolog/log"
)

const sqliteDateLayout = "2006-01-02"

// SQLitePriceSchema creates the durable price cache tables in SQLite
var SQLitePriceSchema = []string{
	`CREATE TABLE IF NOT EXISTS price_cache (
		ticker          TEXT NOT NULL,
		period          TEXT NOT NULL,
		data_start_date TEXT,
		data_end_date   TEXT,
		row_count       INTEGER NOT NULL DEFAULT 0,
		last_updated    INTEGER NOT NULL,
		valid           INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (ticker, period)
	)`,
	`CREATE TABLE IF NOT EXISTS price_bars (
		ticker     TEXT NOT NULL,
		period     TEXT NOT NULL,
		event_date TEXT NOT NULL,
		open       REAL,
		high       REAL,
		low        REAL,
		close      REAL,
		volume     REAL,
		adj_close  REAL,
		PRIMARY KEY (ticker, period, event_date)
	)`,
}

// SQLiteStore keeps the durable price cache in a local SQLite file. It is
// the default store when no PostgreSQL url is configured.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database at path and creates the price tables
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := database.OpenSQLite(ctx, path, SQLitePriceSchema)
	if err != nil {
		return nil, &PersistenceError{Op: "open", Err: err}
	}
	return &SQLiteStore{db: db}, nil
}

// NewSQLiteStoreFromDB wraps an already migrated database
func NewSQLiteStoreFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (store *SQLiteStore) Close() error {
	return store.db.Close()
}

func (store *SQLiteStore) Lookup(ctx context.Context, ticker string, period Period) (*CacheEntry, error) {
	row := store.db.QueryRowContext(ctx, `SELECT data_start_date, data_end_date, row_count, last_updated, valid FROM price_cache WHERE ticker=? AND period=?`, ticker, string(period))

	var (
		start, end sql.NullString
		updated    int64
		valid      int
	)
	entry := &CacheEntry{
		Ticker: ticker,
		Period: period,
	}
	if err := row.Scan(&start, &end, &entry.RowCount, &updated, &valid); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		log.Error().Stack().Err(err).Str("Ticker", ticker).Msg("could not query price cache")
		return nil, &PersistenceError{Op: "lookup", Err: err}
	}

	entry.DataStartDate = parseSQLiteDate(start.String)
	entry.DataEndDate = parseSQLiteDate(end.String)
	entry.LastUpdated = time.Unix(updated, 0).UTC()
	entry.Valid = valid != 0
	return entry, nil
}

func (store *SQLiteStore) Bars(ctx context.Context, ticker string, period Period) ([]*PriceBar, error) {
	rows, err := store.db.QueryContext(ctx, `SELECT event_date, open, high, low, close, volume, adj_close FROM price_bars WHERE ticker=? AND period=? ORDER BY event_date`, ticker, string(period))
	if err != nil {
		log.Error().Stack().Err(err).Str("Ticker", ticker).Msg("could not query price bars")
		return nil, &PersistenceError{Op: "bars", Err: err}
	}
	defer rows.Close()

	bars := make([]*PriceBar, 0, max(period.Rows(), 0))
	for rows.Next() {
		var eventDate string
		bar := &PriceBar{Ticker: ticker}
		if err := rows.Scan(&eventDate, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume, &bar.AdjClose); err != nil {
			return nil, &PersistenceError{Op: "bars", Err: err}
		}
		bar.Date = parseSQLiteDate(eventDate)
		bars = append(bars, bar)
	}

	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "bars", Err: err}
	}
	return bars, nil
}

func (store *SQLiteStore) Replace(ctx context.Context, ticker string, period Period, bars []*PriceBar, updated time.Time) error {
	entry := newCacheEntry(ticker, period, bars, updated)
	subLog := log.With().Str("Ticker", ticker).Str("Period", string(period)).Logger()

	trx, err := store.db.BeginTx(ctx, nil)
	if err != nil {
		return &PersistenceError{Op: "replace", Err: err}
	}

	fail := func(err error) error {
		subLog.Error().Stack().Err(err).Msg("could not replace cached prices")
		database.RollbackSQL(trx)
		return &PersistenceError{Op: "replace", Err: err}
	}

	if _, err := trx.ExecContext(ctx, `DELETE FROM price_bars WHERE ticker=? AND period=?`, ticker, string(period)); err != nil {
		return fail(err)
	}

	stmt, err := trx.PrepareContext(ctx, `INSERT INTO price_bars (ticker, period, event_date, open, high, low, close, volume, adj_close) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fail(err)
	}
	defer stmt.Close()

	for _, bar := range bars {
		if _, err := stmt.ExecContext(ctx, ticker, string(period), bar.Date.Format(sqliteDateLayout), bar.Open, bar.High, bar.Low, bar.Close, bar.Volume, bar.AdjClose); err != nil {
			return fail(err)
		}
	}

	valid := 0
	if entry.Valid {
		valid = 1
	}
	_, err = trx.ExecContext(ctx, `INSERT INTO price_cache (ticker, period, data_start_date, data_end_date, row_count, last_updated, valid)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (ticker, period) DO UPDATE SET
			data_start_date=excluded.data_start_date,
			data_end_date=excluded.data_end_date,
			row_count=excluded.row_count,
			last_updated=excluded.last_updated,
			valid=excluded.valid`,
		entry.Ticker, string(entry.Period), entry.DataStartDate.Format(sqliteDateLayout), entry.DataEndDate.Format(sqliteDateLayout),
		entry.RowCount, entry.LastUpdated.Unix(), valid)
	if err != nil {
		return fail(err)
	}

	if err := trx.Commit(); err != nil {
		return fail(err)
	}
	return nil
}

func parseSQLiteDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(sqliteDateLayout, s)
	if err != nil {
		log.Warn().Err(err).Str("Value", s).Msg("could not parse stored date")
		return time.Time{}
	}
	return t
}
