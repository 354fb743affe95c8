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
	"time"

	"github.com/penny-vault/pv-risk/data/database"
	"github.com/penny-vault/pv-risk/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// PriceSchema creates the durable price cache tables in PostgreSQL
var PriceSchema = []string{
	`CREATE TABLE IF NOT EXISTS price_cache (
		ticker          TEXT NOT NULL,
		period          TEXT NOT NULL,
		data_start_date DATE,
		data_end_date   DATE,
		row_count       INTEGER NOT NULL DEFAULT 0,
		last_updated    TIMESTAMPTZ NOT NULL,
		valid           BOOLEAN NOT NULL DEFAULT TRUE,
		CONSTRAINT price_cache_pkey PRIMARY KEY (ticker, period)
	)`,
	`CREATE TABLE IF NOT EXISTS price_bars (
		ticker     TEXT NOT NULL,
		period     TEXT NOT NULL,
		event_date DATE NOT NULL,
		open       DOUBLE PRECISION,
		high       DOUBLE PRECISION,
		low        DOUBLE PRECISION,
		close      DOUBLE PRECISION,
		volume     DOUBLE PRECISION,
		adj_close  DOUBLE PRECISION,
		CONSTRAINT price_bars_pkey PRIMARY KEY (ticker, period, event_date)
	)`,
}

// PgStore keeps the durable price cache in PostgreSQL
type PgStore struct {
	db database.PgxIface
}

func NewPgStore(db database.PgxIface) *PgStore {
	return &PgStore{
		db: db,
	}
}

func (store *PgStore) Lookup(ctx context.Context, ticker string, period Period) (*CacheEntry, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "pgstore.Lookup")
	defer span.End()

	subLog := log.With().Str("Ticker", ticker).Str("Period", string(period)).Logger()

	trx, err := database.Begin(ctx, store.db)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not begin transaction")
		return nil, &PersistenceError{Op: "lookup", Err: err}
	}

	sql := `SELECT data_start_date, data_end_date, row_count, last_updated, valid FROM price_cache WHERE ticker=$1 AND period=$2`
	rows, err := trx.Query(ctx, sql, ticker, string(period))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "database query failed")
		subLog.Error().Stack().Err(err).Str("Query", sql).Msg("could not query price cache")
		database.Rollback(ctx, trx, subLog)
		return nil, &PersistenceError{Op: "lookup", Err: err}
	}

	var entry *CacheEntry
	for rows.Next() {
		entry = &CacheEntry{
			Ticker: ticker,
			Period: period,
		}
		if err := rows.Scan(&entry.DataStartDate, &entry.DataEndDate, &entry.RowCount, &entry.LastUpdated, &entry.Valid); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not scan price cache row")
			rows.Close()
			database.Rollback(ctx, trx, subLog)
			return nil, &PersistenceError{Op: "lookup", Err: err}
		}
	}
	rows.Close()

	if err := trx.Commit(ctx); err != nil {
		subLog.Warn().Stack().Err(err).Msg("could not commit transaction")
	}

	return entry, nil
}

func (store *PgStore) Bars(ctx context.Context, ticker string, period Period) ([]*PriceBar, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "pgstore.Bars")
	defer span.End()

	subLog := log.With().Str("Ticker", ticker).Str("Period", string(period)).Logger()

	trx, err := database.Begin(ctx, store.db)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not begin transaction")
		return nil, &PersistenceError{Op: "bars", Err: err}
	}

	sql := `SELECT event_date, open, high, low, close, volume, adj_close FROM price_bars WHERE ticker=$1 AND period=$2 ORDER BY event_date`
	rows, err := trx.Query(ctx, sql, ticker, string(period))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "database query failed")
		subLog.Error().Stack().Err(err).Str("Query", sql).Msg("could not query price bars")
		database.Rollback(ctx, trx, subLog)
		return nil, &PersistenceError{Op: "bars", Err: err}
	}

	bars := make([]*PriceBar, 0, max(period.Rows(), 0))
	for rows.Next() {
		bar := &PriceBar{Ticker: ticker}
		if err := rows.Scan(&bar.Date, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume, &bar.AdjClose); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not scan price bar")
			rows.Close()
			database.Rollback(ctx, trx, subLog)
			return nil, &PersistenceError{Op: "bars", Err: err}
		}
		bar.Date = time.Date(bar.Date.Year(), bar.Date.Month(), bar.Date.Day(), 0, 0, 0, 0, time.UTC)
		bars = append(bars, bar)
	}
	rows.Close()

	if err := trx.Commit(ctx); err != nil {
		subLog.Warn().Stack().Err(err).Msg("could not commit transaction")
	}

	return bars, nil
}

func (store *PgStore) Replace(ctx context.Context, ticker string, period Period, bars []*PriceBar, updated time.Time) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "pgstore.Replace")
	defer span.End()

	subLog := log.With().Str("Ticker", ticker).Str("Period", string(period)).Int("NumBars", len(bars)).Logger()
	entry := newCacheEntry(ticker, period, bars, updated)

	trx, err := database.Begin(ctx, store.db)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not begin transaction")
		return &PersistenceError{Op: "replace", Err: err}
	}

	fail := func(sql string, err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, "replace failed")
		subLog.Error().Stack().Err(err).Str("Query", sql).Msg("could not replace cached prices")
		database.Rollback(ctx, trx, subLog)
		return &PersistenceError{Op: "replace", Err: err}
	}

	deleteSQL := `DELETE FROM price_bars WHERE ticker=$1 AND period=$2`
	if _, err := trx.Exec(ctx, deleteSQL, ticker, string(period)); err != nil {
		return fail(deleteSQL, err)
	}

	insertSQL := `INSERT INTO price_bars ("ticker", "period", "event_date", "open", "high", "low", "close", "volume", "adj_close") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	for _, bar := range bars {
		if _, err := trx.Exec(ctx, insertSQL, ticker, string(period), bar.Date, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume, bar.AdjClose); err != nil {
			return fail(insertSQL, err)
		}
	}

	entrySQL := `
	INSERT INTO price_cache (
		"ticker",
		"period",
		"data_start_date",
		"data_end_date",
		"row_count",
		"last_updated",
		"valid"
	) VALUES (
		$1,
		$2,
		$3,
		$4,
		$5,
		$6,
		$7
	) ON CONFLICT ON CONSTRAINT price_cache_pkey
	DO UPDATE SET
		data_start_date=$3,
		data_end_date=$4,
		row_count=$5,
		last_updated=$6,
		valid=$7`
	if _, err := trx.Exec(ctx, entrySQL, entry.Ticker, string(entry.Period), entry.DataStartDate, entry.DataEndDate, entry.RowCount, entry.LastUpdated, entry.Valid); err != nil {
		return fail(entrySQL, err)
	}

	if err := trx.Commit(ctx); err != nil {
		return fail("COMMIT", err)
	}

	subLog.Debug().Object("Entry", entry).Msg("replaced durable cache entry")
	return nil
}
