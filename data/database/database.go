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

package database

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// PgxIface is satisfied by *pgxpool.Pool and pgxmock connections
type PgxIface interface {
	Begin(context.Context) (pgx.Tx, error)
}

var (
	openTransactions = make(map[string]string)
	openLocker       sync.Mutex
)

// Connect opens a connection pool to the database at url and verifies it is reachable
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.Connect(ctx, url)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not connect to pool")
		return nil, err
	}
	if err = pool.Ping(ctx); err != nil {
		log.Error().Stack().Err(err).Msg("could not ping database server")
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// LogOpenTransactions writes an INFO log for each open transaction
func LogOpenTransactions() {
	openLocker.Lock()
	defer openLocker.Unlock()
	for k, v := range openTransactions {
		log.Info().Str("TrxId", k).Str("Caller", v).Msg("open transaction")
	}
}

// NumOpenTransactions returns the number of transactions begun but not yet
// committed or rolled back
func NumOpenTransactions() int {
	openLocker.Lock()
	defer openLocker.Unlock()
	return len(openTransactions)
}

// Begin starts a transaction that is tracked until it is committed or rolled back
func Begin(ctx context.Context, db PgxIface) (pgx.Tx, error) {
	trx, err := db.Begin(ctx)
	if err != nil {
		if NumOpenTransactions() > 0 {
			LogOpenTransactions()
		}
		return nil, err
	}

	// record transactions in openTransaction log
	_, file, lineno, ok := runtime.Caller(1)
	caller := fmt.Sprintf("[%v] %s:%d", ok, file, lineno)
	trxID := uuid.New().String()

	openLocker.Lock()
	openTransactions[trxID] = caller
	openLocker.Unlock()

	return &PvDbTx{
		id: trxID,
		tx: trx,
	}, nil
}

// Rollback aborts trx, logging (but otherwise ignoring) any failure
func Rollback(ctx context.Context, trx pgx.Tx, subLog zerolog.Logger) {
	if err := trx.Rollback(ctx); err != nil {
		subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
	}
}

// Migrate executes each DDL statement in a single transaction
func Migrate(ctx context.Context, db PgxIface, stmts []string) error {
	trx, err := Begin(ctx, db)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not begin migration transaction")
		return err
	}

	for _, stmt := range stmts {
		if _, err := trx.Exec(ctx, stmt); err != nil {
			log.Error().Stack().Err(err).Str("Query", stmt).Msg("migration failed")
			Rollback(ctx, trx, log.Logger)
			return err
		}
	}

	if err := trx.Commit(ctx); err != nil {
		log.Error().Stack().Err(err).Msg("could not commit migration")
		return err
	}

	return nil
}

func untrack(id string) {
	openLocker.Lock()
	delete(openTransactions, id)
	openLocker.Unlock()
}
