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
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"

	// registers the "sqlite" driver
	_ "modernc.org/sqlite"
)

// OpenSQLite opens (or creates) the SQLite database at path, switches it to
// WAL mode and applies every schema statement
func OpenSQLite(ctx context.Context, path string, schemas ...[]string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// a single writer avoids SQLITE_BUSY between goroutines of one process
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	for _, stmts := range schemas {
		for _, stmt := range stmts {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				db.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
	}

	log.Debug().Str("Path", path).Msg("opened sqlite database")
	return db, nil
}

// RollbackSQL aborts trx and logs a failure to do so
func RollbackSQL(trx *sql.Tx) {
	if err := trx.Rollback(); err != nil && err != sql.ErrTxDone {
		log.Error().Stack().Err(err).Msg("could not rollback transaction")
	}
}
