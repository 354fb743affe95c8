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

package cmd

import (
	"context"

	"github.com/penny-vault/pv-risk/data"
	"github.com/penny-vault/pv-risk/data/database"
	"github.com/penny-vault/pv-risk/portfolio"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the price cache and ledger tables",
	Long: `Create the price cache and ledger tables in the PostgreSQL database given by
database.url, or in the local SQLite file when no url is configured.`,
	Run: func(_ *cobra.Command, _ []string) {
		ctx := context.Background()

		url := viper.GetString("database.url")
		if url == "" {
			db := openSQLite(ctx)
			if err := db.Close(); err != nil {
				log.Warn().Err(err).Msg("could not close sqlite database")
			}
			log.Info().Str("Path", viper.GetString("cache.sqlite_path")).Msg("sqlite schema is up to date")
			return
		}

		pool, err := database.Connect(ctx, url)
		if err != nil {
			log.Fatal().Err(err).Msg("database connection failed")
		}
		defer pool.Close()

		stmts := append(append([]string{}, data.PriceSchema...), portfolio.LedgerSchema...)
		if err := database.Migrate(ctx, pool, stmts); err != nil {
			log.Fatal().Err(err).Msg("migration failed")
		}
		log.Info().Int("NumStatements", len(stmts)).Msg("database schema is up to date")
	},
}
