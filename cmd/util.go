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
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/penny-vault/pv-risk/common"
	"github.com/penny-vault/pv-risk/data"
	"github.com/penny-vault/pv-risk/data/database"
	"github.com/penny-vault/pv-risk/observability/metrics"
	"github.com/penny-vault/pv-risk/observability/opentelemetry"
	"github.com/penny-vault/pv-risk/portfolio"
	"github.com/penny-vault/pv-risk/risk"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// environment holds everything a command needs; close flushes traces and
// metrics and releases database handles
type environment struct {
	manager *data.Manager
	repo    portfolio.Repository
	metrics *metrics.Registry
	closers []func()
}

// setup wires the caches, durable store, providers and observability from
// the configuration. A PostgreSQL url selects PostgreSQL for both the price
// cache and the ledger; otherwise a local SQLite file is used.
func setup(ctx context.Context) *environment {
	env := &environment{
		metrics: metrics.NewRegistry(),
	}

	shutdown, err := opentelemetry.Setup()
	if err != nil {
		log.Error().Err(err).Msg("could not setup tracing; continuing without it")
	} else {
		env.closers = append(env.closers, func() {
			if err := shutdown(context.Background()); err != nil {
				log.Warn().Err(err).Msg("could not flush traces")
			}
		})
	}

	var store data.PriceStore
	if url := viper.GetString("database.url"); url != "" {
		pool, err := database.Connect(ctx, url)
		if err != nil {
			log.Fatal().Err(err).Msg("database connection failed")
		}
		store = data.NewPgStore(pool)
		env.repo = portfolio.NewPgRepository(pool)
		env.closers = append(env.closers, pool.Close)
	} else {
		db := openSQLite(ctx)
		store = data.NewSQLiteStoreFromDB(db)
		env.repo = portfolio.NewSQLiteRepository(db)
		env.closers = append(env.closers, func() {
			if err := db.Close(); err != nil {
				log.Warn().Err(err).Msg("could not close sqlite database")
			}
		})
	}

	blobs, err := common.NewBlobCacheFromConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("could not create ephemeral cache")
	}

	cfg := data.ConfigFromViper()
	cfg.Metrics = env.metrics
	env.manager, err = data.NewManager(cfg, data.NewEphemeralCache(blobs), store, data.ProvidersFromViper()...)
	if err != nil {
		log.Fatal().Err(err).Msg("could not create data manager")
	}

	return env
}

func openSQLite(ctx context.Context) *sql.DB {
	path := viper.GetString("cache.sqlite_path")
	db, err := database.OpenSQLite(ctx, path, data.SQLitePriceSchema, portfolio.SQLiteLedgerSchema)
	if err != nil {
		log.Fatal().Err(err).Str("Path", path).Msg("could not open sqlite database")
	}
	return db
}

func (env *environment) close() {
	if err := env.metrics.Push(viper.GetString("metrics.pushgateway")); err != nil {
		log.Warn().Err(err).Msg("metrics were not pushed")
	}
	if n := database.NumOpenTransactions(); n > 0 {
		log.Warn().Int("NumOpen", n).Msg("transactions still open at exit")
		database.LogOpenTransactions()
	}
	for idx := len(env.closers) - 1; idx >= 0; idx-- {
		env.closers[idx]()
	}
}

func riskParams() risk.Params {
	params := risk.DefaultParams()
	if viper.IsSet("risk.free_rate") {
		params.RiskFree = viper.GetFloat64("risk.free_rate")
	}
	if b := viper.GetString("risk.benchmark"); b != "" {
		params.Benchmark = strings.ToUpper(b)
	}
	return params
}

func parsePeriod(s string) data.Period {
	period, err := data.ParsePeriod(s)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid period")
	}
	return period
}

func printTable(header []string, rows [][]string) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
	table.SetBorder(false)
	table.AppendBulk(rows)
	table.Render()
}

func formatFloat(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func formatOptional(v *float64) string {
	if v == nil {
		return risk.NotAvailable
	}
	return formatFloat(*v)
}
