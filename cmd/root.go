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
	"fmt"
	"os"
	"time"

	"github.com/penny-vault/pv-risk/common"
	"github.com/rs/zerolog/log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// binding ties a configuration key to an environment variable and a
// persistent flag
type binding struct {
	key   string
	env   string
	flag  string
	value interface{}
	usage string
}

var bindings = []binding{
	// providers
	{"alphavantage.api_key", "ALPHA_VANTAGE_API_KEY", "alphavantage-api-key", "", "Alpha Vantage API key"},
	{"alphavantage.url", "ALPHA_VANTAGE_URL", "alphavantage-url", "https://www.alphavantage.co", "Alpha Vantage base URL"},
	{"yahoo.url", "YAHOO_URL", "yahoo-url", "https://query1.finance.yahoo.com", "Yahoo Finance base URL"},
	{"provider.timeout", "PV_PROVIDER_TIMEOUT", "provider-timeout", 10 * time.Second, "Timeout of each provider call"},
	{"provider.call_delay", "PV_PROVIDER_CALL_DELAY", "provider-call-delay", 200 * time.Millisecond, "Minimum delay between calls to a metered provider"},
	{"provider.workers", "PV_PROVIDER_WORKERS", "provider-workers", 4, "Number of concurrent quote requests"},

	// cache
	{"cache.local_size", "PV_CACHE_LOCAL_SIZE", "cache-local-size", 1024, "Number of entries kept in the in-process cache"},
	{"cache.ttl", "PV_CACHE_TTL", "cache-ttl", 5 * time.Minute, "Lifetime of an ephemeral cache entry"},
	{"cache.redis", "PV_CACHE_REDIS", "cache-redis", false, "Mirror the ephemeral cache to redis"},
	{"cache.redis_url", "REDIS_URL", "cache-redis-url", "redis://localhost:6379/0", "Redis connection string"},
	{"cache.stale_after", "PV_CACHE_STALE_AFTER", "cache-stale-after", 24 * time.Hour, "Age after which durable cache entries are refetched"},
	{"cache.sqlite_path", "PV_SQLITE_PATH", "sqlite-path", "pvrisk.db", "SQLite database used when no database url is set"},

	// database
	{"database.url", "DATABASE_URL", "database-url", "", "PostgreSQL connection string"},

	// risk
	{"risk.free_rate", "PV_RISK_FREE_RATE", "risk-free-rate", 0.02, "Annual risk free rate"},
	{"risk.benchmark", "PV_RISK_BENCHMARK", "benchmark", "SPY", "Benchmark used for beta"},

	// observability
	{"metrics.pushgateway", "PV_PUSHGATEWAY_URL", "metrics-pushgateway", "", "Prometheus pushgateway to send metrics to, if blank metrics are not pushed"},
	{"otlp.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT", "otlp-endpoint", "", "OpenTelemetry collector endpoint, if blank tracing is disabled"},
	{"otlp.http", "PV_OTLP_HTTP", "otlp-http", false, "Use HTTP instead of gRPC for OTLP"},

	// logging
	{"log.level", "PV_LOG_LEVEL", "log-level", "warning", "Logging level"},
	{"log.report_caller", "PV_LOG_REPORT_CALLER", "log-report-caller", false, "Log function name that called log statement"},
	{"log.output", "PV_LOG_OUTPUT", "log-output", "stderr", "Write logs to specified output one of: file path, `stdout`, or `stderr`"},
	{"log.pretty", "PV_LOG_PRETTY", "log-pretty", true, "Format logs for humans instead of JSON"},
}

func init() {
	flags := rootCmd.PersistentFlags()
	for _, b := range bindings {
		if err := viper.BindEnv(b.key, b.env); err != nil {
			log.Panic().Err(err).Str("Key", b.key).Msg("could not bind environment variable")
		}

		switch v := b.value.(type) {
		case string:
			flags.String(b.flag, v, b.usage)
		case bool:
			flags.Bool(b.flag, v, b.usage)
		case int:
			flags.Int(b.flag, v, b.usage)
		case float64:
			flags.Float64(b.flag, v, b.usage)
		case time.Duration:
			flags.Duration(b.flag, v, b.usage)
		}

		if err := viper.BindPFlag(b.key, flags.Lookup(b.flag)); err != nil {
			log.Panic().Err(err).Str("Key", b.key).Msg("could not bind flag")
		}
	}
}

var rootCmd = &cobra.Command{
	Use:     "pvrisk",
	Version: common.CurrentVersion.String(),
	Short:   "Market data cache, risk metrics and portfolio ledger",
	Long: `pvrisk fetches daily prices through a tiered cache, computes risk metrics
such as VaR, Sharpe and beta, and keeps a ledger of portfolio positions.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		common.SetupLogging()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
