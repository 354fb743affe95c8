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
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/penny-vault/pv-risk/common"
	"github.com/penny-vault/pv-risk/dataframe"
	"github.com/penny-vault/pv-risk/observability/metrics"
	"github.com/penny-vault/pv-risk/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	tierEphemeral = "ephemeral"
	tierDurable   = "durable"
)

// DefaultBenchmark is the market series used for beta
const DefaultBenchmark = "SPY"

// Config controls the orchestrator
type Config struct {
	// StaleAfter is the age after which a durable entry is refetched
	StaleAfter time.Duration
	// CallTimeout bounds every external provider call
	CallTimeout time.Duration
	// CallDelay is the minimum spacing between calls to a metered provider
	CallDelay time.Duration
	// Workers bounds the number of symbols fetched concurrently
	Workers int
	// Benchmark is the ticker used by FetchMarketSeries when none is given
	Benchmark string

	Metrics *metrics.Registry
	Now     func() time.Time
}

// DefaultConfig returns the orchestrator defaults
func DefaultConfig() Config {
	return Config{
		StaleAfter:  24 * time.Hour,
		CallTimeout: 10 * time.Second,
		CallDelay:   200 * time.Millisecond,
		Workers:     4,
		Benchmark:   DefaultBenchmark,
	}
}

// ConfigFromViper reads the orchestrator settings, falling back to defaults
// for anything unset
func ConfigFromViper() Config {
	cfg := DefaultConfig()
	if d := viper.GetDuration("cache.stale_after"); d > 0 {
		cfg.StaleAfter = d
	}
	if d := viper.GetDuration("provider.timeout"); d > 0 {
		cfg.CallTimeout = d
	}
	if viper.IsSet("provider.call_delay") {
		cfg.CallDelay = viper.GetDuration("provider.call_delay")
	}
	if n := viper.GetInt("provider.workers"); n > 0 {
		cfg.Workers = n
	}
	if b := viper.GetString("risk.benchmark"); b != "" {
		cfg.Benchmark = b
	}
	return cfg
}

// ProvidersFromViper returns the configured providers in fallback order:
// Alpha Vantage first, then Yahoo
func ProvidersFromViper() []Provider {
	return []Provider{
		NewAlphaVantage(viper.GetString("alphavantage.api_key"), viper.GetString("alphavantage.url")),
		NewYahoo(viper.GetString("yahoo.url")),
	}
}

// Manager serves price histories and quotes from the ephemeral cache, then
// the durable store, then each provider in order
type Manager struct {
	cfg       Config
	cache     *EphemeralCache
	store     PriceStore
	providers []Provider
	pacer     *rate.Limiter
	metrics   *metrics.Registry
	now       func() time.Time
}

// NewManager creates an orchestrator. store may be nil, in which case the
// durable tier is skipped.
func NewManager(cfg Config, cache *EphemeralCache, store PriceStore, providers ...Provider) (*Manager, error) {
	if cache == nil {
		blobs, err := common.NewBlobCache(1024, 5*time.Minute, nil)
		if err != nil {
			return nil, err
		}
		cache = NewEphemeralCache(blobs)
	}

	defaults := DefaultConfig()
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaults.CallTimeout
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = defaults.StaleAfter
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaults.Workers
	}
	if cfg.Benchmark == "" {
		cfg.Benchmark = defaults.Benchmark
	}

	limit := rate.Inf
	if cfg.CallDelay > 0 {
		limit = rate.Every(cfg.CallDelay)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Manager{
		cfg:       cfg,
		cache:     cache,
		store:     store,
		providers: providers,
		pacer:     rate.NewLimiter(limit, 1),
		metrics:   cfg.Metrics,
		now:       now,
	}, nil
}

// Benchmark returns the default market ticker
func (m *Manager) Benchmark() string {
	return m.cfg.Benchmark
}

// FetchSeries returns the daily price table for tickers over period. Provider
// failures are absorbed: tickers no provider could supply are omitted and
// when none could be supplied the table is empty.
func (m *Manager) FetchSeries(ctx context.Context, tickers []string, period Period, interval Interval) (*dataframe.DataFrame, error) {
	series, tickers, err := m.fetchBars(ctx, tickers, period, interval)
	if err != nil {
		return nil, err
	}
	return seriesTable(tickers, series), nil
}

// FetchMarketSeries returns the close series of the benchmark over period.
// An empty benchmark uses the configured default.
func (m *Manager) FetchMarketSeries(ctx context.Context, benchmark string, period Period) (*dataframe.DataFrame, error) {
	if benchmark == "" {
		benchmark = m.cfg.Benchmark
	}
	closes, err := m.CloseSeries(ctx, []string{benchmark}, period)
	if err != nil {
		return nil, err
	}
	if df, ok := closes[common.NormalizeSymbols([]string{benchmark})[0]]; ok {
		return df, nil
	}
	return dataframe.New(), nil
}

// CloseSeries returns a single column close table per ticker. Tickers without
// data are absent from the map.
func (m *Manager) CloseSeries(ctx context.Context, tickers []string, period Period) (dataframe.Map, error) {
	res := make(dataframe.Map)
	normalized := common.NormalizeSymbols(tickers)
	if len(normalized) == 0 {
		return nil, ErrNoSymbols
	}

	// each ticker is requested alone so the durable tier can serve it
	for _, ticker := range normalized {
		series, _, err := m.fetchBars(ctx, []string{ticker}, period, IntervalDaily)
		if err != nil {
			return nil, err
		}
		bars := series[ticker]
		if len(bars) == 0 {
			continue
		}

		df := dataframe.New(ticker)
		df.Dates = make([]time.Time, len(bars))
		df.Vals[0] = make([]float64, len(bars))
		for idx, bar := range bars {
			df.Dates[idx] = bar.Date
			df.Vals[0][idx] = bar.Close
		}
		res[ticker] = df
	}
	return res, nil
}

func (m *Manager) fetchBars(ctx context.Context, tickers []string, period Period, interval Interval) (map[string][]*PriceBar, []string, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "manager.FetchSeries")
	defer span.End()
	defer m.metrics.ObserveFetch("series", time.Now())

	tickers = common.NormalizeSymbols(tickers)
	if len(tickers) == 0 {
		return nil, nil, ErrNoSymbols
	}
	period, err := ParsePeriod(string(period))
	if err != nil {
		return nil, nil, err
	}
	if _, err := ParseInterval(string(interval)); err != nil {
		return nil, nil, err
	}
	interval = IntervalDaily

	span.SetAttributes(
		attribute.StringSlice("Tickers", tickers),
		attribute.String("Period", string(period)),
	)
	subLog := log.With().Strs("Tickers", tickers).Str("Period", string(period)).Logger()

	if cached, ok := m.cache.Series(ctx, tickers, period, interval); ok {
		m.metrics.CacheHit(tierEphemeral)
		subLog.Debug().Msg("serving price history from the ephemeral cache")
		return cached, tickers, nil
	}
	m.metrics.CacheMiss(tierEphemeral)

	series := make(map[string][]*PriceBar, len(tickers))

	if len(tickers) == 1 {
		if bars, ok := m.durable(ctx, tickers[0], period); ok {
			series[tickers[0]] = bars
			m.cache.SetSeries(ctx, tickers, period, interval, series)
			return series, tickers, nil
		}
	}

	chain := m.newChain()
	for _, ticker := range tickers {
		bars, provider, err := chain.series(ctx, ticker, period)
		if err != nil {
			subLog.Warn().Err(err).Str("Ticker", ticker).Msg("no provider could supply price history; omitting ticker")
			continue
		}

		bars = trimToPeriod(normalizeBars(ticker, bars), period)
		if len(bars) == 0 {
			subLog.Warn().Str("Ticker", ticker).Str("Provider", provider).Msg("provider history contained no usable bars")
			continue
		}

		series[ticker] = bars
		m.writeDurable(ctx, ticker, period, bars)
	}

	if len(series) > 0 {
		m.cache.SetSeries(ctx, tickers, period, interval, series)
	} else {
		subLog.Warn().Msg("no price history available for any requested ticker")
	}

	return series, tickers, nil
}

// durable returns bars from the durable store when its entry is servable.
// Store errors are logged and treated as a miss.
func (m *Manager) durable(ctx context.Context, ticker string, period Period) ([]*PriceBar, bool) {
	if m.store == nil {
		return nil, false
	}

	subLog := log.With().Str("Ticker", ticker).Str("Period", string(period)).Logger()

	entry, err := m.store.Lookup(ctx, ticker, period)
	if err != nil {
		subLog.Warn().Err(err).Msg("durable cache lookup failed; treating as a miss")
		m.metrics.CacheMiss(tierDurable)
		return nil, false
	}

	if !entry.Servable(m.now(), m.cfg.StaleAfter) {
		if entry != nil {
			subLog.Debug().Object("Entry", entry).Msg("durable cache entry is stale or invalid")
		}
		m.metrics.CacheMiss(tierDurable)
		return nil, false
	}

	bars, err := m.store.Bars(ctx, ticker, period)
	if err != nil || len(bars) == 0 {
		if err != nil {
			subLog.Warn().Err(err).Msg("could not read durable cache bars; treating as a miss")
		}
		m.metrics.CacheMiss(tierDurable)
		return nil, false
	}

	m.metrics.CacheHit(tierDurable)
	subLog.Debug().Int("NumBars", len(bars)).Msg("serving price history from the durable cache")
	return normalizeBars(ticker, bars), true
}

func (m *Manager) writeDurable(ctx context.Context, ticker string, period Period, bars []*PriceBar) {
	if m.store == nil {
		return
	}
	if err := m.store.Replace(ctx, ticker, period, bars, m.now()); err != nil {
		log.Warn().Err(err).Str("Ticker", ticker).Str("Period", string(period)).Msg("could not update durable cache")
	}
}

// FetchQuotes returns the latest price of each symbol; a nil value means no
// provider had a price. forceRefresh bypasses the cache read but the result
// still repopulates it.
func (m *Manager) FetchQuotes(ctx context.Context, symbols []string, forceRefresh bool) (map[string]*float64, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "manager.FetchQuotes")
	defer span.End()
	defer m.metrics.ObserveFetch("quotes", time.Now())

	symbols = common.NormalizeSymbols(symbols)
	if len(symbols) == 0 {
		return nil, ErrNoSymbols
	}
	span.SetAttributes(attribute.StringSlice("Symbols", symbols))

	if !forceRefresh {
		if cached, ok := m.cache.Quotes(ctx, symbols); ok {
			m.metrics.CacheHit(tierEphemeral)
			return cached, nil
		}
		m.metrics.CacheMiss(tierEphemeral)
	}

	chain := m.newChain()
	quotes := make(map[string]*float64, len(symbols))
	var locker sync.Mutex

	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(m.cfg.Workers)
	for _, symbol := range symbols {
		symbol := symbol
		grp.Go(func() error {
			price, err := chain.quote(grpCtx, symbol)

			locker.Lock()
			defer locker.Unlock()

			if err != nil || math.IsNaN(price) {
				log.Warn().Err(err).Str("Symbol", symbol).Msg("no provider could supply a quote")
				quotes[symbol] = nil
				return nil
			}
			quotes[symbol] = &price
			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		return nil, fmt.Errorf("fetch quotes: %w", err)
	}

	m.cache.SetQuotes(ctx, symbols, quotes)
	return quotes, nil
}

// ClearCache empties the ephemeral tier
func (m *Manager) ClearCache(ctx context.Context) error {
	log.Info().Msg("clearing ephemeral cache")
	return m.cache.Clear(ctx)
}
