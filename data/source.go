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

	"github.com/penny-vault/pv-risk/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// sourceChain walks the configured providers in order, stopping at the first
// success. A chain lives for a single orchestrator call: a provider that
// reports QuotaExceeded is skipped for every remaining symbol of the call.
type sourceChain struct {
	manager   *Manager
	exhausted map[string]bool
	locker    sync.Mutex
}

func (m *Manager) newChain() *sourceChain {
	return &sourceChain{
		manager:   m,
		exhausted: make(map[string]bool, len(m.providers)),
	}
}

func (chain *sourceChain) isExhausted(provider Provider) bool {
	chain.locker.Lock()
	defer chain.locker.Unlock()
	return chain.exhausted[provider.Name()]
}

func (chain *sourceChain) markExhausted(provider Provider) {
	chain.locker.Lock()
	defer chain.locker.Unlock()
	chain.exhausted[provider.Name()] = true
}

// record logs a provider failure and updates exhaustion state
func (chain *sourceChain) record(provider Provider, symbol, op string, err error) {
	kind := KindOf(err)
	chain.manager.metrics.ProviderFailure(provider.Name(), kind.String())

	subLog := log.With().Str("Provider", provider.Name()).Str("Symbol", symbol).Str("Op", op).Str("Kind", kind.String()).Logger()
	switch kind {
	case QuotaExceeded:
		chain.markExhausted(provider)
		subLog.Warn().Err(err).Msg("provider quota exhausted; skipping it for the rest of the request")
	case PremiumOnly:
		subLog.Warn().Err(err).Msg("provider endpoint requires a premium plan; falling back")
	default:
		subLog.Warn().Err(err).Msg("provider request failed; falling back")
	}
}

// call runs fn against provider with pacing and a per-call timeout
func (chain *sourceChain) call(ctx context.Context, provider Provider, fn func(context.Context) error) error {
	if provider.Metered() {
		if err := chain.manager.pacer.Wait(ctx); err != nil {
			return &ProviderError{Provider: provider.Name(), Kind: Transient, Err: err}
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, chain.manager.cfg.CallTimeout)
	defer cancel()

	chain.manager.metrics.ProviderCall(provider.Name())
	return fn(callCtx)
}

// series fetches the daily history of symbol from the first provider that
// can supply it. The returned string names the provider that succeeded.
func (chain *sourceChain) series(ctx context.Context, symbol string, period Period) ([]*PriceBar, string, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "data.series")
	defer span.End()

	span.SetAttributes(
		attribute.String("Symbol", symbol),
		attribute.String("Period", string(period)),
	)

	var lastErr error
	for _, provider := range chain.manager.providers {
		if chain.isExhausted(provider) {
			continue
		}

		var bars []*PriceBar
		err := chain.call(ctx, provider, func(callCtx context.Context) error {
			var err error
			bars, err = provider.DailySeries(callCtx, symbol, period)
			return err
		})

		if err == nil && len(bars) == 0 {
			err = &ProviderError{Provider: provider.Name(), Symbol: symbol, Kind: NotFound, Err: ErrNoData}
		}

		if err != nil {
			chain.record(provider, symbol, "series", err)
			lastErr = err
			continue
		}

		span.SetAttributes(attribute.String("Provider", provider.Name()))
		return bars, provider.Name(), nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("%s: %w", symbol, ErrNoData)
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "all providers failed")
	return nil, "", lastErr
}

// quote returns the latest price of symbol from the first provider that can supply it
func (chain *sourceChain) quote(ctx context.Context, symbol string) (float64, error) {
	var lastErr error
	for _, provider := range chain.manager.providers {
		if chain.isExhausted(provider) {
			continue
		}

		var price float64
		err := chain.call(ctx, provider, func(callCtx context.Context) error {
			var err error
			price, err = provider.LatestQuote(callCtx, symbol)
			return err
		})

		if err == nil && (math.IsNaN(price) || price <= 0) {
			err = &ProviderError{Provider: provider.Name(), Symbol: symbol, Kind: NotFound, Err: ErrNoData}
		}

		if err != nil {
			chain.record(provider, symbol, "quote", err)
			lastErr = err
			continue
		}

		return price, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("%s: %w", symbol, ErrNoData)
	}
	return math.NaN(), lastErr
}
