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
	"strings"

	"github.com/goccy/go-json"
	"github.com/penny-vault/pv-risk/common"
	"github.com/rs/zerolog/log"
)

// EphemeralCache holds recent price series and quote results for a short
// time. Values are stored as JSON in a common.BlobCache so they can be
// shared through redis.
type EphemeralCache struct {
	blobs *common.BlobCache
}

func NewEphemeralCache(blobs *common.BlobCache) *EphemeralCache {
	return &EphemeralCache{
		blobs: blobs,
	}
}

// seriesKey builds the cache key of a price history request. tickers must
// already be normalized.
func seriesKey(tickers []string, period Period, interval Interval) string {
	return fmt.Sprintf("series:%s:%s:%s", strings.Join(tickers, ","), period, interval)
}

// quotesKey builds the cache key of a quote request. symbols must already be
// normalized.
func quotesKey(symbols []string) string {
	return fmt.Sprintf("quotes:%s", strings.Join(symbols, ","))
}

func (cache *EphemeralCache) get(ctx context.Context, key string, dst interface{}) bool {
	raw, ok, err := cache.blobs.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("Key", key).Msg("ephemeral cache read failed")
		return false
	}
	if !ok {
		return false
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		log.Warn().Err(err).Str("Key", key).Msg("could not decode ephemeral cache entry")
		return false
	}
	return true
}

func (cache *EphemeralCache) set(ctx context.Context, key string, val interface{}) {
	raw, err := json.Marshal(val)
	if err != nil {
		log.Warn().Err(err).Str("Key", key).Msg("could not encode ephemeral cache entry")
		return
	}

	if err := cache.blobs.Set(ctx, key, raw); err != nil {
		log.Warn().Err(err).Str("Key", key).Msg("ephemeral cache write failed")
	}
}

// Series returns the cached bars for a request keyed by ticker
func (cache *EphemeralCache) Series(ctx context.Context, tickers []string, period Period, interval Interval) (map[string][]*PriceBar, bool) {
	series := make(map[string][]*PriceBar)
	if !cache.get(ctx, seriesKey(tickers, period, interval), &series) {
		return nil, false
	}
	return series, true
}

// SetSeries replaces the cached bars of a request
func (cache *EphemeralCache) SetSeries(ctx context.Context, tickers []string, period Period, interval Interval, series map[string][]*PriceBar) {
	cache.set(ctx, seriesKey(tickers, period, interval), series)
}

// Quotes returns the cached quotes of a request; a nil price means no
// provider had a quote for the symbol
func (cache *EphemeralCache) Quotes(ctx context.Context, symbols []string) (map[string]*float64, bool) {
	quotes := make(map[string]*float64)
	if !cache.get(ctx, quotesKey(symbols), &quotes) {
		return nil, false
	}
	return quotes, true
}

// SetQuotes replaces the cached quotes of a request
func (cache *EphemeralCache) SetQuotes(ctx context.Context, symbols []string, quotes map[string]*float64) {
	cache.set(ctx, quotesKey(symbols), quotes)
}

// Clear removes every entry
func (cache *EphemeralCache) Clear(ctx context.Context) error {
	return cache.blobs.Purge(ctx)
}
