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
)

// PriceStore is the durable tier of the price cache. Each (ticker, period)
// key holds one CacheEntry and the bars it describes.
type PriceStore interface {
	// Lookup returns the entry for the key or nil if there is none
	Lookup(ctx context.Context, ticker string, period Period) (*CacheEntry, error)

	// Bars returns the bars stored under the key in ascending date order
	Bars(ctx context.Context, ticker string, period Period) ([]*PriceBar, error)

	// Replace atomically swaps the contents of the key for bars. Readers
	// never observe a partially written key.
	Replace(ctx context.Context, ticker string, period Period, bars []*PriceBar, updated time.Time) error
}

// newCacheEntry describes bars stored under (ticker, period)
func newCacheEntry(ticker string, period Period, bars []*PriceBar, updated time.Time) *CacheEntry {
	entry := &CacheEntry{
		Ticker:      ticker,
		Period:      period,
		RowCount:    len(bars),
		LastUpdated: updated,
		Valid:       len(bars) > 0,
	}
	if len(bars) > 0 {
		entry.DataStartDate = bars[0].Date
		entry.DataEndDate = bars[len(bars)-1].Date
	}
	return entry
}
