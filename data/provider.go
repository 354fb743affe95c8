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
)

// Provider is a source of market data. Implementations return *ProviderError
// on failure so callers can decide whether to fall back to another provider.
type Provider interface {
	// Name identifies the provider in logs and metrics
	Name() string

	// Metered providers enforce a per-key call budget; calls to them are paced
	Metered() bool

	// DailySeries returns daily bars covering at least the requested period
	DailySeries(ctx context.Context, symbol string, period Period) ([]*PriceBar, error)

	// LatestQuote returns the most recent traded price of symbol
	LatestQuote(ctx context.Context, symbol string) (float64, error)
}
