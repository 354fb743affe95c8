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
	"errors"
	"fmt"
)

var (
	ErrInvalidPeriod   = errors.New("invalid period")
	ErrInvalidInterval = errors.New("invalid interval")
	ErrNoSymbols       = errors.New("no symbols requested")
	ErrNoData          = errors.New("provider returned no data")
	ErrMalformed       = errors.New("provider returned a malformed response")
	ErrRateLimited     = errors.New("provider rate limit")
	ErrHTTPStatus      = errors.New("HTTP request returned invalid status code")
	ErrMissingAPIKey   = errors.New("api key is required")
)

// ErrorKind classifies a provider failure so the fallback chain can decide
// how to proceed
type ErrorKind int

const (
	// Transient covers network errors, timeouts, 5xx responses, per-minute
	// throttling and undecodable bodies
	Transient ErrorKind = iota
	// QuotaExceeded means the daily allowance is spent; the provider should
	// not be called again for the remainder of the operation
	QuotaExceeded
	// PremiumOnly means the endpoint requires a paid plan
	PremiumOnly
	// NotFound means the provider does not know the symbol
	NotFound
)

func (k ErrorKind) String() string {
	switch k {
	case QuotaExceeded:
		return "quota-exceeded"
	case PremiumOnly:
		return "premium-only"
	case NotFound:
		return "not-found"
	default:
		return "transient"
	}
}

// ProviderError is returned by market data providers
type ProviderError struct {
	Provider string
	Symbol   string
	Kind     ErrorKind
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s (%s): %v", e.Provider, e.Symbol, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// KindOf returns the classification of err. Errors that are not provider
// errors are considered transient.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return Transient
}

// PersistenceError wraps a failure of the durable store
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
