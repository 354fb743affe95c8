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
	"io"
	"net/http"
	"time"

	"github.com/penny-vault/pv-risk/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// fetchBody performs a GET request and classifies transport level failures.
// redactedURL is used for logging and tracing so api keys are never recorded.
func fetchBody(ctx context.Context, client *http.Client, provider, symbol, reqURL, redactedURL string, headers map[string]string) ([]byte, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, fmt.Sprintf("%s.get", provider))
	defer span.End()

	subLog := log.With().Str("Provider", provider).Str("Symbol", symbol).Str("Url", redactedURL).Logger()
	span.SetAttributes(
		attribute.String("Url", redactedURL),
		attribute.String("Symbol", symbol),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &ProviderError{Provider: provider, Symbol: symbol, Kind: Transient, Err: err}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	span.SetAttributes(opentelemetry.SpanAttributesFromRequest(req, redactedURL)...)

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		span.RecordError(err)
		msg := "http request failed"
		span.SetStatus(codes.Error, msg)
		subLog.Debug().Err(err).Msg(msg)
		return nil, &ProviderError{Provider: provider, Symbol: symbol, Kind: Transient, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		msg := "could not read response body"
		span.SetStatus(codes.Error, msg)
		subLog.Debug().Err(err).Msg(msg)
		return nil, &ProviderError{Provider: provider, Symbol: symbol, Kind: Transient, Err: err}
	}

	subLog.Debug().Int("StatusCode", resp.StatusCode).Dur("Elapsed", time.Since(start)).Msg("http request complete")

	if resp.StatusCode >= 400 {
		span.SetAttributes(attribute.Int("StatusCode", resp.StatusCode))
		msg := "provider returned invalid response code"
		span.SetStatus(codes.Error, msg)

		kind := Transient
		if resp.StatusCode == http.StatusNotFound {
			kind = NotFound
		}
		return nil, &ProviderError{
			Provider: provider,
			Symbol:   symbol,
			Kind:     kind,
			Err:      fmt.Errorf("%w: %d", ErrHTTPStatus, resp.StatusCode),
		}
	}

	return body, nil
}
