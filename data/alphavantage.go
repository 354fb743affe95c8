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
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

const (
	alphaVantageName = "alphavantage"

	// compact responses hold the latest 100 sessions
	alphaVantageCompactRows = 100
)

var ErrAlphaVantageQuota = errors.New("alpha vantage daily request quota exceeded")

type AlphaVantage struct {
	apikey  string
	baseURL string
	client  *http.Client
}

type alphaVantageBar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

type alphaVantageDailyResponse struct {
	ErrorMessage string                     `json:"Error Message"`
	Note         string                     `json:"Note"`
	Information  string                     `json:"Information"`
	TimeSeries   map[string]alphaVantageBar `json:"Time Series (Daily)"`
}

type alphaVantageQuoteResponse struct {
	ErrorMessage string `json:"Error Message"`
	Note         string `json:"Note"`
	Information  string `json:"Information"`
	GlobalQuote  struct {
		Symbol           string `json:"01. symbol"`
		Price            string `json:"05. price"`
		LatestTradingDay string `json:"07. latest trading day"`
	} `json:"Global Quote"`
}

// NewAlphaVantage creates the metered primary data provider
func NewAlphaVantage(key, baseURL string) *AlphaVantage {
	if baseURL == "" {
		baseURL = "https://www.alphavantage.co"
	}
	return &AlphaVantage{
		apikey:  key,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
}

func (av *AlphaVantage) Name() string {
	return alphaVantageName
}

func (av *AlphaVantage) Metered() bool {
	return true
}

func (av *AlphaVantage) outputSize(period Period) string {
	rows := period.Rows()
	if rows < 0 || rows > alphaVantageCompactRows {
		return "full"
	}
	return "compact"
}

// classify maps the free-form messages alpha vantage returns in a 200
// response to an error kind
func (av *AlphaVantage) classify(symbol, msg string, fallback ErrorKind) *ProviderError {
	lower := strings.ToLower(msg)
	pe := &ProviderError{Provider: alphaVantageName, Symbol: symbol, Kind: fallback, Err: errors.New(msg)}

	// the daily quota notice also advertises premium plans so it is checked first
	switch {
	case strings.Contains(lower, "requests per day"):
		pe.Kind = QuotaExceeded
		pe.Err = fmt.Errorf("%w: %s", ErrAlphaVantageQuota, msg)
	case strings.Contains(lower, "premium endpoint"):
		pe.Kind = PremiumOnly
	case strings.Contains(lower, "rate limit"), strings.Contains(lower, "call frequency"):
		pe.Kind = Transient
		pe.Err = fmt.Errorf("%w: %s", ErrRateLimited, msg)
	}

	return pe
}

func (av *AlphaVantage) get(ctx context.Context, symbol string, params url.Values) ([]byte, error) {
	if av.apikey == "" {
		return nil, &ProviderError{Provider: alphaVantageName, Symbol: symbol, Kind: QuotaExceeded, Err: ErrMissingAPIKey}
	}

	redacted := fmt.Sprintf("%s/query?%s", av.baseURL, params.Encode())
	params.Set("apikey", av.apikey)
	reqURL := fmt.Sprintf("%s/query?%s", av.baseURL, params.Encode())

	return fetchBody(ctx, av.client, alphaVantageName, symbol, reqURL, redacted, nil)
}

// DailySeries downloads TIME_SERIES_DAILY for symbol
func (av *AlphaVantage) DailySeries(ctx context.Context, symbol string, period Period) ([]*PriceBar, error) {
	subLog := log.With().Str("Provider", alphaVantageName).Str("Symbol", symbol).Str("Period", string(period)).Logger()

	params := url.Values{}
	params.Set("function", "TIME_SERIES_DAILY")
	params.Set("symbol", symbol)
	params.Set("outputsize", av.outputSize(period))

	body, err := av.get(ctx, symbol, params)
	if err != nil {
		return nil, err
	}

	resp := alphaVantageDailyResponse{}
	if err := json.Unmarshal(body, &resp); err != nil {
		subLog.Debug().Err(err).Bytes("Body", body).Msg("could not unmarshal json")
		return nil, &ProviderError{Provider: alphaVantageName, Symbol: symbol, Kind: Transient, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}

	switch {
	case resp.ErrorMessage != "":
		return nil, av.classify(symbol, resp.ErrorMessage, NotFound)
	case resp.Note != "":
		return nil, av.classify(symbol, resp.Note, Transient)
	case resp.Information != "":
		return nil, av.classify(symbol, resp.Information, Transient)
	}

	if len(resp.TimeSeries) == 0 {
		return nil, &ProviderError{Provider: alphaVantageName, Symbol: symbol, Kind: NotFound, Err: ErrNoData}
	}

	bars := make([]*PriceBar, 0, len(resp.TimeSeries))
	for dateStr, raw := range resp.TimeSeries {
		dt, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			subLog.Debug().Err(err).Str("DateStr", dateStr).Msg("cannot parse date string")
			return nil, &ProviderError{Provider: alphaVantageName, Symbol: symbol, Kind: Transient, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
		}

		bar := &PriceBar{
			Ticker: symbol,
			Date:   dt,
		}
		fields := []struct {
			dst *float64
			src string
		}{
			{&bar.Open, raw.Open},
			{&bar.High, raw.High},
			{&bar.Low, raw.Low},
			{&bar.Close, raw.Close},
			{&bar.Volume, raw.Volume},
		}
		for _, f := range fields {
			v, err := strconv.ParseFloat(f.src, 64)
			if err != nil {
				return nil, &ProviderError{Provider: alphaVantageName, Symbol: symbol, Kind: Transient, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
			}
			*f.dst = v
		}

		// the free endpoint does not adjust for splits and dividends
		bar.AdjClose = bar.Close
		bars = append(bars, bar)
	}

	return bars, nil
}

// LatestQuote returns the GLOBAL_QUOTE price for symbol
func (av *AlphaVantage) LatestQuote(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", symbol)

	body, err := av.get(ctx, symbol, params)
	if err != nil {
		return 0, err
	}

	resp := alphaVantageQuoteResponse{}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, &ProviderError{Provider: alphaVantageName, Symbol: symbol, Kind: Transient, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}

	switch {
	case resp.ErrorMessage != "":
		return 0, av.classify(symbol, resp.ErrorMessage, NotFound)
	case resp.Note != "":
		return 0, av.classify(symbol, resp.Note, Transient)
	case resp.Information != "":
		return 0, av.classify(symbol, resp.Information, Transient)
	}

	if resp.GlobalQuote.Price == "" {
		return 0, &ProviderError{Provider: alphaVantageName, Symbol: symbol, Kind: NotFound, Err: ErrNoData}
	}

	price, err := strconv.ParseFloat(resp.GlobalQuote.Price, 64)
	if err != nil {
		return 0, &ProviderError{Provider: alphaVantageName, Symbol: symbol, Kind: Transient, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}

	return price, nil
}
