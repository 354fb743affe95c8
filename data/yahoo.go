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
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/penny-vault/pv-risk/common"
	"github.com/rs/zerolog/log"
)

const (
	yahooName = "yahoo"
)

type Yahoo struct {
	baseURL string
	client  *http.Client
}

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// NewYahoo creates the unmetered secondary data provider
func NewYahoo(baseURL string) *Yahoo {
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com"
	}
	return &Yahoo{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
}

func (y *Yahoo) Name() string {
	return yahooName
}

func (y *Yahoo) Metered() bool {
	return false
}

func (y *Yahoo) chart(ctx context.Context, symbol, rng string) (*yahooChartResponse, error) {
	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=%s", y.baseURL, url.PathEscape(symbol), rng)
	body, err := fetchBody(ctx, y.client, yahooName, symbol, reqURL, reqURL, map[string]string{
		"User-Agent": "Mozilla/5.0",
	})

	if err != nil {
		return nil, err
	}

	chart := &yahooChartResponse{}
	if err := json.Unmarshal(body, chart); err != nil {
		log.Debug().Err(err).Str("Symbol", symbol).Bytes("Body", body).Msg("could not unmarshal json")
		return nil, &ProviderError{Provider: yahooName, Symbol: symbol, Kind: Transient, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}

	if chart.Chart.Error != nil {
		kind := Transient
		if strings.EqualFold(chart.Chart.Error.Code, "Not Found") {
			kind = NotFound
		}
		return nil, &ProviderError{Provider: yahooName, Symbol: symbol, Kind: kind, Err: errors.New(chart.Chart.Error.Description)}
	}

	if len(chart.Chart.Result) == 0 {
		return nil, &ProviderError{Provider: yahooName, Symbol: symbol, Kind: NotFound, Err: ErrNoData}
	}

	return chart, nil
}

func yahooValue(vals []*float64, idx int) (float64, bool) {
	if idx >= len(vals) || vals[idx] == nil {
		return 0, false
	}
	return *vals[idx], true
}

// DailySeries downloads the daily chart of symbol
func (y *Yahoo) DailySeries(ctx context.Context, symbol string, period Period) ([]*PriceBar, error) {
	chart, err := y.chart(ctx, symbol, string(period))
	if err != nil {
		return nil, err
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 || len(result.Timestamp) == 0 {
		return nil, &ProviderError{Provider: yahooName, Symbol: symbol, Kind: NotFound, Err: ErrNoData}
	}

	quote := result.Indicators.Quote[0]
	var adj []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adj = result.Indicators.AdjClose[0].AdjClose
	}

	tz := common.GetTimezone()
	bars := make([]*PriceBar, 0, len(result.Timestamp))
	for idx, ts := range result.Timestamp {
		closeVal, ok := yahooValue(quote.Close, idx)
		if !ok {
			// null bars show up for holidays and halted sessions
			continue
		}

		local := time.Unix(ts, 0).In(tz)
		bar := &PriceBar{
			Ticker: symbol,
			Date:   time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC),
			Close:  closeVal,
		}
		bar.Open, _ = yahooValue(quote.Open, idx)
		bar.High, _ = yahooValue(quote.High, idx)
		bar.Low, _ = yahooValue(quote.Low, idx)
		bar.Volume, _ = yahooValue(quote.Volume, idx)
		if v, ok := yahooValue(adj, idx); ok {
			bar.AdjClose = v
		}

		bars = append(bars, bar)
	}

	return bars, nil
}

// LatestQuote returns the regular market price of symbol, falling back to
// the most recent close
func (y *Yahoo) LatestQuote(ctx context.Context, symbol string) (float64, error) {
	chart, err := y.chart(ctx, symbol, "5d")
	if err != nil {
		return 0, err
	}

	result := chart.Chart.Result[0]
	if result.Meta.RegularMarketPrice > 0 {
		return result.Meta.RegularMarketPrice, nil
	}

	if len(result.Indicators.Quote) > 0 {
		closes := result.Indicators.Quote[0].Close
		for idx := len(closes) - 1; idx >= 0; idx-- {
			if v, ok := yahooValue(closes, idx); ok {
				return v, nil
			}
		}
	}

	return 0, &ProviderError{Provider: yahooName, Symbol: symbol, Kind: NotFound, Err: ErrNoData}
}
