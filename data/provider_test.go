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

package data_test

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jarcoal/httpmock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-risk/data"
)

const alphaVantageDaily = `{
  "Meta Data": {"2. Symbol": "SPY"},
  "Time Series (Daily)": {
    "2024-01-03": {"1. open": "470.4300", "2. high": "471.1900", "3. low": "468.1700", "4. close": "468.7900", "5. volume": "103585904"},
    "2024-01-02": {"1. open": "472.1600", "2. high": "473.6700", "3. low": "470.4900", "4. close": "472.6500", "5. volume": "123623748"}
  }
}`

const yahooChart = `{
  "chart": {
    "result": [{
      "meta": {"symbol": "SPY", "regularMarketPrice": 467.28},
      "timestamp": [1704205800, 1704292200, 1704378600],
      "indicators": {
        "quote": [{
          "open": [472.16, 470.43, null],
          "high": [473.67, 471.19, null],
          "low": [470.49, 468.17, null],
          "close": [472.65, 468.79, null],
          "volume": [123623700, 103585900, null]
        }],
        "adjclose": [{"adjclose": [466.12, 462.31, null]}]
      }
    }],
    "error": null
  }
}`

var _ = Describe("Providers", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		httpmock.Activate()
	})

	AfterEach(func() {
		httpmock.DeactivateAndReset()
	})

	Describe("Alpha Vantage", func() {
		var av *data.AlphaVantage

		BeforeEach(func() {
			av = data.NewAlphaVantage("TEST", "https://av.test")
		})

		It("parses the daily time series", func() {
			httpmock.RegisterResponder("GET", "https://av.test/query",
				httpmock.NewStringResponder(http.StatusOK, alphaVantageDaily))

			bars, err := av.DailySeries(ctx, "SPY", data.Period1Year)
			Expect(err).To(BeNil())
			Expect(bars).To(HaveLen(2))

			byDate := make(map[time.Time]*data.PriceBar)
			for _, bar := range bars {
				byDate[bar.Date] = bar
			}
			bar := byDate[time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)]
			Expect(bar).ToNot(BeNil())
			Expect(bar.Close).To(Equal(472.65))
			Expect(bar.AdjClose).To(Equal(472.65))
			Expect(bar.Volume).To(Equal(123623748.0))

			info := httpmock.GetCallCountInfo()
			Expect(info["GET https://av.test/query"]).To(Equal(1))
		})

		It("requests the full history for long periods", func() {
			httpmock.RegisterResponderWithQuery("GET", "https://av.test/query",
				"apikey=TEST&function=TIME_SERIES_DAILY&outputsize=full&symbol=SPY",
				httpmock.NewStringResponder(http.StatusOK, alphaVantageDaily))
			httpmock.RegisterResponderWithQuery("GET", "https://av.test/query",
				"apikey=TEST&function=TIME_SERIES_DAILY&outputsize=compact&symbol=SPY",
				httpmock.NewStringResponder(http.StatusOK, alphaVantageDaily))

			_, err := av.DailySeries(ctx, "SPY", data.Period1Year)
			Expect(err).To(BeNil())
			_, err = av.DailySeries(ctx, "SPY", data.Period1Month)
			Expect(err).To(BeNil())

			info := httpmock.GetCallCountInfo()
			Expect(info["GET https://av.test/query?apikey=TEST&function=TIME_SERIES_DAILY&outputsize=full&symbol=SPY"]).To(Equal(1))
			Expect(info["GET https://av.test/query?apikey=TEST&function=TIME_SERIES_DAILY&outputsize=compact&symbol=SPY"]).To(Equal(1))
		})

		DescribeTable("classifies informational responses",
			func(body string, kind data.ErrorKind) {
				httpmock.RegisterResponder("GET", "https://av.test/query",
					httpmock.NewStringResponder(http.StatusOK, body))

				_, err := av.DailySeries(ctx, "SPY", data.Period1Year)
				Expect(err).ToNot(BeNil())
				Expect(data.KindOf(err)).To(Equal(kind))

				var pe *data.ProviderError
				Expect(errors.As(err, &pe)).To(BeTrue())
				Expect(pe.Provider).To(Equal("alphavantage"))
				Expect(pe.Symbol).To(Equal("SPY"))
			},
			Entry("daily quota", `{"Information": "We have detected your API key as TEST and our standard API rate limit is 25 requests per day. Please subscribe to any of the premium plans."}`, data.QuotaExceeded),
			Entry("premium endpoint", `{"Information": "Thank you for using Alpha Vantage! This is a premium endpoint."}`, data.PremiumOnly),
			Entry("per minute limit", `{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`, data.Transient),
			Entry("unknown symbol", `{"Error Message": "Invalid API call. Please retry or visit the documentation."}`, data.NotFound),
			Entry("malformed body", `<html>oops</html>`, data.Transient),
			Entry("empty series", `{"Time Series (Daily)": {}}`, data.NotFound),
		)

		It("classifies server errors as transient", func() {
			httpmock.RegisterResponder("GET", "https://av.test/query",
				httpmock.NewStringResponder(http.StatusBadGateway, ""))

			_, err := av.DailySeries(ctx, "SPY", data.Period1Year)
			Expect(data.KindOf(err)).To(Equal(data.Transient))
			Expect(errors.Is(err, data.ErrHTTPStatus)).To(BeTrue())
		})

		It("treats a missing api key as an exhausted quota", func() {
			_, err := data.NewAlphaVantage("", "https://av.test").DailySeries(ctx, "SPY", data.Period1Year)
			Expect(data.KindOf(err)).To(Equal(data.QuotaExceeded))
			Expect(errors.Is(err, data.ErrMissingAPIKey)).To(BeTrue())
			Expect(httpmock.GetTotalCallCount()).To(Equal(0))
		})

		It("reads the global quote", func() {
			httpmock.RegisterResponder("GET", "https://av.test/query",
				httpmock.NewStringResponder(http.StatusOK, `{"Global Quote": {"01. symbol": "SPY", "05. price": "467.2800", "07. latest trading day": "2024-01-04"}}`))

			price, err := av.LatestQuote(ctx, "SPY")
			Expect(err).To(BeNil())
			Expect(price).To(Equal(467.28))
		})

		It("reports an empty global quote as not found", func() {
			httpmock.RegisterResponder("GET", "https://av.test/query",
				httpmock.NewStringResponder(http.StatusOK, `{"Global Quote": {}}`))

			_, err := av.LatestQuote(ctx, "NOPE")
			Expect(data.KindOf(err)).To(Equal(data.NotFound))
		})
	})

	Describe("Yahoo", func() {
		var yahoo *data.Yahoo

		BeforeEach(func() {
			yahoo = data.NewYahoo("https://yahoo.test")
		})

		It("parses the chart and skips null sessions", func() {
			httpmock.RegisterResponder("GET", "https://yahoo.test/v8/finance/chart/SPY",
				httpmock.NewStringResponder(http.StatusOK, yahooChart))

			bars, err := yahoo.DailySeries(ctx, "SPY", data.Period1Year)
			Expect(err).To(BeNil())
			Expect(bars).To(HaveLen(2))
			Expect(bars[0].Date).To(Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)))
			Expect(bars[0].Close).To(Equal(472.65))
			Expect(bars[0].AdjClose).To(Equal(466.12))
			Expect(bars[1].Date).To(Equal(time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)))
		})

		It("uses the regular market price as the latest quote", func() {
			httpmock.RegisterResponder("GET", "https://yahoo.test/v8/finance/chart/SPY",
				httpmock.NewStringResponder(http.StatusOK, yahooChart))

			price, err := yahoo.LatestQuote(ctx, "SPY")
			Expect(err).To(BeNil())
			Expect(price).To(Equal(467.28))
		})

		It("reports an unknown symbol as not found", func() {
			httpmock.RegisterResponder("GET", "https://yahoo.test/v8/finance/chart/NOPE",
				httpmock.NewStringResponder(http.StatusNotFound, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))

			_, err := yahoo.DailySeries(ctx, "NOPE", data.Period1Year)
			Expect(data.KindOf(err)).To(Equal(data.NotFound))
		})

		It("reports a chart error in a successful response", func() {
			httpmock.RegisterResponder("GET", "https://yahoo.test/v8/finance/chart/NOPE",
				httpmock.NewStringResponder(http.StatusOK, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`))

			_, err := yahoo.LatestQuote(ctx, "NOPE")
			Expect(data.KindOf(err)).To(Equal(data.NotFound))
		})
	})
})
