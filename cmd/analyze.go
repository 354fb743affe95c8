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

package cmd

import (
	"context"
	"fmt"

	"github.com/penny-vault/pv-risk/risk"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var analyzePeriod string

func init() {
	analyzeCmd.Flags().StringVarP(&analyzePeriod, "period", "p", "1y", "History to analyze")
	rootCmd.AddCommand(analyzeCmd)
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <ticker> [ticker...]",
	Short: "Compute risk metrics for one ticker, or betas and correlations for several",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		env := setup(ctx)
		defer env.close()

		params := riskParams()
		period := parsePeriod(analyzePeriod)

		closes, err := env.manager.CloseSeries(ctx, args, period)
		if err != nil {
			log.Fatal().Err(err).Msg("could not fetch prices")
		}
		if len(closes) == 0 {
			log.Fatal().Strs("Tickers", args).Msg("no price history available")
		}

		var market risk.Series
		benchmark, err := env.manager.FetchMarketSeries(ctx, params.Benchmark, period)
		if err != nil {
			log.Warn().Err(err).Msg("could not fetch benchmark")
		} else if benchmark.ColCount() > 0 {
			market = risk.SeriesFromDataFrame(benchmark, benchmark.ColNames[0])
		}

		prices := risk.MultiFromMap(closes)
		if len(prices) == 1 {
			for _, s := range prices {
				fmt.Println(risk.Analyze(s, market, params).Table())
			}
			return
		}

		fmt.Println(risk.Analyze(prices, market, params).Table())

		returns := make(risk.Multi, len(prices))
		for name, s := range prices {
			returns[name] = risk.Returns(s)
		}
		corr := risk.Correlation(returns)
		rows := make([][]string, len(corr.Names))
		for ii, a := range corr.Names {
			rows[ii] = []string{a}
			for _, b := range corr.Names {
				rows[ii] = append(rows[ii], corr.Get(a, b).String())
			}
		}
		printTable(append([]string{""}, corr.Names...), rows)
	},
}
