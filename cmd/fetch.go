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

	"github.com/penny-vault/pv-risk/data"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	fetchPeriod   string
	fetchInterval string
	fetchRows     int
)

func init() {
	fetchCmd.Flags().StringVarP(&fetchPeriod, "period", "p", "1y", "History to fetch: 5d, 1mo, 3mo, 6mo, 1y, 2y, 5y or max")
	fetchCmd.Flags().StringVarP(&fetchInterval, "interval", "i", "1d", "Bar interval: 1d, 1wk or 1mo")
	fetchCmd.Flags().IntVarP(&fetchRows, "rows", "n", 10, "Number of trailing rows to print, -1 for all")

	rootCmd.AddCommand(fetchCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <ticker> [ticker...]",
	Short: "Fetch daily price history through the cache",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		env := setup(ctx)
		defer env.close()

		interval, err := data.ParseInterval(fetchInterval)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid interval")
		}

		df, err := env.manager.FetchSeries(ctx, args, parsePeriod(fetchPeriod), interval)
		if err != nil {
			log.Fatal().Err(err).Msg("fetch failed")
		}
		fmt.Println(df.Tail(fetchRows).Table())
	},
}
