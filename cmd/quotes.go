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

	"github.com/penny-vault/pv-risk/common"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var quotesRefresh bool

func init() {
	quotesCmd.Flags().BoolVar(&quotesRefresh, "refresh", false, "Bypass the quote cache")
	rootCmd.AddCommand(quotesCmd)
}

var quotesCmd = &cobra.Command{
	Use:   "quotes <symbol> [symbol...]",
	Short: "Print the latest price of each symbol",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		env := setup(ctx)
		defer env.close()

		quotes, err := env.manager.FetchQuotes(ctx, args, quotesRefresh)
		if err != nil {
			log.Fatal().Err(err).Msg("could not fetch quotes")
		}

		symbols := common.NormalizeSymbols(args)
		rows := make([][]string, 0, len(symbols))
		for _, symbol := range symbols {
			rows = append(rows, []string{symbol, formatOptional(quotes[symbol])})
		}
		printTable([]string{"Symbol", "Price"}, rows)
	},
}
