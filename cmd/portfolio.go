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
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/penny-vault/pv-risk/portfolio"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	portfolioName string
	showJSON      bool

	buyQuantity   float64
	buyPrice      float64
	buyAllocation float64
	buyClass      string
	buyMemo       string
	tradeDate     string

	portfolioPeriod string
)

func init() {
	portfolioCmd.PersistentFlags().StringVar(&portfolioName, "name", "default", "Portfolio name")

	portfolioShowCmd.Flags().BoolVar(&showJSON, "json", false, "Print the valuation as JSON")

	portfolioBuyCmd.Flags().Float64VarP(&buyQuantity, "quantity", "q", 0, "Number of shares bought")
	portfolioBuyCmd.Flags().Float64Var(&buyPrice, "price", 0, "Price paid per share")
	portfolioBuyCmd.Flags().Float64VarP(&buyAllocation, "allocation", "a", 0, "Amount allocated when shares and price are not given")
	portfolioBuyCmd.Flags().StringVar(&buyClass, "class", "stock", "Asset class: stock, etf, bond, crypto, cash or other")
	portfolioBuyCmd.Flags().StringVar(&buyMemo, "memo", "", "Note recorded with the transaction")
	portfolioBuyCmd.Flags().StringVar(&tradeDate, "date", "", "Trade date as YYYY-MM-DD, defaults to now")
	portfolioSellCmd.Flags().StringVar(&tradeDate, "date", "", "Trade date as YYYY-MM-DD, defaults to now")

	portfolioAnalyzeCmd.Flags().StringVarP(&portfolioPeriod, "period", "p", "1y", "History to analyze")

	portfolioCmd.AddCommand(portfolioShowCmd, portfolioBuyCmd, portfolioSellCmd, portfolioRebalanceCmd,
		portfolioRemoveCmd, portfolioAnalyzeCmd)
	rootCmd.AddCommand(portfolioCmd)
}

var portfolioCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "Manage the positions of a portfolio",
}

func openPortfolio(ctx context.Context, env *environment) *portfolio.Model {
	pm, err := portfolio.Open(ctx, portfolioName, portfolio.WithRepository(env.repo), portfolio.WithMetrics(env.metrics))
	if err != nil {
		log.Fatal().Err(err).Str("Portfolio", portfolioName).Msg("could not open portfolio")
	}
	return pm
}

func parseTradeDate() *time.Time {
	if tradeDate == "" {
		return nil
	}
	dt, err := time.ParseInLocation("2006-01-02", tradeDate, time.UTC)
	if err != nil {
		log.Fatal().Err(err).Str("Date", tradeDate).Msg("could not parse trade date")
	}
	return &dt
}

// report prints the positions after a successful mutation; a failure is
// returned so cobra exits non-zero after deferred cleanup has run
func report(res portfolio.Result) error {
	if !res.Success {
		return res.Error
	}
	printPositions(res.Portfolio)
	return nil
}

func printPositions(snap portfolio.Snapshot) {
	rows := make([][]string, 0, len(snap.Positions))
	for _, pos := range snap.Positions {
		purchased := ""
		if pos.PurchaseDate != nil {
			purchased = pos.PurchaseDate.Format("2006-01-02")
		}
		rows = append(rows, []string{
			pos.Symbol,
			string(pos.AssetClass),
			formatOptional(pos.Quantity),
			formatOptional(pos.PurchasePrice),
			purchased,
			formatFloat(pos.Allocation),
			fmt.Sprintf("%.2f%%", pos.Weight*100),
			formatFloat(pos.RealizedPnL),
		})
	}
	printTable([]string{"Symbol", "Class", "Quantity", "Price", "Purchased", "Allocation", "Weight", "Realized"}, rows)
}

var portfolioShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Value the portfolio with the latest quotes",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		env := setup(ctx)
		defer env.close()

		pm := openPortfolio(ctx, env)
		summary, err := pm.Summary(ctx, env.manager)
		if err != nil {
			log.Fatal().Err(err).Msg("could not value portfolio")
		}

		if showJSON {
			out, err := json.MarshalIndent(summary, "", "  ")
			if err != nil {
				log.Fatal().Err(err).Msg("could not encode summary")
			}
			fmt.Println(string(out))
			return
		}

		val := summary.Valuation
		rows := make([][]string, 0, len(val.Positions))
		for _, pv := range val.Positions {
			flag := ""
			if pv.Degraded {
				flag = "*"
			}
			rows = append(rows, []string{
				pv.Symbol,
				formatOptional(pv.LivePrice),
				formatFloat(pv.CostBasis),
				formatFloat(pv.CurrentValue) + flag,
				formatFloat(pv.UnrealizedPnL),
				fmt.Sprintf("%.2f%%", pv.Weight*100),
			})
		}
		printTable([]string{"Symbol", "Last", "Cost", "Value", "Unrealized", "Weight"}, rows)

		fmt.Printf("\n%s: %d positions, cost %.2f, value %.2f, unrealized %.2f (%.2f%%), realized %.2f\n",
			summary.Name, summary.TotalAssets, val.TotalCost, val.TotalValue, val.UnrealizedPnL, summary.PnLPercent, val.RealizedPnL)

		classRows := make([][]string, 0, len(summary.AssetClasses))
		for class, breakdown := range summary.AssetClasses {
			classRows = append(classRows, []string{
				string(class),
				strconv.Itoa(breakdown.Count),
				fmt.Sprintf("%.2f%%", breakdown.Share*100),
				strings.Join(breakdown.Symbols, ", "),
			})
		}
		fmt.Println()
		printTable([]string{"Class", "Count", "Share", "Symbols"}, classRows)
	},
}

var portfolioBuyCmd = &cobra.Command{
	Use:          "buy <symbol>",
	Short:        "Add to a position",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		env := setup(ctx)
		defer env.close()

		class, err := portfolio.ParseAssetClass(buyClass)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid asset class")
		}

		req := portfolio.AddRequest{
			Symbol:     args[0],
			AssetClass: class,
			Date:       parseTradeDate(),
			Memo:       buyMemo,
		}
		if cmd.Flags().Changed("quantity") {
			req.Quantity = &buyQuantity
		}
		if cmd.Flags().Changed("price") {
			req.PurchasePrice = &buyPrice
		}
		if cmd.Flags().Changed("allocation") {
			req.Allocation = &buyAllocation
		}

		return report(openPortfolio(ctx, env).AddPosition(ctx, req))
	},
}

var portfolioSellCmd = &cobra.Command{
	Use:          "sell <symbol> <quantity> <price>",
	Short:        "Sell shares of a position",
	Args:         cobra.ExactArgs(3),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		qty, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			log.Fatal().Err(err).Str("Quantity", args[1]).Msg("invalid quantity")
		}
		price, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			log.Fatal().Err(err).Str("Price", args[2]).Msg("invalid price")
		}

		env := setup(ctx)
		defer env.close()
		return report(openPortfolio(ctx, env).SellPosition(ctx, args[0], qty, price, parseTradeDate()))
	},
}

var portfolioRebalanceCmd = &cobra.Command{
	Use:          "rebalance <symbol=amount> [symbol=amount...]",
	Short:        "Set the allocation of one or more positions",
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		targets := make(map[string]float64, len(args))
		for _, arg := range args {
			parts := strings.SplitN(arg, "=", 2)
			if len(parts) != 2 {
				log.Fatal().Str("Target", arg).Msg("targets must be given as symbol=amount")
			}
			amount, err := strconv.ParseFloat(parts[1], 64)
			if err != nil {
				log.Fatal().Err(err).Str("Target", arg).Msg("invalid amount")
			}
			targets[parts[0]] = amount
		}

		env := setup(ctx)
		defer env.close()
		return report(openPortfolio(ctx, env).Rebalance(ctx, targets))
	},
}

var portfolioRemoveCmd = &cobra.Command{
	Use:          "remove <symbol>",
	Short:        "Drop a position without recording a sale",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		env := setup(ctx)
		defer env.close()
		return report(openPortfolio(ctx, env).RemovePosition(ctx, args[0]))
	},
}

var portfolioAnalyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Compute risk metrics of the weighted portfolio",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		env := setup(ctx)
		defer env.close()

		pm := openPortfolio(ctx, env)
		rpt, err := pm.Analyze(ctx, env.manager, parsePeriod(portfolioPeriod), riskParams())
		if err != nil {
			log.Fatal().Err(err).Msg("could not analyze portfolio")
		}
		fmt.Println(rpt.Table())
	},
}
