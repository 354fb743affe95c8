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

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(purgeCmd)
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete every entry of the ephemeral cache, including the redis mirror",
	Run: func(_ *cobra.Command, _ []string) {
		ctx := context.Background()
		env := setup(ctx)
		defer env.close()

		if err := env.manager.ClearCache(ctx); err != nil {
			log.Error().Stack().Err(err).Msg("could not purge cache")
			return
		}
		log.Info().Msg("ephemeral cache purged")
	},
}
