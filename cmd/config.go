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
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// secretKeys are masked when the configuration is printed
var secretKeys = []string{"alphavantage.api_key", "database.url", "cache.redis_url"}

func init() {
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as TOML",
	Run: func(_ *cobra.Command, _ []string) {
		settings := viper.AllSettings()
		for _, key := range secretKeys {
			if viper.GetString(key) != "" {
				mask(settings, key)
			}
		}

		out, err := toml.Marshal(settings)
		if err != nil {
			log.Fatal().Err(err).Msg("could not encode configuration")
		}
		fmt.Print(string(out))
	},
}

// mask replaces the nested value at a dotted key
func mask(settings map[string]interface{}, key string) {
	section, name, nested := strings.Cut(key, ".")
	if !nested {
		settings[section] = "********"
		return
	}
	if sub, ok := settings[section].(map[string]interface{}); ok {
		sub[name] = "********"
	}
}
