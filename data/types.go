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
	"time"

	"github.com/rs/zerolog"
)

type Metric string

const (
	MetricOpen          Metric = "Open"
	MetricLow           Metric = "Low"
	MetricHigh          Metric = "High"
	MetricClose         Metric = "Close"
	MetricVolume        Metric = "Volume"
	MetricAdjustedClose Metric = "AdjustedClose"
)

// Metrics lists the columns of a normalized price table in order
var Metrics = []Metric{MetricOpen, MetricHigh, MetricLow, MetricClose, MetricVolume, MetricAdjustedClose}

// PriceBar is a single day of trading for a ticker
type PriceBar struct {
	Ticker   string    `json:"ticker"`
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
	AdjClose float64   `json:"adjClose"`
}

// Value returns the bar's value for the requested metric
func (bar *PriceBar) Value(metric Metric) float64 {
	switch metric {
	case MetricOpen:
		return bar.Open
	case MetricHigh:
		return bar.High
	case MetricLow:
		return bar.Low
	case MetricClose:
		return bar.Close
	case MetricVolume:
		return bar.Volume
	default:
		return bar.AdjClose
	}
}

// CacheEntry records what the durable store holds for a (ticker, period)
type CacheEntry struct {
	Ticker        string    `json:"ticker"`
	Period        Period    `json:"period"`
	DataStartDate time.Time `json:"dataStartDate"`
	DataEndDate   time.Time `json:"dataEndDate"`
	RowCount      int       `json:"rowCount"`
	LastUpdated   time.Time `json:"lastUpdated"`
	Valid         bool      `json:"valid"`
}

// Servable reports whether the entry may be returned in place of fresh data
func (entry *CacheEntry) Servable(now time.Time, staleAfter time.Duration) bool {
	if entry == nil || !entry.Valid || entry.RowCount == 0 {
		return false
	}
	return now.Sub(entry.LastUpdated) < staleAfter
}

func (entry *CacheEntry) MarshalZerologObject(e *zerolog.Event) {
	e.Str("Ticker", entry.Ticker)
	e.Str("Period", string(entry.Period))
	e.Time("DataStartDate", entry.DataStartDate)
	e.Time("DataEndDate", entry.DataEndDate)
	e.Int("RowCount", entry.RowCount)
	e.Time("LastUpdated", entry.LastUpdated)
	e.Bool("Valid", entry.Valid)
}
