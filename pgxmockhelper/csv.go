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

package pgxmockhelper

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pashagolub/pgxmock"
	"github.com/rs/zerolog/log"
)

// PriceBarTypes converts the columns of a price bar fixture
var PriceBarTypes = map[string]string{
	"event_date": "date",
	"open":       "float64",
	"high":       "float64",
	"low":        "float64",
	"close":      "float64",
	"volume":     "float64",
	"adj_close":  "float64",
}

// CSVRows is a fixture loaded from a csv file with a header row
type CSVRows struct {
	rows    [][]any
	header  []string
	types   map[string]string
	dateCol int
}

func NewCSVRows(csvFn string, typeMap map[string]string) *CSVRows {
	subLog := log.With().Str("CsvFn", csvFn).Logger()

	rows := &CSVRows{
		dateCol: -1,
		types:   typeMap,
		rows:    make([][]any, 0),
	}
	rawData, err := os.ReadFile(csvFn)
	if err != nil {
		subLog.Panic().Err(err).Msg("could not read file")
	}

	// break raw data into an array of lines
	lines := strings.Split(string(rawData), "\n")

	// sanity checks:
	// - array length is at least 3 (header + content + trailing newline)
	// - make sure last line ends in newline
	if len(lines) < 2 {
		subLog.Panic().Int("NumLines", len(lines)).Msg("input file does not have enough lines, need at least 2 (header + trailing new line)")
	}
	if lines[len(lines)-1] != "" {
		subLog.Panic().Msg("input file is missing a trailing new line")
	}

	// parse header
	headerRaw := lines[0]
	lines = lines[1 : len(lines)-1] // discard first and last rows
	rows.header = strings.Split(headerRaw, ",")

	// parse each line and create a row
	for _, ll := range lines {
		cols := make([]any, len(rows.header))
		parts := strings.Split(ll, ",")
		for idx, val := range parts {
			colName := rows.header[idx]
			if typeConv, ok := typeMap[colName]; ok {
				switch typeConv {
				case "date":
					parsed, err := time.Parse("2006-01-02", val)
					if err != nil {
						subLog.Panic().Err(err).Str("Val", val).Msg("could not convert val to datetime of format 2006-01-02")
					}
					cols[idx] = parsed
					rows.dateCol = idx
				case "float64":
					parsed, err := strconv.ParseFloat(val, 64)
					if err != nil {
						subLog.Panic().Err(err).Str("Val", val).Msg("could not convert val to float64")
					}
					cols[idx] = parsed
				default:
					// no type conversion specified - use as is
					cols[idx] = val
				}
			} else {
				cols[idx] = val
			}
		}
		rows.rows = append(rows.rows, cols)
	}

	return rows
}

func (csvRows *CSVRows) Between(a time.Time, b time.Time) *CSVRows {
	newRows := make([][]any, 0, len(csvRows.rows))
	if len(csvRows.rows) == 0 {
		return csvRows
	}
	if csvRows.dateCol == -1 {
		log.Panic().Time("a", a).Time("b", b).Msg("no date column found")
	}
	for _, row := range csvRows.rows {
		t := row[csvRows.dateCol].(time.Time)
		if (t.Before(b) || t.Equal(b)) && (t.After(a) || t.Equal(a)) {
			newRows = append(newRows, row)
		}
	}
	csvRows.rows = newRows
	return csvRows
}

func (csvRows *CSVRows) Rows() *pgxmock.Rows {
	r := pgxmock.NewRows(csvRows.header)
	for _, row := range csvRows.rows {
		r.AddRow(row...)
	}
	return r
}

// Columns keeps only the named columns in the given order
func (csvRows *CSVRows) Columns(names ...string) *CSVRows {
	idx := make([]int, len(names))
	for ii, name := range names {
		idx[ii] = -1
		for jj, col := range csvRows.header {
			if col == name {
				idx[ii] = jj
			}
		}
		if idx[ii] == -1 {
			log.Panic().Str("Column", name).Strs("Header", csvRows.header).Msg("column not found")
		}
	}

	newRows := make([][]any, len(csvRows.rows))
	for rr, row := range csvRows.rows {
		newRow := make([]any, len(names))
		for ii, src := range idx {
			newRow[ii] = row[src]
		}
		newRows[rr] = newRow
	}

	csvRows.dateCol = -1
	for ii, name := range names {
		if csvRows.types[name] == "date" {
			csvRows.dateCol = ii
		}
	}
	csvRows.header = names
	csvRows.rows = newRows
	return csvRows
}

// MockPriceBarsQuery expects a durable store read of the bars in fn between
// a and b
func MockPriceBarsQuery(db pgxmock.PgxConnIface, fn, ticker, period string, a, b time.Time) {
	db.ExpectBegin()
	db.ExpectQuery("SELECT event_date, open, high, low, close, volume, adj_close FROM price_bars").
		WithArgs(ticker, period).
		WillReturnRows(NewCSVRows(fn, PriceBarTypes).
			Between(a, b).
			Columns("event_date", "open", "high", "low", "close", "volume", "adj_close").
			Rows())
	db.ExpectCommit()
}
