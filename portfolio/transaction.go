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

package portfolio

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/zeebo/blake3"
)

// newTransaction builds a ledger entry and assigns its source id. seq is the
// position of the entry in the ledger so repeated identical trades stay
// distinct.
func newTransaction(portfolioID uuid.UUID, seq int, kind, symbol string, shares, price float64, date time.Time) (*Transaction, error) {
	trx := &Transaction{
		ID:            uuid.New(),
		Source:        SourceName,
		Date:          date,
		Kind:          kind,
		Symbol:        symbol,
		Shares:        shares,
		PricePerShare: price,
		TotalValue:    mul(shares, price),
	}
	if err := computeTransactionSourceID(portfolioID, seq, trx); err != nil {
		return nil, err
	}
	return trx, nil
}

// computeTransactionSourceID sets SourceID to a 16 byte blake3 digest of the
// fields that identify the transaction
func computeTransactionSourceID(portfolioID uuid.UUID, seq int, t *Transaction) error {
	h := blake3.New()

	d, err := t.Date.UTC().MarshalText()
	if err != nil {
		return err
	}

	fields := [][]byte{
		portfolioID[:],
		[]byte(fmt.Sprintf("%d", seq)),
		d,
		[]byte(t.Source),
		[]byte(t.Symbol),
		[]byte(t.Kind),
		[]byte(fmt.Sprintf("%.5f", t.PricePerShare)),
		[]byte(fmt.Sprintf("%.5f", t.Shares)),
		[]byte(fmt.Sprintf("%.5f", t.TotalValue)),
	}

	for _, field := range fields {
		if _, err := h.Write(field); err != nil {
			log.Error().Stack().Err(err).Msg("could not write field to blake3 hasher")
			return err
		}
	}

	digest := h.Digest()
	buf := make([]byte, 16)
	n, err := digest.Read(buf)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not read blake3 digest")
		return err
	}
	if n != 16 {
		log.Error().Int("BytesRead", n).Msg("did not read 16 bytes of digest")
		return ErrGenerateHash
	}

	t.SourceID = hex.EncodeToString(buf)
	return nil
}

// money helpers; amounts are kept as float64 but combined in decimal so that
// repeated trades do not accumulate binary rounding error

func mul(a, b float64) float64 {
	return decimal.NewFromFloat(a).Mul(decimal.NewFromFloat(b)).InexactFloat64()
}

func add(a, b float64) float64 {
	return decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).InexactFloat64()
}

func sub(a, b float64) float64 {
	return decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).InexactFloat64()
}

// scale returns a * num / den
func scale(a, num, den float64) float64 {
	return decimal.NewFromFloat(a).Mul(decimal.NewFromFloat(num)).Div(decimal.NewFromFloat(den)).InexactFloat64()
}

// weightedPrice is the quantity weighted average of two lots
func weightedPrice(p1, q1, p2, q2 float64) float64 {
	total := decimal.NewFromFloat(q1).Add(decimal.NewFromFloat(q2))
	cost := decimal.NewFromFloat(p1).Mul(decimal.NewFromFloat(q1)).
		Add(decimal.NewFromFloat(p2).Mul(decimal.NewFromFloat(q2)))
	return cost.Div(total).InexactFloat64()
}
