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
	"context"

	"github.com/google/uuid"
)

// Change is the result of one ledger mutation: the complete position set
// after the mutation plus the transactions it appended
type Change struct {
	Portfolio    *Portfolio
	Removed      []string
	Transactions []*Transaction
}

// Repository persists portfolios. Commit applies a Change atomically.
type Repository interface {
	Load(ctx context.Context, id uuid.UUID) (*Portfolio, error)
	Commit(ctx context.Context, change *Change) error
}
