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

package common_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-risk/common"
)

var _ = Describe("BlobCache", func() {
	var (
		cache *common.BlobCache
		now   time.Time
		ctx   context.Context
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		now = time.Date(2022, 6, 1, 9, 30, 0, 0, time.UTC)
		cache, err = common.NewBlobCache(2, 300*time.Second, nil)
		Expect(err).To(BeNil())
		cache.Now = func() time.Time { return now }
	})

	It("rejects a non-positive size", func() {
		_, err := common.NewBlobCache(0, time.Second, nil)
		Expect(err).To(MatchError(common.ErrInvalidCacheSize))
	})

	It("returns what was stored", func() {
		Expect(cache.Set(ctx, "SPY:1y:1d", []byte("hello world"))).To(Succeed())
		val, ok, err := cache.Get(ctx, "SPY:1y:1d")
		Expect(err).To(BeNil())
		Expect(ok).To(BeTrue())
		Expect(string(val)).To(Equal("hello world"))
	})

	It("misses on an unknown key", func() {
		_, ok, err := cache.Get(ctx, "missing")
		Expect(err).To(BeNil())
		Expect(ok).To(BeFalse())
	})

	It("expires entries after the ttl", func() {
		Expect(cache.Set(ctx, "k", []byte("v"))).To(Succeed())
		now = now.Add(299 * time.Second)
		_, ok, _ := cache.Get(ctx, "k")
		Expect(ok).To(BeTrue())

		now = now.Add(2 * time.Second)
		_, ok, _ = cache.Get(ctx, "k")
		Expect(ok).To(BeFalse())
		Expect(cache.Len()).To(Equal(0))
	})

	It("evicts the least recently used entry", func() {
		Expect(cache.Set(ctx, "a", []byte("1"))).To(Succeed())
		Expect(cache.Set(ctx, "b", []byte("2"))).To(Succeed())
		_, _, _ = cache.Get(ctx, "a")
		Expect(cache.Set(ctx, "c", []byte("3"))).To(Succeed())

		_, ok, _ := cache.Get(ctx, "b")
		Expect(ok).To(BeFalse())
		_, ok, _ = cache.Get(ctx, "a")
		Expect(ok).To(BeTrue())
	})

	It("purges everything", func() {
		Expect(cache.Set(ctx, "a", []byte("1"))).To(Succeed())
		Expect(cache.Purge(ctx)).To(Succeed())
		Expect(cache.Len()).To(Equal(0))
	})
})
