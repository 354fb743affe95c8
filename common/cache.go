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

package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	cacheKeyPrefix = "pvrisk:"
)

var (
	ErrInvalidCacheSize = errors.New("cache size must be greater than 0")
)

type cachedBlob struct {
	data    []byte
	expires time.Time
}

// BlobCache is a size bounded, TTL expiring, key/value store of compressed
// byte blobs. A local LRU is always used; when a redis client is supplied
// every write is mirrored to redis and local misses fall through to it.
type BlobCache struct {
	local *lru.Cache
	rdb   *redis.Client
	ttl   time.Duration

	// Now returns the current time; replaced in tests
	Now func() time.Time
}

// NewBlobCache creates a cache holding at most size entries, each valid for ttl
func NewBlobCache(size int, ttl time.Duration, rdb *redis.Client) (*BlobCache, error) {
	if size <= 0 {
		return nil, ErrInvalidCacheSize
	}

	local, err := lru.New(size)
	if err != nil {
		return nil, err
	}

	return &BlobCache{
		local: local,
		rdb:   rdb,
		ttl:   ttl,
		Now:   time.Now,
	}, nil
}

// NewBlobCacheFromConfig builds a BlobCache from the cache.* configuration keys
func NewBlobCacheFromConfig() (*BlobCache, error) {
	var rdb *redis.Client
	if viper.GetBool("cache.redis") {
		opt, err := redis.ParseURL(viper.GetString("cache.redis_url"))
		if err != nil {
			log.Error().Err(err).Msg("could not parse redis URL")
			return nil, err
		}
		rdb = redis.NewClient(opt)
	}

	return NewBlobCache(viper.GetInt("cache.local_size"), viper.GetDuration("cache.ttl"), rdb)
}

// Set stores bytes under key, replacing any existing value
func (c *BlobCache) Set(ctx context.Context, key string, bytes []byte) error {
	b2, err := Compress(bytes)
	if err != nil {
		return err
	}

	c.local.Add(key, &cachedBlob{
		data:    b2,
		expires: c.Now().Add(c.ttl),
	})

	if c.rdb != nil {
		return c.rdb.Set(ctx, cacheKeyPrefix+key, b2, c.ttl).Err()
	}
	return nil
}

// Get returns the bytes stored under key. The boolean is false when the key
// is absent or expired.
func (c *BlobCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok := c.local.Get(key); ok {
		blob := v.(*cachedBlob)
		if c.Now().Before(blob.expires) {
			val, err := Decompress(blob.data)
			if err != nil {
				return nil, false, err
			}
			return val, true, nil
		}
		c.local.Remove(key)
	}

	if c.rdb == nil {
		return nil, false, nil
	}

	val, err := c.rdb.Get(ctx, cacheKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	ttl, err := c.rdb.TTL(ctx, cacheKeyPrefix+key).Result()
	if err != nil || ttl <= 0 {
		ttl = c.ttl
	}
	c.local.Add(key, &cachedBlob{
		data:    val,
		expires: c.Now().Add(ttl),
	})

	out, err := Decompress(val)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// Len returns the number of entries in the local tier
func (c *BlobCache) Len() int {
	return c.local.Len()
}

// Purge removes every entry from both tiers
func (c *BlobCache) Purge(ctx context.Context) error {
	c.local.Purge()

	if c.rdb == nil {
		return nil
	}

	iter := c.rdb.Scan(ctx, 0, cacheKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
