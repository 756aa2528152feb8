// Copyright 2025 The zkanvil Authors
// This file is part of zkanvil.
//
// zkanvil is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// zkanvil is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with zkanvil. If not, see <http://www.gnu.org/licenses/>.

package fork

import (
	"fmt"

	"github.com/cockroachdb/pebble"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache stores remote answers keyed by resource key. Entries are write-once:
// a key is never overwritten with a different value.
type Cache interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte)
	Close() error
}

// memoryCache is an LRU-bounded in-process cache, the default.
type memoryCache struct {
	inner *lru.Cache[string, []byte]
}

// NewMemoryCache creates an in-memory cache holding up to size entries.
func NewMemoryCache(size int) (Cache, error) {
	inner, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &memoryCache{inner: inner}, nil
}

func (c *memoryCache) Get(key string) ([]byte, bool) { return c.inner.Get(key) }
func (c *memoryCache) Put(key string, value []byte)  { c.inner.Add(key, value) }
func (c *memoryCache) Close() error                  { return nil }

// diskCache persists answers in a pebble database so a restarted node forked
// at the same block reuses them.
type diskCache struct {
	db *pebble.DB
}

// NewDiskCache opens (or creates) a pebble-backed cache under dir.
func NewDiskCache(dir string) (Cache, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open fork cache at %s: %w", dir, err)
	}
	return &diskCache{db: db}, nil
}

func (c *diskCache) Get(key string) ([]byte, bool) {
	val, closer, err := c.db.Get([]byte(key))
	if err != nil {
		return nil, false
	}
	out := make([]byte, len(val))
	copy(out, val)
	_ = closer.Close()
	return out, true
}

func (c *diskCache) Put(key string, value []byte) {
	_ = c.db.Set([]byte(key), value, pebble.NoSync)
}

func (c *diskCache) Close() error { return c.db.Close() }
