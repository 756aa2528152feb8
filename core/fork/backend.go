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
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/ledgerwatch/log/v3"
)

// cached values carry a presence byte so negative answers are remembered
// and never re-fetched.
const (
	markerAbsent  = 0
	markerPresent = 1
)

// Backend answers state reads by consulting the remote node at a pinned
// block, caching every answer. The fork block never moves after
// construction.
type Backend struct {
	client RemoteClient
	cache  Cache
	block  uint64
	logger log.Logger

	// mu serializes remote fetches so concurrent misses on the same key
	// collapse into one outbound request.
	mu sync.Mutex

	onRemoteFetch func() // metrics hook, may be nil
}

// NewBackend wraps client pinned at block.
func NewBackend(client RemoteClient, cache Cache, block uint64, logger log.Logger) *Backend {
	return &Backend{
		client: client,
		cache:  cache,
		block:  block,
		logger: logger.New("component", "fork", "block", block),
	}
}

// Block returns the pinned fork block number.
func (b *Backend) Block() uint64 { return b.block }

// SetFetchHook installs a callback invoked on every outbound remote request.
func (b *Backend) SetFetchHook(fn func()) { b.onRemoteFetch = fn }

// Close releases the cache and the remote connection.
func (b *Backend) Close() error {
	b.client.Close()
	return b.cache.Close()
}

func (b *Backend) blockBig() *big.Int { return new(big.Int).SetUint64(b.block) }

// fetch resolves key through the cache, calling remote under the lock on a
// miss. remote returns the raw value or nil for "missing".
func (b *Backend) fetch(ctx context.Context, key string, remote func() ([]byte, error)) ([]byte, bool, error) {
	if v, ok := b.cache.Get(key); ok {
		return decodeCached(v)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if v, ok := b.cache.Get(key); ok {
		return decodeCached(v)
	}

	if b.onRemoteFetch != nil {
		b.onRemoteFetch()
	}
	var raw []byte
	err := withRetry(ctx, func() error {
		var inner error
		raw, inner = remote()
		return inner
	})
	if err != nil {
		b.logger.Warn("remote fetch failed", "key", key, "err", err)
		return nil, false, err
	}
	b.cache.Put(key, encodeCached(raw))
	b.logger.Trace("remote fetch", "key", key, "present", raw != nil)
	return raw, raw != nil, nil
}

func encodeCached(raw []byte) []byte {
	if raw == nil {
		return []byte{markerAbsent}
	}
	return append([]byte{markerPresent}, raw...)
}

func decodeCached(v []byte) ([]byte, bool, error) {
	if len(v) == 0 || v[0] == markerAbsent {
		return nil, false, nil
	}
	return v[1:], true, nil
}

// Slot implements state.ForkReader.
func (b *Backend) Slot(ctx context.Context, addr common.Address, idx common.Hash) (common.Hash, error) {
	key := fmt.Sprintf("slot/%x/%x@%d", addr, idx, b.block)
	raw, ok, err := b.fetch(ctx, key, func() ([]byte, error) {
		return b.client.StorageAt(ctx, addr, idx, b.blockBig())
	})
	if err != nil || !ok {
		return common.Hash{}, err
	}
	return common.BytesToHash(raw), nil
}

// Balance implements state.ForkReader.
func (b *Backend) Balance(ctx context.Context, addr common.Address) (*uint256.Int, error) {
	key := fmt.Sprintf("balance/%x@%d", addr, b.block)
	raw, ok, err := b.fetch(ctx, key, func() ([]byte, error) {
		v, err := b.client.BalanceAt(ctx, addr, b.blockBig())
		if err != nil {
			return nil, err
		}
		return v.Bytes(), nil
	})
	if err != nil || !ok {
		return new(uint256.Int), err
	}
	return new(uint256.Int).SetBytes(raw), nil
}

// TxNonce implements state.ForkReader.
func (b *Backend) TxNonce(ctx context.Context, addr common.Address) (uint64, error) {
	key := fmt.Sprintf("nonce/%x@%d", addr, b.block)
	raw, ok, err := b.fetch(ctx, key, func() ([]byte, error) {
		n, err := b.client.NonceAt(ctx, addr, b.blockBig())
		if err != nil {
			return nil, err
		}
		return binary.BigEndian.AppendUint64(nil, n), nil
	})
	if err != nil || !ok {
		return 0, err
	}
	return binary.BigEndian.Uint64(raw), nil
}

// Code implements state.ForkReader.
func (b *Backend) Code(ctx context.Context, addr common.Address) ([]byte, error) {
	key := fmt.Sprintf("code/%x@%d", addr, b.block)
	raw, ok, err := b.fetch(ctx, key, func() ([]byte, error) {
		code, err := b.client.CodeAt(ctx, addr, b.blockBig())
		if err != nil {
			return nil, err
		}
		if len(code) == 0 {
			return nil, nil
		}
		return code, nil
	})
	if err != nil || !ok {
		return nil, err
	}
	return raw, nil
}
