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
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRemote struct {
	balances map[common.Address]*big.Int
	slots    map[common.Address]map[common.Hash]common.Hash
	codes    map[common.Address][]byte
	nonces   map[common.Address]uint64
	requests int
	fail     bool
}

func (r *fakeRemote) StorageAt(_ context.Context, addr common.Address, idx common.Hash, _ *big.Int) ([]byte, error) {
	r.requests++
	if r.fail {
		return nil, errors.New("connection refused")
	}
	return r.slots[addr][idx].Bytes(), nil
}

func (r *fakeRemote) BalanceAt(_ context.Context, addr common.Address, _ *big.Int) (*big.Int, error) {
	r.requests++
	if r.fail {
		return nil, errors.New("connection refused")
	}
	if b, ok := r.balances[addr]; ok {
		return b, nil
	}
	return big.NewInt(0), nil
}

func (r *fakeRemote) NonceAt(_ context.Context, addr common.Address, _ *big.Int) (uint64, error) {
	r.requests++
	return r.nonces[addr], nil
}

func (r *fakeRemote) CodeAt(_ context.Context, addr common.Address, _ *big.Int) ([]byte, error) {
	r.requests++
	return r.codes[addr], nil
}

func (r *fakeRemote) BlockByNumber(context.Context, *big.Int) (*ethtypes.Block, error) {
	return nil, errors.New("not implemented")
}

func (r *fakeRemote) TransactionByHash(context.Context, common.Hash) (*ethtypes.Transaction, bool, error) {
	return nil, false, errors.New("not implemented")
}

func (r *fakeRemote) TransactionReceipt(context.Context, common.Hash) (*ethtypes.Receipt, error) {
	return nil, errors.New("not implemented")
}

func (r *fakeRemote) ChainID(context.Context) (*big.Int, error) { return big.NewInt(1), nil }
func (r *fakeRemote) Close()                                    {}

func newBackend(t *testing.T, remote RemoteClient) *Backend {
	t.Helper()
	cache, err := NewMemoryCache(128)
	require.NoError(t, err)
	return NewBackend(remote, cache, 100, log.New())
}

func TestBalanceFetchedOnce(t *testing.T) {
	addr := common.HexToAddress("0x0a")
	remote := &fakeRemote{balances: map[common.Address]*big.Int{addr: big.NewInt(0x100)}}
	b := newBackend(t, remote)

	for i := 0; i < 3; i++ {
		got, err := b.Balance(context.Background(), addr)
		require.NoError(t, err)
		assert.Equal(t, uint256.NewInt(0x100), got)
	}
	assert.Equal(t, 1, remote.requests, "same key must hit the remote exactly once")
}

func TestNegativeAnswerCached(t *testing.T) {
	addr := common.HexToAddress("0x0b")
	remote := &fakeRemote{}
	b := newBackend(t, remote)

	for i := 0; i < 2; i++ {
		code, err := b.Code(context.Background(), addr)
		require.NoError(t, err)
		assert.Nil(t, code)
	}
	assert.Equal(t, 1, remote.requests, "a missing answer is cached like any other")
}

func TestDistinctKeysFetchedSeparately(t *testing.T) {
	addr := common.HexToAddress("0x0c")
	remote := &fakeRemote{slots: map[common.Address]map[common.Hash]common.Hash{
		addr: {
			common.HexToHash("0x01"): common.HexToHash("0xaa"),
			common.HexToHash("0x02"): common.HexToHash("0xbb"),
		},
	}}
	b := newBackend(t, remote)

	v1, err := b.Slot(context.Background(), addr, common.HexToHash("0x01"))
	require.NoError(t, err)
	v2, err := b.Slot(context.Background(), addr, common.HexToHash("0x02"))
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0xaa"), v1)
	assert.Equal(t, common.HexToHash("0xbb"), v2)
	assert.Equal(t, 2, remote.requests)
}

func TestRemoteFailureSurfacesForkUnavailable(t *testing.T) {
	remote := &fakeRemote{fail: true}
	cache, err := NewMemoryCache(16)
	require.NoError(t, err)
	b := NewBackend(remote, cache, 100, log.New())

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // no retry budget, fail fast
	_, err = b.Balance(ctx, common.HexToAddress("0x0d"))
	assert.ErrorIs(t, err, ErrForkUnavailable)
}

func TestDiskCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewDiskCache(dir)
	require.NoError(t, err)

	cache.Put("balance/aa@1", []byte{1, 2, 3})
	got, ok := cache.Get("balance/aa@1")
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, got)

	_, ok = cache.Get("balance/bb@1")
	assert.False(t, ok)
	require.NoError(t, cache.Close())

	// reopened cache still serves the entry
	cache, err = NewDiskCache(dir)
	require.NoError(t, err)
	got, ok = cache.Get("balance/aa@1")
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, got)
	require.NoError(t, cache.Close())
}
