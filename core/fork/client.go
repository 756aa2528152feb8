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

// Package fork implements lazy read-through to a remote chain pinned at a
// fixed block. Every answer, including "missing", is cached so the remote
// is consulted at most once per key for the lifetime of the fork.
package fork

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ErrForkUnavailable wraps remote failures that survived the retry budget.
// State reads propagate it upward as a VM execution failure.
var ErrForkUnavailable = errors.New("fork backend unavailable")

// RemoteClient is the subset of the remote node API the backend needs.
type RemoteClient interface {
	StorageAt(ctx context.Context, addr common.Address, idx common.Hash, block *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, addr common.Address, block *big.Int) (*big.Int, error)
	NonceAt(ctx context.Context, addr common.Address, block *big.Int) (uint64, error)
	CodeAt(ctx context.Context, addr common.Address, block *big.Int) ([]byte, error)
	BlockByNumber(ctx context.Context, number *big.Int) (*ethtypes.Block, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*ethtypes.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error)
	ChainID(ctx context.Context) (*big.Int, error)
	Close()
}

// Dial connects to a remote JSON-RPC endpoint.
func Dial(ctx context.Context, url string) (RemoteClient, error) {
	c, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrForkUnavailable, url, err)
	}
	return c, nil
}

const (
	retryInitialInterval = 200 * time.Millisecond
	retryMaxElapsed      = 10 * time.Second
)

// withRetry runs op with bounded exponential backoff. The final failure is
// wrapped in ErrForkUnavailable.
func withRetry(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryInitialInterval
	bo.MaxElapsedTime = retryMaxElapsed
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return fmt.Errorf("%w: %v", ErrForkUnavailable, err)
	}
	return nil
}
