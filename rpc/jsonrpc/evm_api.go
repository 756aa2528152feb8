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

package jsonrpc

import (
	"context"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// EvmAPI is the ganache-compatible alias namespace.
type EvmAPI interface {
	Mine(ctx context.Context) (string, error)
	IncreaseTime(ctx context.Context, seconds hexutil.Uint64) (int64, error)
	SetNextBlockTimestamp(ctx context.Context, timestamp hexutil.Uint64) error
	SetTime(ctx context.Context, timestamp hexutil.Uint64) (int64, error)
	Snapshot(ctx context.Context) (hexutil.Uint64, error)
	Revert(ctx context.Context, id hexutil.Uint64) (bool, error)
}

// EvmAPIImpl is implementation of the EvmAPI interface.
type EvmAPIImpl struct {
	*BaseAPI
}

// NewEvmAPI returns EvmAPIImpl instance.
func NewEvmAPI(base *BaseAPI) *EvmAPIImpl {
	return &EvmAPIImpl{BaseAPI: base}
}

// Mine implements evm_mine: one empty block, no extra clock step. Ganache
// returns the literal "0x0" on success.
func (api *EvmAPIImpl) Mine(ctx context.Context) (string, error) {
	if err := api.seq.Mine(ctx, 1, 0); err != nil {
		return "", err
	}
	return "0x0", nil
}

// IncreaseTime implements evm_increaseTime, returning the applied delta.
func (api *EvmAPIImpl) IncreaseTime(ctx context.Context, seconds hexutil.Uint64) (int64, error) {
	if err := api.seq.IncreaseTime(ctx, uint64(seconds)); err != nil {
		return 0, err
	}
	return int64(seconds), nil
}

// SetNextBlockTimestamp implements evm_setNextBlockTimestamp.
func (api *EvmAPIImpl) SetNextBlockTimestamp(ctx context.Context, timestamp hexutil.Uint64) error {
	return api.seq.SetNextBlockTimestamp(ctx, uint64(timestamp))
}

// SetTime implements evm_setTime: unchecked, returns the signed offset.
func (api *EvmAPIImpl) SetTime(ctx context.Context, timestamp hexutil.Uint64) (int64, error) {
	return api.seq.SetTime(ctx, uint64(timestamp))
}

// Snapshot implements evm_snapshot.
func (api *EvmAPIImpl) Snapshot(ctx context.Context) (hexutil.Uint64, error) {
	id, err := api.seq.Snapshot(ctx)
	return hexutil.Uint64(id), err
}

// Revert implements evm_revert.
func (api *EvmAPIImpl) Revert(ctx context.Context, id hexutil.Uint64) (bool, error) {
	return api.seq.RevertSnapshot(ctx, uint64(id))
}
