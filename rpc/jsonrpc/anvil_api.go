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
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/zkstack/zkanvil/node"
)

// AnvilAPI is the admin namespace. Every method routes through the same
// sequencer operation the matching cheatcode uses.
type AnvilAPI interface {
	SetBalance(ctx context.Context, address common.Address, balance *hexutil.Big) (bool, error)
	SetNonce(ctx context.Context, address common.Address, nonce hexutil.Uint64) (bool, error)
	SetCode(ctx context.Context, address common.Address, code hexutil.Bytes) error
	SetStorageAt(ctx context.Context, address common.Address, slot common.Hash, value common.Hash) (bool, error)

	SetNextBlockBaseFeePerGas(ctx context.Context, fee *hexutil.Big) error
	SetBlockTimestampInterval(ctx context.Context, seconds hexutil.Uint64) error
	RemoveBlockTimestampInterval(ctx context.Context) (bool, error)
	SetTime(ctx context.Context, timestamp hexutil.Uint64) (int64, error)
	SetNextBlockTimestamp(ctx context.Context, timestamp hexutil.Uint64) error
	IncreaseTime(ctx context.Context, seconds hexutil.Uint64) error
	Mine(ctx context.Context, blocks *hexutil.Uint64, interval *hexutil.Uint64) error

	ImpersonateAccount(ctx context.Context, address common.Address) error
	StopImpersonatingAccount(ctx context.Context, address common.Address) error
	AutoImpersonateAccount(ctx context.Context, enabled bool) error

	Snapshot(ctx context.Context) (hexutil.Uint64, error)
	Revert(ctx context.Context, id hexutil.Uint64) (bool, error)

	SetLoggingEnabled(ctx context.Context, enabled bool) error
	GetAutomine(ctx context.Context) (bool, error)
	SetIntervalMining(ctx context.Context, seconds hexutil.Uint64) error
}

// AnvilAPIImpl is implementation of the AnvilAPI interface.
type AnvilAPIImpl struct {
	*BaseAPI
}

// NewAnvilAPI returns AnvilAPIImpl instance.
func NewAnvilAPI(base *BaseAPI) *AnvilAPIImpl {
	return &AnvilAPIImpl{BaseAPI: base}
}

// SetBalance implements anvil_setBalance.
func (api *AnvilAPIImpl) SetBalance(ctx context.Context, address common.Address, balance *hexutil.Big) (bool, error) {
	amount, overflow := uint256.FromBig(balance.ToInt())
	if overflow {
		return false, ErrValueOutOfRange
	}
	if err := api.seq.SetBalance(ctx, address, amount); err != nil {
		return false, err
	}
	return true, nil
}

// SetNonce implements anvil_setNonce. Decreases are accepted silently.
func (api *AnvilAPIImpl) SetNonce(ctx context.Context, address common.Address, nonce hexutil.Uint64) (bool, error) {
	if err := api.seq.SetNonce(ctx, address, uint64(nonce)); err != nil {
		return false, err
	}
	return true, nil
}

// SetCode implements anvil_setCode. Storage at the target is retained.
func (api *AnvilAPIImpl) SetCode(ctx context.Context, address common.Address, code hexutil.Bytes) error {
	return api.seq.SetCode(ctx, address, code, crypto.Keccak256Hash(code))
}

// SetStorageAt implements anvil_setStorageAt.
func (api *AnvilAPIImpl) SetStorageAt(ctx context.Context, address common.Address, slot common.Hash, value common.Hash) (bool, error) {
	if err := api.seq.SetStorage(ctx, address, slot, value); err != nil {
		return false, err
	}
	return true, nil
}

// SetNextBlockBaseFeePerGas implements anvil_setNextBlockBaseFeePerGas.
// The override applies to exactly one block.
func (api *AnvilAPIImpl) SetNextBlockBaseFeePerGas(ctx context.Context, fee *hexutil.Big) error {
	amount, overflow := uint256.FromBig(fee.ToInt())
	if overflow {
		return ErrValueOutOfRange
	}
	return api.seq.SetNextBlockBaseFee(ctx, amount)
}

// SetBlockTimestampInterval implements anvil_setBlockTimestampInterval.
func (api *AnvilAPIImpl) SetBlockTimestampInterval(ctx context.Context, seconds hexutil.Uint64) error {
	return api.seq.SetTimestampInterval(ctx, uint64(seconds))
}

// RemoveBlockTimestampInterval implements anvil_removeBlockTimestampInterval.
func (api *AnvilAPIImpl) RemoveBlockTimestampInterval(ctx context.Context) (bool, error) {
	if err := api.seq.RemoveTimestampInterval(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// SetTime implements anvil_setTime: an unchecked reset returning the signed
// offset from the previous clock value.
func (api *AnvilAPIImpl) SetTime(ctx context.Context, timestamp hexutil.Uint64) (int64, error) {
	return api.seq.SetTime(ctx, uint64(timestamp))
}

// SetNextBlockTimestamp implements anvil_setNextBlockTimestamp. The value
// must be ahead of the clock and is consumed by the next sealed block.
func (api *AnvilAPIImpl) SetNextBlockTimestamp(ctx context.Context, timestamp hexutil.Uint64) error {
	return api.seq.SetNextBlockTimestamp(ctx, uint64(timestamp))
}

// IncreaseTime implements anvil_increaseTime.
func (api *AnvilAPIImpl) IncreaseTime(ctx context.Context, seconds hexutil.Uint64) error {
	return api.seq.IncreaseTime(ctx, uint64(seconds))
}

// Mine implements anvil_mine: seal n empty blocks, optionally advancing the
// clock between seals.
func (api *AnvilAPIImpl) Mine(ctx context.Context, blocks *hexutil.Uint64, interval *hexutil.Uint64) error {
	n := uint64(1)
	if blocks != nil {
		n = uint64(*blocks)
	}
	step := uint64(0)
	if interval != nil {
		step = uint64(*interval)
	}
	return api.seq.Mine(ctx, n, step)
}

// ImpersonateAccount implements anvil_impersonateAccount.
func (api *AnvilAPIImpl) ImpersonateAccount(_ context.Context, address common.Address) error {
	api.seq.Pool().Impersonate(address)
	api.logger.Info("impersonating account", "address", address)
	return nil
}

// StopImpersonatingAccount implements anvil_stopImpersonatingAccount.
func (api *AnvilAPIImpl) StopImpersonatingAccount(_ context.Context, address common.Address) error {
	api.seq.Pool().StopImpersonating(address)
	return nil
}

// AutoImpersonateAccount implements anvil_autoImpersonateAccount.
func (api *AnvilAPIImpl) AutoImpersonateAccount(_ context.Context, enabled bool) error {
	api.seq.Pool().SetAutoImpersonate(enabled)
	return nil
}

// Snapshot implements anvil_snapshot.
func (api *AnvilAPIImpl) Snapshot(ctx context.Context) (hexutil.Uint64, error) {
	id, err := api.seq.Snapshot(ctx)
	return hexutil.Uint64(id), err
}

// Revert implements anvil_revert. Reverting invalidates the id and every
// later one.
func (api *AnvilAPIImpl) Revert(ctx context.Context, id hexutil.Uint64) (bool, error) {
	return api.seq.RevertSnapshot(ctx, uint64(id))
}

// SetLoggingEnabled implements anvil_setLoggingEnabled.
func (api *AnvilAPIImpl) SetLoggingEnabled(_ context.Context, enabled bool) error {
	api.obs.SetLoggingEnabled(enabled)
	return nil
}

// GetAutomine implements anvil_getAutomine: true in immediate-seal mode.
func (api *AnvilAPIImpl) GetAutomine(ctx context.Context) (bool, error) {
	mode, err := api.seq.GetSealingMode(ctx)
	if err != nil {
		return false, err
	}
	return mode == node.SealImmediate, nil
}

// SetIntervalMining implements anvil_setIntervalMining. Zero seconds
// switches back to immediate sealing.
func (api *AnvilAPIImpl) SetIntervalMining(ctx context.Context, seconds hexutil.Uint64) error {
	if seconds == 0 {
		return api.seq.SetSealingMode(ctx, node.SealImmediate, 0)
	}
	return api.seq.SetSealingMode(ctx, node.SealFixedTime, time.Duration(seconds)*time.Second)
}
