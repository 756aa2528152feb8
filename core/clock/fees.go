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

package clock

import (
	"sync"

	"github.com/holiman/uint256"

	"github.com/zkstack/zkanvil/params"
)

// FeeOracle computes per-block base fees and gas prices from the configured
// fee inputs, with a one-shot next-block base fee override.
type FeeOracle struct {
	mu sync.Mutex

	l1GasPrice       uint64
	l2GasPrice       uint64
	fairPubdataPrice uint64
	nextBaseFee      *uint256.Int
}

// NewFeeOracle creates an oracle with the given fee inputs; zero values
// select the protocol defaults.
func NewFeeOracle(l1GasPrice, l2GasPrice, pubdataPrice uint64) *FeeOracle {
	if l1GasPrice == 0 {
		l1GasPrice = params.DefaultL1GasPrice
	}
	if l2GasPrice == 0 {
		l2GasPrice = params.DefaultL2GasPrice
	}
	if pubdataPrice == 0 {
		pubdataPrice = params.DefaultFairPubdataPrice
	}
	return &FeeOracle{
		l1GasPrice:       l1GasPrice,
		l2GasPrice:       l2GasPrice,
		fairPubdataPrice: pubdataPrice,
	}
}

// GasPrice returns the fair L2 gas price quoted to eth_gasPrice.
func (f *FeeOracle) GasPrice() *uint256.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint256.NewInt(f.l2GasPrice)
}

// L1GasPrice returns the L1 gas price input of the fee model.
func (f *FeeOracle) L1GasPrice() *uint256.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint256.NewInt(f.l1GasPrice)
}

// FairPubdataPrice returns the per-pubdata-byte price.
func (f *FeeOracle) FairPubdataPrice() *uint256.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint256.NewInt(f.fairPubdataPrice)
}

// SetNextBlockBaseFee arms a one-shot base fee override consumed by the
// next sealed block.
func (f *FeeOracle) SetNextBlockBaseFee(fee *uint256.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextBaseFee = new(uint256.Int).Set(fee)
}

// BaseFeeForNextBlock returns the base fee of the block being sealed,
// consuming the override if one is armed.
func (f *FeeOracle) BaseFeeForNextBlock() *uint256.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nextBaseFee != nil {
		fee := f.nextBaseFee
		f.nextBaseFee = nil
		return fee
	}
	return uint256.NewInt(f.l2GasPrice)
}

// PendingOverride returns the armed override without consuming it, nil when
// none is armed. Captured by the snapshot manager.
func (f *FeeOracle) PendingOverride() *uint256.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nextBaseFee == nil {
		return nil
	}
	return new(uint256.Int).Set(f.nextBaseFee)
}

// RestoreOverride resets the armed override, nil clearing it.
func (f *FeeOracle) RestoreOverride(fee *uint256.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fee == nil {
		f.nextBaseFee = nil
		return
	}
	f.nextBaseFee = new(uint256.Int).Set(fee)
}
