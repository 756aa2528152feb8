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

package types

import (
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

// Receipt status values.
const (
	ReceiptStatusFailed     = uint64(0)
	ReceiptStatusSuccessful = uint64(1)
)

// Receipt records the outcome of one included transaction. Immutable once
// produced.
type Receipt struct {
	TxHash            common.Hash
	TxIndex           uint64
	From              common.Address
	To                *common.Address
	ContractAddress   *common.Address
	Status            uint64
	GasUsed           uint64
	EffectiveGasPrice *uint256.Int
	Logs              []*ethtypes.Log

	BlockHash     common.Hash
	BlockNumber   uint64
	L1BatchNumber uint64

	// RevertReason carries the raw return data of a reverted execution,
	// empty on success.
	RevertReason []byte
}

// Succeeded reports whether the transaction executed without reverting.
func (r *Receipt) Succeeded() bool { return r.Status == ReceiptStatusSuccessful }
