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
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Header is a sealed block header. Immutable after sealing.
type Header struct {
	Number        uint64
	Hash          common.Hash
	ParentHash    common.Hash
	Timestamp     uint64
	BaseFee       *uint256.Int
	GasLimit      uint64
	GasUsed       uint64
	L1BatchNumber uint64
}

// Block is a sealed header plus the ordered hashes of the transactions it
// includes.
type Block struct {
	Header
	Transactions []common.Hash
}

// SealHash derives the deterministic block hash over the header fields and
// the included transaction hashes. Called exactly once when the block is
// sealed.
func SealHash(number uint64, parent common.Hash, timestamp uint64, txs []common.Hash) common.Hash {
	buf := make([]byte, 0, 16+32+32*len(txs))
	buf = binary.BigEndian.AppendUint64(buf, number)
	buf = binary.BigEndian.AppendUint64(buf, timestamp)
	buf = append(buf, parent.Bytes()...)
	for _, h := range txs {
		buf = append(buf, h.Bytes()...)
	}
	return crypto.Keccak256Hash(buf)
}
