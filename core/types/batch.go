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

import "github.com/ethereum/go-ethereum/common"

// L1Batch groups sealed blocks destined for one L1 commitment. The node
// seals one block per batch.
type L1Batch struct {
	Number    uint64
	Blocks    []uint64
	Timestamp uint64
	RootHash  common.Hash
}
