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

package chain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zkstack/zkanvil/core/types"
)

func sealBlock(t *testing.T, ix *Index, timestamp uint64, txs []*types.Transaction) *types.Block {
	t.Helper()
	number := uint64(ix.Len())
	var parent common.Hash
	if tip := ix.Latest(); tip != nil {
		parent = tip.Hash
	}
	hashes := make([]common.Hash, 0, len(txs))
	receipts := make([]*types.Receipt, 0, len(txs))
	for i, tx := range txs {
		hashes = append(hashes, tx.Hash())
		receipts = append(receipts, &types.Receipt{
			TxHash:      tx.Hash(),
			TxIndex:     uint64(i),
			Status:      types.ReceiptStatusSuccessful,
			BlockNumber: number,
		})
	}
	block := &types.Block{
		Header: types.Header{
			Number:        number,
			Hash:          types.SealHash(number, parent, timestamp, hashes),
			ParentHash:    parent,
			Timestamp:     timestamp,
			BaseFee:       uint256.NewInt(100),
			L1BatchNumber: number,
		},
		Transactions: hashes,
	}
	batch := &types.L1Batch{Number: number, Blocks: []uint64{number}, Timestamp: timestamp}
	require.NoError(t, ix.Append(block, batch, txs, receipts, nil))
	return block
}

func makeTx(nonce uint64) *types.Transaction {
	to := common.HexToAddress("0xbeef")
	inner := ethtypes.NewTx(&ethtypes.DynamicFeeTx{Nonce: nonce, To: &to, Value: big.NewInt(1), Gas: 21000, GasFeeCap: big.NewInt(100), GasTipCap: big.NewInt(1)})
	return NewTestTx(inner)
}

// NewTestTx builds an impersonated envelope for index tests.
func NewTestTx(inner *ethtypes.Transaction) *types.Transaction {
	return types.NewImpersonatedTransaction(inner, common.HexToAddress("0x01"))
}

func TestAppendAndLookup(t *testing.T) {
	ix := NewIndex()
	_, ok := ix.Head()
	assert.False(t, ok)

	genesis := sealBlock(t, ix, 1000, nil)
	tx := makeTx(0)
	b1 := sealBlock(t, ix, 1001, []*types.Transaction{tx})

	head, ok := ix.Head()
	require.True(t, ok)
	assert.Equal(t, uint64(1), head)
	assert.Equal(t, b1, ix.Latest())
	assert.Equal(t, genesis, ix.BlockByNumber(0))
	assert.Equal(t, b1, ix.BlockByHash(b1.Hash))
	assert.Nil(t, ix.BlockByNumber(5))

	got, loc, ok := ix.Transaction(tx.Hash())
	require.True(t, ok)
	assert.Equal(t, tx, got)
	assert.Equal(t, uint64(1), loc.BlockNumber)
	assert.Equal(t, b1.Hash, loc.BlockHash)

	r := ix.Receipt(tx.Hash())
	require.NotNil(t, r)
	assert.True(t, r.Succeeded())

	assert.Equal(t, uint64(1), ix.Batch(1).Number)
}

func TestAppendRejectsGaps(t *testing.T) {
	ix := NewIndex()
	sealBlock(t, ix, 1000, nil)

	bad := &types.Block{Header: types.Header{Number: 5, Timestamp: 2000, BaseFee: uint256.NewInt(1)}}
	err := ix.Append(bad, &types.L1Batch{Number: 5}, nil, nil, nil)
	assert.ErrorIs(t, err, ErrNonSequentialBlock)
}

func TestAppendRejectsWrongParent(t *testing.T) {
	ix := NewIndex()
	sealBlock(t, ix, 1000, nil)

	bad := &types.Block{Header: types.Header{
		Number:     1,
		ParentHash: common.HexToHash("0xdead"),
		Timestamp:  2000,
		BaseFee:    uint256.NewInt(1),
	}}
	err := ix.Append(bad, &types.L1Batch{Number: 1}, nil, nil, nil)
	assert.ErrorIs(t, err, ErrNonSequentialBlock)
}

func TestAppendRejectsBackwardTimestamp(t *testing.T) {
	ix := NewIndex()
	tip := sealBlock(t, ix, 1000, nil)

	bad := &types.Block{Header: types.Header{
		Number:     1,
		ParentHash: tip.Hash,
		Timestamp:  1000,
		BaseFee:    uint256.NewInt(1),
	}}
	err := ix.Append(bad, &types.L1Batch{Number: 1}, nil, nil, nil)
	assert.ErrorIs(t, err, ErrBackwardTimestamp)
}

func TestTruncateTo(t *testing.T) {
	ix := NewIndex()
	sealBlock(t, ix, 1000, nil)
	tx := makeTx(0)
	sealBlock(t, ix, 1001, []*types.Transaction{tx})

	ix.TruncateTo(1)

	assert.Equal(t, 1, ix.Len())
	assert.Nil(t, ix.Receipt(tx.Hash()))
	_, _, ok := ix.Transaction(tx.Hash())
	assert.False(t, ok)
	assert.Nil(t, ix.Batch(1))

	// tip can be re-extended after truncation
	sealBlock(t, ix, 1002, nil)
	assert.Equal(t, 2, ix.Len())
}

func TestBaseFeeHistory(t *testing.T) {
	ix := NewIndex()
	sealBlock(t, ix, 1000, nil)
	sealBlock(t, ix, 1001, nil)

	fees := ix.BaseFeeHistory(10)
	require.Len(t, fees, 2)
	assert.Equal(t, uint256.NewInt(100), fees[0])
}
