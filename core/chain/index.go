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

// Package chain holds the append-only chain index: sealed headers, bodies,
// receipts, traces, transaction lookups and the L1 batch registry. The
// sequencer is the only writer; RPC reads go through shared locks.
package chain

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/zkstack/zkanvil/core/types"
)

var (
	// ErrNonSequentialBlock is returned when an appended block does not
	// extend the chain tip by exactly one.
	ErrNonSequentialBlock = errors.New("non-sequential block")

	// ErrBackwardTimestamp is returned when an appended block does not move
	// time strictly forward.
	ErrBackwardTimestamp = errors.New("block timestamp not increasing")
)

// TxLocation points a transaction hash at its including block.
type TxLocation struct {
	BlockNumber uint64
	BlockHash   common.Hash
	Index       uint64
}

// Index is the in-memory chain database.
type Index struct {
	mu sync.RWMutex

	blocks       []*types.Block
	hashToNumber map[common.Hash]uint64
	receipts     map[common.Hash]*types.Receipt
	traces       map[common.Hash]*types.CallTrace
	txs          map[common.Hash]*types.Transaction
	txLookup     map[common.Hash]TxLocation
	batches      []*types.L1Batch
}

// NewIndex creates an empty chain index. The genesis block is appended by
// the sequencer during startup.
func NewIndex() *Index {
	return &Index{
		hashToNumber: make(map[common.Hash]uint64),
		receipts:     make(map[common.Hash]*types.Receipt),
		traces:       make(map[common.Hash]*types.CallTrace),
		txs:          make(map[common.Hash]*types.Transaction),
		txLookup:     make(map[common.Hash]TxLocation),
	}
}

// Append seals one block into the index together with its batch, receipts,
// traces and transaction bodies. The block must extend the current tip.
func (ix *Index) Append(block *types.Block, batch *types.L1Batch, txs []*types.Transaction, receipts []*types.Receipt, traces map[common.Hash]*types.CallTrace) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if want := uint64(len(ix.blocks)); block.Number != want {
		return fmt.Errorf("%w: got %d, want %d", ErrNonSequentialBlock, block.Number, want)
	}
	if n := len(ix.blocks); n > 0 {
		tip := ix.blocks[n-1]
		if block.ParentHash != tip.Hash {
			return fmt.Errorf("%w: parent %x does not match tip %x", ErrNonSequentialBlock, block.ParentHash, tip.Hash)
		}
		if block.Timestamp <= tip.Timestamp {
			return fmt.Errorf("%w: %d <= %d", ErrBackwardTimestamp, block.Timestamp, tip.Timestamp)
		}
	}

	ix.blocks = append(ix.blocks, block)
	ix.hashToNumber[block.Hash] = block.Number
	ix.batches = append(ix.batches, batch)
	for i, tx := range txs {
		h := tx.Hash()
		ix.txs[h] = tx
		ix.txLookup[h] = TxLocation{BlockNumber: block.Number, BlockHash: block.Hash, Index: uint64(i)}
	}
	for _, r := range receipts {
		ix.receipts[r.TxHash] = r
	}
	for h, t := range traces {
		ix.traces[h] = t
	}
	return nil
}

// Head returns the latest block number. The second return is false before
// genesis is sealed.
func (ix *Index) Head() (uint64, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if len(ix.blocks) == 0 {
		return 0, false
	}
	return uint64(len(ix.blocks) - 1), true
}

// Len returns the number of sealed blocks. Captured by the snapshot
// manager.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.blocks)
}

// Latest returns the chain tip, nil before genesis.
func (ix *Index) Latest() *types.Block {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if len(ix.blocks) == 0 {
		return nil
	}
	return ix.blocks[len(ix.blocks)-1]
}

// BlockByNumber returns the block at number, nil when out of range.
func (ix *Index) BlockByNumber(number uint64) *types.Block {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if number >= uint64(len(ix.blocks)) {
		return nil
	}
	return ix.blocks[number]
}

// BlockByHash returns the block with the given hash, nil when unknown.
func (ix *Index) BlockByHash(hash common.Hash) *types.Block {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	n, ok := ix.hashToNumber[hash]
	if !ok {
		return nil
	}
	return ix.blocks[n]
}

// Receipt returns the receipt of an included transaction, nil when unknown.
func (ix *Index) Receipt(txHash common.Hash) *types.Receipt {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.receipts[txHash]
}

// Trace returns the call trace of an included transaction, nil when
// unknown.
func (ix *Index) Trace(txHash common.Hash) *types.CallTrace {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.traces[txHash]
}

// Transaction returns an included transaction and its location.
func (ix *Index) Transaction(txHash common.Hash) (*types.Transaction, TxLocation, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	tx, ok := ix.txs[txHash]
	if !ok {
		return nil, TxLocation{}, false
	}
	return tx, ix.txLookup[txHash], true
}

// Batch returns the L1 batch with the given number, nil when unknown.
// Batches are numbered from zero in lockstep with blocks.
func (ix *Index) Batch(number uint64) *types.L1Batch {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if number >= uint64(len(ix.batches)) {
		return nil
	}
	return ix.batches[number]
}

// BaseFeeHistory returns the base fees of the most recent count blocks,
// oldest first.
func (ix *Index) BaseFeeHistory(count int) []*uint256.Int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if count > len(ix.blocks) {
		count = len(ix.blocks)
	}
	out := make([]*uint256.Int, 0, count)
	for _, b := range ix.blocks[len(ix.blocks)-count:] {
		out = append(out, b.BaseFee)
	}
	return out
}

// TruncateTo discards every block beyond length, together with the
// receipts, traces and transactions it introduced. Used by the snapshot
// manager to restore a captured chain length.
func (ix *Index) TruncateTo(length int) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if length >= len(ix.blocks) {
		return
	}
	for _, b := range ix.blocks[length:] {
		delete(ix.hashToNumber, b.Hash)
		for _, h := range b.Transactions {
			delete(ix.receipts, h)
			delete(ix.traces, h)
			delete(ix.txs, h)
			delete(ix.txLookup, h)
		}
	}
	ix.blocks = ix.blocks[:length]
	if length < len(ix.batches) {
		ix.batches = ix.batches[:length]
	}
}
