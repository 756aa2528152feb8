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

// Package txpool implements the pending-transaction set: a per-sender
// nonce-ordered queue with arrival-order selection across senders, plus the
// impersonation registry consulted at submission time.
package txpool

import (
	"errors"
	"fmt"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/btree"
	"github.com/ledgerwatch/log/v3"

	"github.com/zkstack/zkanvil/core/types"
	"github.com/zkstack/zkanvil/params"
)

var (
	// ErrDuplicate rejects a hash already pending.
	ErrDuplicate = errors.New("transaction already in pool")

	// ErrNonceTooLow rejects a nonce below the account's next expected one.
	ErrNonceTooLow = errors.New("nonce too low")

	// ErrNonceOccupied rejects a nonce already pending for the sender.
	ErrNonceOccupied = errors.New("nonce already pending")

	// ErrGasLimitTooHigh rejects a gas limit above the per-transaction cap.
	ErrGasLimitTooHigh = errors.New("transaction gas limit too high")

	// ErrNotImpersonated rejects an unsigned submission for an address not
	// registered for impersonation.
	ErrNotImpersonated = errors.New("sender is not impersonated")
)

type entry struct {
	tx      *types.Transaction
	arrival uint64
}

func entryLess(a, b *entry) bool { return a.tx.Nonce() < b.tx.Nonce() }

// Pool is the mempool. The sequencer drains it, the RPC layer fills it.
type Pool struct {
	mu sync.Mutex

	bySender map[common.Address]*btree.BTreeG[*entry]
	byHash   map[common.Hash]*entry
	seq      uint64

	impersonated    mapset.Set[common.Address]
	autoImpersonate bool

	logger log.Logger
}

// New creates an empty pool.
func New(logger log.Logger) *Pool {
	return &Pool{
		bySender:     make(map[common.Address]*btree.BTreeG[*entry]),
		byHash:       make(map[common.Hash]*entry),
		impersonated: mapset.NewSet[common.Address](),
		logger:       logger.New("component", "txpool"),
	}
}

// Impersonate registers addr for signature-free submissions.
func (p *Pool) Impersonate(addr common.Address) {
	p.impersonated.Add(addr)
	p.logger.Debug("impersonating account", "addr", addr)
}

// StopImpersonating removes addr from the impersonation set. Idempotent.
func (p *Pool) StopImpersonating(addr common.Address) {
	p.impersonated.Remove(addr)
}

// SetAutoImpersonate extends impersonation to every address seen.
func (p *Pool) SetAutoImpersonate(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.autoImpersonate = on
}

// IsImpersonated reports whether signature validation is skipped for addr.
func (p *Pool) IsImpersonated(addr common.Address) bool {
	p.mu.Lock()
	auto := p.autoImpersonate
	p.mu.Unlock()
	return auto || p.impersonated.Contains(addr)
}

// Submit validates and enqueues a transaction. accountNonce is the sender's
// current tx nonce in state; the pool accepts nonces at or above it, one
// pending transaction per nonce.
func (p *Pool) Submit(tx *types.Transaction, accountNonce uint64) error {
	if tx.Gas() > params.MaxTxGasLimit {
		return fmt.Errorf("%w: %d > %d", ErrGasLimitTooHigh, tx.Gas(), params.MaxTxGasLimit)
	}
	if tx.Impersonated() && !p.IsImpersonated(tx.From()) {
		return fmt.Errorf("%w: %s", ErrNotImpersonated, tx.From())
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.byHash[tx.Hash()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, tx.Hash())
	}
	if tx.Nonce() < accountNonce {
		return fmt.Errorf("%w: got %d, expected >= %d", ErrNonceTooLow, tx.Nonce(), accountNonce)
	}

	queue, ok := p.bySender[tx.From()]
	if !ok {
		queue = btree.NewG[*entry](16, entryLess)
		p.bySender[tx.From()] = queue
	}
	probe := &entry{tx: tx}
	if _, occupied := queue.Get(probe); occupied {
		return fmt.Errorf("%w: sender %s nonce %d", ErrNonceOccupied, tx.From(), tx.Nonce())
	}

	e := &entry{tx: tx, arrival: p.seq}
	p.seq++
	queue.ReplaceOrInsert(e)
	p.byHash[tx.Hash()] = e
	p.logger.Debug("queued transaction", "hash", tx.Hash(), "from", tx.From(), "nonce", tx.Nonce())
	return nil
}

// Drop removes a pending transaction. Idempotent.
func (p *Pool) Drop(hash common.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.remove(hash)
}

func (p *Pool) remove(hash common.Hash) {
	e, ok := p.byHash[hash]
	if !ok {
		return
	}
	delete(p.byHash, hash)
	if queue, ok := p.bySender[e.tx.From()]; ok {
		queue.Delete(e)
		if queue.Len() == 0 {
			delete(p.bySender, e.tx.From())
		}
	}
}

// Len returns the number of pending transactions.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byHash)
}

// TakeNextBatch pops up to limit transactions in arrival order, respecting
// per-sender nonce order and stopping before the aggregate gas of the batch
// would exceed gasBudget. A sender's later nonces stay queued when an
// earlier one does not fit.
func (p *Pool) TakeNextBatch(limit int, gasBudget uint64) []*types.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []*types.Transaction
	var gasUsed uint64
	blocked := make(map[common.Address]bool)

	for len(out) < limit {
		var best *entry
		for sender, queue := range p.bySender {
			if blocked[sender] {
				continue
			}
			head, ok := queue.Min()
			if !ok {
				continue
			}
			if best == nil || head.arrival < best.arrival {
				best = head
			}
		}
		if best == nil {
			break
		}
		if gasUsed+best.tx.Gas() > gasBudget {
			if len(out) > 0 {
				break
			}
			// a single transaction over budget blocks its sender, others
			// may still fit
			blocked[best.tx.From()] = true
			continue
		}
		gasUsed += best.tx.Gas()
		out = append(out, best.tx)
		p.remove(best.tx.Hash())
	}
	return out
}

// Snapshot captures the pool contents and impersonation registry.
type Snapshot struct {
	Txs             []*types.Transaction
	Arrivals        []uint64
	Impersonated    []common.Address
	AutoImpersonate bool
	Seq             uint64
}

// Capture returns a copy of the pool state for the snapshot manager.
func (p *Pool) Capture() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Snapshot{
		Impersonated:    p.impersonated.ToSlice(),
		AutoImpersonate: p.autoImpersonate,
		Seq:             p.seq,
	}
	for _, e := range p.byHash {
		s.Txs = append(s.Txs, e.tx)
		s.Arrivals = append(s.Arrivals, e.arrival)
	}
	return s
}

// Restore replaces the pool state with a captured snapshot.
func (p *Pool) Restore(s Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bySender = make(map[common.Address]*btree.BTreeG[*entry])
	p.byHash = make(map[common.Hash]*entry)
	p.impersonated = mapset.NewSet(s.Impersonated...)
	p.autoImpersonate = s.AutoImpersonate
	p.seq = s.Seq
	for i, tx := range s.Txs {
		e := &entry{tx: tx, arrival: s.Arrivals[i]}
		queue, ok := p.bySender[tx.From()]
		if !ok {
			queue = btree.NewG[*entry](16, entryLess)
			p.bySender[tx.From()] = queue
		}
		queue.ReplaceOrInsert(e)
		p.byHash[tx.Hash()] = e
	}
}
