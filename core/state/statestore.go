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

// Package state implements the layered key-value store backing VM
// execution. State lives in a stack of copy-on-write layers: reads walk the
// stack top to bottom and fall through to an optional fork reader on a full
// miss, writes always land in the top layer. Pushing a layer is a snapshot,
// dropping it is a revert, merging it down is a commit. All three are O(1)
// in the size of untouched state.
package state

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	// ErrOverflow is returned when a balance mutation would exceed 2^256-1.
	ErrOverflow = errors.New("balance overflow")

	// ErrUnknownLayer is returned when reverting to a layer depth that was
	// never handed out or has already been discarded.
	ErrUnknownLayer = errors.New("unknown state layer")
)

// NoncePair tracks the two rollup nonce counters of an account.
type NoncePair struct {
	Deployment uint64
	Tx         uint64
}

// SlotKey addresses one storage slot.
type SlotKey struct {
	Address common.Address
	Index   common.Hash
}

// ForkReader answers reads that miss every local layer. Implementations
// consult a remote node pinned at the fork block and cache results.
type ForkReader interface {
	Slot(ctx context.Context, addr common.Address, idx common.Hash) (common.Hash, error)
	Balance(ctx context.Context, addr common.Address) (*uint256.Int, error)
	TxNonce(ctx context.Context, addr common.Address) (uint64, error)
	Code(ctx context.Context, addr common.Address) ([]byte, error)
}

type layer struct {
	slots       map[SlotKey]common.Hash
	balances    map[common.Address]*uint256.Int
	nonces      map[common.Address]NoncePair
	codeHashes  map[common.Address]common.Hash
	bytecodes   map[common.Hash][]byte
	factoryDeps map[common.Hash]struct{}
}

func newLayer() *layer {
	return &layer{
		slots:       make(map[SlotKey]common.Hash),
		balances:    make(map[common.Address]*uint256.Int),
		nonces:      make(map[common.Address]NoncePair),
		codeHashes:  make(map[common.Address]common.Hash),
		bytecodes:   make(map[common.Hash][]byte),
		factoryDeps: make(map[common.Hash]struct{}),
	}
}

// mergeInto folds l into dst, l winning on conflicts.
func (l *layer) mergeInto(dst *layer) {
	for k, v := range l.slots {
		dst.slots[k] = v
	}
	for k, v := range l.balances {
		dst.balances[k] = v
	}
	for k, v := range l.nonces {
		dst.nonces[k] = v
	}
	for k, v := range l.codeHashes {
		dst.codeHashes[k] = v
	}
	for k, v := range l.bytecodes {
		dst.bytecodes[k] = v
	}
	for k := range l.factoryDeps {
		dst.factoryDeps[k] = struct{}{}
	}
}

// Store is the layered state store. A nil fork reader means misses resolve
// to zero values (fresh chain).
type Store struct {
	mu     sync.RWMutex
	layers []*layer
	fork   ForkReader
}

// New creates a store with a single empty base layer.
func New(fork ForkReader) *Store {
	return &Store{layers: []*layer{newLayer()}, fork: fork}
}

// Depth returns the number of layers currently stacked. Used by the
// snapshot manager to record and restore layer boundaries.
func (s *Store) Depth() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.layers)
}

// Push opens a fresh overlay layer and returns the new depth.
func (s *Store) Push() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layers = append(s.layers, newLayer())
	return len(s.layers)
}

// RevertTo discards every layer above depth. Depth must be at least 1 (the
// base layer is never discarded) and no larger than the current stack.
func (s *Store) RevertTo(depth int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if depth < 1 || depth > len(s.layers) {
		return fmt.Errorf("%w: depth %d, have %d", ErrUnknownLayer, depth, len(s.layers))
	}
	s.layers = s.layers[:depth]
	return nil
}

// CommitTop merges the top layer into the layer below and pops it. A
// single-layer stack is a no-op.
func (s *Store) CommitTop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.layers)
	if n < 2 {
		return
	}
	s.layers[n-1].mergeInto(s.layers[n-2])
	s.layers = s.layers[:n-1]
}

// DropTop discards the top layer without merging. A single-layer stack is a
// no-op.
func (s *Store) DropTop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.layers); n > 1 {
		s.layers = s.layers[:n-1]
	}
}

func (s *Store) top() *layer { return s.layers[len(s.layers)-1] }

// Slot returns the value of one storage slot, zero when never written and
// not present on the fork.
func (s *Store) Slot(ctx context.Context, addr common.Address, idx common.Hash) (common.Hash, error) {
	s.mu.RLock()
	key := SlotKey{Address: addr, Index: idx}
	for i := len(s.layers) - 1; i >= 0; i-- {
		if v, ok := s.layers[i].slots[key]; ok {
			s.mu.RUnlock()
			return v, nil
		}
	}
	s.mu.RUnlock()
	if s.fork != nil {
		return s.fork.Slot(ctx, addr, idx)
	}
	return common.Hash{}, nil
}

// SetSlot stores a slot value in the top layer. Zero values are stored, not
// erased, so fork-backed reads do not resurface stale non-zero values.
func (s *Store) SetSlot(addr common.Address, idx common.Hash, value common.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.top().slots[SlotKey{Address: addr, Index: idx}] = value
}

// Balance returns the account balance, zero by default.
func (s *Store) Balance(ctx context.Context, addr common.Address) (*uint256.Int, error) {
	s.mu.RLock()
	for i := len(s.layers) - 1; i >= 0; i-- {
		if v, ok := s.layers[i].balances[addr]; ok {
			s.mu.RUnlock()
			return new(uint256.Int).Set(v), nil
		}
	}
	s.mu.RUnlock()
	if s.fork != nil {
		return s.fork.Balance(ctx, addr)
	}
	return new(uint256.Int), nil
}

// SetBalance overwrites the account balance in the top layer.
func (s *Store) SetBalance(addr common.Address, amount *uint256.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.top().balances[addr] = new(uint256.Int).Set(amount)
}

// AddBalance credits the account, failing with ErrOverflow when the result
// would not fit 256 bits.
func (s *Store) AddBalance(ctx context.Context, addr common.Address, amount *uint256.Int) error {
	cur, err := s.Balance(ctx, addr)
	if err != nil {
		return err
	}
	sum := new(uint256.Int)
	if _, carry := sum.AddOverflow(cur, amount); carry {
		return fmt.Errorf("%w: %s + %s", ErrOverflow, cur, amount)
	}
	s.SetBalance(addr, sum)
	return nil
}

// SubBalance debits the account. The caller checks funds beforehand; a
// shortfall here is an invariant violation.
func (s *Store) SubBalance(ctx context.Context, addr common.Address, amount *uint256.Int) error {
	cur, err := s.Balance(ctx, addr)
	if err != nil {
		return err
	}
	diff := new(uint256.Int)
	if _, borrow := diff.SubOverflow(cur, amount); borrow {
		return fmt.Errorf("%w: %s - %s", ErrOverflow, cur, amount)
	}
	s.SetBalance(addr, diff)
	return nil
}

// Nonce returns the (deployment, tx) nonce pair. On a full local miss only
// the tx counter is fork-backed; remote deployment counters are not
// observable through the standard API and start at zero.
func (s *Store) Nonce(ctx context.Context, addr common.Address) (NoncePair, error) {
	s.mu.RLock()
	for i := len(s.layers) - 1; i >= 0; i-- {
		if v, ok := s.layers[i].nonces[addr]; ok {
			s.mu.RUnlock()
			return v, nil
		}
	}
	s.mu.RUnlock()
	if s.fork != nil {
		n, err := s.fork.TxNonce(ctx, addr)
		if err != nil {
			return NoncePair{}, err
		}
		return NoncePair{Tx: n}, nil
	}
	return NoncePair{}, nil
}

// SetNonce overwrites the nonce pair in the top layer.
func (s *Store) SetNonce(addr common.Address, n NoncePair) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.top().nonces[addr] = n
}

// CodeHash returns the code hash recorded for addr, or the zero hash when
// none is known locally and no fork is configured.
func (s *Store) CodeHash(addr common.Address) (common.Hash, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.layers) - 1; i >= 0; i-- {
		if v, ok := s.layers[i].codeHashes[addr]; ok {
			return v, true
		}
	}
	return common.Hash{}, false
}

// CodeByHash returns published bytecode, or nil when the hash is unknown.
func (s *Store) CodeByHash(hash common.Hash) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.layers) - 1; i >= 0; i-- {
		if v, ok := s.layers[i].bytecodes[hash]; ok {
			return v
		}
	}
	return nil
}

// Code returns the bytecode deployed at addr, falling through to the fork
// when the address was never touched locally.
func (s *Store) Code(ctx context.Context, addr common.Address) ([]byte, error) {
	if hash, ok := s.CodeHash(addr); ok {
		return s.CodeByHash(hash), nil
	}
	if s.fork != nil {
		return s.fork.Code(ctx, addr)
	}
	return nil, nil
}

// PublishCode stores bytecode under its hash and points addr at it. Code
// replaces any previous code at addr; storage at addr is retained.
// Publishing the same hash twice is idempotent.
func (s *Store) PublishCode(addr common.Address, hash common.Hash, code []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	top := s.top()
	top.codeHashes[addr] = hash
	if _, exists := top.bytecodes[hash]; !exists {
		top.bytecodes[hash] = code
	}
}

// MarkFactoryDep records hash in the factory dependency set.
func (s *Store) MarkFactoryDep(hash common.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.top().factoryDeps[hash] = struct{}{}
}

// IsFactoryDep reports whether hash has been marked as a factory
// dependency.
func (s *Store) IsFactoryDep(hash common.Hash) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.layers) - 1; i >= 0; i-- {
		if _, ok := s.layers[i].factoryDeps[hash]; ok {
			return true
		}
	}
	return false
}
