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

// Package vm defines the execution boundary of the node: the Executor
// capability the sequencer drives, the per-transaction environment it runs
// in, the halt/revert failure taxonomy and the cheatcode dispatch that
// intercepts calls to the reserved address. A reference interpreter
// implements the capability for tests and default runs; production zk-VM
// backends register themselves under their own name.
package vm

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"github.com/zkstack/zkanvil/core/state"
	"github.com/zkstack/zkanvil/core/types"
)

// Mode selects the execution semantics.
type Mode uint8

const (
	// ModeNormal charges fees, validates nonces and commits diffs.
	ModeNormal Mode = iota
	// ModeEthCall bypasses signature, balance and fee checks; the caller
	// discards the diff.
	ModeEthCall
	// ModeEstimateGas behaves like ModeEthCall but is driven by the binary
	// search in EstimateGas.
	ModeEstimateGas
)

// BlockContext is the read-only block environment of one execution.
type BlockContext struct {
	Number    uint64
	Timestamp uint64
	BaseFee   *uint256.Int
	ChainID   uint64
}

// Environment bundles everything an Executor needs for one transaction:
// the state handle, the block context and the host surface cheatcodes
// mutate through.
type Environment struct {
	State *state.Store
	Block BlockContext
	Host  CheatHost

	// prank state lives for one transaction
	prankSender *common.Address
	prankOrigin *common.Address
}

// Result is the outcome of one execution.
type Result struct {
	// Success is false when the contract reverted; halts surface as
	// *HaltError from Execute instead.
	Success           bool
	GasUsed           uint64
	EffectiveGasPrice *uint256.Int
	ReturnData        []byte
	Logs              []*ethtypes.Log
	Trace             *types.CallTrace
	ContractAddress   *common.Address
}

// Executor runs one transaction against a borrowed state handle. Given the
// same state, transaction and environment, Execute must be deterministic.
// Halts are returned as *HaltError; reverts produce a Result with
// Success=false.
type Executor interface {
	Name() string
	Execute(ctx context.Context, env *Environment, tx *types.Transaction, mode Mode) (*Result, error)
}

// Factory constructs an executor at node startup.
type Factory func() (Executor, error)

var (
	registryMu sync.Mutex
	registry   = make(map[string]Factory)
)

// Register makes an executor constructable by name. Duplicate names panic
// at init time.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("vm: executor %q registered twice", name))
	}
	registry[name] = f
}

// NewExecutor constructs the executor registered under name.
func NewExecutor(name string) (Executor, error) {
	registryMu.Lock()
	f, ok := registry[name]
	registryMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("vm: unknown executor %q, have %v", name, ExecutorNames())
	}
	return f()
}

// ExecutorNames lists the registered executors, sorted.
func ExecutorNames() []string {
	registryMu.Lock()
	defer registryMu.Unlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
