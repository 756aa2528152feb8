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

// Package node assembles the chain components into a running dev node. The
// sequencer is the single owner of all mutable chain state: RPC handlers
// post closures onto its command channel and await the reply, so every
// mutation is serialized through one goroutine.
package node

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/ledgerwatch/log/v3"

	"github.com/zkstack/zkanvil/core/chain"
	"github.com/zkstack/zkanvil/core/clock"
	"github.com/zkstack/zkanvil/core/state"
	"github.com/zkstack/zkanvil/core/types"
	"github.com/zkstack/zkanvil/core/vm"
	"github.com/zkstack/zkanvil/metrics"
	"github.com/zkstack/zkanvil/params"
	"github.com/zkstack/zkanvil/txpool"
)

// ErrClosed is returned when a request races node shutdown.
var ErrClosed = errors.New("sequencer closed")

// SealingMode selects when pending transactions are sealed into blocks.
type SealingMode uint8

const (
	// SealImmediate seals one block per submission.
	SealImmediate SealingMode = iota
	// SealFixedTime seals batches on a timer.
	SealFixedTime
)

type command struct {
	fn    func() error
	reply chan error
}

// Sequencer drives block production and owns the state store, mempool,
// clock, fee oracle and chain index.
type Sequencer struct {
	chainID uint64
	state   *state.Store
	pool    *txpool.Pool
	index   *chain.Index
	clk     *clock.Clock
	fees    *clock.FeeOracle
	exec    vm.Executor
	logger  log.Logger

	cmds chan command

	mode      SealingMode
	blockTime time.Duration

	snapshots []snapshotRecord

	// virtual offset applied on top of the sealed chain length by the roll
	// cheatcode
	blockOffset uint64
}

// NewSequencer wires the components together. Call Run to start processing.
func NewSequencer(chainID uint64, st *state.Store, pool *txpool.Pool, index *chain.Index, clk *clock.Clock, fees *clock.FeeOracle, exec vm.Executor, logger log.Logger) *Sequencer {
	return &Sequencer{
		chainID: chainID,
		state:   st,
		pool:    pool,
		index:   index,
		clk:     clk,
		fees:    fees,
		exec:    exec,
		logger:  logger.New("component", "sequencer"),
		cmds:    make(chan command),
	}
}

// Run processes commands until the context is cancelled. With fixed-time
// sealing enabled it also drains the mempool on the timer.
func (s *Sequencer) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Hour)
	ticker.Stop()
	active := false
	for {
		if s.mode == SealFixedTime && !active {
			ticker.Reset(s.blockTime)
			active = true
		} else if s.mode != SealFixedTime && active {
			ticker.Stop()
			active = false
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-s.cmds:
			cmd.reply <- cmd.fn()
		case <-ticker.C:
			if err := s.sealPending(ctx); err != nil {
				s.logger.Error("interval seal failed", "err", err)
			}
		}
	}
}

// do posts fn onto the owner goroutine and waits for it.
func (s *Sequencer) do(ctx context.Context, fn func() error) error {
	cmd := command{fn: fn, reply: make(chan error, 1)}
	select {
	case s.cmds <- cmd:
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrClosed, ctx.Err())
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrClosed, ctx.Err())
	}
}

// ChainID returns the configured L2 chain id.
func (s *Sequencer) ChainID() uint64 { return s.chainID }

// State exposes the state store for read-only RPC paths.
func (s *Sequencer) State() *state.Store { return s.state }

// Index exposes the chain index for read-only RPC paths.
func (s *Sequencer) Index() *chain.Index { return s.index }

// Pool exposes the mempool.
func (s *Sequencer) Pool() *txpool.Pool { return s.pool }

// Clock exposes the virtual clock.
func (s *Sequencer) Clock() *clock.Clock { return s.clk }

// Fees exposes the fee oracle.
func (s *Sequencer) Fees() *clock.FeeOracle { return s.fees }

// BlockNumber reports the externally visible block height: the sealed tip
// plus any virtual offset installed by roll.
func (s *Sequencer) BlockNumber() uint64 {
	head, ok := s.index.Head()
	if !ok {
		return 0
	}
	return head + s.blockOffset
}

// SealGenesis seals block 0. Rich accounts are funded into the base layer
// first so the genesis state already contains them.
func (s *Sequencer) SealGenesis() error {
	if s.index.Len() != 0 {
		return errors.New("genesis already sealed")
	}
	for _, w := range params.RichWallets {
		s.state.SetBalance(w.Address, params.RichBalance())
	}
	for _, w := range params.LegacyRichWallets {
		s.state.SetBalance(w.Address, params.RichBalance())
	}
	return s.seal(nil, nil, nil)
}

// SubmitTransaction validates and enqueues a transaction; in immediate
// sealing mode it is sealed into its own block before the call returns. A
// halt surfaces as the returned error and leaves state untouched.
func (s *Sequencer) SubmitTransaction(ctx context.Context, tx *types.Transaction) (common.Hash, error) {
	err := s.do(ctx, func() error {
		pair, err := s.state.Nonce(ctx, tx.From())
		if err != nil {
			return err
		}
		if err := s.pool.Submit(tx, pair.Tx); err != nil {
			return err
		}
		if s.mode == SealImmediate {
			return s.sealPending(ctx)
		}
		return nil
	})
	if err != nil {
		return common.Hash{}, err
	}
	return tx.Hash(), nil
}

// Mine produces n blocks, advancing the clock by interval seconds between
// blocks on top of the per-seal advance. Pending transactions are drained
// into the first blocks.
func (s *Sequencer) Mine(ctx context.Context, n uint64, interval uint64) error {
	return s.do(ctx, func() error {
		for i := uint64(0); i < n; i++ {
			if i > 0 && interval > 0 {
				s.clk.Advance(interval - 1)
			}
			if err := s.sealPending(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

// sealPending drains a batch from the mempool and seals it. Runs on the
// owner goroutine.
func (s *Sequencer) sealPending(ctx context.Context) error {
	batch := s.pool.TakeNextBatch(int(params.BlockGasLimit/params.TxGas), params.BlockGasLimit)
	return s.executeAndSeal(ctx, batch)
}

// executeAndSeal runs the produced block pipeline: pre-block layer, per-tx
// execution with halt/revert handling, then the seal.
func (s *Sequencer) executeAndSeal(ctx context.Context, batch []*types.Transaction) error {
	s.state.Push() // pre-block layer

	var (
		included []*types.Transaction
		results  []*vm.Result
	)
	for _, tx := range batch {
		s.state.Push() // per-tx layer
		env := s.newEnv()
		res, err := s.exec.Execute(ctx, env, tx, vm.ModeNormal)
		if err != nil {
			s.state.DropTop()
			var halt *vm.HaltError
			if errors.As(err, &halt) {
				s.logger.Info("transaction halted", "hash", tx.Hash(), "reason", halt.Reason, "detail", halt.Detail)
				metrics.TxHalted.Inc()
				continue
			}
			s.state.DropTop() // pre-block layer
			return err
		}
		s.state.CommitTop()
		included = append(included, tx)
		results = append(results, res)
	}

	if err := s.seal(included, results, nil); err != nil {
		s.state.DropTop()
		return err
	}
	s.state.CommitTop()
	return nil
}

// seal assigns the header, appends to the index and advances time. extra
// receipts support replay flows injecting precomputed results.
func (s *Sequencer) seal(txs []*types.Transaction, results []*vm.Result, _ []*types.Receipt) error {
	number := uint64(s.index.Len())
	var parent common.Hash
	if tip := s.index.Latest(); tip != nil {
		parent = tip.Hash
	}

	timestamp := s.clk.AdvanceForBlock()
	baseFee := s.fees.BaseFeeForNextBlock()

	hashes := make([]common.Hash, len(txs))
	for i, tx := range txs {
		hashes[i] = tx.Hash()
	}
	blockHash := types.SealHash(number, parent, timestamp, hashes)

	var gasUsed uint64
	receipts := make([]*types.Receipt, len(txs))
	traces := make(map[common.Hash]*types.CallTrace, len(txs))
	for i, tx := range txs {
		res := results[i]
		gasUsed += res.GasUsed
		status := types.ReceiptStatusSuccessful
		var revertData []byte
		if !res.Success {
			status = types.ReceiptStatusFailed
			revertData = res.ReturnData
		}
		receipts[i] = &types.Receipt{
			TxHash:            tx.Hash(),
			TxIndex:           uint64(i),
			From:              tx.From(),
			To:                tx.To(),
			ContractAddress:   res.ContractAddress,
			Status:            status,
			GasUsed:           res.GasUsed,
			EffectiveGasPrice: res.EffectiveGasPrice,
			Logs:              res.Logs,
			BlockHash:         blockHash,
			BlockNumber:       number,
			L1BatchNumber:     number,
			RevertReason:      revertData,
		}
		traces[tx.Hash()] = res.Trace
	}

	block := &types.Block{
		Header: types.Header{
			Number:        number,
			Hash:          blockHash,
			ParentHash:    parent,
			Timestamp:     timestamp,
			BaseFee:       baseFee,
			GasLimit:      params.BlockGasLimit,
			GasUsed:       gasUsed,
			L1BatchNumber: number,
		},
		Transactions: hashes,
	}
	l1Batch := &types.L1Batch{
		Number:    number,
		Blocks:    []uint64{number},
		Timestamp: timestamp,
		RootHash:  blockHash,
	}

	if err := s.index.Append(block, l1Batch, txs, receipts, traces); err != nil {
		return err
	}
	metrics.BlocksSealed.Inc()
	metrics.TxExecuted.Add(float64(len(txs)))
	s.logger.Info("sealed block", "number", number, "hash", blockHash, "txs", len(txs), "timestamp", timestamp)
	return nil
}

func (s *Sequencer) newEnv() *vm.Environment {
	return &vm.Environment{
		State: s.state,
		Block: vm.BlockContext{
			Number:    s.BlockNumber() + 1,
			Timestamp: s.clk.Now(),
			BaseFee:   s.pendingBaseFee(),
			ChainID:   s.chainID,
		},
		Host: s,
	}
}

// pendingBaseFee peeks at the next block's base fee without consuming the
// one-shot override, which belongs to the seal.
func (s *Sequencer) pendingBaseFee() *uint256.Int {
	if fee := s.fees.PendingOverride(); fee != nil {
		return fee
	}
	return s.fees.GasPrice()
}

// Warp implements vm.CheatHost by jumping the clock forward.
func (s *Sequencer) Warp(t uint64) error { return s.clk.Set(t) }

// Roll implements vm.CheatHost by installing a virtual block offset.
func (s *Sequencer) Roll(n uint64) error {
	head, _ := s.index.Head()
	if n < head {
		return fmt.Errorf("cannot roll below sealed height %d", head)
	}
	s.blockOffset = n - head
	return nil
}

// Call executes against the current state in eth_call mode; all diffs are
// discarded before returning.
func (s *Sequencer) Call(ctx context.Context, tx *types.Transaction) (*vm.Result, error) {
	var out *vm.Result
	err := s.do(ctx, func() error {
		s.state.Push()
		defer s.state.DropTop()
		res, err := s.exec.Execute(ctx, s.newEnv(), tx, vm.ModeEthCall)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	return out, err
}

// EstimateGas binary-searches the gas limit for tx; state is left
// untouched.
func (s *Sequencer) EstimateGas(ctx context.Context, rebuild func(gas uint64) *types.Transaction) (uint64, error) {
	var out uint64
	err := s.do(ctx, func() error {
		gas, err := vm.EstimateGas(ctx, s.exec, s.newEnv(), rebuild)
		if err != nil {
			return err
		}
		out = gas
		return nil
	})
	return out, err
}

// Admin mutations below back both the anvil_ RPC surface and the cheatcode
// dispatch, so each operation has one implementation.

// SetBalance overwrites an account balance.
func (s *Sequencer) SetBalance(ctx context.Context, addr common.Address, amount *uint256.Int) error {
	return s.do(ctx, func() error {
		s.state.SetBalance(addr, amount)
		return nil
	})
}

// SetNonce overwrites the tx nonce, up or down.
func (s *Sequencer) SetNonce(ctx context.Context, addr common.Address, nonce uint64) error {
	return s.do(ctx, func() error {
		pair, err := s.state.Nonce(ctx, addr)
		if err != nil {
			return err
		}
		pair.Tx = nonce
		s.state.SetNonce(addr, pair)
		return nil
	})
}

// SetCode installs bytecode at addr.
func (s *Sequencer) SetCode(ctx context.Context, addr common.Address, code []byte, hash common.Hash) error {
	return s.do(ctx, func() error {
		s.state.PublishCode(addr, hash, code)
		return nil
	})
}

// SetStorage overwrites one storage slot.
func (s *Sequencer) SetStorage(ctx context.Context, addr common.Address, slot, value common.Hash) error {
	return s.do(ctx, func() error {
		s.state.SetSlot(addr, slot, value)
		return nil
	})
}

// SetNextBlockBaseFee arms the one-shot base fee override.
func (s *Sequencer) SetNextBlockBaseFee(ctx context.Context, fee *uint256.Int) error {
	return s.do(ctx, func() error {
		s.fees.SetNextBlockBaseFee(fee)
		return nil
	})
}

// SetTime jumps the clock without the forward check and returns the offset
// from the previous reading.
func (s *Sequencer) SetTime(ctx context.Context, t uint64) (int64, error) {
	var offset int64
	err := s.do(ctx, func() error {
		offset = int64(t) - int64(s.clk.Now())
		s.clk.Reset(t)
		return nil
	})
	return offset, err
}

// IncreaseTime advances the clock by delta seconds.
func (s *Sequencer) IncreaseTime(ctx context.Context, delta uint64) error {
	return s.do(ctx, func() error {
		s.clk.Advance(delta)
		return nil
	})
}

// SetNextBlockTimestamp arms the one-shot timestamp override.
func (s *Sequencer) SetNextBlockTimestamp(ctx context.Context, t uint64) error {
	return s.do(ctx, func() error {
		return s.clk.SetNextTimestamp(t)
	})
}

// SetTimestampInterval configures the per-block timestamp delta.
func (s *Sequencer) SetTimestampInterval(ctx context.Context, n uint64) error {
	return s.do(ctx, func() error {
		s.clk.SetInterval(n)
		return nil
	})
}

// RemoveTimestampInterval restores the default delta.
func (s *Sequencer) RemoveTimestampInterval(ctx context.Context) error {
	return s.do(ctx, func() error {
		s.clk.RemoveInterval()
		return nil
	})
}

// SetSealingMode switches between immediate and fixed-time sealing.
func (s *Sequencer) SetSealingMode(ctx context.Context, mode SealingMode, blockTime time.Duration) error {
	return s.do(ctx, func() error {
		s.mode = mode
		s.blockTime = blockTime
		return nil
	})
}

// GetSealingMode reports the active mode.
func (s *Sequencer) GetSealingMode(ctx context.Context) (SealingMode, error) {
	var mode SealingMode
	err := s.do(ctx, func() error {
		mode = s.mode
		return nil
	})
	return mode, err
}
