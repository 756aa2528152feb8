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

package node

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ledgerwatch/log/v3"
	"golang.org/x/sync/errgroup"

	"github.com/zkstack/zkanvil/core/chain"
	"github.com/zkstack/zkanvil/core/clock"
	"github.com/zkstack/zkanvil/core/fork"
	"github.com/zkstack/zkanvil/core/state"
	"github.com/zkstack/zkanvil/core/types"
	"github.com/zkstack/zkanvil/core/vm"
	"github.com/zkstack/zkanvil/metrics"
	"github.com/zkstack/zkanvil/params"
	"github.com/zkstack/zkanvil/txpool"
)

// CacheMode selects where the fork backend keeps remote answers.
type CacheMode string

const (
	CacheNone   CacheMode = "none"
	CacheMemory CacheMode = "memory"
	CacheDisk   CacheMode = "disk"
)

// Config carries the node-level settings materialized from the CLI.
type Config struct {
	ChainID   uint64
	Executor  string
	BlockTime time.Duration // 0 selects immediate sealing

	L1GasPrice       uint64
	L2GasPrice       uint64
	FairPubdataPrice uint64

	ForkURL   string
	ForkBlock uint64

	CacheMode CacheMode
	CacheDir  string
	CacheSize int
}

// Defaults fills unset fields.
func (c *Config) Defaults() {
	if c.ChainID == 0 {
		c.ChainID = params.DefaultChainID
	}
	if c.Executor == "" {
		c.Executor = vm.ReferenceExecutorName
	}
	if c.CacheMode == "" {
		c.CacheMode = CacheMemory
	}
	if c.CacheSize == 0 {
		c.CacheSize = 100_000
	}
}

// Node owns the assembled components and their lifecycle.
type Node struct {
	cfg     Config
	seq     *Sequencer
	backend *fork.Backend
	logger  log.Logger
}

// New assembles a node. When cfg.ForkURL is set the state store reads
// through a fork backend pinned at cfg.ForkBlock (or the remote head when
// zero).
func New(ctx context.Context, cfg Config, logger log.Logger) (*Node, error) {
	cfg.Defaults()

	var (
		backend    *fork.Backend
		forkReader state.ForkReader
		startTime  = uint64(time.Now().Unix())
	)
	if cfg.ForkURL != "" {
		client, err := fork.Dial(ctx, cfg.ForkURL)
		if err != nil {
			return nil, err
		}
		block := cfg.ForkBlock
		if block == 0 {
			head, err := client.BlockByNumber(ctx, nil)
			if err != nil {
				return nil, fmt.Errorf("resolve fork head: %w", err)
			}
			block = head.NumberU64()
			startTime = head.Time()
		}
		cache, err := openCache(cfg)
		if err != nil {
			client.Close()
			return nil, err
		}
		backend = fork.NewBackend(client, cache, block, logger)
		backend.SetFetchHook(metrics.ForkRemoteFetches.Inc)
		forkReader = backend
		logger.Info("forking", "url", cfg.ForkURL, "block", block)
	}

	exec, err := vm.NewExecutor(cfg.Executor)
	if err != nil {
		return nil, err
	}

	st := state.New(forkReader)
	pool := txpool.New(logger)
	index := chain.NewIndex()
	clk := clock.NewClock(startTime)
	fees := clock.NewFeeOracle(cfg.L1GasPrice, cfg.L2GasPrice, cfg.FairPubdataPrice)

	seq := NewSequencer(cfg.ChainID, st, pool, index, clk, fees, exec, logger)
	if cfg.BlockTime > 0 {
		seq.mode = SealFixedTime
		seq.blockTime = cfg.BlockTime
	}
	if err := seq.SealGenesis(); err != nil {
		return nil, fmt.Errorf("seal genesis: %w", err)
	}

	return &Node{cfg: cfg, seq: seq, backend: backend, logger: logger}, nil
}

func openCache(cfg Config) (fork.Cache, error) {
	switch cfg.CacheMode {
	case CacheDisk:
		return fork.NewDiskCache(cfg.CacheDir)
	case CacheNone:
		// an unbounded-miss cache still satisfies the write-once contract
		return fork.NewMemoryCache(1)
	default:
		return fork.NewMemoryCache(cfg.CacheSize)
	}
}

// Sequencer returns the owner task handle the RPC layer dispatches to.
func (n *Node) Sequencer() *Sequencer { return n.seq }

// ForkBackend returns the active fork backend, nil on a fresh chain.
func (n *Node) ForkBackend() *fork.Backend { return n.backend }

// Run drives the sequencer until ctx is cancelled, then releases the fork
// backend.
func (n *Node) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return n.seq.Run(ctx) })
	err := g.Wait()
	if n.backend != nil {
		if cerr := n.backend.Close(); cerr != nil {
			n.logger.Warn("closing fork backend", "err", cerr)
		}
	}
	if err != nil && ctx.Err() != nil {
		return nil // clean shutdown
	}
	return err
}

// ResolveReplay locates hash on the remote chain and returns the fork block
// to pin (the transaction's block minus one) plus the transaction rebuilt
// as an impersonated envelope ready for resubmission.
func ResolveReplay(ctx context.Context, client fork.RemoteClient, hash common.Hash) (uint64, *types.Transaction, error) {
	tx, pending, err := client.TransactionByHash(ctx, hash)
	if err != nil {
		return 0, nil, fmt.Errorf("fetch transaction %s: %w", hash, err)
	}
	if pending {
		return 0, nil, fmt.Errorf("transaction %s is still pending", hash)
	}
	receipt, err := client.TransactionReceipt(ctx, hash)
	if err != nil {
		return 0, nil, fmt.Errorf("fetch receipt %s: %w", hash, err)
	}
	block := receipt.BlockNumber.Uint64()
	if block == 0 {
		return 0, nil, fmt.Errorf("transaction %s is in the genesis block", hash)
	}

	signer := ethSigner(tx)
	from, err := signer.Sender(tx)
	if err != nil {
		return 0, nil, fmt.Errorf("recover sender of %s: %w", hash, err)
	}
	return block - 1, types.NewImpersonatedTransaction(tx, from), nil
}

func ethSigner(tx *ethtypes.Transaction) ethtypes.Signer {
	return ethtypes.LatestSignerForChainID(tx.ChainId())
}

// ReplayTransaction runs the resolved transaction on a node forked just
// before its original block. The sender is impersonated since the node does
// not hold its key.
func (n *Node) ReplayTransaction(ctx context.Context, tx *types.Transaction) (common.Hash, error) {
	n.seq.Pool().Impersonate(tx.From())
	return n.seq.SubmitTransaction(ctx, tx)
}
