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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ledgerwatch/log/v3"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/zkstack/zkanvil/core/fork"
	"github.com/zkstack/zkanvil/internal/logging"
	"github.com/zkstack/zkanvil/node"
	"github.com/zkstack/zkanvil/rpc/jsonrpc"
)

func main() {
	app := &cli.App{
		Name:  "zkanvil",
		Usage: "In-memory ZK-rollup L2 development node",
		Flags: nodeFlags(),
		Before: func(ctx *cli.Context) error {
			return setFlagsFromConfigFile(ctx, ctx.String(configFlag.Name))
		},
		Action: runFresh,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Start a fresh in-memory chain (the default)",
				Flags:  nodeFlags(),
				Action: runFresh,
			},
			{
				Name:      "fork",
				Usage:     "Start a chain forked from a remote network",
				ArgsUsage: "<network or RPC URL>",
				Flags:     append(nodeFlags(), &forkBlockFlag),
				Action:    runFork,
			},
			{
				Name:      "replay_tx",
				Usage:     "Fork just before a remote transaction and replay it",
				ArgsUsage: "<network or RPC URL> <tx hash>",
				Flags:     nodeFlags(),
				Action:    runReplay,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runFresh(cliCtx *cli.Context) error {
	cfg, logger, err := setup(cliCtx)
	if err != nil {
		return err
	}
	return serve(cliCtx, cfg, logger, nil)
}

func runFork(cliCtx *cli.Context) error {
	cfg, logger, err := setup(cliCtx)
	if err != nil {
		return err
	}
	url, err := networkURL(cliCtx.Args().First())
	if err != nil {
		return err
	}
	cfg.ForkURL = url
	cfg.ForkBlock = cliCtx.Uint64(forkBlockFlag.Name)
	return serve(cliCtx, cfg, logger, nil)
}

func runReplay(cliCtx *cli.Context) error {
	cfg, logger, err := setup(cliCtx)
	if err != nil {
		return err
	}
	url, err := networkURL(cliCtx.Args().First())
	if err != nil {
		return err
	}
	hashArg := cliCtx.Args().Get(1)
	if hashArg == "" {
		return fmt.Errorf("missing transaction hash argument")
	}
	hash := common.HexToHash(hashArg)

	ctx, cancel := signalContext()
	defer cancel()

	client, err := fork.Dial(ctx, url)
	if err != nil {
		return err
	}
	pin, tx, err := node.ResolveReplay(ctx, client, hash)
	client.Close()
	if err != nil {
		return err
	}
	logger.Info("replaying transaction", "hash", hash, "fork_block", pin)

	cfg.ForkURL = url
	cfg.ForkBlock = pin
	return serveCtx(ctx, cliCtx, cfg, logger, func(ctx context.Context, n *node.Node) error {
		replayed, err := n.ReplayTransaction(ctx, tx)
		if err != nil {
			return fmt.Errorf("replay %s: %w", hash, err)
		}
		r := n.Sequencer().Index().Receipt(replayed)
		if r != nil {
			logger.Info("transaction replayed", "hash", replayed, "block", r.BlockNumber, "success", r.Succeeded())
		}
		return nil
	})
}

func setup(cliCtx *cli.Context) (node.Config, log.Logger, error) {
	logger, err := logging.SetupLoggerCtx("zkanvil", cliCtx)
	if err != nil {
		return node.Config{}, nil, err
	}
	cfg, err := nodeConfig(cliCtx)
	if err != nil {
		return node.Config{}, nil, err
	}
	return cfg, logger, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func serve(cliCtx *cli.Context, cfg node.Config, logger log.Logger, onReady func(context.Context, *node.Node) error) error {
	ctx, cancel := signalContext()
	defer cancel()
	return serveCtx(ctx, cliCtx, cfg, logger, onReady)
}

// serveCtx assembles the node and daemon, runs both until the context ends
// and invokes onReady once the chain is live.
func serveCtx(ctx context.Context, cliCtx *cli.Context, cfg node.Config, logger log.Logger, onReady func(context.Context, *node.Node) error) error {
	n, err := node.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("start node: %w", err)
	}
	daemon, err := jsonrpc.NewDaemon(jsonrpc.DaemonConfig{
		Host:        cliCtx.String(hostFlag.Name),
		Port:        cliCtx.Int(portFlag.Name),
		CORSOrigins: cliCtx.StringSlice(corsFlag.Name),
	}, n, logger)
	if err != nil {
		return fmt.Errorf("start rpc server: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return n.Run(ctx) })
	g.Go(func() error { return daemon.Run(ctx) })
	if onReady != nil {
		g.Go(func() error { return onReady(ctx, n) })
	}
	return g.Wait()
}
