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
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/zkstack/zkanvil/internal/logging"
	"github.com/zkstack/zkanvil/node"
	"github.com/zkstack/zkanvil/params"
)

var (
	configFlag = cli.StringFlag{
		Name:  "config",
		Usage: "Path to a YAML or TOML file whose keys fill unset flags",
	}

	hostFlag = cli.StringFlag{
		Name:  "host",
		Usage: "Interface the JSON-RPC server binds to",
		Value: "127.0.0.1",
	}

	portFlag = cli.IntFlag{
		Name:  "port",
		Usage: "Port the JSON-RPC server listens on",
		Value: params.DefaultPort,
	}

	chainIDFlag = cli.Uint64Flag{
		Name:  "chain-id",
		Usage: "Chain id of the L2 chain",
		Value: params.DefaultChainID,
	}

	blockTimeFlag = cli.DurationFlag{
		Name:  "block-time",
		Usage: "Seal blocks on a fixed timer instead of per transaction",
	}

	executorFlag = cli.StringFlag{
		Name:  "executor",
		Usage: "Registered VM executor to run transactions with",
	}

	l1GasPriceFlag = cli.Uint64Flag{
		Name:  "l1-gas-price",
		Usage: "L1 gas price fed to the fee model",
	}

	l2GasPriceFlag = cli.Uint64Flag{
		Name:  "l2-gas-price",
		Usage: "Fair L2 gas price fed to the fee model",
	}

	pubdataPriceFlag = cli.Uint64Flag{
		Name:  "fair-pubdata-price",
		Usage: "Price per pubdata byte fed to the fee model",
	}

	cacheFlag = cli.StringFlag{
		Name:  "cache",
		Usage: "Fork cache mode: none, memory or disk",
		Value: string(node.CacheMemory),
	}

	cacheDirFlag = cli.StringFlag{
		Name:  "cache-dir",
		Usage: "Directory the disk fork cache persists to",
		Value: ".zkanvil-cache",
	}

	cacheSizeFlag = cli.IntFlag{
		Name:  "cache-size",
		Usage: "Entries kept by the in-memory fork cache",
	}

	forkBlockFlag = cli.Uint64Flag{
		Name:  "fork-block",
		Usage: "Block height to pin the fork at, remote head when zero",
	}

	corsFlag = cli.StringSliceFlag{
		Name:  "allow-origin",
		Usage: "CORS origins admitted by the HTTP server",
	}
)

func nodeFlags() []cli.Flag {
	flags := []cli.Flag{
		&configFlag,
		&hostFlag,
		&portFlag,
		&chainIDFlag,
		&blockTimeFlag,
		&executorFlag,
		&l1GasPriceFlag,
		&l2GasPriceFlag,
		&pubdataPriceFlag,
		&cacheFlag,
		&cacheDirFlag,
		&cacheSizeFlag,
		&corsFlag,
	}
	return append(flags, logging.Flags...)
}

func nodeConfig(ctx *cli.Context) (node.Config, error) {
	mode := node.CacheMode(ctx.String(cacheFlag.Name))
	switch mode {
	case node.CacheNone, node.CacheMemory, node.CacheDisk:
	default:
		return node.Config{}, fmt.Errorf("unknown cache mode %q", mode)
	}
	return node.Config{
		ChainID:          ctx.Uint64(chainIDFlag.Name),
		Executor:         ctx.String(executorFlag.Name),
		BlockTime:        ctx.Duration(blockTimeFlag.Name),
		L1GasPrice:       ctx.Uint64(l1GasPriceFlag.Name),
		L2GasPrice:       ctx.Uint64(l2GasPriceFlag.Name),
		FairPubdataPrice: ctx.Uint64(pubdataPriceFlag.Name),
		CacheMode:        mode,
		CacheDir:         ctx.String(cacheDirFlag.Name),
		CacheSize:        ctx.Int(cacheSizeFlag.Name),
	}, nil
}

// networkURL resolves the named networks the fork and replay commands
// accept, passing URLs through untouched.
func networkURL(name string) (string, error) {
	switch name {
	case "mainnet", "era":
		return "https://mainnet.era.zksync.io", nil
	case "sepolia-testnet", "sepolia":
		return "https://sepolia.era.zksync.io", nil
	case "":
		return "", fmt.Errorf("missing network argument")
	}
	if strings.HasPrefix(name, "http://") || strings.HasPrefix(name, "https://") {
		return name, nil
	}
	return "", fmt.Errorf("unknown network %q, pass a full RPC URL instead", name)
}
