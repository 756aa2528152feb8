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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/zkstack/zkanvil/node"
)

func runApp(t *testing.T, args []string, check func(ctx *cli.Context)) {
	t.Helper()
	app := &cli.App{
		Flags: nodeFlags(),
		Before: func(ctx *cli.Context) error {
			return setFlagsFromConfigFile(ctx, ctx.String(configFlag.Name))
		},
		Action: func(ctx *cli.Context) error {
			check(ctx)
			return nil
		},
	}
	require.NoError(t, app.Run(append([]string{"zkanvil"}, args...)))
}

func TestConfigFileFillsUnsetFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9123\nchain-id: 555\n"), 0o644))

	runApp(t, []string{"--config", path}, func(ctx *cli.Context) {
		assert.Equal(t, 9123, ctx.Int(portFlag.Name))
		assert.Equal(t, uint64(555), ctx.Uint64(chainIDFlag.Name))
	})
}

func TestCommandLineBeatsConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.toml")
	require.NoError(t, os.WriteFile(path, []byte("port = 9123\n"), 0o644))

	runApp(t, []string{"--config", path, "--port", "7001"}, func(ctx *cli.Context) {
		assert.Equal(t, 7001, ctx.Int(portFlag.Name))
	})
}

func TestUnknownConfigKeyFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.yaml")
	require.NoError(t, os.WriteFile(path, []byte("no-such-flag: 1\n"), 0o644))

	app := &cli.App{
		Flags: nodeFlags(),
		Before: func(ctx *cli.Context) error {
			return setFlagsFromConfigFile(ctx, ctx.String(configFlag.Name))
		},
		Action: func(*cli.Context) error { return nil },
	}
	err := app.Run([]string{"zkanvil", "--config", path})
	require.Error(t, err)
}

func TestNodeConfigRejectsBadCacheMode(t *testing.T) {
	runApp(t, []string{"--cache", "memory"}, func(ctx *cli.Context) {
		cfg, err := nodeConfig(ctx)
		require.NoError(t, err)
		assert.Equal(t, node.CacheMemory, cfg.CacheMode)
	})
	runApp(t, []string{"--cache", "floppy"}, func(ctx *cli.Context) {
		_, err := nodeConfig(ctx)
		require.Error(t, err)
	})
}

func TestNetworkURL(t *testing.T) {
	url, err := networkURL("mainnet")
	require.NoError(t, err)
	assert.Equal(t, "https://mainnet.era.zksync.io", url)

	url, err = networkURL("http://localhost:3050")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3050", url)

	_, err = networkURL("gibberish")
	require.Error(t, err)

	_, err = networkURL("")
	require.Error(t, err)
}
