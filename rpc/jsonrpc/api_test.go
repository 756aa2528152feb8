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

package jsonrpc

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zkstack/zkanvil/core/chain"
	"github.com/zkstack/zkanvil/core/clock"
	"github.com/zkstack/zkanvil/core/state"
	"github.com/zkstack/zkanvil/core/vm"
	"github.com/zkstack/zkanvil/node"
	"github.com/zkstack/zkanvil/params"
	"github.com/zkstack/zkanvil/txpool"
)

func startAPI(t *testing.T) (*BaseAPI, context.Context) {
	t.Helper()
	exec, err := vm.NewExecutor(vm.ReferenceExecutorName)
	require.NoError(t, err)
	logger := log.New()
	seq := node.NewSequencer(
		params.DefaultChainID,
		state.New(nil),
		txpool.New(logger),
		chain.NewIndex(),
		clock.NewClock(1_700_000_000),
		clock.NewFeeOracle(0, 0, 0),
		exec,
		logger,
	)
	require.NoError(t, seq.SealGenesis())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = seq.Run(ctx) }()
	return NewBaseAPI(seq, NewObsConfig(), logger), ctx
}

func latest() *rpc.BlockNumber {
	n := rpc.LatestBlockNumber
	return &n
}

func TestEthChainIdAndAccounts(t *testing.T) {
	base, ctx := startAPI(t)
	api := NewEthAPI(base)

	id, err := api.ChainId(ctx)
	require.NoError(t, err)
	assert.Equal(t, hexutil.Uint64(params.DefaultChainID), id)

	accounts, err := api.Accounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, len(params.RichWallets))
	assert.Equal(t, params.RichWallets[0].Address, accounts[0])

	syncing, err := api.Syncing(ctx)
	require.NoError(t, err)
	assert.Equal(t, false, syncing)
}

func TestEthGetBalanceLatestOnly(t *testing.T) {
	base, ctx := startAPI(t)
	api := NewEthAPI(base)
	rich := params.RichWallets[0].Address

	bal, err := api.GetBalance(ctx, rich, latest())
	require.NoError(t, err)
	assert.Equal(t, params.RichBalance().ToBig(), bal.ToInt())

	stale := rpc.BlockNumber(7)
	_, err = api.GetBalance(ctx, rich, &stale)
	assert.ErrorIs(t, err, ErrNoHistoricalState)
}

func TestSendRawTransactionSealsBlock(t *testing.T) {
	base, ctx := startAPI(t)
	api := NewEthAPI(base)
	wallet := params.RichWallets[0]
	to := common.HexToAddress("0x1111")

	key, err := crypto.HexToECDSA(wallet.PrivateKey[2:])
	require.NoError(t, err)
	signer := ethtypes.LatestSignerForChainID(new(big.Int).SetUint64(params.DefaultChainID))
	inner, err := ethtypes.SignNewTx(key, signer, &ethtypes.DynamicFeeTx{
		ChainID:   new(big.Int).SetUint64(params.DefaultChainID),
		Nonce:     0,
		To:        &to,
		Value:     big.NewInt(1000),
		Gas:       100_000,
		GasFeeCap: big.NewInt(100_000_000),
		GasTipCap: big.NewInt(1),
	})
	require.NoError(t, err)
	encoded, err := inner.MarshalBinary()
	require.NoError(t, err)

	hash, err := api.SendRawTransaction(ctx, encoded)
	require.NoError(t, err)

	number, err := api.BlockNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, hexutil.Uint64(1), number)

	receipt, err := api.GetTransactionReceipt(ctx, hash)
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.Equal(t, hexutil.Uint64(1), receipt["status"])
	assert.Equal(t, hexutil.Uint64(1), receipt["l1BatchNumber"])

	tx, err := api.GetTransactionByHash(ctx, hash)
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, wallet.Address, tx.From)
	assert.Equal(t, &to, tx.To)

	bal, err := api.GetBalance(ctx, to, nil)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), bal.ToInt())
}

func TestEthCallDoesNotSeal(t *testing.T) {
	base, ctx := startAPI(t)
	api := NewEthAPI(base)
	from := params.RichWallets[0].Address
	to := common.HexToAddress("0x2222")
	value := hexutil.Big(*big.NewInt(5000))

	_, err := api.Call(ctx, CallArgs{From: &from, To: &to, Value: &value}, nil)
	require.NoError(t, err)

	number, err := api.BlockNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, hexutil.Uint64(0), number)

	bal, err := api.GetBalance(ctx, to, nil)
	require.NoError(t, err)
	assert.Zero(t, bal.ToInt().Sign())
}

func TestEstimateGasMatchesScaleFactor(t *testing.T) {
	base, ctx := startAPI(t)
	api := NewEthAPI(base)
	from := params.RichWallets[0].Address
	to := common.HexToAddress("0x3333")

	gas, err := api.EstimateGas(ctx, CallArgs{From: &from, To: &to}, nil)
	require.NoError(t, err)
	assert.Equal(t, hexutil.Uint64(uint64(float64(params.TxGas)*params.EstimateGasScaleFactor)), gas)
}

func TestGetBlockByNumberTags(t *testing.T) {
	base, ctx := startAPI(t)
	api := NewEthAPI(base)

	genesis, err := api.GetBlockByNumber(ctx, rpc.EarliestBlockNumber, false)
	require.NoError(t, err)
	require.NotNil(t, genesis)
	assert.Equal(t, hexutil.Uint64(0), genesis["number"])

	missing, err := api.GetBlockByNumber(ctx, rpc.BlockNumber(42), false)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAnvilAdminRoundTrip(t *testing.T) {
	base, ctx := startAPI(t)
	api := NewAnvilAPI(base)
	eth := NewEthAPI(base)
	target := common.HexToAddress("0x4444")

	amount := hexutil.Big(*big.NewInt(777))
	ok, err := api.SetBalance(ctx, target, &amount)
	require.NoError(t, err)
	assert.True(t, ok)

	bal, err := eth.GetBalance(ctx, target, nil)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(777), bal.ToInt())

	_, err = api.SetNonce(ctx, target, 9)
	require.NoError(t, err)
	nonce, err := eth.GetTransactionCount(ctx, target, nil)
	require.NoError(t, err)
	assert.Equal(t, hexutil.Uint64(9), nonce)

	code := hexutil.Bytes{0xfe}
	require.NoError(t, api.SetCode(ctx, target, code))
	got, err := eth.GetCode(ctx, target, nil)
	require.NoError(t, err)
	assert.Equal(t, code, got)

	slot := common.HexToHash("0x01")
	value := common.HexToHash("0xbeef")
	_, err = api.SetStorageAt(ctx, target, slot, value)
	require.NoError(t, err)
	stored, err := eth.GetStorageAt(ctx, target, slot, nil)
	require.NoError(t, err)
	assert.Equal(t, value.Bytes(), []byte(stored))
}

func TestSnapshotRevertOverRPC(t *testing.T) {
	base, ctx := startAPI(t)
	api := NewAnvilAPI(base)

	id, err := api.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, hexutil.Uint64(0), id)

	require.NoError(t, api.Mine(ctx, nil, nil))

	ok, err := api.Revert(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(0), base.seq.BlockNumber())

	_, err = api.Revert(ctx, hexutil.Uint64(3))
	assert.ErrorIs(t, err, node.ErrUnknownSnapshot)
}

func TestEvmMineAndTime(t *testing.T) {
	base, ctx := startAPI(t)
	api := NewEvmAPI(base)

	out, err := api.Mine(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0x0", out)
	assert.Equal(t, uint64(1), base.seq.BlockNumber())

	delta, err := api.IncreaseTime(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), delta)

	offset, err := api.SetTime(ctx, hexutil.Uint64(base.seq.Clock().Now()-50))
	require.NoError(t, err)
	assert.Equal(t, int64(-50), offset)
}

func TestSealingModeToggle(t *testing.T) {
	base, ctx := startAPI(t)
	api := NewAnvilAPI(base)

	automine, err := api.GetAutomine(ctx)
	require.NoError(t, err)
	assert.True(t, automine)

	require.NoError(t, api.SetIntervalMining(ctx, 5))
	automine, err = api.GetAutomine(ctx)
	require.NoError(t, err)
	assert.False(t, automine)

	require.NoError(t, api.SetIntervalMining(ctx, 0))
	automine, err = api.GetAutomine(ctx)
	require.NoError(t, err)
	assert.True(t, automine)
}

func TestConfigToggles(t *testing.T) {
	base, ctx := startAPI(t)
	api := NewConfigAPI(base)

	on, err := api.SetShowCalls(ctx, true)
	require.NoError(t, err)
	assert.True(t, on)
	on, err = api.GetShowCalls(ctx)
	require.NoError(t, err)
	assert.True(t, on)

	off, err := api.GetShowStorageLogs(ctx)
	require.NoError(t, err)
	assert.False(t, off)
}

func TestZksNamespace(t *testing.T) {
	base, ctx := startAPI(t)
	api := NewZksAPI(base)

	l1, err := api.L1ChainId(ctx)
	require.NoError(t, err)
	assert.Equal(t, hexutil.Uint64(params.DefaultL1ChainID), l1)

	price, err := api.GetTokenPrice(ctx, common.Address{})
	require.NoError(t, err)
	assert.Equal(t, "1500", price)

	_, err = api.GetTokenPrice(ctx, common.HexToAddress("0x1234"))
	require.Error(t, err)

	details, err := api.GetBlockDetails(ctx, rpc.BlockNumber(0))
	require.NoError(t, err)
	require.NotNil(t, details)
	assert.Equal(t, "verified", details.Status)
	assert.Equal(t, hexutil.Uint64(0), details.Number)
}

func TestZksEstimateFee(t *testing.T) {
	base, ctx := startAPI(t)
	api := NewZksAPI(base)
	from := params.RichWallets[0].Address
	to := common.HexToAddress("0x5555")

	fee, err := api.EstimateFee(ctx, CallArgs{From: &from, To: &to})
	require.NoError(t, err)
	assert.Equal(t, hexutil.Uint64(uint64(float64(params.TxGas)*params.EstimateGasScaleFactor)), fee.GasLimit)
	assert.Equal(t, uint256.NewInt(params.DefaultL2GasPrice).ToBig(), fee.MaxFeePerGas.ToInt())
}

func TestDebugTraceLatestOnly(t *testing.T) {
	base, ctx := startAPI(t)
	api := NewDebugAPI(base)
	from := params.RichWallets[0].Address
	to := common.HexToAddress("0x6666")
	value := hexutil.Big(*big.NewInt(1))

	frame, err := api.TraceCall(ctx, CallArgs{From: &from, To: &to, Value: &value}, nil)
	require.NoError(t, err)
	require.NotNil(t, frame)
	assert.Equal(t, "CALL", frame.Type)
	assert.Equal(t, from, frame.From)

	_, err = api.TraceBlockByNumber(ctx, rpc.BlockNumber(5))
	assert.ErrorIs(t, err, ErrNoHistoricalState)
}

func TestInProcDial(t *testing.T) {
	base, ctx := startAPI(t)
	_ = ctx

	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("eth", NewEthAPI(base)))
	t.Cleanup(srv.Stop)

	client := rpc.DialInProc(srv)
	t.Cleanup(client.Close)

	var id hexutil.Uint64
	require.NoError(t, client.Call(&id, "eth_chainId"))
	assert.Equal(t, hexutil.Uint64(params.DefaultChainID), id)

	var number hexutil.Uint64
	require.NoError(t, client.Call(&number, "eth_blockNumber"))
	assert.Equal(t, hexutil.Uint64(0), number)
}
