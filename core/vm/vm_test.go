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

package vm

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zkstack/zkanvil/core/state"
	"github.com/zkstack/zkanvil/core/types"
	"github.com/zkstack/zkanvil/params"
)

type fakeHost struct {
	warped uint64
	rolled uint64
}

func (h *fakeHost) Warp(t uint64) error { h.warped = t; return nil }
func (h *fakeHost) Roll(n uint64) error { h.rolled = n; return nil }

func newEnv(host CheatHost) *Environment {
	return &Environment{
		State: state.New(nil),
		Block: BlockContext{Number: 1, Timestamp: 1000, BaseFee: uint256.NewInt(100), ChainID: params.DefaultChainID},
		Host:  host,
	}
}

func transferTx(from common.Address, to common.Address, nonce uint64, value *big.Int, gas uint64) *types.Transaction {
	inner := ethtypes.NewTx(&ethtypes.DynamicFeeTx{
		Nonce: nonce, To: &to, Value: value,
		Gas: gas, GasFeeCap: big.NewInt(1000), GasTipCap: big.NewInt(10),
	})
	return types.NewImpersonatedTransaction(inner, from)
}

func deployTx(from common.Address, nonce uint64, code []byte) *types.Transaction {
	inner := ethtypes.NewTx(&ethtypes.DynamicFeeTx{
		Nonce: nonce, Value: big.NewInt(0), Data: code,
		Gas: 1_000_000, GasFeeCap: big.NewInt(1000), GasTipCap: big.NewInt(10),
	})
	return types.NewImpersonatedTransaction(inner, from)
}

func cheatTx(from common.Address, nonce uint64, input []byte) *types.Transaction {
	inner := ethtypes.NewTx(&ethtypes.DynamicFeeTx{
		Nonce: nonce, To: &params.CheatcodeAddress, Value: big.NewInt(0), Data: input,
		Gas: 1_000_000, GasFeeCap: big.NewInt(1000), GasTipCap: big.NewInt(10),
	})
	return types.NewImpersonatedTransaction(inner, from)
}

func fund(env *Environment, addr common.Address) {
	env.State.SetBalance(addr, uint256.MustFromDecimal("10000000000000000000000"))
}

var sender = common.HexToAddress("0x1111")

func TestTransferMovesValueAndBumpsNonce(t *testing.T) {
	ctx := context.Background()
	exec, err := NewExecutor(ReferenceExecutorName)
	require.NoError(t, err)
	env := newEnv(&fakeHost{})
	fund(env, sender)
	to := common.HexToAddress("0x2222")

	res, err := exec.Execute(ctx, env, transferTx(sender, to, 0, big.NewInt(1000), 50_000), ModeNormal)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, params.TxGas, res.GasUsed)

	got, _ := env.State.Balance(ctx, to)
	assert.Equal(t, uint256.NewInt(1000), got)
	pair, _ := env.State.Nonce(ctx, sender)
	assert.Equal(t, uint64(1), pair.Tx)
	assert.Equal(t, uint64(0), pair.Deployment)

	require.NotNil(t, res.Trace)
	assert.Equal(t, types.CallKindCall, res.Trace.Kind)
	assert.Equal(t, to, res.Trace.To)
}

func TestHaltsDoNotMutateState(t *testing.T) {
	ctx := context.Background()
	exec, _ := NewExecutor(ReferenceExecutorName)
	env := newEnv(&fakeHost{})
	to := common.HexToAddress("0x2222")

	// wrong nonce
	fund(env, sender)
	_, err := exec.Execute(ctx, env, transferTx(sender, to, 5, big.NewInt(1), 50_000), ModeNormal)
	var halt *HaltError
	require.ErrorAs(t, err, &halt)
	assert.Equal(t, HaltInvalidNonce, halt.Reason)

	// no funds
	poor := common.HexToAddress("0x3333")
	_, err = exec.Execute(ctx, env, transferTx(poor, to, 0, big.NewInt(1), 50_000), ModeNormal)
	require.ErrorAs(t, err, &halt)
	assert.Equal(t, HaltNotEnoughFunds, halt.Reason)

	// over the cap
	_, err = exec.Execute(ctx, env, transferTx(sender, to, 0, big.NewInt(1), params.MaxTxGasLimit+1), ModeNormal)
	require.ErrorAs(t, err, &halt)
	assert.Equal(t, HaltTooBigGasLimit, halt.Reason)

	// below intrinsic
	_, err = exec.Execute(ctx, env, transferTx(sender, to, 0, big.NewInt(1), 100), ModeNormal)
	require.ErrorAs(t, err, &halt)
	assert.Equal(t, HaltValidationOutOfGas, halt.Reason)

	pair, _ := env.State.Nonce(ctx, sender)
	assert.Equal(t, uint64(0), pair.Tx, "halts must not bump the nonce")
	bal, _ := env.State.Balance(ctx, to)
	assert.True(t, bal.IsZero())
}

func TestDeploymentPublishesCode(t *testing.T) {
	ctx := context.Background()
	exec, _ := NewExecutor(ReferenceExecutorName)
	env := newEnv(&fakeHost{})
	fund(env, sender)
	code := []byte{0x60, 0x80, 0x60, 0x40}

	res, err := exec.Execute(ctx, env, deployTx(sender, 0, code), ModeNormal)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.NotNil(t, res.ContractAddress)
	assert.Equal(t, crypto.CreateAddress(sender, 0), *res.ContractAddress)

	got, _ := env.State.Code(ctx, *res.ContractAddress)
	assert.Equal(t, code, got)
	assert.True(t, env.State.IsFactoryDep(crypto.Keccak256Hash(code)))

	pair, _ := env.State.Nonce(ctx, sender)
	assert.Equal(t, uint64(1), pair.Tx)
	assert.Equal(t, uint64(1), pair.Deployment)
	assert.Equal(t, types.CallKindCreate, res.Trace.Kind)
}

func TestEthCallSkipsFeesAndNonces(t *testing.T) {
	ctx := context.Background()
	exec, _ := NewExecutor(ReferenceExecutorName)
	env := newEnv(&fakeHost{})
	to := common.HexToAddress("0x2222")

	// unfunded sender with a wrong nonce still succeeds
	res, err := exec.Execute(ctx, env, transferTx(sender, to, 99, big.NewInt(1000), 50_000), ModeEthCall)
	require.NoError(t, err)
	assert.True(t, res.Success)

	pair, _ := env.State.Nonce(ctx, sender)
	assert.Equal(t, uint64(0), pair.Tx)
	bal, _ := env.State.Balance(ctx, to)
	assert.True(t, bal.IsZero())
}

func encodeDeal(addr common.Address, amount *uint256.Int) []byte {
	input := crypto.Keccak256([]byte("deal(address,uint256)"))[:4]
	input = append(input, common.LeftPadBytes(addr.Bytes(), 32)...)
	b := amount.Bytes32()
	return append(input, b[:]...)
}

func TestCheatDeal(t *testing.T) {
	ctx := context.Background()
	exec, _ := NewExecutor(ReferenceExecutorName)
	env := newEnv(&fakeHost{})
	fund(env, sender)
	target := common.HexToAddress("0x4444")

	res, err := exec.Execute(ctx, env, cheatTx(sender, 0, encodeDeal(target, uint256.NewInt(0x2386F26FC10000))), ModeNormal)
	require.NoError(t, err)
	require.True(t, res.Success)

	bal, _ := env.State.Balance(ctx, target)
	assert.Equal(t, uint256.NewInt(0x2386F26FC10000), bal)
	require.Len(t, res.Trace.Calls, 1)
	assert.Equal(t, params.CheatcodeAddress, res.Trace.Calls[0].To)
}

func TestCheatWarpAndRoll(t *testing.T) {
	ctx := context.Background()
	exec, _ := NewExecutor(ReferenceExecutorName)
	host := &fakeHost{}
	env := newEnv(host)
	fund(env, sender)

	warp := crypto.Keccak256([]byte("warp(uint256)"))[:4]
	warp = append(warp, common.LeftPadBytes(uint256.NewInt(9000).Bytes(), 32)...)
	_, err := exec.Execute(ctx, env, cheatTx(sender, 0, warp), ModeNormal)
	require.NoError(t, err)
	assert.Equal(t, uint64(9000), host.warped)

	roll := crypto.Keccak256([]byte("roll(uint256)"))[:4]
	roll = append(roll, common.LeftPadBytes(uint256.NewInt(77).Bytes(), 32)...)
	_, err = exec.Execute(ctx, env, cheatTx(sender, 1, roll), ModeNormal)
	require.NoError(t, err)
	assert.Equal(t, uint64(77), host.rolled)
}

func TestCheatStoreLoadAndNonce(t *testing.T) {
	ctx := context.Background()
	exec, _ := NewExecutor(ReferenceExecutorName)
	env := newEnv(&fakeHost{})
	fund(env, sender)
	target := common.HexToAddress("0x4444")
	slot := common.HexToHash("0x05")

	input := crypto.Keccak256([]byte("store(address,bytes32,bytes32)"))[:4]
	input = append(input, common.LeftPadBytes(target.Bytes(), 32)...)
	input = append(input, slot.Bytes()...)
	input = append(input, common.HexToHash("0xabcd").Bytes()...)
	_, err := exec.Execute(ctx, env, cheatTx(sender, 0, input), ModeNormal)
	require.NoError(t, err)

	load := crypto.Keccak256([]byte("load(address,bytes32)"))[:4]
	load = append(load, common.LeftPadBytes(target.Bytes(), 32)...)
	load = append(load, slot.Bytes()...)
	res, err := exec.Execute(ctx, env, cheatTx(sender, 1, load), ModeNormal)
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0xabcd").Bytes(), common.LeftPadBytes(res.ReturnData, 32))

	setNonce := crypto.Keccak256([]byte("setNonce(address,uint64)"))[:4]
	setNonce = append(setNonce, common.LeftPadBytes(target.Bytes(), 32)...)
	setNonce = append(setNonce, common.LeftPadBytes(uint256.NewInt(42).Bytes(), 32)...)
	_, err = exec.Execute(ctx, env, cheatTx(sender, 2, setNonce), ModeNormal)
	require.NoError(t, err)
	pair, _ := env.State.Nonce(ctx, target)
	assert.Equal(t, uint64(42), pair.Tx)
}

func TestUnknownCheatReverts(t *testing.T) {
	ctx := context.Background()
	exec, _ := NewExecutor(ReferenceExecutorName)
	env := newEnv(&fakeHost{})
	fund(env, sender)

	res, err := exec.Execute(ctx, env, cheatTx(sender, 0, []byte{0xde, 0xad, 0xbe, 0xef}), ModeNormal)
	require.NoError(t, err)
	assert.False(t, res.Success, "unknown selector reverts, tx still included")

	// fee and nonce accounting survive the revert
	pair, _ := env.State.Nonce(ctx, sender)
	assert.Equal(t, uint64(1), pair.Tx)
}

func TestEstimateGasFindsIntrinsic(t *testing.T) {
	ctx := context.Background()
	exec, _ := NewExecutor(ReferenceExecutorName)
	env := newEnv(&fakeHost{})
	to := common.HexToAddress("0x2222")

	rebuild := func(gas uint64) *types.Transaction {
		return transferTx(sender, to, 0, big.NewInt(0), gas)
	}
	got, err := EstimateGas(ctx, exec, env, rebuild)
	require.NoError(t, err)
	want := uint64(float64(params.TxGas) * params.EstimateGasScaleFactor)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, env.State.Depth(), "probes must not leak layers")
}

func TestExecutorRegistry(t *testing.T) {
	_, err := NewExecutor("no-such-backend")
	assert.Error(t, err)
	assert.Contains(t, ExecutorNames(), ReferenceExecutorName)
}
