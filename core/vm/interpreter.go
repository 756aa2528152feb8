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
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/zkstack/zkanvil/core/state"
	"github.com/zkstack/zkanvil/core/types"
	"github.com/zkstack/zkanvil/params"
)

// ReferenceExecutorName selects the built-in interpreter.
const ReferenceExecutorName = "reference"

func init() {
	Register(ReferenceExecutorName, func() (Executor, error) {
		return &referenceExecutor{}, nil
	})
}

// referenceExecutor is the built-in interpreter: value transfers, contract
// publication, nonce and fee accounting and cheatcode dispatch, with
// deterministic intrinsic gas. Bytecode-level execution belongs to an
// external backend registered under its own name.
type referenceExecutor struct{}

func (e *referenceExecutor) Name() string { return ReferenceExecutorName }

func intrinsicGas(tx *types.Transaction) uint64 {
	gas := params.TxGas
	if tx.IsDeployment() {
		gas = params.TxGasContractCreation
	}
	return gas + params.TxDataGas*uint64(len(tx.Data()))
}

func (e *referenceExecutor) Execute(ctx context.Context, env *Environment, tx *types.Transaction, mode Mode) (*Result, error) {
	if tx.Gas() > params.MaxTxGasLimit {
		return nil, Halt(HaltTooBigGasLimit, "%d > %d", tx.Gas(), params.MaxTxGasLimit)
	}
	gasUsed := intrinsicGas(tx)
	if tx.Gas() < gasUsed {
		return nil, Halt(HaltValidationOutOfGas, "limit %d below intrinsic %d", tx.Gas(), gasUsed)
	}

	price := tx.EffectiveGasPrice(env.Block.BaseFee)
	from := tx.From()
	value := tx.Value()

	if mode == ModeNormal {
		pair, err := env.State.Nonce(ctx, from)
		if err != nil {
			return nil, err
		}
		if tx.Nonce() != pair.Tx {
			return nil, Halt(HaltInvalidNonce, "got %d, expected %d", tx.Nonce(), pair.Tx)
		}

		// worst-case prepayment uses the full gas limit
		cost := new(uint256.Int).Mul(price, uint256.NewInt(tx.Gas()))
		cost.Add(cost, value)
		balance, err := env.State.Balance(ctx, from)
		if err != nil {
			return nil, err
		}
		if balance.Lt(cost) {
			return nil, Halt(HaltNotEnoughFunds, "balance %s, need %s", balance, cost)
		}

		fee := new(uint256.Int).Mul(price, uint256.NewInt(gasUsed))
		if err := env.State.SubBalance(ctx, from, fee); err != nil {
			return nil, err
		}
		pair.Tx++
		if tx.IsDeployment() {
			pair.Deployment++
		}
		env.State.SetNonce(from, pair)
	}

	trace := &types.CallTrace{
		From:  from,
		Value: value,
		Input: tx.Data(),
		Gas:   tx.Gas(),
	}

	res := &Result{
		Success:           true,
		GasUsed:           gasUsed,
		EffectiveGasPrice: price,
		Trace:             trace,
	}

	// execution phase runs above its own layer so a revert unwinds the
	// call effects but keeps the fee and nonce accounting
	env.State.Push()
	execErr := e.run(ctx, env, tx, mode, res, trace)
	if execErr != nil {
		env.State.DropTop()
		var revert *RevertError
		if errors.As(execErr, &revert) {
			res.Success = false
			res.ReturnData = revert.Data
			trace.Error = execErr.Error()
			trace.RevertReason = revert.Reason
			trace.GasUsed = res.GasUsed
			return res, nil
		}
		return nil, execErr
	}
	env.State.CommitTop()
	trace.GasUsed = res.GasUsed
	trace.Output = res.ReturnData
	return res, nil
}

func (e *referenceExecutor) run(ctx context.Context, env *Environment, tx *types.Transaction, mode Mode, res *Result, trace *types.CallTrace) error {
	from := tx.From()
	value := tx.Value()

	if tx.IsDeployment() {
		trace.Kind = types.CallKindCreate
		// the create address binds to the nonce the transaction declared
		contract := crypto.CreateAddress(from, tx.Nonce())
		code := tx.Data()
		hash := crypto.Keccak256Hash(code)
		env.State.PublishCode(contract, hash, code)
		env.State.MarkFactoryDep(hash)
		res.ContractAddress = &contract
		trace.To = contract
		if err := e.transfer(ctx, env, from, contract, value, mode); err != nil {
			return err
		}
		return nil
	}

	to := *tx.To()
	trace.Kind = types.CallKindCall
	trace.To = to

	if to == params.CheatcodeAddress {
		caller := from
		if env.prankSender != nil {
			caller = *env.prankSender
		}
		out, err := dispatchCheat(ctx, env, tx.Data())
		if err != nil {
			return err
		}
		res.ReturnData = out
		trace.Calls = append(trace.Calls, &types.CallTrace{
			Kind:    types.CallKindCall,
			From:    caller,
			To:      params.CheatcodeAddress,
			Input:   tx.Data(),
			Output:  out,
			Gas:     trace.Gas,
			GasUsed: res.GasUsed,
		})
		return nil
	}

	return e.transfer(ctx, env, from, to, value, mode)
}

func (e *referenceExecutor) transfer(ctx context.Context, env *Environment, from, to common.Address, value *uint256.Int, mode Mode) error {
	if value.IsZero() || mode != ModeNormal {
		return nil
	}
	if err := env.State.SubBalance(ctx, from, value); err != nil {
		if errors.Is(err, state.ErrOverflow) {
			return &RevertError{Reason: "insufficient balance for transfer"}
		}
		return err
	}
	return env.State.AddBalance(ctx, to, value)
}
