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

	"github.com/zkstack/zkanvil/core/types"
	"github.com/zkstack/zkanvil/params"
)

// EstimateGas binary-searches the smallest gas limit that executes
// successfully, probing through rebuild which re-creates the transaction
// with the candidate limit. Each probe runs above a throwaway state layer.
// The found limit is padded by the estimation scale factor and capped at
// the per-transaction maximum.
func EstimateGas(ctx context.Context, exec Executor, env *Environment, rebuild func(gas uint64) *types.Transaction) (uint64, error) {
	probe := func(gas uint64) (ok bool, err error) {
		env.State.Push()
		defer env.State.DropTop()
		res, err := exec.Execute(ctx, env, rebuild(gas), ModeEstimateGas)
		if err != nil {
			var halt *HaltError
			if errors.As(err, &halt) {
				return false, nil
			}
			return false, err
		}
		return res.Success, nil
	}

	lo, hi := uint64(params.TxGas-1), uint64(params.MaxTxGasLimit)
	ok, err := probe(hi)
	if err != nil {
		return 0, err
	}
	if !ok {
		res, execErr := exec.Execute(ctx, env, rebuild(hi), ModeEstimateGas)
		if execErr != nil {
			return 0, execErr
		}
		return 0, &RevertError{Reason: "execution reverted at maximum gas", Data: res.ReturnData}
	}

	for lo+1 < hi {
		mid := lo + (hi-lo)/2
		ok, err := probe(mid)
		if err != nil {
			return 0, err
		}
		if ok {
			hi = mid
		} else {
			lo = mid
		}
	}

	scaled := uint64(float64(hi) * params.EstimateGasScaleFactor)
	if scaled > params.MaxTxGasLimit {
		scaled = params.MaxTxGasLimit
	}
	return scaled, nil
}
