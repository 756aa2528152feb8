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
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/zkstack/zkanvil/core/types"
	"github.com/zkstack/zkanvil/params"
)

// DebugAPI serves call tracing against the latest block only.
type DebugAPI interface {
	TraceCall(ctx context.Context, args CallArgs, number *rpc.BlockNumber) (*TraceFrame, error)
	TraceTransaction(ctx context.Context, hash common.Hash) (*TraceFrame, error)
	TraceBlockByNumber(ctx context.Context, number rpc.BlockNumber) ([]*TraceFrame, error)
}

// DebugAPIImpl is implementation of the DebugAPI interface.
type DebugAPIImpl struct {
	*BaseAPI
}

// NewDebugAPI returns DebugAPIImpl instance.
func NewDebugAPI(base *BaseAPI) *DebugAPIImpl {
	return &DebugAPIImpl{BaseAPI: base}
}

// TraceFrame is the wire shape of one call-tree frame, callTracer style.
type TraceFrame struct {
	Type         string          `json:"type"`
	From         common.Address  `json:"from"`
	To           *common.Address `json:"to,omitempty"`
	Value        *hexutil.Big    `json:"value,omitempty"`
	Gas          hexutil.Uint64  `json:"gas"`
	GasUsed      hexutil.Uint64  `json:"gasUsed"`
	Input        hexutil.Bytes   `json:"input"`
	Output       hexutil.Bytes   `json:"output,omitempty"`
	Error        string          `json:"error,omitempty"`
	RevertReason string          `json:"revertReason,omitempty"`
	Calls        []*TraceFrame   `json:"calls,omitempty"`
}

func marshalTrace(t *types.CallTrace) *TraceFrame {
	if t == nil {
		return nil
	}
	frame := &TraceFrame{
		Type:         t.Kind.String(),
		From:         t.From,
		Gas:          hexutil.Uint64(t.Gas),
		GasUsed:      hexutil.Uint64(t.GasUsed),
		Input:        t.Input,
		Output:       t.Output,
		Error:        t.Error,
		RevertReason: t.RevertReason,
	}
	if t.To != (common.Address{}) || t.Kind != types.CallKindCreate {
		to := t.To
		frame.To = &to
	}
	if t.Value != nil && !t.Value.IsZero() {
		frame.Value = (*hexutil.Big)(t.Value.ToBig())
	}
	for _, child := range t.Calls {
		frame.Calls = append(frame.Calls, marshalTrace(child))
	}
	return frame
}

// TraceCall implements debug_traceCall on a throwaway layer.
func (api *DebugAPIImpl) TraceCall(ctx context.Context, args CallArgs, number *rpc.BlockNumber) (*TraceFrame, error) {
	if err := api.requireLatest(number); err != nil {
		return nil, err
	}
	nonce, err := api.callNonce(ctx, &args)
	if err != nil {
		return nil, err
	}
	tx := api.assemble(&args, args.callGas(params.BlockGasLimit), nonce)
	res, err := api.seq.Call(ctx, tx)
	if err != nil {
		return nil, wrapExecError(err)
	}
	return marshalTrace(res.Trace), nil
}

// TraceTransaction implements debug_traceTransaction from the chain
// index's stored traces.
func (api *DebugAPIImpl) TraceTransaction(_ context.Context, hash common.Hash) (*TraceFrame, error) {
	trace := api.seq.Index().Trace(hash)
	if trace == nil {
		return nil, fmt.Errorf("transaction %s not found", hash)
	}
	return marshalTrace(trace), nil
}

// TraceBlockByNumber implements debug_traceBlockByNumber. Only the tip (or
// the latest tag) is traceable.
func (api *DebugAPIImpl) TraceBlockByNumber(_ context.Context, number rpc.BlockNumber) ([]*TraceFrame, error) {
	if number >= 0 && uint64(number) != api.seq.BlockNumber() {
		return nil, fmt.Errorf("%w: only the latest block is traceable", ErrNoHistoricalState)
	}
	block := api.blockByNumber(number)
	if block == nil {
		return nil, ErrBlockNotFound
	}
	frames := make([]*TraceFrame, 0, len(block.Transactions))
	for _, hash := range block.Transactions {
		frames = append(frames, marshalTrace(api.seq.Index().Trace(hash)))
	}
	return frames, nil
}
