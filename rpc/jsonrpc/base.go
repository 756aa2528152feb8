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

// Package jsonrpc implements the node's JSON-RPC surface. Each namespace
// (eth_, zks_, anvil_, hardhat_, evm_, debug_, config_) is an interface plus
// an Impl struct dispatching into the sequencer's owner task.
package jsonrpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
	"github.com/ledgerwatch/log/v3"

	"github.com/zkstack/zkanvil/core/chain"
	"github.com/zkstack/zkanvil/core/types"
	"github.com/zkstack/zkanvil/core/vm"
	"github.com/zkstack/zkanvil/node"
)

var (
	// ErrBlockNotFound is returned for lookups of blocks the index does
	// not hold.
	ErrBlockNotFound = errors.New("block not found")

	// ErrNoHistoricalState is returned when a state query names a block
	// other than the tip. The node keeps only the latest state.
	ErrNoHistoricalState = errors.New("historical state is not available")

	// ErrValueOutOfRange is returned when a numeric argument exceeds 256
	// bits.
	ErrValueOutOfRange = errors.New("value does not fit in 256 bits")

	// ErrNotImplemented marks surface the node intentionally does not
	// serve.
	ErrNotImplemented = errors.New("method not implemented")
)

// BaseAPI carries the handles every namespace implementation shares.
type BaseAPI struct {
	seq    *node.Sequencer
	obs    *ObsConfig
	logger log.Logger
}

// NewBaseAPI wires the shared handles.
func NewBaseAPI(seq *node.Sequencer, obs *ObsConfig, logger log.Logger) *BaseAPI {
	return &BaseAPI{seq: seq, obs: obs, logger: logger}
}

// requireLatest admits "latest", "pending", "safe", "finalized", an absent
// number and the literal tip height. Everything else is historical state the
// node does not keep.
func (api *BaseAPI) requireLatest(number *rpc.BlockNumber) error {
	if number == nil {
		return nil
	}
	switch *number {
	case rpc.LatestBlockNumber, rpc.PendingBlockNumber, rpc.SafeBlockNumber, rpc.FinalizedBlockNumber:
		return nil
	}
	if *number < 0 {
		return fmt.Errorf("%w: unsupported block tag %d", ErrNoHistoricalState, *number)
	}
	if uint64(*number) != api.seq.BlockNumber() {
		return fmt.Errorf("%w: requested block %d, tip is %d", ErrNoHistoricalState, *number, api.seq.BlockNumber())
	}
	return nil
}

// blockByNumber resolves the symbolic tags against the chain index.
func (api *BaseAPI) blockByNumber(number rpc.BlockNumber) *types.Block {
	switch number {
	case rpc.LatestBlockNumber, rpc.PendingBlockNumber, rpc.SafeBlockNumber, rpc.FinalizedBlockNumber:
		return api.seq.Index().Latest()
	case rpc.EarliestBlockNumber:
		return api.seq.Index().BlockByNumber(0)
	}
	if number < 0 {
		return nil
	}
	return api.seq.Index().BlockByNumber(uint64(number))
}

// CallArgs is the object eth_call, eth_estimateGas and debug_traceCall
// accept.
type CallArgs struct {
	From                 *common.Address `json:"from"`
	To                   *common.Address `json:"to"`
	Gas                  *hexutil.Uint64 `json:"gas"`
	GasPrice             *hexutil.Big    `json:"gasPrice"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas"`
	Value                *hexutil.Big    `json:"value"`
	Nonce                *hexutil.Uint64 `json:"nonce"`
	Data                 *hexutil.Bytes  `json:"data"`
	Input                *hexutil.Bytes  `json:"input"`
}

func (args *CallArgs) data() []byte {
	if args.Input != nil {
		return *args.Input
	}
	if args.Data != nil {
		return *args.Data
	}
	return nil
}

func (args *CallArgs) from() common.Address {
	if args.From != nil {
		return *args.From
	}
	return common.Address{}
}

// assemble rebuilds the call as an impersonated envelope at the given gas
// limit. Fee fields default to values the interpreter accepts against the
// current base fee.
func (api *BaseAPI) assemble(args *CallArgs, gas uint64, nonce uint64) *types.Transaction {
	value := new(big.Int)
	if args.Value != nil {
		value = args.Value.ToInt()
	}
	feeCap := new(big.Int).SetUint64(api.seq.Fees().GasPrice().Uint64() * 2)
	if args.MaxFeePerGas != nil {
		feeCap = args.MaxFeePerGas.ToInt()
	} else if args.GasPrice != nil {
		feeCap = args.GasPrice.ToInt()
	}
	tipCap := big.NewInt(0)
	if args.MaxPriorityFeePerGas != nil {
		tipCap = args.MaxPriorityFeePerGas.ToInt()
	}
	inner := ethtypes.NewTx(&ethtypes.DynamicFeeTx{
		ChainID:   new(big.Int).SetUint64(api.seq.ChainID()),
		Nonce:     nonce,
		To:        args.To,
		Value:     value,
		Gas:       gas,
		GasFeeCap: feeCap,
		GasTipCap: tipCap,
		Data:      args.data(),
	})
	return types.NewImpersonatedTransaction(inner, args.from())
}

// callNonce picks the nonce for a synthetic call: the caller's explicit one,
// else the account's current tx nonce.
func (api *BaseAPI) callNonce(ctx context.Context, args *CallArgs) (uint64, error) {
	if args.Nonce != nil {
		return uint64(*args.Nonce), nil
	}
	pair, err := api.seq.State().Nonce(ctx, args.from())
	if err != nil {
		return 0, err
	}
	return pair.Tx, nil
}

// callGas picks the gas limit for a synthetic call, defaulting to the block
// gas limit the way the sealing path bounds batches.
func (args *CallArgs) callGas(fallback uint64) uint64 {
	if args.Gas != nil && *args.Gas > 0 {
		return uint64(*args.Gas)
	}
	return fallback
}

// revertDataError surfaces revert payloads through the rpc package's
// DataError so clients receive the raw return data alongside the message.
type revertDataError struct {
	reason string
	data   []byte
}

func (e *revertDataError) Error() string { return e.reason }

func (e *revertDataError) ErrorData() interface{} {
	if len(e.data) == 0 {
		return nil
	}
	return hexutil.Encode(e.data)
}

// wrapExecError folds the executor's failure taxonomy into rpc-shaped
// errors: halts keep their reason string, reverts carry data.
func wrapExecError(err error) error {
	var halt *vm.HaltError
	if errors.As(err, &halt) {
		return halt
	}
	var revert *vm.RevertError
	if errors.As(err, &revert) {
		return &revertDataError{reason: revert.Error(), data: revert.Data}
	}
	return err
}

// RPCTransaction is the wire shape of a transaction lookup.
type RPCTransaction struct {
	Hash             common.Hash     `json:"hash"`
	Nonce            hexutil.Uint64  `json:"nonce"`
	BlockHash        *common.Hash    `json:"blockHash"`
	BlockNumber      *hexutil.Big    `json:"blockNumber"`
	TransactionIndex *hexutil.Uint64 `json:"transactionIndex"`
	From             common.Address  `json:"from"`
	To               *common.Address `json:"to"`
	Value            *hexutil.Big    `json:"value"`
	Gas              hexutil.Uint64  `json:"gas"`
	GasPrice         *hexutil.Big    `json:"gasPrice"`
	MaxFeePerGas     *hexutil.Big    `json:"maxFeePerGas,omitempty"`
	MaxPriorityFee   *hexutil.Big    `json:"maxPriorityFeePerGas,omitempty"`
	Input            hexutil.Bytes   `json:"input"`
	Type             hexutil.Uint64  `json:"type"`
	ChainID          *hexutil.Big    `json:"chainId,omitempty"`
	V                *hexutil.Big    `json:"v"`
	R                *hexutil.Big    `json:"r"`
	S                *hexutil.Big    `json:"s"`
}

func newRPCTransaction(tx *types.Transaction, loc chain.TxLocation) *RPCTransaction {
	inner := tx.Inner()
	v, r, s := inner.RawSignatureValues()
	blockNumber := new(big.Int).SetUint64(loc.BlockNumber)
	blockHash := loc.BlockHash
	index := hexutil.Uint64(loc.Index)
	result := &RPCTransaction{
		Hash:             tx.Hash(),
		Nonce:            hexutil.Uint64(tx.Nonce()),
		BlockHash:        &blockHash,
		BlockNumber:      (*hexutil.Big)(blockNumber),
		TransactionIndex: &index,
		From:             tx.From(),
		To:               tx.To(),
		Value:            (*hexutil.Big)(inner.Value()),
		Gas:              hexutil.Uint64(tx.Gas()),
		GasPrice:         (*hexutil.Big)(inner.GasPrice()),
		Input:            tx.Data(),
		Type:             hexutil.Uint64(inner.Type()),
		V:                (*hexutil.Big)(v),
		R:                (*hexutil.Big)(r),
		S:                (*hexutil.Big)(s),
	}
	if inner.Type() == ethtypes.DynamicFeeTxType {
		result.MaxFeePerGas = (*hexutil.Big)(inner.GasFeeCap())
		result.MaxPriorityFee = (*hexutil.Big)(inner.GasTipCap())
	}
	if chainID := inner.ChainId(); chainID != nil && chainID.Sign() > 0 {
		result.ChainID = (*hexutil.Big)(chainID)
	}
	return result
}

// marshalReceipt renders a receipt the way eth_getTransactionReceipt
// expects, with the rollup's l1BatchNumber extension.
func marshalReceipt(r *types.Receipt) map[string]interface{} {
	logs := r.Logs
	if logs == nil {
		logs = []*ethtypes.Log{}
	}
	fields := map[string]interface{}{
		"transactionHash":   r.TxHash,
		"transactionIndex":  hexutil.Uint64(r.TxIndex),
		"blockHash":         r.BlockHash,
		"blockNumber":       hexutil.Uint64(r.BlockNumber),
		"from":              r.From,
		"to":                r.To,
		"gasUsed":           hexutil.Uint64(r.GasUsed),
		"cumulativeGasUsed": hexutil.Uint64(r.GasUsed),
		"effectiveGasPrice": (*hexutil.Big)(r.EffectiveGasPrice.ToBig()),
		"contractAddress":   r.ContractAddress,
		"logs":              logs,
		"logsBloom":         ethtypes.Bloom{},
		"status":            hexutil.Uint64(r.Status),
		"type":              hexutil.Uint64(ethtypes.DynamicFeeTxType),
		"l1BatchNumber":     hexutil.Uint64(r.L1BatchNumber),
	}
	return fields
}

// marshalBlock renders a block header plus either tx hashes or full tx
// objects.
func (api *BaseAPI) marshalBlock(block *types.Block, fullTx bool) map[string]interface{} {
	baseFee := uint256.NewInt(0)
	if block.BaseFee != nil {
		baseFee = block.BaseFee
	}
	fields := map[string]interface{}{
		"number":           hexutil.Uint64(block.Number),
		"hash":             block.Hash,
		"parentHash":       block.ParentHash,
		"timestamp":        hexutil.Uint64(block.Timestamp),
		"gasLimit":         hexutil.Uint64(block.GasLimit),
		"gasUsed":          hexutil.Uint64(block.GasUsed),
		"baseFeePerGas":    (*hexutil.Big)(baseFee.ToBig()),
		"l1BatchNumber":    hexutil.Uint64(block.L1BatchNumber),
		"miner":            common.Address{},
		"difficulty":       (*hexutil.Big)(new(big.Int)),
		"totalDifficulty":  (*hexutil.Big)(new(big.Int)),
		"extraData":        hexutil.Bytes{},
		"nonce":            ethtypes.BlockNonce{},
		"mixHash":          common.Hash{},
		"sha3Uncles":       ethtypes.EmptyUncleHash,
		"receiptsRoot":     ethtypes.EmptyReceiptsHash,
		"transactionsRoot": ethtypes.EmptyTxsHash,
		"stateRoot":        common.Hash{},
		"logsBloom":        ethtypes.Bloom{},
		"uncles":           []common.Hash{},
		"size":             hexutil.Uint64(0),
	}
	if !fullTx {
		fields["transactions"] = block.Transactions
		return fields
	}
	txs := make([]*RPCTransaction, 0, len(block.Transactions))
	for _, hash := range block.Transactions {
		tx, loc, ok := api.seq.Index().Transaction(hash)
		if !ok {
			continue
		}
		txs = append(txs, newRPCTransaction(tx, loc))
	}
	fields["transactions"] = txs
	return fields
}
