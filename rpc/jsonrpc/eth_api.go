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
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/zkstack/zkanvil/core/types"
	"github.com/zkstack/zkanvil/params"
)

// EthAPI is the standard Ethereum namespace served against the in-memory
// chain. State queries accept only the tip.
type EthAPI interface {
	ChainId(ctx context.Context) (hexutil.Uint64, error)
	BlockNumber(ctx context.Context) (hexutil.Uint64, error)
	GasPrice(ctx context.Context) (*hexutil.Big, error)
	Syncing(ctx context.Context) (interface{}, error)
	Accounts(ctx context.Context) ([]common.Address, error)

	GetBalance(ctx context.Context, address common.Address, number *rpc.BlockNumber) (*hexutil.Big, error)
	GetCode(ctx context.Context, address common.Address, number *rpc.BlockNumber) (hexutil.Bytes, error)
	GetStorageAt(ctx context.Context, address common.Address, slot common.Hash, number *rpc.BlockNumber) (hexutil.Bytes, error)
	GetTransactionCount(ctx context.Context, address common.Address, number *rpc.BlockNumber) (hexutil.Uint64, error)

	GetBlockByNumber(ctx context.Context, number rpc.BlockNumber, fullTx bool) (map[string]interface{}, error)
	GetBlockByHash(ctx context.Context, hash common.Hash, fullTx bool) (map[string]interface{}, error)
	GetBlockTransactionCountByNumber(ctx context.Context, number rpc.BlockNumber) (*hexutil.Uint, error)
	GetTransactionByHash(ctx context.Context, hash common.Hash) (*RPCTransaction, error)
	GetTransactionReceipt(ctx context.Context, hash common.Hash) (map[string]interface{}, error)

	Call(ctx context.Context, args CallArgs, number *rpc.BlockNumber) (hexutil.Bytes, error)
	EstimateGas(ctx context.Context, args CallArgs, number *rpc.BlockNumber) (hexutil.Uint64, error)
	SendRawTransaction(ctx context.Context, encoded hexutil.Bytes) (common.Hash, error)
	FeeHistory(ctx context.Context, blockCount hexutil.Uint64, newestBlock rpc.BlockNumber, rewardPercentiles []float64) (*FeeHistoryResult, error)
}

// APIImpl is implementation of the EthAPI interface.
type APIImpl struct {
	*BaseAPI
}

// NewEthAPI returns APIImpl instance.
func NewEthAPI(base *BaseAPI) *APIImpl {
	return &APIImpl{BaseAPI: base}
}

// ChainId implements eth_chainId.
func (api *APIImpl) ChainId(_ context.Context) (hexutil.Uint64, error) {
	return hexutil.Uint64(api.seq.ChainID()), nil
}

// BlockNumber implements eth_blockNumber.
func (api *APIImpl) BlockNumber(_ context.Context) (hexutil.Uint64, error) {
	return hexutil.Uint64(api.seq.BlockNumber()), nil
}

// GasPrice implements eth_gasPrice. The pending base-fee override is
// reflected ahead of the block that will consume it.
func (api *APIImpl) GasPrice(_ context.Context) (*hexutil.Big, error) {
	price := api.seq.Fees().GasPrice()
	if override := api.seq.Fees().PendingOverride(); override != nil {
		price = override
	}
	return (*hexutil.Big)(price.ToBig()), nil
}

// Syncing implements eth_syncing. The dev node is always at its own head.
func (api *APIImpl) Syncing(_ context.Context) (interface{}, error) {
	return false, nil
}

// Accounts implements eth_accounts, returning the pre-funded rich wallets.
func (api *APIImpl) Accounts(_ context.Context) ([]common.Address, error) {
	out := make([]common.Address, 0, len(params.RichWallets))
	for _, w := range params.RichWallets {
		out = append(out, w.Address)
	}
	return out, nil
}

// GetBalance implements eth_getBalance.
func (api *APIImpl) GetBalance(ctx context.Context, address common.Address, number *rpc.BlockNumber) (*hexutil.Big, error) {
	if err := api.requireLatest(number); err != nil {
		return nil, err
	}
	bal, err := api.seq.State().Balance(ctx, address)
	if err != nil {
		return nil, err
	}
	return (*hexutil.Big)(bal.ToBig()), nil
}

// GetCode implements eth_getCode.
func (api *APIImpl) GetCode(ctx context.Context, address common.Address, number *rpc.BlockNumber) (hexutil.Bytes, error) {
	if err := api.requireLatest(number); err != nil {
		return nil, err
	}
	code, err := api.seq.State().Code(ctx, address)
	if err != nil {
		return nil, err
	}
	return code, nil
}

// GetStorageAt implements eth_getStorageAt.
func (api *APIImpl) GetStorageAt(ctx context.Context, address common.Address, slot common.Hash, number *rpc.BlockNumber) (hexutil.Bytes, error) {
	if err := api.requireLatest(number); err != nil {
		return nil, err
	}
	value, err := api.seq.State().Slot(ctx, address, slot)
	if err != nil {
		return nil, err
	}
	return value.Bytes(), nil
}

// GetTransactionCount implements eth_getTransactionCount, reporting the tx
// nonce of the account's (deployment, tx) pair.
func (api *APIImpl) GetTransactionCount(ctx context.Context, address common.Address, number *rpc.BlockNumber) (hexutil.Uint64, error) {
	if err := api.requireLatest(number); err != nil {
		return 0, err
	}
	pair, err := api.seq.State().Nonce(ctx, address)
	if err != nil {
		return 0, err
	}
	return hexutil.Uint64(pair.Tx), nil
}

// GetBlockByNumber implements eth_getBlockByNumber.
func (api *APIImpl) GetBlockByNumber(_ context.Context, number rpc.BlockNumber, fullTx bool) (map[string]interface{}, error) {
	block := api.blockByNumber(number)
	if block == nil {
		return nil, nil
	}
	return api.marshalBlock(block, fullTx), nil
}

// GetBlockByHash implements eth_getBlockByHash.
func (api *APIImpl) GetBlockByHash(_ context.Context, hash common.Hash, fullTx bool) (map[string]interface{}, error) {
	block := api.seq.Index().BlockByHash(hash)
	if block == nil {
		return nil, nil
	}
	return api.marshalBlock(block, fullTx), nil
}

// GetBlockTransactionCountByNumber implements
// eth_getBlockTransactionCountByNumber.
func (api *APIImpl) GetBlockTransactionCountByNumber(_ context.Context, number rpc.BlockNumber) (*hexutil.Uint, error) {
	block := api.blockByNumber(number)
	if block == nil {
		return nil, nil
	}
	n := hexutil.Uint(len(block.Transactions))
	return &n, nil
}

// GetTransactionByHash implements eth_getTransactionByHash.
func (api *APIImpl) GetTransactionByHash(_ context.Context, hash common.Hash) (*RPCTransaction, error) {
	tx, loc, ok := api.seq.Index().Transaction(hash)
	if !ok {
		return nil, nil
	}
	return newRPCTransaction(tx, loc), nil
}

// GetTransactionReceipt implements eth_getTransactionReceipt.
func (api *APIImpl) GetTransactionReceipt(_ context.Context, hash common.Hash) (map[string]interface{}, error) {
	r := api.seq.Index().Receipt(hash)
	if r == nil {
		return nil, nil
	}
	return marshalReceipt(r), nil
}

// Call implements eth_call. Execution happens on a throwaway layer; reverts
// surface the return data.
func (api *APIImpl) Call(ctx context.Context, args CallArgs, number *rpc.BlockNumber) (hexutil.Bytes, error) {
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
	if !res.Success {
		return nil, &revertDataError{reason: "execution reverted", data: res.ReturnData}
	}
	return res.ReturnData, nil
}

// EstimateGas implements eth_estimateGas via the sequencer's binary search.
func (api *APIImpl) EstimateGas(ctx context.Context, args CallArgs, number *rpc.BlockNumber) (hexutil.Uint64, error) {
	if err := api.requireLatest(number); err != nil {
		return 0, err
	}
	nonce, err := api.callNonce(ctx, &args)
	if err != nil {
		return 0, err
	}
	gas, err := api.seq.EstimateGas(ctx, func(g uint64) *types.Transaction {
		return api.assemble(&args, g, nonce)
	})
	if err != nil {
		return 0, wrapExecError(err)
	}
	return hexutil.Uint64(gas), nil
}

// SendRawTransaction implements eth_sendRawTransaction. The envelope is
// decoded, the sender recovered, and the transaction submitted to the
// sequencer; in immediate mode the block is sealed before returning.
func (api *APIImpl) SendRawTransaction(ctx context.Context, encoded hexutil.Bytes) (common.Hash, error) {
	inner := new(ethtypes.Transaction)
	if err := inner.UnmarshalBinary(encoded); err != nil {
		return common.Hash{}, fmt.Errorf("decode transaction: %w", err)
	}
	signer := ethtypes.LatestSignerForChainID(inner.ChainId())
	from, err := signer.Sender(inner)
	if err != nil {
		return common.Hash{}, fmt.Errorf("recover sender: %w", err)
	}
	hash, err := api.seq.SubmitTransaction(ctx, types.NewSignedTransaction(inner, from))
	if err != nil {
		return common.Hash{}, wrapExecError(err)
	}
	return hash, nil
}

// FeeHistoryResult is the wire shape of eth_feeHistory.
type FeeHistoryResult struct {
	OldestBlock   hexutil.Uint64   `json:"oldestBlock"`
	BaseFeePerGas []*hexutil.Big   `json:"baseFeePerGas"`
	GasUsedRatio  []float64        `json:"gasUsedRatio"`
	Reward        [][]*hexutil.Big `json:"reward,omitempty"`
}

// FeeHistory implements eth_feeHistory against the chain index's base-fee
// history. Rewards are zero on the dev chain.
func (api *APIImpl) FeeHistory(_ context.Context, blockCount hexutil.Uint64, newestBlock rpc.BlockNumber, rewardPercentiles []float64) (*FeeHistoryResult, error) {
	if blockCount == 0 {
		return &FeeHistoryResult{}, nil
	}
	block := api.blockByNumber(newestBlock)
	if block == nil {
		return nil, ErrBlockNotFound
	}
	fees := api.seq.Index().BaseFeeHistory(int(blockCount))
	oldest := block.Number + 1 - uint64(len(fees))

	result := &FeeHistoryResult{
		OldestBlock:   hexutil.Uint64(oldest),
		BaseFeePerGas: make([]*hexutil.Big, 0, len(fees)+1),
		GasUsedRatio:  make([]float64, 0, len(fees)),
	}
	for _, fee := range fees {
		result.BaseFeePerGas = append(result.BaseFeePerGas, (*hexutil.Big)(fee.ToBig()))
		result.GasUsedRatio = append(result.GasUsedRatio, 0)
	}
	// the next block repeats the tip's fee unless an override is pending
	next := api.seq.Fees().GasPrice()
	if override := api.seq.Fees().PendingOverride(); override != nil {
		next = override
	}
	result.BaseFeePerGas = append(result.BaseFeePerGas, (*hexutil.Big)(next.ToBig()))

	if len(rewardPercentiles) > 0 {
		result.Reward = make([][]*hexutil.Big, len(fees))
		for i := range result.Reward {
			row := make([]*hexutil.Big, len(rewardPercentiles))
			for j := range row {
				row[j] = (*hexutil.Big)(common.Big0)
			}
			result.Reward[i] = row
		}
	}
	return result, nil
}
