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
	"github.com/holiman/uint256"

	"github.com/zkstack/zkanvil/core/types"
	"github.com/zkstack/zkanvil/params"
)

// ZksAPI is the rollup extension namespace.
type ZksAPI interface {
	L1ChainId(ctx context.Context) (hexutil.Uint64, error)
	GetTokenPrice(ctx context.Context, address common.Address) (string, error)
	EstimateFee(ctx context.Context, args CallArgs) (*Fee, error)
	GetBlockDetails(ctx context.Context, number rpc.BlockNumber) (*BlockDetails, error)
	GetTransactionDetails(ctx context.Context, hash common.Hash) (*TransactionDetails, error)
	GetL1BatchNumber(ctx context.Context) (hexutil.Uint64, error)
}

// ZksAPIImpl is implementation of the ZksAPI interface.
type ZksAPIImpl struct {
	*BaseAPI
}

// NewZksAPI returns ZksAPIImpl instance.
func NewZksAPI(base *BaseAPI) *ZksAPIImpl {
	return &ZksAPIImpl{BaseAPI: base}
}

// L1ChainId implements zks_L1ChainId.
func (api *ZksAPIImpl) L1ChainId(_ context.Context) (hexutil.Uint64, error) {
	return hexutil.Uint64(params.DefaultL1ChainID), nil
}

// GetTokenPrice implements zks_getTokenPrice. Only the base token is
// quoted.
func (api *ZksAPIImpl) GetTokenPrice(_ context.Context, address common.Address) (string, error) {
	if address != (common.Address{}) && address != params.BaseTokenAddress {
		return "", fmt.Errorf("no price oracle for token %s", address)
	}
	return "1500", nil
}

// Fee is the wire shape of zks_estimateFee.
type Fee struct {
	GasLimit             hexutil.Uint64 `json:"gas_limit"`
	GasPerPubdataLimit   hexutil.Uint64 `json:"gas_per_pubdata_limit"`
	MaxFeePerGas         *hexutil.Big   `json:"max_fee_per_gas"`
	MaxPriorityFeePerGas *hexutil.Big   `json:"max_priority_fee_per_gas"`
}

// EstimateFee implements zks_estimateFee: the gas-limit binary search plus
// the fee model's current prices, with the L1 component padded the same way
// estimation pads gas.
func (api *ZksAPIImpl) EstimateFee(ctx context.Context, args CallArgs) (*Fee, error) {
	nonce, err := api.callNonce(ctx, &args)
	if err != nil {
		return nil, err
	}
	gas, err := api.seq.EstimateGas(ctx, func(g uint64) *types.Transaction {
		return api.assemble(&args, g, nonce)
	})
	if err != nil {
		return nil, wrapExecError(err)
	}
	pubdata := api.seq.Fees().FairPubdataPrice().Uint64()
	gasPrice := api.seq.Fees().GasPrice()
	perPubdata := uint64(0)
	if p := gasPrice.Uint64(); p > 0 {
		perPubdata = (pubdata + p - 1) / p
	}
	return &Fee{
		GasLimit:             hexutil.Uint64(gas),
		GasPerPubdataLimit:   hexutil.Uint64(perPubdata),
		MaxFeePerGas:         (*hexutil.Big)(gasPrice.ToBig()),
		MaxPriorityFeePerGas: (*hexutil.Big)(common.Big0),
	}, nil
}

// BlockDetails is the wire shape of zks_getBlockDetails.
type BlockDetails struct {
	Number         hexutil.Uint64 `json:"number"`
	L1BatchNumber  hexutil.Uint64 `json:"l1BatchNumber"`
	Timestamp      hexutil.Uint64 `json:"timestamp"`
	L1TxCount      hexutil.Uint64 `json:"l1TxCount"`
	L2TxCount      hexutil.Uint64 `json:"l2TxCount"`
	RootHash       common.Hash    `json:"rootHash"`
	Status         string         `json:"status"`
	BaseFeePerGas  *hexutil.Big   `json:"baseFeePerGas"`
	L2FairGasPrice hexutil.Uint64 `json:"l2FairGasPrice"`
}

// GetBlockDetails implements zks_getBlockDetails. Every sealed block is
// reported verified since the dev chain has no prover pipeline.
func (api *ZksAPIImpl) GetBlockDetails(_ context.Context, number rpc.BlockNumber) (*BlockDetails, error) {
	block := api.blockByNumber(number)
	if block == nil {
		return nil, nil
	}
	batch := api.seq.Index().Batch(block.L1BatchNumber)
	root := common.Hash{}
	if batch != nil {
		root = batch.RootHash
	}
	return &BlockDetails{
		Number:         hexutil.Uint64(block.Number),
		L1BatchNumber:  hexutil.Uint64(block.L1BatchNumber),
		Timestamp:      hexutil.Uint64(block.Timestamp),
		L2TxCount:      hexutil.Uint64(len(block.Transactions)),
		RootHash:       root,
		Status:         "verified",
		BaseFeePerGas:  (*hexutil.Big)(block.BaseFee.ToBig()),
		L2FairGasPrice: hexutil.Uint64(api.seq.Fees().GasPrice().Uint64()),
	}, nil
}

// TransactionDetails is the wire shape of zks_getTransactionDetails.
type TransactionDetails struct {
	IsL1Originated   bool           `json:"isL1Originated"`
	Status           string         `json:"status"`
	Fee              *hexutil.Big   `json:"fee"`
	GasPerPubdata    hexutil.Uint64 `json:"gasPerPubdata"`
	InitiatorAddress common.Address `json:"initiatorAddress"`
}

// GetTransactionDetails implements zks_getTransactionDetails.
func (api *ZksAPIImpl) GetTransactionDetails(_ context.Context, hash common.Hash) (*TransactionDetails, error) {
	r := api.seq.Index().Receipt(hash)
	if r == nil {
		return nil, nil
	}
	status := "failed"
	if r.Succeeded() {
		status = "verified"
	}
	fee := new(uint256.Int).Mul(r.EffectiveGasPrice, uint256.NewInt(r.GasUsed))
	return &TransactionDetails{
		Status:           status,
		Fee:              (*hexutil.Big)(fee.ToBig()),
		InitiatorAddress: r.From,
	}, nil
}

// GetL1BatchNumber implements zks_L1BatchNumber.
func (api *ZksAPIImpl) GetL1BatchNumber(_ context.Context) (hexutil.Uint64, error) {
	block := api.seq.Index().Latest()
	if block == nil {
		return 0, nil
	}
	return hexutil.Uint64(block.L1BatchNumber), nil
}
