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

// Package params holds the protocol constants of the dev node: chain ids,
// the fee model defaults, gas bounds and the pre-funded account set.
package params

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const (
	// DefaultChainID is the L2 chain id the node starts with.
	DefaultChainID uint64 = 260

	// DefaultL1ChainID is returned from zks_L1ChainId when no fork is active.
	DefaultL1ChainID uint64 = 31337

	// DefaultPort is the JSON-RPC listen port.
	DefaultPort = 8011

	// DefaultL1GasPrice mirrors mainnet-ish L1 pricing used by the fee model.
	DefaultL1GasPrice uint64 = 14_932_364_075

	// DefaultL2GasPrice is the fair L2 gas price charged per unit of gas.
	DefaultL2GasPrice uint64 = 45_250_000

	// DefaultFairPubdataPrice is the price per pubdata byte.
	DefaultFairPubdataPrice uint64 = 13_607_659_111

	// EstimateGasScaleFactor pads binary-search gas estimates.
	EstimateGasScaleFactor = 1.3

	// EstimateGasPriceScaleFactor pads L1 gas price during estimation.
	EstimateGasPriceScaleFactor = 2.0

	// BlockGasLimit is the gas target for a single sealed block.
	BlockGasLimit uint64 = 100_000_000

	// MaxTxGasLimit is the hard per-transaction gas cap. Transactions
	// requesting more are halted during validation.
	MaxTxGasLimit uint64 = 80_000_000

	// TxGas is the intrinsic cost charged for every transaction.
	TxGas uint64 = 21_000

	// TxGasContractCreation is the intrinsic cost of a deployment.
	TxGasContractCreation uint64 = 53_000

	// TxDataGas is the per-byte cost of calldata.
	TxDataGas uint64 = 16

	// SnapshotDepthLimit bounds how many chain-level snapshots may be
	// outstanding at once.
	SnapshotDepthLimit = 100
)

// CheatcodeAddress is the reserved address intercepted by the node inside VM
// execution. Calls to it mutate node state instead of running bytecode.
var CheatcodeAddress = common.HexToAddress("0x7109709ECfa91a80626fF3989D68f67F5b1DD12D")

// NonceHolderAddress is the system contract tracking (deployment, tx) nonces.
var NonceHolderAddress = common.HexToAddress("0x0000000000000000000000000000000000008003")

// BaseTokenAddress is the system contract tracking base-token balances.
var BaseTokenAddress = common.HexToAddress("0x000000000000000000000000000000000000800a")

// RichBalance is the balance every rich account starts with: 10^22 wei
// (10,000 ETH).
func RichBalance() *uint256.Int {
	b := uint256.NewInt(10)
	return b.Exp(b, uint256.NewInt(22))
}
