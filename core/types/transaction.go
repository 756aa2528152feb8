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

// Package types declares the chain artifacts the node produces and serves:
// the transaction envelope, sealed blocks, receipts, call traces and L1
// batches. Addresses, hashes and logs reuse go-ethereum's types so the RPC
// layer can marshal them without translation.
package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Transaction is the envelope the sequencer schedules. It wraps either a
// signed raw transaction or an impersonated pseudo-transaction submitted on
// behalf of an address whose key the node does not hold. The initiator is
// resolved once at submission time (signature recovery or the impersonated
// address) and carried alongside the payload.
type Transaction struct {
	inner        *ethtypes.Transaction
	from         common.Address
	impersonated bool

	hash common.Hash
}

// NewSignedTransaction wraps a signature-recovered raw transaction.
func NewSignedTransaction(inner *ethtypes.Transaction, from common.Address) *Transaction {
	return &Transaction{inner: inner, from: from, hash: inner.Hash()}
}

// NewImpersonatedTransaction wraps an unsigned transaction executed as
// though it were signed by from. The hash is derived from the payload hash
// and the initiator so two impersonated senders submitting identical
// payloads do not collide.
func NewImpersonatedTransaction(inner *ethtypes.Transaction, from common.Address) *Transaction {
	h := crypto.Keccak256Hash(inner.Hash().Bytes(), from.Bytes())
	return &Transaction{inner: inner, from: from, impersonated: true, hash: h}
}

// Hash returns the identity of the envelope. For signed transactions this is
// the raw transaction hash.
func (tx *Transaction) Hash() common.Hash { return tx.hash }

// From returns the initiator address.
func (tx *Transaction) From() common.Address { return tx.from }

// Impersonated reports whether signature validation was skipped at
// submission.
func (tx *Transaction) Impersonated() bool { return tx.impersonated }

// Inner exposes the wrapped payload for RPC marshalling.
func (tx *Transaction) Inner() *ethtypes.Transaction { return tx.inner }

func (tx *Transaction) Nonce() uint64      { return tx.inner.Nonce() }
func (tx *Transaction) Gas() uint64        { return tx.inner.Gas() }
func (tx *Transaction) To() *common.Address { return tx.inner.To() }
func (tx *Transaction) Data() []byte       { return tx.inner.Data() }

// Value returns the transferred amount.
func (tx *Transaction) Value() *uint256.Int {
	v, _ := uint256.FromBig(tx.inner.Value())
	return v
}

// GasFeeCap returns the maximum fee per gas the initiator is willing to pay.
func (tx *Transaction) GasFeeCap() *uint256.Int {
	v, _ := uint256.FromBig(tx.inner.GasFeeCap())
	return v
}

// GasTipCap returns the priority fee per gas.
func (tx *Transaction) GasTipCap() *uint256.Int {
	v, _ := uint256.FromBig(tx.inner.GasTipCap())
	return v
}

// EffectiveGasPrice resolves the per-gas price actually charged against the
// given base fee: min(feeCap, baseFee+tipCap) for dynamic-fee payloads, the
// declared gas price for legacy ones.
func (tx *Transaction) EffectiveGasPrice(baseFee *uint256.Int) *uint256.Int {
	if tx.inner.Type() == ethtypes.LegacyTxType {
		p, _ := uint256.FromBig(tx.inner.GasPrice())
		return p
	}
	tip := tx.GasTipCap()
	cap := tx.GasFeeCap()
	price := new(uint256.Int).Add(baseFee, tip)
	if price.Gt(cap) {
		price.Set(cap)
	}
	return price
}

// IsDeployment reports whether the payload creates a contract.
func (tx *Transaction) IsDeployment() bool { return tx.inner.To() == nil }

// BigValue returns the transferred amount as a big.Int for go-ethereum
// interop.
func (tx *Transaction) BigValue() *big.Int { return tx.inner.Value() }
