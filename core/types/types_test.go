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

package types

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPayload(nonce uint64) *ethtypes.Transaction {
	to := common.HexToAddress("0x000000000000000000000000000000000000beef")
	return ethtypes.NewTx(&ethtypes.DynamicFeeTx{
		Nonce:     nonce,
		To:        &to,
		Value:     big.NewInt(1000),
		Gas:       21000,
		GasFeeCap: big.NewInt(2_000_000_000),
		GasTipCap: big.NewInt(1_000_000_000),
	})
}

func TestImpersonatedHashDependsOnInitiator(t *testing.T) {
	payload := newPayload(0)
	a := NewImpersonatedTransaction(payload, common.HexToAddress("0x01"))
	b := NewImpersonatedTransaction(payload, common.HexToAddress("0x02"))
	require.NotEqual(t, a.Hash(), b.Hash())
	assert.True(t, a.Impersonated())
	assert.Equal(t, common.HexToAddress("0x01"), a.From())
}

func TestSignedHashMatchesPayload(t *testing.T) {
	payload := newPayload(7)
	tx := NewSignedTransaction(payload, common.HexToAddress("0x01"))
	assert.Equal(t, payload.Hash(), tx.Hash())
	assert.False(t, tx.Impersonated())
	assert.Equal(t, uint64(7), tx.Nonce())
}

func TestEffectiveGasPrice(t *testing.T) {
	tx := NewSignedTransaction(newPayload(0), common.Address{})

	// base fee low enough that base+tip stays under the cap
	got := tx.EffectiveGasPrice(uint256.NewInt(500_000_000))
	assert.Equal(t, uint256.NewInt(1_500_000_000), got)

	// base fee pushing base+tip over the cap clamps to the cap
	got = tx.EffectiveGasPrice(uint256.NewInt(1_900_000_000))
	assert.Equal(t, uint256.NewInt(2_000_000_000), got)
}

func TestSealHashDeterminism(t *testing.T) {
	parent := common.HexToHash("0xaa")
	txs := []common.Hash{common.HexToHash("0x01"), common.HexToHash("0x02")}

	h1 := SealHash(5, parent, 1000, txs)
	h2 := SealHash(5, parent, 1000, txs)
	require.Equal(t, h1, h2)

	assert.NotEqual(t, h1, SealHash(6, parent, 1000, txs))
	assert.NotEqual(t, h1, SealHash(5, parent, 1001, txs))
	assert.NotEqual(t, h1, SealHash(5, parent, 1000, txs[:1]))
}
