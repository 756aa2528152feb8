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
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// CheatHost is the node surface cheatcodes mutate beyond plain state:
// virtual time and the block counter. The sequencer implements it; the same
// methods back the anvil_ admin RPCs so each operation has exactly one
// implementation.
type CheatHost interface {
	Warp(t uint64) error
	Roll(n uint64) error
}

func selector(sig string) [4]byte {
	var s [4]byte
	copy(s[:], crypto.Keccak256([]byte(sig))[:4])
	return s
}

var (
	selDeal          = selector("deal(address,uint256)")
	selEtch          = selector("etch(address,bytes)")
	selStore         = selector("store(address,bytes32,bytes32)")
	selLoad          = selector("load(address,bytes32)")
	selSetNonce      = selector("setNonce(address,uint64)")
	selGetNonce      = selector("getNonce(address)")
	selWarp          = selector("warp(uint256)")
	selRoll          = selector("roll(uint256)")
	selAddr          = selector("addr(uint256)")
	selStartPrank1   = selector("startPrank(address)")
	selStartPrank2   = selector("startPrank(address,address)")
	selStopPrank     = selector("stopPrank()")
)

func word(input []byte, i int) ([]byte, error) {
	off := i * 32
	if len(input) < off+32 {
		return nil, fmt.Errorf("cheatcode calldata too short: want word %d, have %d bytes", i, len(input))
	}
	return input[off : off+32], nil
}

func wordAddress(input []byte, i int) (common.Address, error) {
	w, err := word(input, i)
	if err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(w[12:]), nil
}

func wordU256(input []byte, i int) (*uint256.Int, error) {
	w, err := word(input, i)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).SetBytes(w), nil
}

// dispatchCheat executes one call to the cheatcode address. Failures are
// reverts, not halts: the surrounding transaction is still included.
func dispatchCheat(ctx context.Context, env *Environment, input []byte) ([]byte, error) {
	if len(input) < 4 {
		return nil, &RevertError{Reason: "missing cheatcode selector"}
	}
	var sel [4]byte
	copy(sel[:], input[:4])
	args := input[4:]

	switch sel {
	case selDeal:
		addr, err := wordAddress(args, 0)
		if err != nil {
			return nil, &RevertError{Reason: err.Error()}
		}
		amount, err := wordU256(args, 1)
		if err != nil {
			return nil, &RevertError{Reason: err.Error()}
		}
		env.State.SetBalance(addr, amount)
		return nil, nil

	case selEtch:
		addr, err := wordAddress(args, 0)
		if err != nil {
			return nil, &RevertError{Reason: err.Error()}
		}
		// dynamic bytes: word 1 is the offset, then length and payload
		off, err := wordU256(args, 1)
		if err != nil {
			return nil, &RevertError{Reason: err.Error()}
		}
		o := int(off.Uint64())
		if len(args) < o+32 {
			return nil, &RevertError{Reason: "etch: truncated calldata"}
		}
		length := int(new(uint256.Int).SetBytes(args[o : o+32]).Uint64())
		if len(args) < o+32+length {
			return nil, &RevertError{Reason: "etch: truncated bytecode"}
		}
		code := make([]byte, length)
		copy(code, args[o+32:o+32+length])
		env.State.PublishCode(addr, crypto.Keccak256Hash(code), code)
		return nil, nil

	case selStore:
		addr, err := wordAddress(args, 0)
		if err != nil {
			return nil, &RevertError{Reason: err.Error()}
		}
		slot, err := word(args, 1)
		if err != nil {
			return nil, &RevertError{Reason: err.Error()}
		}
		value, err := word(args, 2)
		if err != nil {
			return nil, &RevertError{Reason: err.Error()}
		}
		env.State.SetSlot(addr, common.BytesToHash(slot), common.BytesToHash(value))
		return nil, nil

	case selLoad:
		addr, err := wordAddress(args, 0)
		if err != nil {
			return nil, &RevertError{Reason: err.Error()}
		}
		slot, err := word(args, 1)
		if err != nil {
			return nil, &RevertError{Reason: err.Error()}
		}
		v, err := env.State.Slot(ctx, addr, common.BytesToHash(slot))
		if err != nil {
			return nil, err
		}
		return v.Bytes(), nil

	case selSetNonce:
		addr, err := wordAddress(args, 0)
		if err != nil {
			return nil, &RevertError{Reason: err.Error()}
		}
		n, err := wordU256(args, 1)
		if err != nil {
			return nil, &RevertError{Reason: err.Error()}
		}
		pair, err := env.State.Nonce(ctx, addr)
		if err != nil {
			return nil, err
		}
		pair.Tx = n.Uint64()
		env.State.SetNonce(addr, pair)
		return nil, nil

	case selGetNonce:
		addr, err := wordAddress(args, 0)
		if err != nil {
			return nil, &RevertError{Reason: err.Error()}
		}
		pair, err := env.State.Nonce(ctx, addr)
		if err != nil {
			return nil, err
		}
		out := make([]byte, 32)
		binary.BigEndian.PutUint64(out[24:], pair.Tx)
		return out, nil

	case selWarp:
		t, err := wordU256(args, 0)
		if err != nil {
			return nil, &RevertError{Reason: err.Error()}
		}
		if err := env.Host.Warp(t.Uint64()); err != nil {
			return nil, &RevertError{Reason: err.Error()}
		}
		return nil, nil

	case selRoll:
		n, err := wordU256(args, 0)
		if err != nil {
			return nil, &RevertError{Reason: err.Error()}
		}
		if err := env.Host.Roll(n.Uint64()); err != nil {
			return nil, &RevertError{Reason: err.Error()}
		}
		return nil, nil

	case selAddr:
		pk, err := word(args, 0)
		if err != nil {
			return nil, &RevertError{Reason: err.Error()}
		}
		key, err := crypto.ToECDSA(pk)
		if err != nil {
			return nil, &RevertError{Reason: fmt.Sprintf("addr: invalid private key: %v", err)}
		}
		derived := crypto.PubkeyToAddress(key.PublicKey)
		out := make([]byte, 32)
		copy(out[12:], derived.Bytes())
		return out, nil

	case selStartPrank1:
		sender, err := wordAddress(args, 0)
		if err != nil {
			return nil, &RevertError{Reason: err.Error()}
		}
		env.prankSender = &sender
		env.prankOrigin = nil
		return nil, nil

	case selStartPrank2:
		sender, err := wordAddress(args, 0)
		if err != nil {
			return nil, &RevertError{Reason: err.Error()}
		}
		origin, err := wordAddress(args, 1)
		if err != nil {
			return nil, &RevertError{Reason: err.Error()}
		}
		env.prankSender = &sender
		env.prankOrigin = &origin
		return nil, nil

	case selStopPrank:
		env.prankSender = nil
		env.prankOrigin = nil
		return nil, nil
	}

	return nil, &RevertError{Reason: fmt.Sprintf("unknown cheatcode selector %x", sel)}
}
