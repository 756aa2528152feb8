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
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// CallKind discriminates the frame types of a call trace.
type CallKind uint8

const (
	CallKindCall CallKind = iota
	CallKindCreate
	CallKindDelegateCall
	CallKindStaticCall
)

func (k CallKind) String() string {
	switch k {
	case CallKindCall:
		return "CALL"
	case CallKindCreate:
		return "CREATE"
	case CallKindDelegateCall:
		return "DELEGATECALL"
	case CallKindStaticCall:
		return "STATICCALL"
	}
	return "UNKNOWN"
}

// CallTrace is one frame of the hierarchical call tree captured during
// execution. Child frames appear in execution order.
type CallTrace struct {
	Kind    CallKind
	From    common.Address
	To      common.Address
	Value   *uint256.Int
	Input   []byte
	Output  []byte
	Gas     uint64
	GasUsed uint64

	// Error is set when the frame halted or reverted; RevertReason carries
	// the decoded reason string when one could be extracted.
	Error        string
	RevertReason string

	Calls []*CallTrace
}

// Failed reports whether the frame did not complete successfully.
func (t *CallTrace) Failed() bool { return t.Error != "" }
