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

import "fmt"

// HaltReason classifies system-level refusals. A halted transaction is
// never included in a block and never mutates state.
type HaltReason uint8

const (
	HaltAccountValidationFailed HaltReason = iota
	HaltPaymasterValidationFailed
	HaltFromIsNotAnAccount
	HaltNotEnoughFunds
	HaltInvalidNonce
	HaltTooBigGasLimit
	HaltValidationOutOfGas
	HaltBootloaderOutOfGas
	HaltFailedToMarkFactoryDeps
)

func (r HaltReason) String() string {
	switch r {
	case HaltAccountValidationFailed:
		return "account validation failed"
	case HaltPaymasterValidationFailed:
		return "paymaster validation failed"
	case HaltFromIsNotAnAccount:
		return "sender is not an account"
	case HaltNotEnoughFunds:
		return "not enough funds"
	case HaltInvalidNonce:
		return "invalid nonce"
	case HaltTooBigGasLimit:
		return "gas limit too big"
	case HaltValidationOutOfGas:
		return "validation ran out of gas"
	case HaltBootloaderOutOfGas:
		return "bootloader ran out of gas"
	case HaltFailedToMarkFactoryDeps:
		return "failed to mark factory dependencies"
	}
	return "unknown halt"
}

// HaltError is a validation-stage refusal: the transaction is dropped, not
// included.
type HaltError struct {
	Reason HaltReason
	Detail string
	Data   []byte
}

func (e *HaltError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("halted: %s", e.Reason)
	}
	return fmt.Sprintf("halted: %s: %s", e.Reason, e.Detail)
}

// Halt builds a HaltError with a formatted detail.
func Halt(reason HaltReason, format string, args ...any) *HaltError {
	return &HaltError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// RevertError is a user-level failure: the contract executed and reverted.
// The transaction is included with status 0.
type RevertError struct {
	Reason string
	Data   []byte
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return "execution reverted"
	}
	return fmt.Sprintf("execution reverted: %s", e.Reason)
}
