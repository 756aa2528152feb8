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
)

// HardhatAPIImpl serves the hardhat_ namespace. Hardhat names are aliases
// of the anvil admin operations, so the embedded implementation provides
// them all (hardhat_setBalance, hardhat_mine, hardhat_impersonateAccount
// and the rest resolve to the promoted anvil methods).
type HardhatAPIImpl struct {
	*AnvilAPIImpl
}

// NewHardhatAPI returns HardhatAPIImpl instance.
func NewHardhatAPI(anvil *AnvilAPIImpl) *HardhatAPIImpl {
	return &HardhatAPIImpl{AnvilAPIImpl: anvil}
}

// Reset implements hardhat_reset. Re-seeding a running chain is not
// supported; restart the node instead.
func (api *HardhatAPIImpl) Reset(_ context.Context) (bool, error) {
	return false, ErrNotImplemented
}
