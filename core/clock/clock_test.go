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

package clock

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvanceAndSet(t *testing.T) {
	c := NewClock(1000)
	assert.Equal(t, uint64(1000), c.Now())

	c.Advance(5)
	assert.Equal(t, uint64(1005), c.Now())

	require.NoError(t, c.Set(2000))
	assert.Equal(t, uint64(2000), c.Now())

	assert.ErrorIs(t, c.Set(2000), ErrBackwardTime)
	assert.ErrorIs(t, c.Set(100), ErrBackwardTime)
}

func TestAdvanceForBlockUsesInterval(t *testing.T) {
	c := NewClock(1000)
	assert.Equal(t, uint64(1001), c.AdvanceForBlock())
	assert.Equal(t, uint64(1002), c.AdvanceForBlock())

	c.SetInterval(42)
	assert.Equal(t, uint64(1044), c.AdvanceForBlock())

	c.RemoveInterval()
	assert.Equal(t, uint64(1045), c.AdvanceForBlock())
}

func TestNextTimestampOverrideConsumedOnce(t *testing.T) {
	c := NewClock(1000)
	require.NoError(t, c.SetNextTimestamp(5000))
	assert.ErrorIs(t, c.SetNextTimestamp(999), ErrBackwardTime)

	assert.Equal(t, uint64(5000), c.AdvanceForBlock())
	// following block falls back to the interval
	assert.Equal(t, uint64(5001), c.AdvanceForBlock())
}

func TestCaptureRestore(t *testing.T) {
	c := NewClock(1000)
	c.SetInterval(10)
	require.NoError(t, c.SetNextTimestamp(2000))

	snap := c.Capture()
	assert.Equal(t, uint64(2000), c.AdvanceForBlock())
	c.SetInterval(99)

	c.Restore(snap)
	assert.Equal(t, uint64(1000), c.Now())
	assert.Equal(t, uint64(10), c.Interval())
	assert.Equal(t, uint64(2000), c.AdvanceForBlock(), "restored override is armed again")
}

func TestFeeOracleDefaults(t *testing.T) {
	f := NewFeeOracle(0, 0, 0)
	assert.Equal(t, uint256.NewInt(45_250_000), f.GasPrice())
	assert.Equal(t, uint256.NewInt(14_932_364_075), f.L1GasPrice())
	assert.Equal(t, uint256.NewInt(13_607_659_111), f.FairPubdataPrice())
}

func TestBaseFeeOverrideConsumedOnce(t *testing.T) {
	f := NewFeeOracle(0, 100, 0)
	assert.Equal(t, uint256.NewInt(100), f.BaseFeeForNextBlock())

	f.SetNextBlockBaseFee(uint256.NewInt(777))
	assert.Equal(t, uint256.NewInt(777), f.PendingOverride())
	assert.Equal(t, uint256.NewInt(777), f.BaseFeeForNextBlock())
	assert.Nil(t, f.PendingOverride())
	assert.Equal(t, uint256.NewInt(100), f.BaseFeeForNextBlock())
}

func TestRestoreOverride(t *testing.T) {
	f := NewFeeOracle(0, 100, 0)
	f.RestoreOverride(uint256.NewInt(5))
	assert.Equal(t, uint256.NewInt(5), f.BaseFeeForNextBlock())
	f.RestoreOverride(nil)
	assert.Nil(t, f.PendingOverride())
}
