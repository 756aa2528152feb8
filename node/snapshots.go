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

package node

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/zkstack/zkanvil/core/clock"
	"github.com/zkstack/zkanvil/params"
	"github.com/zkstack/zkanvil/txpool"
)

var (
	// ErrUnknownSnapshot is returned for ids never handed out or already
	// invalidated by an earlier revert.
	ErrUnknownSnapshot = errors.New("unknown snapshot id")

	// ErrTooManySnapshots bounds the outstanding snapshot count.
	ErrTooManySnapshots = errors.New("snapshot depth limit reached")
)

// snapshotRecord captures every mutable component at one point in time.
// The state store is captured by layer boundary, the chain index by length;
// the fork cache is write-once per key so it is shared, not captured.
type snapshotRecord struct {
	stateDepth  int
	chainLen    int
	clk         clock.Snapshot
	pool        txpool.Snapshot
	feeOverride *uint256.Int
	blockOffset uint64
}

// Snapshot captures the chain and returns its id. Ids are vector indices:
// after revert(k) the next snapshot is k again.
func (s *Sequencer) Snapshot(ctx context.Context) (uint64, error) {
	var id uint64
	err := s.do(ctx, func() error {
		if len(s.snapshots) >= params.SnapshotDepthLimit {
			return fmt.Errorf("%w: %d", ErrTooManySnapshots, params.SnapshotDepthLimit)
		}
		rec := snapshotRecord{
			stateDepth:  s.state.Depth(),
			chainLen:    s.index.Len(),
			clk:         s.clk.Capture(),
			pool:        s.pool.Capture(),
			feeOverride: s.fees.PendingOverride(),
			blockOffset: s.blockOffset,
		}
		id = uint64(len(s.snapshots))
		s.snapshots = append(s.snapshots, rec)
		// post-snapshot writes accumulate above this boundary
		s.state.Push()
		s.logger.Debug("captured snapshot", "id", id, "block", rec.chainLen-1)
		return nil
	})
	return id, err
}

// RevertSnapshot restores the chain to snapshot id. Every id at or above it
// becomes invalid.
func (s *Sequencer) RevertSnapshot(ctx context.Context, id uint64) (bool, error) {
	var ok bool
	err := s.do(ctx, func() error {
		if id >= uint64(len(s.snapshots)) {
			return fmt.Errorf("%w: %d", ErrUnknownSnapshot, id)
		}
		rec := s.snapshots[id]
		if err := s.state.RevertTo(rec.stateDepth); err != nil {
			return err
		}
		s.index.TruncateTo(rec.chainLen)
		s.clk.Restore(rec.clk)
		s.pool.Restore(rec.pool)
		s.fees.RestoreOverride(rec.feeOverride)
		s.blockOffset = rec.blockOffset
		s.snapshots = s.snapshots[:id]
		ok = true
		s.logger.Debug("reverted to snapshot", "id", id, "block", rec.chainLen-1)
		return nil
	})
	return ok, err
}
