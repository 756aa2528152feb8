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

// Package clock provides the deterministic virtual wall clock and the fee
// oracle driving block production. Time only moves when the node says so.
package clock

import (
	"errors"
	"fmt"
	"sync"
)

// ErrBackwardTime is returned when an absolute jump does not move the clock
// strictly forward.
var ErrBackwardTime = errors.New("timestamp must move forward")

// DefaultInterval is the per-block timestamp delta when no explicit
// interval is configured.
const DefaultInterval uint64 = 1

// Clock is the virtual wall clock, in integer seconds. Sealing a block
// consumes either the one-shot next-timestamp override or advances by the
// configured interval.
type Clock struct {
	mu       sync.Mutex
	current  uint64
	interval uint64
	next     *uint64
}

// NewClock starts the clock at the given epoch second.
func NewClock(start uint64) *Clock {
	return &Clock{current: start, interval: DefaultInterval}
}

// Now returns the current virtual time.
func (c *Clock) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance shifts the clock forward by delta seconds.
func (c *Clock) Advance(delta uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current += delta
	return c.current
}

// Set jumps to an absolute value, failing unless t is strictly in the
// future.
func (c *Clock) Set(t uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t <= c.current {
		return fmt.Errorf("%w: %d <= %d", ErrBackwardTime, t, c.current)
	}
	c.current = t
	return nil
}

// Reset jumps to an absolute value without the forward check. Used by the
// snapshot manager when restoring a captured clock.
func (c *Clock) Reset(t uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}

// SetInterval configures the per-block timestamp delta.
func (c *Clock) SetInterval(n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interval = n
}

// RemoveInterval restores the default per-block delta.
func (c *Clock) RemoveInterval() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interval = DefaultInterval
}

// Interval returns the configured per-block delta.
func (c *Clock) Interval() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interval
}

// SetNextTimestamp arms the one-shot override consumed by the next sealed
// block. It must be strictly in the future.
func (c *Clock) SetNextTimestamp(t uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t <= c.current {
		return fmt.Errorf("%w: %d <= %d", ErrBackwardTime, t, c.current)
	}
	c.next = &t
	return nil
}

// AdvanceForBlock produces the timestamp of the block being sealed: the
// armed override if any (consumed), otherwise now plus the interval. The
// clock lands on the returned value.
func (c *Clock) AdvanceForBlock() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.next != nil {
		c.current = *c.next
		c.next = nil
	} else {
		c.current += c.interval
	}
	return c.current
}

// Snapshot captures the mutable clock state.
type Snapshot struct {
	Current  uint64
	Interval uint64
	Next     *uint64
}

// Capture returns a copy of the clock state.
func (c *Clock) Capture() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{Current: c.current, Interval: c.interval}
	if c.next != nil {
		n := *c.next
		s.Next = &n
	}
	return s
}

// Restore resets the clock to a captured state.
func (c *Clock) Restore(s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = s.Current
	c.interval = s.Interval
	c.next = nil
	if s.Next != nil {
		n := *s.Next
		c.next = &n
	}
}
