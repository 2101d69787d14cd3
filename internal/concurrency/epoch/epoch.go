// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package epoch provides the epoch counter algebra for the asymmetric epoch
// synchronization protocol.
//
// This package implements a wrap-aware ordering over unsigned epoch values and
// the process-wide counter pair (global epoch and global frontier) that the
// synchronization protocol is built on. The global epoch grows monotonically
// at every synchronization initiation; the global frontier memoizes the
// largest epoch that every mutator thread has been observed to reach, so that
// later initiators can complete without scanning threads at all.
//
// # Key Features
//
//   - Wrap-aware strict ordering on pointer-width unsigned counters
//   - Cache-line-isolated global epoch and frontier counters
//   - Fetch-add epoch advancement that doubles as a full memory fence
//   - Single-CAS frontier raising (no retry; concurrent progress is progress)
//   - Single-shot reset scheduling flag for the safepoint epoch reset
//
// # Wrap-Aware Ordering
//
// Epoch counters are finite-width and are reset at a safepoint well before
// half of their range is consumed, so two live values never meaningfully
// differ by more than half the range. Before(a, b) interprets the unsigned
// difference a-b: a is strictly before b exactly when the difference wraps
// past half the range. Before(a, a) is false, which is what makes the zero
// value of a synchronizer trivially synchronized against a zero frontier.
//
// # Memory Ordering
//
// Advance uses atomic.Uintptr.Add, which in Go is sequentially consistent and
// therefore acts as a full fence: every load and store the initiator issued
// before Advance is ordered before its subsequent loads of mutator epochs.
// This fence is load-bearing for the protocol; see the refine package for the
// visibility argument that depends on it.
//
// # Thread Safety
//
// All Clock operations are safe for concurrent use from any goroutine and are
// wait-free except TryRaiseFrontier, which performs at most one CAS.
//
// # See Also
//
// For the synchronizer state machine built on this algebra, see the
// internal/gc/refine package.
package epoch

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// Epoch is a pointer-width unsigned epoch value.
type Epoch uintptr

// MaxEpoch is the largest representable epoch.
const MaxEpoch = ^Epoch(0)

// halfRange splits the counter range for wrap-aware comparison. Live values
// never differ by more than this; the safepoint reset guarantees it.
const halfRange = MaxEpoch / 2

// Before reports whether a is strictly before b in wrap-aware order.
// Before(a, a) is false.
func Before(a, b Epoch) bool {
	return a-b > halfRange
}

// Min returns the smaller of a and b in wrap-aware order.
func Min(a, b Epoch) Epoch {
	if Before(b, a) {
		return b
	}
	return a
}

// paddedCounter isolates an atomic counter on its own cache line so that the
// heavily written global epoch does not false-share with the frontier or with
// neighboring state.
type paddedCounter struct {
	_ cpu.CacheLinePad
	v atomic.Uintptr
	_ cpu.CacheLinePad
}

// Clock holds the process-wide counters of the protocol: the global epoch,
// the global frontier, and the reset-scheduled flag. A Clock is created once
// at collector initialization and lives for the process lifetime; it is only
// reset, never destroyed.
type Clock struct {
	global   paddedCounter
	frontier paddedCounter

	resetScheduled atomic.Bool
}

// NewClock returns a Clock with both counters at zero.
func NewClock() *Clock {
	return &Clock{}
}

// Global returns the current global epoch.
func (c *Clock) Global() Epoch {
	return Epoch(c.global.v.Load())
}

// Advance increments the global epoch and returns the new value. The
// underlying fetch-add is a full fence for the caller.
func (c *Clock) Advance() Epoch {
	return Epoch(c.global.v.Add(1))
}

// Frontier returns the global frontier: the largest epoch such that every
// mutator's local epoch was observed at or past it at some earlier moment.
func (c *Clock) Frontier() Epoch {
	return Epoch(c.frontier.v.Load())
}

// TryRaiseFrontier raises the global frontier to observed if it is currently
// behind it. A single CAS is attempted; losing the race means another thread
// raised the frontier concurrently, which is also progress. Reports whether
// this call changed the frontier.
func (c *Clock) TryRaiseFrontier(observed Epoch) bool {
	cur := Epoch(c.frontier.v.Load())
	if !Before(cur, observed) {
		return false
	}
	return c.frontier.v.CompareAndSwap(uintptr(cur), uintptr(observed))
}

// TryScheduleReset transitions the reset-scheduled flag from false to true.
// Exactly one caller wins per reset cycle; the winner schedules the reset
// task. Reports whether this call won.
func (c *Clock) TryScheduleReset() bool {
	return c.resetScheduled.CompareAndSwap(false, true)
}

// ResetScheduled reports whether an epoch reset is queued for the next
// safepoint.
func (c *Clock) ResetScheduled() bool {
	return c.resetScheduled.Load()
}

// Reset zeroes the global epoch and frontier. Must only be called inside a
// stop-the-world safepoint, with every mutator quiesced; the refine package's
// reset task is the sole caller.
func (c *Clock) Reset() {
	c.global.v.Store(0)
	c.frontier.v.Store(0)
}

// ClearResetScheduled marks the reset cycle finished so a future threshold
// crossing can schedule the next one.
func (c *Clock) ClearResetScheduled() {
	c.resetScheduled.Store(false)
}
