// Licensed under the MIT License. See LICENSE file in the project root for details.

package refine

import (
	"log/slog"
	"time"

	"github.com/kianostad/epochsync/internal/concurrency/epoch"
)

// DefaultWaitTimeout bounds the synchronizer's spin loop before it reports
// Deferred. Debug configurations use a few nanoseconds instead to stress the
// deferred path.
const DefaultWaitTimeout = 3 * time.Millisecond

// DefaultResetThreshold is the epoch value past which a safepoint reset is
// scheduled. It sits well below half the counter range, which the wrap-aware
// comparison depends on.
const DefaultResetThreshold = epoch.MaxEpoch >> 3

// DefaultPeriodicResetInterval is the reschedule interval used when periodic
// test resets are enabled.
const DefaultPeriodicResetInterval = 100 * time.Millisecond

// Config carries the synchronizer tunables. The zero value is usable;
// unset fields take defaults.
type Config struct {
	// WaitTimeout bounds the spin phase of Synchronize.
	WaitTimeout time.Duration

	// ResetThreshold is the epoch high-water mark that schedules a
	// safepoint reset.
	ResetThreshold epoch.Epoch

	// TestPeriodicReset schedules epoch resets on the service thread at
	// PeriodicResetInterval regardless of the threshold. Test usage only.
	TestPeriodicReset bool

	// PeriodicResetInterval is the interval for TestPeriodicReset.
	PeriodicResetInterval time.Duration

	// DebugChecks enables pending-synchronization accounting and the
	// invariant assertion set. Builds tagged epochdebug enable it
	// unconditionally.
	DebugChecks bool

	// Logger receives the protocol's structured log records. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.WaitTimeout == 0 {
		c.WaitTimeout = DefaultWaitTimeout
		if debugWaitTimeout != 0 {
			c.WaitTimeout = debugWaitTimeout
		}
	}
	if c.ResetThreshold == 0 {
		c.ResetThreshold = DefaultResetThreshold
	}
	if c.PeriodicResetInterval == 0 {
		c.PeriodicResetInterval = DefaultPeriodicResetInterval
	}
	if debugChecksDefault {
		c.DebugChecks = true
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}
