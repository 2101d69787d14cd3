// Licensed under the MIT License. See LICENSE file in the project root for details.

package refine

import (
	"context"
	"log/slog"
	"time"

	"github.com/kianostad/epochsync/internal/concurrency/epoch"
	"github.com/kianostad/epochsync/internal/runtime/mutator"
	"github.com/kianostad/epochsync/internal/runtime/safepoint"
)

// Outcome is the result of Synchronize.
type Outcome int

const (
	// Complete means every mutator store issued before the initiation is
	// now visible to the initiator.
	Complete Outcome = iota
	// Deferred means the wait budget ran out or a safepoint demanded a
	// yield; the caller must retry CheckSynchronized later or enqueue the
	// dependent work on the deferred buffer.
	Deferred
)

func (o Outcome) String() string {
	if o == Complete {
		return "complete"
	}
	return "deferred"
}

// Synchronizer is one initiation of the epoch synchronization protocol. It is
// a cheap per-call value driven by a single goroutine; concurrent initiators
// each hold their own.
type Synchronizer struct {
	m      *Manager
	caller *mutator.Thread

	requiredFrontier epoch.Epoch
	completed        bool
}

// NewSynchronizer constructs an initiator. caller is the mutator thread
// driving it, or nil for a refinement worker. With startSync the global epoch
// is advanced (a full fence for the caller) and the returned value becomes
// the required frontier; without it the synchronizer is trivially complete.
func (m *Manager) NewSynchronizer(caller *mutator.Thread, startSync bool) *Synchronizer {
	s := &Synchronizer{m: m, caller: caller}
	if startSync {
		s.requiredFrontier = m.startSynchronizing(caller)
	} else {
		// Never counted as pending, so it must never be decremented either.
		s.completed = true
	}
	return s
}

// startSynchronizing advances the global epoch and returns the new value.
// The fetch-add orders every prior load and store of the initiator before its
// subsequent loads of mutator epochs.
func (m *Manager) startSynchronizing(caller *mutator.Thread) epoch.Epoch {
	if m.cfg.DebugChecks && m.ctl.InOperation() {
		panic("epochsync: synchronization started inside a safepoint")
	}
	m.incPendingSync()
	required := m.clock.Advance()
	m.maybeScheduleReset(required)
	m.log.Debug("start synchronizing",
		slog.String("thread", callerName(caller)),
		slog.Uint64("frontier", uint64(required)))
	return required
}

// RequiredFrontier returns the epoch every mutator must reach.
func (s *Synchronizer) RequiredFrontier() epoch.Epoch {
	return s.requiredFrontier
}

// CheckSynchronized is the fast probe: it consults the memoized global
// frontier, then scans the mutator epochs. A successful check raises the
// global frontier for later initiators. After the first success, further
// calls return true without touching any shared state.
func (s *Synchronizer) CheckSynchronized() bool {
	return s.checkSynchronized(s.caller)
}

// checkSynchronized is the probe with an explicit identity: self is the
// mutator thread actually executing the check, or nil when a refinement
// worker or the deferred-buffer flush drives it on the initiator's behalf.
func (s *Synchronizer) checkSynchronized(self *mutator.Thread) bool {
	if s.completed {
		return true
	}
	if !s.checkSynchronizedInner(self) {
		return false
	}
	s.complete()
	return true
}

func (s *Synchronizer) checkSynchronizedInner(self *mutator.Thread) bool {
	// A mutator initiator satisfies the protocol for itself first.
	if self != nil {
		s.m.updateEpoch(self)
	}

	if !epoch.Before(s.m.clock.Frontier(), s.requiredFrontier) {
		return true
	}

	res := s.m.scanThreads(s.requiredFrontier, scanObserve, s.caller)
	if !res.seen {
		return true
	}
	return s.m.checkFrontier(res.min, s.requiredFrontier)
}

// checkFrontier reports whether latest satisfies required, raising the
// global frontier when it does.
func (m *Manager) checkFrontier(latest, required epoch.Epoch) bool {
	if epoch.Before(latest, required) {
		return false
	}
	m.log.Debug("frontier synced",
		slog.Uint64("latest", uint64(latest)),
		slog.Uint64("required", uint64(required)))
	m.clock.TryRaiseFrontier(latest)
	return true
}

func (s *Synchronizer) complete() {
	s.completed = true
	s.m.decPendingSync()
}

// Synchronize drives the state machine to a terminal outcome: fast check,
// escalation of stragglers, then a bounded spin. Deferred is not a failure;
// the unresponsive mutator will run through a sync point eventually, and a
// later CheckSynchronized or the safepoint reset absorbs the initiator.
func (s *Synchronizer) Synchronize() Outcome {
	start := time.Now()
	if s.CheckSynchronized() {
		s.m.stats.RecordFastSync(time.Since(start))
		return Complete
	}

	// Escalate: one traversal arms lagging polls, updates parked threads
	// in-scope, and posts a no-op handshake at the rest.
	res := s.m.scanThreads(s.requiredFrontier, scanArmPolls, s.caller)
	if res.armed == 0 {
		// Every straggler met the frontier during the scan.
		if res.seen {
			s.m.checkFrontier(res.min, s.requiredFrontier)
		}
		s.complete()
		s.m.stats.RecordFastSync(time.Since(start))
		return Complete
	}

	var spin safepoint.SpinYield
	for !s.CheckSynchronized() {
		elapsed := time.Since(start)
		if elapsed > s.m.cfg.WaitTimeout || s.m.ctl.Pending() {
			s.m.stats.RecordDeferredSync(elapsed)
			if s.m.log.Enabled(context.Background(), slog.LevelDebug) {
				s.m.log.Debug("synchronization deferred",
					slog.String("thread", callerName(s.caller)),
					slog.Uint64("required", uint64(s.requiredFrontier)),
					slog.Any("stragglers", s.stragglerNames()))
			}
			return Deferred
		}
		spin.Wait()
	}
	s.m.stats.RecordFastSync(time.Since(start))
	return Complete
}

// stragglerNames collects the names of the threads still behind the required
// frontier, for the deferred log record.
func (s *Synchronizer) stragglerNames() []string {
	res := s.m.scanThreads(s.requiredFrontier, scanCollectStragglers, s.caller)
	names := make([]string, 0, len(res.stragglers))
	for _, t := range res.stragglers {
		names = append(names, t.Name())
	}
	return names
}

func callerName(t *mutator.Thread) string {
	if t == nil {
		return "refinement-worker"
	}
	return t.Name()
}
