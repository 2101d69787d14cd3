// Licensed under the MIT License. See LICENSE file in the project root for details.

package refine

import (
	"github.com/kianostad/epochsync/internal/concurrency/epoch"
	"github.com/kianostad/epochsync/internal/runtime/mutator"
)

// updateEpoch copies the current global epoch into t's local slot. The load
// of the global epoch carries acquire ordering and the store to the slot
// carries release ordering, so a remote acquire-load of the slot observes,
// together with the epoch value, every store t issued before this call.
//
// Must not run inside a safepoint: the reset zeroes all epochs there, and an
// update racing it would resurrect a stale value.
func (m *Manager) updateEpoch(t *mutator.Thread) {
	global := m.clock.Global()
	if m.cfg.DebugChecks {
		if m.ctl.InOperation() {
			panic("epochsync: epoch update inside a safepoint")
		}
		if epoch.Before(global, t.LocalEpoch()) {
			panic("epochsync: local epoch ahead of global epoch")
		}
	}
	t.SetLocalEpoch(global)
}

// updateEpochSelf is the sync-point hook: the owning thread updates its own
// slot at state transitions, armed polls and handshake processing.
func (m *Manager) updateEpochSelf(t *mutator.Thread) {
	m.updateEpoch(t)
}

// updateEpochOther updates t's slot on its behalf. Valid only inside a
// delegate-processing scope that proves t is safely parked.
func (m *Manager) updateEpochOther(t *mutator.Thread) {
	if m.cfg.DebugChecks && !t.State().Parked() {
		panic("epochsync: remote epoch update on a running thread")
	}
	m.updateEpoch(t)
}
