// Licensed under the MIT License. See LICENSE file in the project root for details.

package refine

import (
	"log/slog"

	"github.com/kianostad/epochsync/internal/concurrency/epoch"
	"github.com/kianostad/epochsync/internal/runtime/mutator"
)

// resetTask runs the epoch reset as a stop-the-world operation on the VM
// thread. It is registered on the service thread and scheduled either by the
// threshold check or periodically in test configurations.
type resetTask struct {
	m *Manager
}

func (t *resetTask) Name() string {
	return "epoch reset"
}

func (t *resetTask) Execute() {
	t.m.vm.Execute(t.m.resetAllEpochs)
	if t.m.cfg.TestPeriodicReset {
		t.m.svc.Schedule(t, t.m.cfg.PeriodicResetInterval)
	}
}

// maybeScheduleReset queues a reset once the required frontier crosses the
// threshold. The single-shot CAS picks one winner per cycle.
func (m *Manager) maybeScheduleReset(required epoch.Epoch) {
	if !epoch.Before(m.cfg.ResetThreshold, required) || m.clock.ResetScheduled() {
		return
	}
	if m.clock.TryScheduleReset() {
		m.log.Info("request to reset global epoch",
			slog.Uint64("epoch", uint64(required)))
		m.svc.Schedule(m.reset, 0)
	}
}

// resetAllEpochs zeroes the global counters, the deferred buffer's recorded
// frontiers, and every mutator's local epoch. Runs with the world stopped on
// the VM thread; all mutators are quiesced, so the plain stores cannot race
// an update.
func (m *Manager) resetAllEpochs() {
	if m.cfg.DebugChecks && (!m.ctl.InOperation() || !m.vm.Executing()) {
		panic("epochsync: epoch reset outside a safepoint on the VM thread")
	}
	m.log.Info("resetting global epoch",
		slog.Uint64("epoch", uint64(m.clock.Global())))

	m.clock.Reset()
	deferredSync := m.deferred.resetEpochs()
	m.reg.Each(func(t *mutator.Thread) {
		t.SetLocalEpoch(0)
	})
	m.clock.ClearResetScheduled()
	m.stats.RecordReset()

	// Every pending synchronization must come from the deferred buffer;
	// anything else would be left waiting for a frontier that no longer
	// exists.
	if m.cfg.DebugChecks && m.pendingSync.Load() != int64(deferredSync) {
		panic("epochsync: pending synchronizations do not match deferred buffer at reset")
	}
}
