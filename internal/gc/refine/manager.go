// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package refine implements the asymmetric epoch synchronization protocol
// used by concurrent refinement work to establish a one-way memory-ordering
// agreement with the mutator population.
//
// The initiator, typically a refinement worker reading heap metadata that
// mutators concurrently write, needs every mutator store issued before the
// protocol started to be visible when the protocol finishes, without a fence
// on the mutator hot path. The protocol guarantees that each mutator has
// satisfied at least one of:
//
//   - it executed an operation implying a full fence;
//   - it established a release-acquire ordering with the initiator through
//     its local epoch slot.
//
// # Protocol
//
// A global epoch counter is advanced with a fetch-add (a full fence) at every
// initiation; the returned value is the initiator's required frontier. Each
// mutator copies the global epoch into its own slot at pre-existing sync
// points: thread-state transitions, armed polls, handshake processing. The
// initiator scans the mutator slots; once their wrap-aware minimum reaches
// the required frontier, every earlier mutator store is visible. Because the
// mutator's copy loads the global epoch after the initiator's fetch-add
// published its fence, observing the copied value with acquire ordering
// closes the happens-before edge.
//
// Slow mutators are escalated to: their polls are armed, parked threads get
// their epochs updated on their behalf through the delegate-processing scope,
// and a no-op asynchronous handshake is posted at anything still lagging. The
// initiator never blocks on a mutator; if the wait budget runs out it reports
// Deferred and the caller queues the dependent work on the deferred buffer.
//
// A completed initiator raises the shared global frontier, so later
// initiators with an older required frontier finish without scanning at all.
//
// The epoch counters are finite; a safepoint reset task zeroes all of them
// when the global epoch crosses a threshold, reconciling with the deferred
// buffer, which is the only permitted home of a live deferred initiator.
//
// # Usage
//
//	sync := mgr.NewSynchronizer(nil, true) // starts the protocol
//	// ... work that does not depend on the synchronization ...
//	if sync.Synchronize() == refine.Complete {
//	    // proceed to refinement work
//	} else {
//	    mgr.Deferred().Enqueue(sync, func() { /* dependent work */ })
//	}
//
// # Thread Safety
//
// A Manager is safe for concurrent use by any number of initiators and
// mutators. A Synchronizer value belongs to a single initiating goroutine.
package refine

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/kianostad/epochsync/internal/concurrency/epoch"
	"github.com/kianostad/epochsync/internal/monitoring/metrics"
	"github.com/kianostad/epochsync/internal/runtime/mutator"
	"github.com/kianostad/epochsync/internal/runtime/safepoint"
)

// epochTags is the log tag sequence for epoch synchronization records.
const epochTags = "gc,refine,handshake"

// Manager owns the process-wide protocol state: the epoch clock, the mutator
// registry, the safepoint machinery, statistics, and the deferred buffer.
// Create one per process at collector initialization.
type Manager struct {
	cfg   Config
	log   *slog.Logger
	clock *epoch.Clock
	reg   *mutator.Registry
	ctl   *safepoint.Controller
	vm    *safepoint.VMThread
	svc   *safepoint.ServiceThread
	stats *metrics.Metrics

	deferred *DeferredBuffer
	reset    *resetTask

	// pendingSync counts live initiators that have not observed success.
	// Touched only with DebugChecks on.
	pendingSync atomic.Int64
}

// NewManager wires the protocol state. Call Start before initiating.
func NewManager(cfg Config) *Manager {
	cfg = cfg.withDefaults()
	m := &Manager{
		cfg:   cfg,
		log:   cfg.Logger.With(slog.String("tags", epochTags)),
		clock: epoch.NewClock(),
		reg:   mutator.NewRegistry(),
		stats: metrics.New(),
	}
	m.ctl = safepoint.NewController(m.reg)
	m.vm = safepoint.NewVMThread(m.ctl)
	m.svc = safepoint.NewServiceThread()
	m.deferred = &DeferredBuffer{}
	m.reset = &resetTask{m: m}
	m.reg.SetSyncPointHook(m.updateEpochSelf)
	m.svc.Register(m.reset)
	return m
}

// Start launches the VM and service threads.
func (m *Manager) Start() {
	m.vm.Start()
	m.svc.Start()
	if m.cfg.TestPeriodicReset {
		m.svc.Schedule(m.reset, m.cfg.PeriodicResetInterval)
	}
}

// Close stops the background threads. Mutators must be quiescent.
func (m *Manager) Close(ctx context.Context) {
	m.svc.Stop()
	m.vm.Stop()
}

// Attach registers a new mutator thread. Its local epoch starts at zero.
func (m *Manager) Attach(name string) *mutator.Thread {
	return m.reg.Attach(name)
}

// Detach removes a mutator thread from the live set.
func (m *Manager) Detach(t *mutator.Thread) {
	m.reg.Detach(t)
}

// Registry returns the mutator thread registry.
func (m *Manager) Registry() *mutator.Registry {
	return m.reg
}

// Safepoint returns the safepoint controller.
func (m *Manager) Safepoint() *safepoint.Controller {
	return m.ctl
}

// Deferred returns the deferred buffer, the one queue the epoch reset drains.
func (m *Manager) Deferred() *DeferredBuffer {
	return m.deferred
}

// GlobalEpoch returns the current global epoch, for debugging and logging.
func (m *Manager) GlobalEpoch() epoch.Epoch {
	return m.clock.Global()
}

// GlobalFrontier returns the memoized global frontier.
func (m *Manager) GlobalFrontier() epoch.Epoch {
	return m.clock.Frontier()
}

// GetMetrics returns a snapshot of the synchronizer statistics.
func (m *Manager) GetMetrics() metrics.Snapshot {
	return m.stats.GetSnapshot()
}

// PendingSync returns the live initiator count. Meaningful only with
// DebugChecks on.
func (m *Manager) PendingSync() int64 {
	return m.pendingSync.Load()
}

// VerifyBeforeCollectionPause asserts that every pending synchronization sits
// in the deferred buffer of the given length, then clears the count. Debug
// only; a mismatch means a caller lost an initiator without retrying or
// deferring it.
func (m *Manager) VerifyBeforeCollectionPause(deferredLength int) {
	if !m.cfg.DebugChecks {
		return
	}
	if p := m.pendingSync.Load(); p != int64(deferredLength) {
		panic("epochsync: pending synchronizations do not match deferred buffer")
	}
	m.pendingSync.Store(0)
}

func (m *Manager) incPendingSync() {
	if m.cfg.DebugChecks {
		m.pendingSync.Add(1)
	}
}

func (m *Manager) decPendingSync() {
	if m.cfg.DebugChecks {
		m.pendingSync.Add(-1)
	}
}
