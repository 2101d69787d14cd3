// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package epochsync provides an asymmetric epoch synchronization protocol for
// concurrent garbage collection.
//
// This is the main public API for the EPOCHSYNC library. A concurrent
// refinement worker uses it to guarantee that every store issued by any
// mutator thread before the protocol started is visible to the worker when
// the protocol finishes, without executing a memory barrier on the mutator
// hot path. The protocol piggybacks on synchronization points the mutator
// runtime already has: thread-state transitions, safepoint polls, and
// handshake processing.
//
// # Quick Start
//
//	import "github.com/kianostad/epochsync"
//
//	rt := epochsync.New(epochsync.Config{})
//	rt.Start()
//	defer rt.Close(ctx)
//
//	// Mutator side: attach a thread and poll at sync points.
//	th := rt.Attach("mutator-1")
//	// ... th.Poll() inside the mutator's work loop ...
//
//	// Initiator side: start the protocol, then synchronize.
//	sync := rt.NewSynchronizer(nil, true)
//	if sync.Synchronize() == epochsync.Complete {
//	    // every earlier mutator store is visible; refine away
//	} else {
//	    rt.Deferred().Enqueue(sync, func() { /* dependent work */ })
//	}
//
// # Key Features
//
//   - Wait-free mutator hot path: a poll is one atomic load
//   - Lock-free initiator fast path over a memoized global frontier
//   - Escalation via armed polls, delegate-scope updates and asynchronous
//     no-op handshakes; never a synchronous wait on a mutator
//   - Bounded waiting with a deferred-completion path instead of blocking
//   - Safepoint epoch reset that bounds the counter range
//   - Statistics for fast and deferred synchronizations
//
// # Deferred Synchronization
//
// Synchronize never blocks on an unresponsive mutator. When the wait budget
// runs out it returns Deferred; the caller queues the dependent work on the
// deferred buffer and drains it later with Flush. The safepoint epoch reset
// reconciles with the buffer, which is the only place a live deferred
// initiator may wait.
//
// # Thread Safety
//
// A Runtime is safe for concurrent use by any number of mutators and
// initiators. A Synchronizer belongs to the goroutine that created it.
//
// # See Also
//
// For the protocol internals and the visibility argument, see the
// internal/gc/refine package.
package epochsync

import (
	"github.com/kianostad/epochsync/internal/concurrency/epoch"
	"github.com/kianostad/epochsync/internal/gc/refine"
	"github.com/kianostad/epochsync/internal/monitoring/metrics"
	"github.com/kianostad/epochsync/internal/runtime/mutator"
)

// Re-export protocol types.
type (
	// Runtime owns the process-wide protocol state: epoch counters,
	// mutator registry, safepoint machinery and statistics.
	Runtime = refine.Manager

	// Config carries the protocol tunables.
	Config = refine.Config

	// Synchronizer is one initiation of the protocol.
	Synchronizer = refine.Synchronizer

	// Outcome is the result of Synchronizer.Synchronize.
	Outcome = refine.Outcome

	// DeferredBuffer queues timed-out initiators and their dependent work.
	DeferredBuffer = refine.DeferredBuffer

	// Epoch is a pointer-width epoch value.
	Epoch = epoch.Epoch

	// Thread is a mutator thread handle.
	Thread = mutator.Thread

	// Snapshot is a point-in-time view of the synchronizer statistics.
	Snapshot = metrics.Snapshot
)

// Synchronize outcomes.
const (
	// Complete means the one-way visibility contract now holds.
	Complete = refine.Complete

	// Deferred means the initiator timed out; retry or enqueue.
	Deferred = refine.Deferred
)

// Default tunable values.
const (
	DefaultWaitTimeout    = refine.DefaultWaitTimeout
	DefaultResetThreshold = refine.DefaultResetThreshold
)

// New creates a Runtime. Call Start before attaching mutators or initiating
// synchronizations.
func New(cfg Config) *Runtime {
	return refine.NewManager(cfg)
}
