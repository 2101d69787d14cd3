// Licensed under the MIT License. See LICENSE file in the project root for details.

package epochsync

import (
	"context"
	"testing"
	"time"
)

func TestPublicAPI(t *testing.T) {
	ctx := context.Background()

	rt := New(Config{WaitTimeout: time.Second})
	rt.Start()
	defer rt.Close(ctx)

	// Attach a mutator population.
	m1 := rt.Attach("mutator-1")
	m2 := rt.Attach("mutator-2")

	// A non-starting synchronizer is trivially complete.
	noop := rt.NewSynchronizer(nil, false)
	if !noop.CheckSynchronized() {
		t.Error("non-starting synchronizer should be complete")
	}

	// Start the protocol from a refinement worker.
	sync := rt.NewSynchronizer(nil, true)
	if sync.RequiredFrontier() == 0 {
		t.Error("starting synchronizer should capture a frontier")
	}

	// Mutators run through sync points.
	m1.EnterNative()
	m1.LeaveNative()
	m2.EnterNative()
	m2.LeaveNative()

	if got := sync.Synchronize(); got != Complete {
		t.Errorf("Synchronize = %v, want %v", got, Complete)
	}

	// The frontier memoizes the completion for later initiators.
	if rt.GlobalFrontier() == 0 {
		t.Error("completed synchronization should raise the global frontier")
	}

	stats := rt.GetMetrics()
	if stats.FastSyncs == 0 {
		t.Errorf("expected fast syncs to be recorded, got %+v", stats)
	}

	rt.Detach(m1)
	rt.Detach(m2)
}

func TestDeferredPublicAPI(t *testing.T) {
	ctx := context.Background()

	rt := New(Config{WaitTimeout: time.Nanosecond})
	rt.Start()
	defer rt.Close(ctx)

	th := rt.Attach("mutator-slow")

	sync := rt.NewSynchronizer(nil, true)
	if got := sync.Synchronize(); got != Deferred {
		t.Fatalf("Synchronize = %v, want %v", got, Deferred)
	}

	done := false
	rt.Deferred().Enqueue(sync, func() { done = true })

	// The straggler's next poll runs the posted handshake.
	th.Poll()

	if drained := rt.Deferred().Flush(); drained != 1 {
		t.Errorf("Flush = %d, want 1", drained)
	}
	if !done {
		t.Error("dependent work did not run")
	}
}
