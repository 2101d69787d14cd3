// Licensed under the MIT License. See LICENSE file in the project root for details.

package refine

import (
	"sync"
)

// deferredEntry is a timed-out initiator together with the work that depends
// on its completion.
type deferredEntry struct {
	sync *Synchronizer
	work func()
}

// DeferredBuffer holds initiators whose Synchronize returned Deferred. It is
// the only permitted home of a live deferred initiator: the safepoint epoch
// reset zeroes the recorded frontiers here, so the reconciliation assert can
// account for every pending synchronization.
type DeferredBuffer struct {
	mu      sync.Mutex
	entries []deferredEntry
}

// Enqueue records a deferred initiator and its dependent work. work may be
// nil.
func (b *DeferredBuffer) Enqueue(s *Synchronizer, work func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, deferredEntry{sync: s, work: work})
}

// Len returns the number of buffered initiators.
func (b *DeferredBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Flush re-checks every buffered initiator and runs the dependent work of
// those now synchronized, removing them. Returns the number drained. The
// collector calls this before each safepoint and whenever it polls for
// deferred refinement work.
func (b *DeferredBuffer) Flush() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	drained := 0
	kept := b.entries[:0]
	for _, e := range b.entries {
		if e.sync.checkSynchronized(nil) {
			if e.work != nil {
				e.work()
			}
			drained++
			continue
		}
		kept = append(kept, e)
	}
	b.entries = kept
	return drained
}

// resetEpochs zeroes the required frontier of every buffered initiator and
// reports the count. Runs only inside the safepoint epoch reset: with the
// global counters back at zero, a zero required frontier makes each entry
// trivially synchronized on its next check.
func (b *DeferredBuffer) resetEpochs() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.entries {
		e.sync.requiredFrontier = 0
	}
	return len(b.entries)
}
