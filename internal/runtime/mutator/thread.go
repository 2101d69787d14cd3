// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package mutator models the mutator-thread runtime that the epoch
// synchronization protocol coordinates with: thread handles with a local
// epoch slot, execution states, safepoint polls, asynchronous handshakes and
// the delegate-processing scope.
//
// Each mutator thread owns a Thread handle for its lifetime. The thread moves
// between Managed execution (polling regularly) and parked states (Native,
// Blocked). While parked, a remote goroutine may acquire the thread's
// processing lock and act on its behalf: run its pending handshakes or update
// its epoch slot. Leaving a parked state re-acquires the processing lock, so
// a delegate is never raced by the returning owner.
//
// # Key Features
//
//   - Atomic local epoch slot, readable by any goroutine
//   - Managed/Native/Blocked execution states with sync-point hooks on
//     every transition
//   - One-atomic-load poll fast path; armed polls take the slow path
//   - Asynchronous one-shot handshakes, executed on the target's next poll
//     or immediately if the target is parked
//   - Delegate-processing scope with guaranteed release on every exit path
//
// # Thread Safety
//
// All Thread and Registry operations are safe for concurrent use. The poll
// fast path and the epoch slot accessors are wait-free.
package mutator

import (
	"sync"
	"sync/atomic"

	"github.com/kianostad/epochsync/internal/concurrency/epoch"
)

// State is a mutator thread's execution state.
type State int32

const (
	// Managed means the thread is executing managed code and polls regularly.
	Managed State = iota
	// Native means the thread is parked in a native call.
	Native
	// Blocked means the thread is parked on a lock or in the kernel.
	Blocked
)

// Parked reports whether a thread in this state is safely suspended, i.e. it
// will not touch managed state before transitioning back through the
// processing lock.
func (s State) Parked() bool {
	return s != Managed
}

// HandshakeFunc is a one-shot callable posted at a target thread. It runs on
// the target's next poll, or immediately on the poster's goroutine if the
// target is parked.
type HandshakeFunc func(*Thread)

// ScopeResult is the outcome of a delegate-processing scope attempt.
type ScopeResult int

const (
	// NotProcessed means the target was running, or another delegate held
	// its processing lock.
	NotProcessed ScopeResult = iota
	// Processed means the scope was granted and the closure ran.
	Processed
)

// Thread is a mutator thread handle. The zero value is not usable; obtain
// one from Registry.Attach.
type Thread struct {
	name string
	reg  *Registry

	localEpoch atomic.Uintptr
	state      atomic.Int32
	pollArmed  atomic.Bool

	// processMu is the handshake-processing lock. A remote goroutine may
	// acquire it only while the thread is parked; leaving a parked state
	// re-acquires it, so in-flight delegates always finish first.
	processMu sync.Mutex

	pendingMu  sync.Mutex
	pending    []HandshakeFunc
	hasPending atomic.Bool
}

// Name returns the thread's name, used in log records.
func (t *Thread) Name() string {
	return t.name
}

// State returns the thread's current execution state.
func (t *Thread) State() State {
	return State(t.state.Load())
}

// LocalEpoch returns the thread's local epoch. The load carries acquire
// ordering: together with the epoch value, the caller observes every store
// the thread issued before the release-store that produced it.
func (t *Thread) LocalEpoch() epoch.Epoch {
	return epoch.Epoch(t.localEpoch.Load())
}

// SetLocalEpoch release-stores e into the thread's epoch slot. Callers are
// the owning thread at a sync point, a delegate holding the processing scope,
// or the safepoint epoch reset.
func (t *Thread) SetLocalEpoch(e epoch.Epoch) {
	t.localEpoch.Store(uintptr(e))
}

// ArmPoll makes the thread's next poll take the slow path.
func (t *Thread) ArmPoll() {
	t.pollArmed.Store(true)
}

// PollArmed reports whether the next poll will take the slow path.
func (t *Thread) PollArmed() bool {
	return t.pollArmed.Load()
}

// Poll is the safepoint poll. The fast path is a single atomic load; when the
// poll is armed the thread drains its pending handshakes, runs the sync-point
// hook, and parks at an installed safepoint gate.
func (t *Thread) Poll() {
	if !t.pollArmed.Load() {
		return
	}
	t.pollSlow()
}

func (t *Thread) pollSlow() {
	t.pollArmed.Store(false)
	t.drainPending()
	t.reg.syncPoint(t)
	if g := t.reg.currentGate(); g != nil {
		g.Park()
	}
}

// EnterNative transitions the thread into a native call. The transition is a
// sync point.
func (t *Thread) EnterNative() {
	t.transitionOut(Native)
}

// LeaveNative returns the thread from a native call to managed execution.
func (t *Thread) LeaveNative() {
	t.transitionIn()
}

// EnterBlocked transitions the thread into a blocked state. The transition is
// a sync point.
func (t *Thread) EnterBlocked() {
	t.transitionOut(Blocked)
}

// LeaveBlocked returns the thread from a blocked state to managed execution.
func (t *Thread) LeaveBlocked() {
	t.transitionIn()
}

func (t *Thread) transitionOut(to State) {
	t.reg.syncPoint(t)
	t.state.Store(int32(to))
}

// transitionIn re-acquires the processing lock before becoming Managed:
// a delegate working on this thread's behalf, or a safepoint pinning it,
// holds the lock until done.
func (t *Thread) transitionIn() {
	t.processMu.Lock()
	t.state.Store(int32(Managed))
	t.processMu.Unlock()
	t.drainPending()
	t.reg.syncPoint(t)
	if g := t.reg.currentGate(); g != nil {
		g.Park()
	}
}

// TryExecuteAsync posts fn as a one-shot handshake against the thread. If the
// thread is parked and its processing lock is free, fn runs immediately on
// the calling goroutine inside the processing scope; otherwise fn is queued
// and the thread's poll is armed so its next poll runs it.
func (t *Thread) TryExecuteAsync(fn HandshakeFunc) {
	if t.TryDelegateProcess(fn) == Processed {
		return
	}
	t.pendingMu.Lock()
	t.pending = append(t.pending, fn)
	t.pendingMu.Unlock()
	t.hasPending.Store(true)
	t.ArmPoll()
}

// HasPending reports whether the thread has queued handshakes it has not yet
// processed.
func (t *Thread) HasPending() bool {
	return t.hasPending.Load()
}

// TryDelegateProcess attempts the delegate-processing scope: if the thread is
// parked and the processing lock can be taken, the caller drains the thread's
// pending handshakes, runs fn on its behalf, and the sync-point hook fires
// for the thread. The lock is released on every exit path.
func (t *Thread) TryDelegateProcess(fn HandshakeFunc) ScopeResult {
	if !t.State().Parked() {
		return NotProcessed
	}
	if !t.processMu.TryLock() {
		return NotProcessed
	}
	defer t.processMu.Unlock()
	if !t.State().Parked() {
		return NotProcessed
	}
	t.drainPending()
	if fn != nil {
		fn(t)
	}
	t.reg.syncPoint(t)
	return Processed
}

// TryPin attempts to pin a parked thread for the duration of a safepoint by
// holding its processing lock. A pinned thread cannot complete a transition
// back to Managed until Unpin. Reports whether the pin was taken.
func (t *Thread) TryPin() bool {
	if !t.State().Parked() {
		return false
	}
	if !t.processMu.TryLock() {
		return false
	}
	if !t.State().Parked() {
		t.processMu.Unlock()
		return false
	}
	return true
}

// Unpin releases a pin taken by TryPin.
func (t *Thread) Unpin() {
	t.processMu.Unlock()
}

func (t *Thread) drainPending() {
	if !t.hasPending.Load() {
		return
	}
	t.pendingMu.Lock()
	fns := t.pending
	t.pending = nil
	t.pendingMu.Unlock()
	t.hasPending.Store(false)
	for _, fn := range fns {
		fn(t)
	}
}
