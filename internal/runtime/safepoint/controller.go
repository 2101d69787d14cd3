// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package safepoint models the stop-the-world machinery the epoch reset runs
// on: a controller that quiesces all mutator threads, a dedicated VM thread
// that executes operations at safepoints, a service thread for scheduling
// background tasks, and a spin/yield primitive for bounded waiting.
//
// Quiescence works in two halves. Threads executing managed code are stopped
// at their next poll: the controller installs a gate, arms every poll, and
// counts arrivals. Threads parked in native or blocked states are pinned
// instead: the controller takes each one's processing lock, which prevents
// the thread from completing a transition back to managed execution until the
// safepoint ends. When arrivals plus pins cover the whole population, the
// world is stopped.
//
// # Thread Safety
//
// One safepoint runs at a time; Execute serializes on an internal lock.
// Pending, Active and InOperation are safe to read from any goroutine.
package safepoint

import (
	"sync"
	"sync/atomic"

	"github.com/kianostad/epochsync/internal/runtime/mutator"
)

// Controller quiesces the mutator population for stop-the-world operations.
type Controller struct {
	reg *mutator.Registry

	mu      sync.Mutex
	pending atomic.Bool
	inOp    atomic.Bool
}

// NewController returns a controller over the given thread registry.
func NewController(reg *mutator.Registry) *Controller {
	return &Controller{reg: reg}
}

// Pending reports whether a safepoint is being requested or is in progress.
// Suspendible workers (the refinement initiator's spin loop) consult this to
// yield instead of delaying the stop of the world.
func (c *Controller) Pending() bool {
	return c.pending.Load()
}

// InOperation reports whether a stop-the-world operation is executing right
// now, with every mutator quiesced.
func (c *Controller) InOperation() bool {
	return c.inOp.Load()
}

// Execute stops the world, runs op, and resumes the world. op runs on the
// calling goroutine with every mutator either parked at the safepoint gate or
// pinned in a native/blocked state.
func (c *Controller) Execute(op func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending.Store(true)
	g := mutator.NewGate()
	c.reg.InstallGate(g)
	c.reg.Each(func(t *mutator.Thread) { t.ArmPoll() })

	pinned := make(map[*mutator.Thread]bool)
	var spin SpinYield
	for {
		c.reg.Each(func(t *mutator.Thread) {
			if !pinned[t] && t.TryPin() {
				pinned[t] = true
			}
		})
		if g.Arrived()+len(pinned) >= c.reg.Len() {
			break
		}
		spin.Wait()
	}

	c.inOp.Store(true)
	op()
	c.inOp.Store(false)

	c.reg.ClearGate()
	g.Release()
	for t := range pinned {
		t.Unpin()
	}
	c.pending.Store(false)
}
