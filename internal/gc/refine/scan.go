// Licensed under the MIT License. See LICENSE file in the project root for details.

package refine

import (
	"github.com/kianostad/epochsync/internal/concurrency/epoch"
	"github.com/kianostad/epochsync/internal/runtime/mutator"
)

// scanMode selects what a thread scan does beyond observing epochs.
type scanMode int

const (
	// scanObserve only computes the minimum observed epoch.
	scanObserve scanMode = iota
	// scanArmPolls escalates lagging threads in-scan: arm the poll, try a
	// delegate-scope update, post a no-op handshake at whatever still lags.
	scanArmPolls
	// scanCollectStragglers records lagging threads without acting on them.
	scanCollectStragglers
)

// scanResult carries a scan's outputs. min is only meaningful when seen is
// true; an empty mutator population is trivially synchronized.
type scanResult struct {
	min        epoch.Epoch
	seen       bool
	armed      int
	stragglers []*mutator.Thread
}

// scanThreads visits every live mutator once, reading its local epoch with
// acquire ordering and folding the wrap-aware minimum. caller is the
// initiating mutator thread, or nil for a refinement worker; it has just
// updated its own epoch, so it can never be a straggler.
func (m *Manager) scanThreads(required epoch.Epoch, mode scanMode, caller *mutator.Thread) scanResult {
	var res scanResult
	m.reg.Each(func(t *mutator.Thread) {
		e := t.LocalEpoch()
		if epoch.Before(e, required) {
			switch mode {
			case scanArmPolls:
				if m.cfg.DebugChecks && t == caller {
					panic("epochsync: initiating thread lags its own frontier")
				}
				t.ArmPoll()
				if t.TryDelegateProcess(m.updateEpochOther) == mutator.Processed {
					e = t.LocalEpoch()
				}
				if epoch.Before(e, required) {
					if !t.HasPending() {
						t.TryExecuteAsync(func(*mutator.Thread) {})
					}
					res.armed++
				}
			case scanCollectStragglers:
				res.stragglers = append(res.stragglers, t)
			}
		}
		if !res.seen || epoch.Before(e, res.min) {
			res.min = e
			res.seen = true
		}
	})
	return res
}
