// Licensed under the MIT License. See LICENSE file in the project root for details.

package epoch

import (
	"testing"

	"pgregory.net/rapid"
)

// TestPropertyBeforeOrder checks the comparator contract over the live
// window: values that differ by less than half the counter range.
func TestPropertyBeforeOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := Epoch(rapid.Uint64().Draw(t, "base"))
		diff := Epoch(rapid.Uint64Range(1, uint64(halfRange)-1).Draw(t, "diff"))
		later := base + diff

		if !Before(base, later) {
			t.Fatalf("Before(%d, %d) = false for a live-window pair", base, later)
		}
		if Before(later, base) {
			t.Fatalf("Before(%d, %d) = true against the order", later, base)
		}
		if Before(base, base) {
			t.Fatalf("Before is not irreflexive at %d", base)
		}
	})
}

// TestPropertyMinAgrees checks Min against Before.
func TestPropertyMinAgrees(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := Epoch(rapid.Uint64().Draw(t, "base"))
		diff := Epoch(rapid.Uint64Range(0, uint64(halfRange)-1).Draw(t, "diff"))
		later := base + diff

		m := Min(base, later)
		if m != Min(later, base) {
			t.Fatalf("Min is not symmetric for (%d, %d)", base, later)
		}
		if Before(base, m) || Before(later, m) {
			t.Fatalf("Min(%d, %d) = %d is not a lower bound", base, later, m)
		}
	})
}

// TestPropertyFrontierMonotone checks that a sequence of raise attempts never
// moves the frontier backward.
func TestPropertyFrontierMonotone(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		c := NewClock()
		attempts := rapid.SliceOfN(rapid.Uint64Range(0, 1<<20), 1, 64).Draw(t, "attempts")

		var best Epoch
		for _, a := range attempts {
			observed := Epoch(a)
			c.TryRaiseFrontier(observed)
			if Before(best, observed) {
				best = observed
			}
			if got := c.Frontier(); got != best {
				t.Fatalf("frontier %d after raising %v, want %d", got, attempts, best)
			}
		}
	})
}
