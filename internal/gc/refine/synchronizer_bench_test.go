// Licensed under the MIT License. See LICENSE file in the project root for details.

package refine

import (
	"log/slog"
	"testing"
	"time"

	"github.com/kianostad/epochsync/internal/runtime/mutator"
)

func newBenchManager(b *testing.B, mutators int) (*Manager, []*mutator.Thread) {
	b.Helper()
	m := NewManager(Config{
		WaitTimeout: time.Second,
		Logger:      slog.New(slog.DiscardHandler),
	})
	ths := make([]*mutator.Thread, mutators)
	for i := range ths {
		ths[i] = m.Attach("bench-mutator")
	}
	return m, ths
}

func BenchmarkCheckSynchronizedHit(b *testing.B) {
	m, ths := newBenchManager(b, 8)
	s := m.NewSynchronizer(nil, true)
	for _, th := range ths {
		m.updateEpochSelf(th)
	}
	if !s.CheckSynchronized() {
		b.Fatal("population not synchronized")
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.CheckSynchronized()
	}
}

func BenchmarkSynchronizeFastPath(b *testing.B) {
	m, ths := newBenchManager(b, 8)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s := m.NewSynchronizer(nil, true)
		for _, th := range ths {
			m.updateEpochSelf(th)
		}
		if s.Synchronize() != Complete {
			b.Fatal("fast path did not complete")
		}
	}
}

func BenchmarkSynchronizeDelegateScope(b *testing.B) {
	m, ths := newBenchManager(b, 8)
	for _, th := range ths {
		th.EnterNative()
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s := m.NewSynchronizer(nil, true)
		if s.Synchronize() != Complete {
			b.Fatal("delegate path did not complete")
		}
	}
}

func BenchmarkMutatorPollFastPath(b *testing.B) {
	m, ths := newBenchManager(b, 1)
	th := ths[0]
	_ = m

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		th.Poll()
	}
}

func BenchmarkUpdateEpochSelf(b *testing.B) {
	m, ths := newBenchManager(b, 1)
	th := ths[0]

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.updateEpochSelf(th)
	}
}
