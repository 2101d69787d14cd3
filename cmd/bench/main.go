// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package main provides benchmarking tools for the epoch synchronization
// protocol.
//
// This command-line tool measures the protocol's latency under different
// mutator populations and behaviors. It is useful for validating that the
// mutator hot path stays cheap and for sizing the synchronizer's wait budget.
//
// # Benchmark Categories
//
// The benchmark suite includes:
//   - Fast-path synchronization (responsive mutators)
//   - Delegate-scope escalation (mutators parked in native calls)
//   - Handshake escalation (mutators that only reach armed polls)
//   - Frontier memoization (concurrent initiators sharing progress)
//   - Mutator poll overhead (the cost mutators actually pay)
//
// # Usage
//
// Run all benchmarks:
//
//	go run cmd/bench/main.go
//
// Build and run:
//
//	go build -o bench cmd/bench/main.go
//	./bench
//
// # Dangers and Warnings
//
//   - **Resource Consumption**: Benchmarks spawn busy mutator goroutines.
//   - **Scheduling Noise**: Results vary with CPU architecture and load.
//   - **Go GC**: The Go runtime's own collector may perturb latencies.
//
// # See Also
//
// For a long-running mixed workload, see the stress tool.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kianostad/epochsync"
)

func main() {
	fmt.Println("Epoch Synchronization Benchmarks")
	fmt.Println("================================")

	benchmarkFastPath()
	benchmarkDelegateScope()
	benchmarkHandshakeEscalation()
	benchmarkConcurrentInitiators()
	benchmarkPollOverhead()
}

func quietRuntime(cfg epochsync.Config) *epochsync.Runtime {
	cfg.Logger = slog.New(slog.DiscardHandler)
	rt := epochsync.New(cfg)
	rt.Start()
	return rt
}

func benchmarkFastPath() {
	fmt.Println("\n1. Fast-path synchronization (polling mutators)")
	ctx := context.Background()

	for _, mutators := range []int{1, 4, 16} {
		rt := quietRuntime(epochsync.Config{WaitTimeout: time.Second})
		stop := make(chan struct{})
		var wg sync.WaitGroup
		for i := 0; i < mutators; i++ {
			th := rt.Attach(fmt.Sprintf("bench-%d", i))
			wg.Add(1)
			go func(th *epochsync.Thread) {
				defer wg.Done()
				for {
					select {
					case <-stop:
						return
					default:
						th.Poll()
					}
				}
			}(th)
		}

		const rounds = 10000
		start := time.Now()
		for i := 0; i < rounds; i++ {
			s := rt.NewSynchronizer(nil, true)
			for s.Synchronize() != epochsync.Complete {
			}
		}
		duration := time.Since(start)
		close(stop)
		wg.Wait()
		rt.Close(ctx)

		fmt.Printf("   %2d mutators: %d syncs in %v (%.1f µs/sync)\n",
			mutators, rounds, duration, float64(duration.Microseconds())/rounds)
	}
}

func benchmarkDelegateScope() {
	fmt.Println("\n2. Delegate-scope escalation (mutators parked in native)")
	ctx := context.Background()

	for _, mutators := range []int{1, 4, 16} {
		rt := quietRuntime(epochsync.Config{WaitTimeout: time.Second})
		for i := 0; i < mutators; i++ {
			th := rt.Attach(fmt.Sprintf("bench-%d", i))
			th.EnterNative()
		}

		const rounds = 10000
		start := time.Now()
		for i := 0; i < rounds; i++ {
			s := rt.NewSynchronizer(nil, true)
			for s.Synchronize() != epochsync.Complete {
			}
		}
		duration := time.Since(start)
		rt.Close(ctx)

		fmt.Printf("   %2d mutators: %d syncs in %v (%.1f µs/sync)\n",
			mutators, rounds, duration, float64(duration.Microseconds())/rounds)
	}
}

func benchmarkHandshakeEscalation() {
	fmt.Println("\n3. Handshake escalation (mutators polling at a slow cadence)")
	ctx := context.Background()

	rt := quietRuntime(epochsync.Config{WaitTimeout: 50 * time.Millisecond})
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		th := rt.Attach(fmt.Sprintf("bench-%d", i))
		wg.Add(1)
		go func(th *epochsync.Thread) {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					th.Poll()
					time.Sleep(100 * time.Microsecond)
				}
			}
		}(th)
	}

	const rounds = 1000
	deferred := 0
	start := time.Now()
	for i := 0; i < rounds; i++ {
		s := rt.NewSynchronizer(nil, true)
		if s.Synchronize() == epochsync.Deferred {
			deferred++
			for !s.CheckSynchronized() {
				time.Sleep(100 * time.Microsecond)
			}
		}
	}
	duration := time.Since(start)
	close(stop)
	wg.Wait()
	rt.Close(ctx)

	fmt.Printf("   %d syncs in %v (%.1f µs/sync), %d deferred\n",
		rounds, duration, float64(duration.Microseconds())/rounds, deferred)
}

func benchmarkConcurrentInitiators() {
	fmt.Println("\n4. Concurrent initiators (frontier memoization)")
	ctx := context.Background()

	rt := quietRuntime(epochsync.Config{WaitTimeout: time.Second})
	stop := make(chan struct{})
	var pollers sync.WaitGroup
	for i := 0; i < 4; i++ {
		th := rt.Attach(fmt.Sprintf("bench-%d", i))
		pollers.Add(1)
		go func(th *epochsync.Thread) {
			defer pollers.Done()
			for {
				select {
				case <-stop:
					return
				default:
					th.Poll()
				}
			}
		}(th)
	}

	const initiators = 8
	const rounds = 2000
	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < initiators; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				s := rt.NewSynchronizer(nil, true)
				for s.Synchronize() != epochsync.Complete {
				}
			}
		}()
	}
	wg.Wait()
	duration := time.Since(start)
	close(stop)
	pollers.Wait()

	total := initiators * rounds
	stats := rt.GetMetrics()
	rt.Close(ctx)
	fmt.Printf("   %d initiators x %d syncs in %v (%.1f µs/sync), %d deferred\n",
		initiators, rounds, duration, float64(duration.Microseconds())/float64(total),
		stats.DeferredSyncs)
}

func benchmarkPollOverhead() {
	fmt.Println("\n5. Mutator poll overhead (unarmed fast path)")
	ctx := context.Background()

	rt := quietRuntime(epochsync.Config{})
	th := rt.Attach("bench-0")

	const polls = 100_000_000
	start := time.Now()
	for i := 0; i < polls; i++ {
		th.Poll()
	}
	duration := time.Since(start)
	rt.Close(ctx)

	fmt.Printf("   %d polls in %v (%.2f ns/poll)\n",
		polls, duration, float64(duration.Nanoseconds())/polls)
}
