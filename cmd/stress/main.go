// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package main provides a long-running stress driver for the epoch
// synchronization protocol.
//
// The driver spawns a configurable mutator population with mixed behavior —
// polling and native-call parking — and a set of initiators that
// synchronize continuously, while periodic epoch resets exercise the
// safepoint path. Statistics are printed at a fixed interval so drifts and
// stalls are visible.
//
// # Usage
//
//	go run cmd/stress/main.go -mutators 8 -initiators 2 -duration 30s
//
// Flags:
//
//	-mutators   number of mutator goroutines (default 8)
//	-initiators number of initiator goroutines (default 2)
//	-duration   total run time (default 10s)
//	-natives    fraction of mutator iterations that park in native (default 0.2)
//	-report     statistics reporting interval (default 1s)
//
// # See Also
//
// For latency-focused measurements, see the bench tool.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/kianostad/epochsync"
)

func main() {
	mutators := flag.Int("mutators", 8, "number of mutator goroutines")
	initiators := flag.Int("initiators", 2, "number of initiator goroutines")
	duration := flag.Duration("duration", 10*time.Second, "total run time")
	natives := flag.Float64("natives", 0.2, "fraction of iterations that park in native")
	report := flag.Duration("report", time.Second, "statistics reporting interval")
	flag.Parse()

	fmt.Printf("Epoch synchronization stress: %d mutators, %d initiators, %v\n",
		*mutators, *initiators, *duration)

	rt := epochsync.New(epochsync.Config{
		WaitTimeout:           epochsync.DefaultWaitTimeout,
		TestPeriodicReset:     true,
		PeriodicResetInterval: time.Second,
		Logger:                slog.New(slog.DiscardHandler),
	})
	rt.Start()
	defer rt.Close(context.Background())

	stop := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < *mutators; i++ {
		th := rt.Attach(fmt.Sprintf("stress-mutator-%d", i))
		wg.Add(1)
		go func(th *epochsync.Thread, seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for {
				select {
				case <-stop:
					return
				default:
				}
				th.Poll()
				if rng.Float64() < *natives {
					th.EnterNative()
					time.Sleep(time.Duration(rng.Intn(200)) * time.Microsecond)
					th.LeaveNative()
				}
			}
		}(th, int64(i))
	}

	var syncs, deferrals sync.Map
	for i := 0; i < *initiators; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			var done, deferred uint64
			for {
				select {
				case <-stop:
					syncs.Store(id, done)
					deferrals.Store(id, deferred)
					return
				default:
				}
				s := rt.NewSynchronizer(nil, true)
				if s.Synchronize() == epochsync.Complete {
					done++
				} else {
					// The deferred buffer is the one place a live
					// deferred initiator may wait; the epoch reset
					// reconciles with it.
					rt.Deferred().Enqueue(s, nil)
					deferred++
				}
				if done%128 == 0 {
					rt.Deferred().Flush()
				}
			}
		}(i)
	}

	ticker := time.NewTicker(*report)
	defer ticker.Stop()
	deadline := time.After(*duration)

loop:
	for {
		select {
		case <-ticker.C:
			printStats(rt)
		case <-deadline:
			break loop
		}
	}

	close(stop)
	wg.Wait()
	rt.Deferred().Flush()
	printStats(rt)

	var totalSyncs, totalDeferred uint64
	syncs.Range(func(_, v any) bool { totalSyncs += v.(uint64); return true })
	deferrals.Range(func(_, v any) bool { totalDeferred += v.(uint64); return true })
	fmt.Printf("\ncompleted %d synchronizations, %d deferral retries\n",
		totalSyncs, totalDeferred)
}

func printStats(rt *epochsync.Runtime) {
	s := rt.GetMetrics()
	fmt.Printf("epoch=%d frontier=%d fast=%d deferred=%d resets=%d fast-mean=%v\n",
		rt.GlobalEpoch(), rt.GlobalFrontier(),
		s.FastSyncs, s.DeferredSyncs, s.Resets, s.FastLatency.Mean)
}
