// Licensed under the MIT License. See LICENSE file in the project root for details.

package metrics

import (
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsBasicRecording(t *testing.T) {
	Convey("Given fresh metrics", t, func() {
		m := New()

		Convey("The snapshot starts empty", func() {
			s := m.GetSnapshot()
			So(s.FastSyncs, ShouldEqual, 0)
			So(s.DeferredSyncs, ShouldEqual, 0)
			So(s.Resets, ShouldEqual, 0)
			So(s.FastLatency.Count, ShouldEqual, 0)
		})

		Convey("Recording updates counters and cumulative times", func() {
			m.RecordFastSync(2 * time.Microsecond)
			m.RecordFastSync(4 * time.Microsecond)
			m.RecordDeferredSync(3 * time.Millisecond)
			m.RecordReset()

			s := m.GetSnapshot()
			So(s.FastSyncs, ShouldEqual, 2)
			So(s.DeferredSyncs, ShouldEqual, 1)
			So(s.FastSyncTime, ShouldEqual, 6*time.Microsecond)
			So(s.DeferredSyncTime, ShouldEqual, 3*time.Millisecond)
			So(s.Resets, ShouldEqual, 1)
		})

		Convey("Latency stats summarize the retained samples", func() {
			m.RecordFastSync(1 * time.Microsecond)
			m.RecordFastSync(3 * time.Microsecond)
			m.RecordFastSync(8 * time.Microsecond)

			lat := m.GetSnapshot().FastLatency
			So(lat.Count, ShouldEqual, 3)
			So(lat.Min, ShouldEqual, 1*time.Microsecond)
			So(lat.Max, ShouldEqual, 8*time.Microsecond)
			So(lat.Mean, ShouldEqual, 4*time.Microsecond)
		})
	})
}

func TestMetricsRingBounds(t *testing.T) {
	Convey("Given more samples than the window holds", t, func() {
		m := New()
		for i := 0; i < latencyWindow+100; i++ {
			m.RecordFastSync(time.Duration(i+1) * time.Nanosecond)
		}

		Convey("The count keeps the total while the window stays bounded", func() {
			lat := m.GetSnapshot().FastLatency
			So(lat.Count, ShouldEqual, latencyWindow+100)
			// The oldest samples have been overwritten.
			So(lat.Min, ShouldBeGreaterThan, time.Duration(100)*time.Nanosecond)
		})
	})
}

func TestMetricsConcurrentRecording(t *testing.T) {
	Convey("Given concurrent recorders", t, func() {
		m := New()
		const goroutines = 8
		const perGoroutine = 500

		var wg sync.WaitGroup
		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < perGoroutine; j++ {
					m.RecordFastSync(time.Microsecond)
					m.RecordDeferredSync(time.Microsecond)
				}
			}()
		}
		wg.Wait()

		Convey("No record is lost", func() {
			s := m.GetSnapshot()
			So(s.FastSyncs, ShouldEqual, goroutines*perGoroutine)
			So(s.DeferredSyncs, ShouldEqual, goroutines*perGoroutine)
		})
	})
}

func TestSnapshotMerge(t *testing.T) {
	Convey("Given two snapshots", t, func() {
		a := Snapshot{FastSyncs: 2, DeferredSyncs: 1, FastSyncTime: time.Second, Resets: 1}
		b := Snapshot{FastSyncs: 3, DeferredSyncTime: time.Millisecond}

		Convey("Merge sums counters and times", func() {
			c := a.Merge(b)
			So(c.FastSyncs, ShouldEqual, 5)
			So(c.DeferredSyncs, ShouldEqual, 1)
			So(c.FastSyncTime, ShouldEqual, time.Second)
			So(c.DeferredSyncTime, ShouldEqual, time.Millisecond)
			So(c.Resets, ShouldEqual, 1)
		})
	})
}
