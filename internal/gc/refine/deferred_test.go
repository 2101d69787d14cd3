// Licensed under the MIT License. See LICENSE file in the project root for details.

package refine

import (
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/goleak"

	"github.com/kianostad/epochsync/internal/concurrency/epoch"
)

func TestTimeoutDefers(t *testing.T) {
	Convey("Given an unresponsive mutator and a nanosecond wait budget", t, func() {
		m := newTestManager(Config{WaitTimeout: time.Nanosecond})
		m3 := m.Attach("m-3")

		s := m.NewSynchronizer(nil, true)

		Convey("Synchronize escalates, times out, and defers", func() {
			So(s.Synchronize(), ShouldEqual, Deferred)
			So(m.PendingSync(), ShouldEqual, 1)
			So(m3.HasPending(), ShouldBeTrue)
			So(m3.PollArmed(), ShouldBeTrue)
			So(m.GetMetrics().DeferredSyncs, ShouldEqual, 1)

			Convey("The mutator's next poll completes the deferred initiator", func() {
				m3.Poll()
				So(s.CheckSynchronized(), ShouldBeTrue)
				So(m.PendingSync(), ShouldEqual, 0)
			})
		})
	})
}

func TestDeferredBufferFlush(t *testing.T) {
	Convey("Given a deferred initiator queued with dependent work", t, func() {
		m := newTestManager(Config{WaitTimeout: time.Nanosecond})
		m3 := m.Attach("m-3")

		s := m.NewSynchronizer(nil, true)
		So(s.Synchronize(), ShouldEqual, Deferred)

		var ran atomic.Int32
		m.Deferred().Enqueue(s, func() { ran.Add(1) })
		So(m.Deferred().Len(), ShouldEqual, 1)

		Convey("Flush keeps entries that are still lagging", func() {
			So(m.Deferred().Flush(), ShouldEqual, 0)
			So(m.Deferred().Len(), ShouldEqual, 1)
			So(ran.Load(), ShouldEqual, 0)
		})

		Convey("Flush drains entries once the mutator has synced", func() {
			m3.Poll()
			So(m.Deferred().Flush(), ShouldEqual, 1)
			So(m.Deferred().Len(), ShouldEqual, 0)
			So(ran.Load(), ShouldEqual, 1)
			So(m.PendingSync(), ShouldEqual, 0)
		})
	})
}

func TestVerifyBeforeCollectionPause(t *testing.T) {
	Convey("Given a deferred initiator", t, func() {
		m := newTestManager(Config{WaitTimeout: time.Nanosecond})
		m.Attach("m-3")
		s := m.NewSynchronizer(nil, true)
		So(s.Synchronize(), ShouldEqual, Deferred)
		m.Deferred().Enqueue(s, nil)

		Convey("A matching deferred length passes and clears the count", func() {
			m.VerifyBeforeCollectionPause(m.Deferred().Len())
			So(m.PendingSync(), ShouldEqual, 0)
		})

		Convey("A mismatch panics", func() {
			So(func() { m.VerifyBeforeCollectionPause(0) }, ShouldPanic)
		})
	})
}

// TestVisibilityContract exercises the protocol's central theorem with a
// data-race-free sentinel: the marker write precedes the mutator's epoch
// update, so a completed synchronization must observe it.
func TestVisibilityContract(t *testing.T) {
	defer goleak.VerifyNone(t)

	Convey("Given a mutator that writes a marker and then hits sync points", t, func() {
		m := newTestManager(Config{WaitTimeout: 100 * time.Millisecond})
		th := m.Attach("m-writer")

		var marker int // plain, unsynchronized word
		stop := make(chan struct{})
		done := make(chan struct{})
		go func() {
			defer close(done)
			marker = 42
			m.updateEpochSelf(th)
			for {
				select {
				case <-stop:
					return
				default:
					th.Poll()
				}
			}
		}()

		Convey("A completed synchronization observes the marker write", func() {
			s := m.NewSynchronizer(nil, true)
			for s.Synchronize() != Complete {
			}
			got := marker
			close(stop)
			<-done
			So(got, ShouldEqual, 42)
			So(epoch.Before(m.GlobalFrontier(), s.RequiredFrontier()), ShouldBeFalse)
		})
	})
}
