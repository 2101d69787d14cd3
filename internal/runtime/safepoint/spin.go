// Licensed under the MIT License. See LICENSE file in the project root for details.

package safepoint

import (
	"runtime"
	"time"
)

// spinYieldLimit is the number of scheduler yields before Wait starts
// sleeping.
const spinYieldLimit = 64

// spinSleepCap bounds the escalating sleep duration.
const spinSleepCap = 100 * time.Microsecond

// SpinYield waits with increasing patience: scheduler yields first, then
// escalating short sleeps. The zero value is ready to use; a SpinYield is
// not safe for concurrent use.
type SpinYield struct {
	yields int
	sleep  time.Duration
}

// Wait performs one wait step.
func (s *SpinYield) Wait() {
	if s.yields < spinYieldLimit {
		s.yields++
		runtime.Gosched()
		return
	}
	if s.sleep == 0 {
		s.sleep = time.Microsecond
	} else if s.sleep < spinSleepCap {
		s.sleep *= 2
		if s.sleep > spinSleepCap {
			s.sleep = spinSleepCap
		}
	}
	time.Sleep(s.sleep)
}
