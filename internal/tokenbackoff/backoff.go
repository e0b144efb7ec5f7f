package tokenbackoff

import "time"

// DefaultScheduleSeconds is the backoff schedule named in spec.md §4.2.
var DefaultScheduleSeconds = []int{15, 30, 60, 120, 300}

// ComputeBackoffMs returns the backoff duration for the nth consecutive
// failure (1-indexed). n<=1 returns the schedule's first element; n beyond
// the schedule's length clamps at the final element.
func ComputeBackoffMs(n int, scheduleSeconds []int) int64 {
	if len(scheduleSeconds) == 0 {
		scheduleSeconds = DefaultScheduleSeconds
	}
	idx := n - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(scheduleSeconds) {
		idx = len(scheduleSeconds) - 1
	}
	return int64(scheduleSeconds[idx]) * 1000
}

// Sleeper abstracts time.Sleep so retry loops are testable without
// actually blocking.
type Sleeper interface {
	Sleep(d time.Duration)
}

type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// RealSleeper is the production Sleeper backed by time.Sleep.
var RealSleeper Sleeper = realSleeper{}
