package gesture

import "time"

// Clock is the only scheduling primitive the core uses: read the monotonic
// time and block until a deadline.
type Clock interface {
	Now() time.Time
	SleepUntil(deadline time.Time)
}

// SystemClock uses the runtime's monotonic clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// SleepUntil returns immediately when the deadline already passed.
func (SystemClock) SleepUntil(deadline time.Time) {
	if d := time.Until(deadline); d > 0 {
		time.Sleep(d)
	}
}
