package editor

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// RateLimiter lets one event through per interval. It is a value: Allow
// returns the updated limiter instead of mutating the receiver.
type RateLimiter struct {
	Interval time.Duration
	clock    clockwork.Clock
	last     time.Time
}

// NewRateLimiter creates a limiter reading time from clock.
func NewRateLimiter(interval time.Duration, clock clockwork.Clock) RateLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return RateLimiter{Interval: interval, clock: clock}
}

// Allow reports whether an event may pass now.
func (r RateLimiter) Allow() (RateLimiter, bool) {
	now := r.clock.Now()
	if !r.last.IsZero() && now.Sub(r.last) < r.Interval {
		return r, false
	}
	r.last = now
	return r, true
}
