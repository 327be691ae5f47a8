package worker

import (
	"math"
	"time"
)

// Backoff computes exponential delays between consecutive transport
// failures: delay = min(initial * multiplier^(attempt-1), max).
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoff matches the worker's poll cadence: 5s doubling up to 2m.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial:    5 * time.Second,
		Max:        2 * time.Minute,
		Multiplier: 2.0,
	}
}

// Delay returns the wait before retrying after the given failed attempt
// (1-based). Attempt 0 or below waits nothing.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	if b.Initial <= 0 {
		b = DefaultBackoff()
	}
	if b.Multiplier < 1 {
		b.Multiplier = 2.0
	}

	delay := float64(b.Initial) * math.Pow(b.Multiplier, float64(attempt-1))
	if b.Max > 0 && delay > float64(b.Max) {
		delay = float64(b.Max)
	}
	return time.Duration(delay)
}
