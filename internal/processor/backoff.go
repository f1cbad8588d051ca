package processor

import (
	"math/rand/v2"
	"time"
)

// Backoff decides how long a failed event waits before its next attempt.
// A zero Base makes retries due immediately.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
	// JitterFraction adds up to this share of the delay at random.
	JitterFraction float64
}

const defaultJitterFraction = 0.1

// Delay returns the wait before attempt number retry (1-based).
func (b Backoff) Delay(retry int) time.Duration {
	if b.Base <= 0 || retry <= 0 {
		return 0
	}
	delay := b.Base
	for i := 1; i < retry; i++ {
		delay *= 2
		if b.Max > 0 && delay >= b.Max {
			delay = b.Max
			break
		}
	}
	if b.Max > 0 && delay > b.Max {
		delay = b.Max
	}
	return withJitter(delay, b.JitterFraction)
}

func withJitter(d time.Duration, fraction float64) time.Duration {
	if d <= 0 || fraction <= 0 {
		return d
	}
	window := int64(float64(d) * fraction)
	if window <= 0 {
		return d
	}
	return d + time.Duration(rand.Int64N(window))
}
