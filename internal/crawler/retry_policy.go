package crawler

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// BackoffPolicy computes the pause between attempts as
// base^attempt seconds plus a uniform jitter in [JitterMin, JitterMax].
type BackoffPolicy struct {
	MaxAttempts int
	Base        float64
	JitterMin   time.Duration
	JitterMax   time.Duration
}

// DefaultBackoffPolicy returns 3 attempts, base 2 and 0.3s-1.2s of jitter.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		MaxAttempts: 3,
		Base:        2,
		JitterMin:   300 * time.Millisecond,
		JitterMax:   1200 * time.Millisecond,
	}
}

// Attempts returns the attempt budget, never less than one.
func (p BackoffPolicy) Attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

// Delay is the pure form of the policy: attempt is 1-based and u in [0,1)
// picks the jitter offset inside the configured range.
func (p BackoffPolicy) Delay(attempt int, u float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := p.Base
	if base <= 0 {
		base = 1
	}
	seconds := math.Pow(base, float64(attempt))
	delay := time.Duration(seconds * float64(time.Second))
	return delay + jitterBetween(p.JitterMin, p.JitterMax, u)
}

// Next draws a random jitter and returns the delay before attempt+1.
func (p BackoffPolicy) Next(attempt int) time.Duration {
	return p.Delay(attempt, rand.Float64())
}

// ShouldRetry decides whether another attempt is allowed after attempt
// failed with err. Cancellation always stops the loop.
func (p BackoffPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.Attempts() {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

func jitterBetween(lo, hi time.Duration, u float64) time.Duration {
	if hi < lo {
		lo, hi = hi, lo
	}
	if u < 0 {
		u = 0
	}
	if u >= 1 {
		u = math.Nextafter(1, 0)
	}
	return lo + time.Duration(u*float64(hi-lo))
}
