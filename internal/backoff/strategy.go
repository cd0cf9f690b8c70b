// Package backoff provides retry delay calculation strategies for the
// dispatcher.
package backoff

import (
	"math/rand"
	"time"
)

// Strategy computes the delay before a retry attempt. Attempt numbering
// starts at 0 for the first retry.
type Strategy interface {
	Delay(attempt int, base, max time.Duration) time.Duration
}

// Constant waits the base delay before every retry. This is the dispatcher
// default: retries are rescheduled after the descriptor's RetryTime.
type Constant struct{}

// Delay implements Strategy.
func (Constant) Delay(attempt int, base, max time.Duration) time.Duration {
	if max > 0 && base > max {
		return max
	}
	return base
}

// ExponentialJitter doubles the delay per attempt and adds uniform jitter of
// up to 20% to avoid thundering herds.
type ExponentialJitter struct{}

// Delay implements Strategy.
func (ExponentialJitter) Delay(attempt int, base, max time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// Cap the exponent to prevent overflow.
	if attempt > 30 {
		attempt = 30
	}

	delay := base << uint(attempt)
	if delay <= 0 || (max > 0 && delay > max) {
		// On shift overflow with no cap configured, fall back to the base
		// delay instead of collapsing to an immediate retry.
		delay = max
		if delay <= 0 {
			delay = base
		}
	}

	jitter := time.Duration(float64(delay) * 0.2 * rand.Float64())
	if max > 0 && delay+jitter > max {
		return max
	}
	return delay + jitter
}

// DecorrelatedJitter implements AWS-style decorrelated jitter: each delay is
// drawn uniformly between the base and three times the previous ceiling.
type DecorrelatedJitter struct{}

// Delay implements Strategy.
func (DecorrelatedJitter) Delay(attempt int, base, max time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 10 {
		attempt = 10
	}

	upper := float64(base)
	for i := 0; i <= attempt; i++ {
		upper *= 3
		if max > 0 && upper > float64(max) {
			upper = float64(max)
			break
		}
	}
	if upper < float64(base) {
		upper = float64(base)
	}

	delay := time.Duration(float64(base) + rand.Float64()*(upper-float64(base)))
	if max > 0 && delay > max {
		return max
	}
	return delay
}
