// Package backoff provides delay schedules for retry.
package backoff

import (
	"math"
	"time"
)

// Strategy is a function that provides the amount of time to wait before
// trying again. Attempts starts at 1.
type Strategy func(attempts uint) time.Duration

// Constant returns a strategy that always returns the provided duration.
func Constant(interval time.Duration) Strategy {
	return func(attempts uint) time.Duration {
		return interval
	}
}

// BinaryExponential returns a strategy that doubles the delay on every
// attempt, saturating at math.MaxInt64 instead of overflowing.
//
// delay = baseDelay * 2^(attempts - 1)
// Ex. BinaryExponential(10*time.Millisecond) = 10ms, 20ms, 40ms, 80ms, ...
func BinaryExponential(baseDelay time.Duration) Strategy {
	return func(attempts uint) time.Duration {
		if attempts <= 1 || baseDelay <= 0 {
			return baseDelay
		}

		shift := attempts - 1
		if shift >= 63 || baseDelay > math.MaxInt64>>shift {
			return math.MaxInt64
		}
		return baseDelay << shift
	}
}
