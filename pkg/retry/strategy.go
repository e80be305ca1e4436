package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/code-payments/code-escrow/pkg/retry/backoff"
)

// Strategy is a function that determines whether or not an action should be
// retried. Strategies are allowed to delay or cause other side effects.
type Strategy func(attempts uint, err error) bool

// Limit returns a strategy that limits the total number of attempts.
// maxAttempts should be >= 1, since the action is evaluated first.
func Limit(maxAttempts uint) Strategy {
	return func(attempts uint, err error) bool {
		return attempts < maxAttempts
	}
}

// RetriableWhen returns a strategy that retries errors matched by the provided
// predicate.
func RetriableWhen(isRetriable func(error) bool) Strategy {
	return func(attempts uint, err error) bool {
		return isRetriable(err)
	}
}

// Backoff returns a strategy that sleeps for the capped delay before the next
// attempt. It stops retrying once ctx is done, including mid-sleep.
func Backoff(ctx context.Context, strategy backoff.Strategy, maxBackoff time.Duration) Strategy {
	return BackoffWithJitter(ctx, strategy, maxBackoff, 0)
}

// BackoffWithJitter returns a strategy similar to Backoff that spreads the
// delay by up to jitter percent in either direction. The cap is applied before
// the jitter, so a capped delay of 100ms with a jitter of 0.1 sleeps between
// 90ms and 110ms.
func BackoffWithJitter(ctx context.Context, strategy backoff.Strategy, maxBackoff time.Duration, jitter float64) Strategy {
	return func(attempts uint, err error) bool {
		delay := strategy(attempts)
		if delay > maxBackoff {
			delay = maxBackoff
		}

		if jitter > 0 {
			delay = time.Duration(float64(delay) * (1 + jitter*(2*rand.Float64()-1)))
		}

		return sleeperImpl.Sleep(ctx, delay)
	}
}

type sleeper interface {
	// Sleep blocks for d and reports whether the full duration elapsed
	// before ctx was done.
	Sleep(ctx context.Context, d time.Duration) bool
}

type realSleeper struct{}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

var sleeperImpl sleeper = realSleeper{}
