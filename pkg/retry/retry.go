// Package retry calls a function until it succeeds or attempts run out.
package retry

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

const (
	defaultDelay    = 100 * time.Millisecond
	defaultMaxDelay = 10 * time.Second
)

// A Backoff returns the wait before the next attempt. Attempts start at 1.
type Backoff func(attempt int) time.Duration

type ShouldRetry func(error) bool

// A RetryConfig tells how many times and how long apart fn is called.
// Zero MaxAttempts means a single call.
//
// OnRetry, when set, is called before each wait with the failed attempt.
type RetryConfig struct {
	MaxAttempts int
	Backoff     Backoff
	ShouldRetry ShouldRetry
	OnRetry     func(attempt int, err error, wait time.Duration)
}

func (c *RetryConfig) normalize() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.Backoff == nil {
		c.Backoff = ExponentialBackoff(defaultDelay)
	}
	if c.ShouldRetry == nil {
		c.ShouldRetry = func(error) bool { return true }
	}
}

// ExponentialBackoff doubles delay on every attempt with up to 50% jitter,
// capped at ten seconds.
func ExponentialBackoff(delay time.Duration) Backoff {
	return func(attempt int) time.Duration {
		base := delay << min(attempt-1, 16)
		if base <= 0 || base > defaultMaxDelay {
			base = defaultMaxDelay
		}
		half := int64(base / 2)
		if half == 0 {
			return base
		}
		return base + time.Duration(rand.Int64N(half))
	}
}

func LinearBackoff(delay time.Duration) Backoff {
	return func(int) time.Duration {
		return delay
	}
}

func Do(ctx context.Context, c RetryConfig, fn func() error) error {
	_, err := DoWithResult(ctx, c, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult returns the first successful result of fn. When ctx is done
// while waiting, the error wraps both ctx error and the last fn error.
func DoWithResult[T any](ctx context.Context, c RetryConfig, fn func() (T, error)) (T, error) {
	var zero T

	if err := ctx.Err(); err != nil {
		return zero, err
	}
	c.normalize()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for attempt := 1; ; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		if attempt >= c.MaxAttempts || !c.ShouldRetry(err) {
			return zero, err
		}

		wait := c.Backoff(attempt)
		if c.OnRetry != nil {
			c.OnRetry(attempt, err, wait)
		}

		timer.Reset(wait)
		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("%w: %w", ctx.Err(), err)
		case <-timer.C:
		}
	}
}
