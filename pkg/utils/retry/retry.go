package retry

import (
	"context"
	"errors"
	"time"
)

// ErrRetry tells Blocking to call the function again.
var ErrRetry = errors.New("retry")

// Backoff blocks until the next attempt should be made.
//
// It returns ctx.Err() when ctx is done before that.
type Backoff func(context.Context) error

// StaticBackoff waits for a fixed interval between attempts.
func StaticBackoff(interval time.Duration) Backoff {
	return ExponentialBackoff(interval, 1)
}

// ExponentialBackoff waits initial * r^N before the N-th retry.
//
// If limit is positive, the interval does not grow beyond it.
func ExponentialBackoff(initial time.Duration, r float64, limit ...time.Duration) Backoff {
	interval := initial
	return func(ctx context.Context) error {
		timer := time.NewTimer(interval)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			interval = time.Duration(float64(interval) * r)
			if len(limit) != 0 && 0 < limit[0] && limit[0] < interval {
				interval = limit[0]
			}
			return nil
		}
	}
}

// Blocking calls f until it returns nil or an error other than ErrRetry.
//
// The first call is made immediately; backoff is taken before each retry.
// When ctx is done while waiting, it returns the last value with ctx's error
// joined with the last retry reason.
func Blocking[T any](ctx context.Context, b Backoff, f func() (T, error)) (T, error) {
	for {
		if err := ctx.Err(); err != nil {
			return *new(T), err
		}
		last, err := f()
		if err == nil {
			return last, nil
		}
		if !errors.Is(err, ErrRetry) {
			return last, err
		}
		if berr := b(ctx); berr != nil {
			return last, errors.Join(berr, err)
		}
	}
}
