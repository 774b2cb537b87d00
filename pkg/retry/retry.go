// Package retry runs remote calls with exponential backoff.
//
// It wraps github.com/cenkalti/backoff/v5 and decides what to retry from the
// error categories in pkg/errors: by default only temporary failures
// (network errors, 408, 429, 5xx) are retried, and everything else fails on
// the first attempt.
//
// Example usage:
//
//	cfg := retry.FromRemote(appCfg.Remote) // 4 attempts, 1s..10s
//
//	rows, err := retry.DoWithData(ctx, cfg, func() ([]Record, error) {
//		return client.FetchList(ctx, "vehicles", filter)
//	})
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Do executes fn until it succeeds, returns a non-retryable error, or the
// attempt budget runs out. It respects context cancellation.
//
// Returns the error from the last attempt if all retries are exhausted.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	_, err := DoWithData(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithData is Do for functions that return a value.
//
// Example:
//
//	vehicle, err := retry.DoWithData(ctx, cfg, func() (Record, error) {
//		return service.FetchOne(ctx, "vehicles", id)
//	})
func DoWithData[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	cfg = cfg.withDefaults()

	operation := func() (T, error) {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		if !shouldRetry(err) {
			var zero T
			return zero, backoff.Permanent(err)
		}
		return result, err
	}

	result, err := backoff.Retry(ctx, operation, cfg.options()...)
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}
	return result, err
}

// options translates the config into backoff retry options.
func (c Config) options() []backoff.RetryOption {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialDelay
	b.MaxInterval = c.MaxDelay
	b.Multiplier = c.Multiplier
	b.RandomizationFactor = c.Jitter

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.MaxAttempts),
	}
	if c.OnRetry != nil {
		opts = append(opts, backoff.WithNotify(func(err error, next time.Duration) {
			c.OnRetry(err, next)
		}))
	}
	return opts
}
