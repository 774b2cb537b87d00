package retry

import (
	"time"

	"github.com/Combine-Capital/imoto/pkg/config"
	"github.com/Combine-Capital/imoto/pkg/errors"
)

// NoJitter disables delay randomization. A zero Jitter means "default".
const NoJitter = -1.0

// Config holds the retry configuration.
type Config struct {
	// MaxAttempts is the maximum number of attempts (initial attempt + retries).
	// Default is 4.
	MaxAttempts uint

	// InitialDelay is the initial backoff delay. Default is 1 second.
	InitialDelay time.Duration

	// MaxDelay is the maximum backoff delay. Default is 10 seconds.
	MaxDelay time.Duration

	// Multiplier is the backoff multiplier. Default is 2.0.
	Multiplier float64

	// Jitter is the randomization factor (0.0 to 1.0). Default is 0.25 (±25%).
	// Use NoJitter for fixed delays.
	Jitter float64

	// OnRetry, if set, is called after each failed attempt that will be
	// retried, with the delay before the next attempt.
	OnRetry func(err error, next time.Duration)
}

// FromRemote builds the retry config for remote data service calls,
// without jitter so delays grow 1s, 2s, 4s... up to the configured maximum.
func FromRemote(cfg config.RemoteConfig) Config {
	return Config{
		MaxAttempts:  cfg.RetryMaxAttempts,
		InitialDelay: cfg.RetryInitialDelay,
		MaxDelay:     cfg.RetryMaxDelay,
		Multiplier:   2.0,
		Jitter:       NoJitter,
	}
}

// withDefaults returns a config with default values applied.
func (c Config) withDefaults() Config {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 4
	}
	if c.InitialDelay == 0 {
		c.InitialDelay = time.Second
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = 10 * time.Second
	}
	if c.Multiplier == 0 {
		c.Multiplier = 2.0
	}
	switch {
	case c.Jitter == 0:
		c.Jitter = 0.25 // ±25%
	case c.Jitter < 0:
		c.Jitter = 0
	}
	return c
}

// shouldRetry reports whether err is a temporary failure: a network error,
// a timeout, 408, 429 or 5xx.
func shouldRetry(err error) bool {
	return err != nil && errors.IsTemporary(err)
}
