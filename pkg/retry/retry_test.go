package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Combine-Capital/imoto/pkg/config"
	imotoerrors "github.com/Combine-Capital/imoto/pkg/errors"
)

// fastRemote is the remote budget (4 attempts, doubling delays) scaled
// down to milliseconds.
func fastRemote() Config {
	return FromRemote(config.RemoteConfig{
		RetryMaxAttempts:  4,
		RetryInitialDelay: time.Millisecond,
		RetryMaxDelay:     3 * time.Millisecond,
	})
}

func TestFromRemote(t *testing.T) {
	cfg := FromRemote(config.Default().Remote)

	if cfg.MaxAttempts != 4 {
		t.Errorf("MaxAttempts = %d, want 4", cfg.MaxAttempts)
	}
	if cfg.InitialDelay != time.Second {
		t.Errorf("InitialDelay = %v, want 1s", cfg.InitialDelay)
	}
	if cfg.MaxDelay != 10*time.Second {
		t.Errorf("MaxDelay = %v, want 10s", cfg.MaxDelay)
	}
	if cfg.Multiplier != 2.0 {
		t.Errorf("Multiplier = %v, want 2", cfg.Multiplier)
	}
	if cfg.Jitter != NoJitter {
		t.Errorf("Jitter = %v, want NoJitter", cfg.Jitter)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()

	if cfg.MaxAttempts != 4 {
		t.Errorf("MaxAttempts = %d, want 4", cfg.MaxAttempts)
	}
	if cfg.InitialDelay != time.Second {
		t.Errorf("InitialDelay = %v, want 1s", cfg.InitialDelay)
	}
	if cfg.MaxDelay != 10*time.Second {
		t.Errorf("MaxDelay = %v, want 10s", cfg.MaxDelay)
	}
	if cfg.Jitter != 0.25 {
		t.Errorf("Jitter = %v, want 0.25", cfg.Jitter)
	}

	if got := (Config{Jitter: NoJitter}).withDefaults().Jitter; got != 0 {
		t.Errorf("NoJitter resolved to %v, want 0", got)
	}
}

// TestDoWithData_ErrorCategories checks which backend failures are retried.
// Network errors, 408, 429 and 5xx come back as temporary; other 4xx do not.
func TestDoWithData_ErrorCategories(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantAttempts int
	}{
		{"503 service unavailable", imotoerrors.NewTemporary("HTTP 503", nil), 4},
		{"429 too many requests", imotoerrors.NewTemporary("HTTP 429", nil), 4},
		{"408 request timeout", imotoerrors.NewTemporary("HTTP 408", nil), 4},
		{"network failure", imotoerrors.NewTemporary("request failed", errors.New("connection reset")), 4},
		{"404 not found", imotoerrors.NewNotFound("vehicles", "v1"), 1},
		{"400 bad request", imotoerrors.NewInvalidInput("request", "bad filter"), 1},
		{"401 unauthorized", imotoerrors.NewUnauthorized("HTTP 401"), 1},
		{"409 conflict", imotoerrors.NewPermanent("HTTP 409", nil), 1},
		{"caller canceled", imotoerrors.NewPermanent("request canceled", context.Canceled), 1},
		{"uncategorized", errors.New("boom"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			_, err := DoWithData(context.Background(), fastRemote(), func() ([]string, error) {
				attempts++
				return nil, tt.err
			})

			if !errors.Is(err, tt.err) {
				t.Errorf("error = %v, want %v", err, tt.err)
			}
			if attempts != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", attempts, tt.wantAttempts)
			}
		})
	}
}

func TestDoWithData_RecoversAfterTemporaryFailures(t *testing.T) {
	attempts := 0
	rows, err := DoWithData(context.Background(), fastRemote(), func() ([]string, error) {
		attempts++
		if attempts < 3 {
			return nil, imotoerrors.NewTemporary("HTTP 502", nil)
		}
		return []string{"v1", "v2"}, nil
	})

	if err != nil {
		t.Fatalf("DoWithData() error = %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("rows = %v, want 2 rows", rows)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestDoWithData_NotFoundAfterRetry(t *testing.T) {
	attempts := 0
	_, err := DoWithData(context.Background(), fastRemote(), func() (string, error) {
		attempts++
		if attempts == 1 {
			return "", imotoerrors.NewTemporary("HTTP 500", nil)
		}
		return "", imotoerrors.NewNotFound("vehicles", "v1")
	})

	if !imotoerrors.IsNotFound(err) {
		t.Errorf("error = %v, want NotFoundError", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestDo_SingleAttempt(t *testing.T) {
	cfg := fastRemote()
	cfg.MaxAttempts = 1

	attempts := 0
	err := Do(context.Background(), cfg, func() error {
		attempts++
		return imotoerrors.NewTemporary("HTTP 503", nil)
	})

	if !imotoerrors.IsTemporary(err) {
		t.Errorf("error = %v, want TemporaryError", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestOnRetry_BackoffSchedule(t *testing.T) {
	cfg := fastRemote()

	var delays []time.Duration
	cfg.OnRetry = func(err error, next time.Duration) {
		if !imotoerrors.IsTemporary(err) {
			t.Errorf("OnRetry error = %v, want TemporaryError", err)
		}
		delays = append(delays, next)
	}

	err := Do(context.Background(), cfg, func() error {
		return imotoerrors.NewTemporary("HTTP 503", nil)
	})
	if !imotoerrors.IsTemporary(err) {
		t.Fatalf("error = %v, want TemporaryError", err)
	}

	want := []time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, delays[i], want[i])
		}
	}
}

func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cfg := fastRemote()
	cfg.InitialDelay = time.Second
	cfg.MaxDelay = time.Second

	attempts := 0
	start := time.Now()
	err := Do(ctx, cfg, func() error {
		attempts++
		cancel()
		return imotoerrors.NewTemporary("HTTP 503", nil)
	})

	if err == nil {
		t.Fatal("Do() error = nil, want failure")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Do() took %v after cancel", elapsed)
	}
}

func TestDo_SingleAttemptReturnsCallerError(t *testing.T) {
	cfg := fastRemote()
	cfg.MaxAttempts = 1

	err := Do(context.Background(), cfg, func() error {
		return imotoerrors.NewNotFound("vehicles", "v1")
	})

	if _, ok := err.(*imotoerrors.NotFoundError); !ok {
		t.Errorf("error = %T, want *NotFoundError", err)
	}
}
