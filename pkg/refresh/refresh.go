// Package refresh runs background cache refreshes with at most one
// in-flight refresh per cache key.
//
// A Scheduler owns the set of keys currently being refreshed. Schedule adds
// the key and starts the task in its own goroutine; the key is removed when
// the task returns, fails, or panics. A second Schedule for the same key
// while the first is running is dropped.
//
// Example usage:
//
//	s := refresh.New(refresh.WithLogger(logger))
//
//	s.Schedule(ctx, key, cache.KindVehicles, func(ctx context.Context) error {
//	    return reload(ctx, key)
//	})
//
//	// In tests, wait for every scheduled refresh to settle.
//	s.Wait()
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Combine-Capital/imoto/pkg/logging"
	"github.com/Combine-Capital/imoto/pkg/metrics"
)

// Task is a refresh body. The context it receives is detached from the
// caller's cancellation.
type Task func(ctx context.Context) error

// Scheduler deduplicates and runs background refreshes.
type Scheduler struct {
	logger  *logging.Logger
	metrics *metrics.Collectors

	// mu protects inProgress
	mu         sync.Mutex
	inProgress map[string]struct{}

	// wg tracks running refresh goroutines
	wg sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger.WithComponent("refresh")
	}
}

// WithMetrics records in-flight and completed refreshes on c.
func WithMetrics(c *metrics.Collectors) Option {
	return func(s *Scheduler) {
		s.metrics = c
	}
}

// New creates a Scheduler with an empty in-progress set.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		logger:     logging.Nop(),
		inProgress: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule starts task for key unless a refresh for key is already running.
// It reports whether the task was started. kind labels the refresh in metrics.
// Cancelling ctx after Schedule returns does not stop the task.
func (s *Scheduler) Schedule(ctx context.Context, key, kind string, task Task) bool {
	s.mu.Lock()
	if _, running := s.inProgress[key]; running {
		s.mu.Unlock()
		s.logger.Debug().Str(logging.CacheKey, key).Msg("refresh already in progress")
		return false
	}
	s.inProgress[key] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	s.metrics.RefreshStarted()
	s.logger.Debug().Str(logging.CacheKey, key).Msg("background refresh scheduled")

	go s.run(context.WithoutCancel(ctx), key, kind, task)
	return true
}

func (s *Scheduler) run(ctx context.Context, key, kind string, task Task) {
	start := time.Now()
	var err error

	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("refresh panicked: %v", r)
		}

		s.mu.Lock()
		delete(s.inProgress, key)
		s.mu.Unlock()

		result := metrics.ResultOK
		if err != nil {
			result = metrics.ResultError
			s.logger.Warn().Err(err).Str(logging.CacheKey, key).Msg("background refresh failed")
		} else {
			s.logger.Debug().
				Str(logging.CacheKey, key).
				Dur(logging.Duration, time.Since(start)).
				Msg("background refresh complete")
		}
		s.metrics.RefreshFinished(kind, result)
	}()

	err = task(ctx)
}

// InProgress reports whether a refresh for key is currently running.
func (s *Scheduler) InProgress(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inProgress[key]
	return ok
}

// Len returns the number of refreshes currently running.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inProgress)
}

// Wait blocks until every scheduled refresh has settled.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
