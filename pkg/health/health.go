package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Combine-Capital/imoto/pkg/logging"
)

// Check statuses.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusOK        = "ok"
	StatusError     = "error"
)

// Health runs the registered checkers.
type Health struct {
	mu       sync.RWMutex
	checkers map[string]Checker

	checkTimeout time.Duration
	logger       *logging.Logger
}

// Report is the aggregated result of one Check.
type Report struct {
	Status string                 `json:"status"` // "healthy" or "unhealthy"
	Checks map[string]CheckResult `json:"checks"`
}

// CheckResult is the outcome of a single checker.
type CheckResult struct {
	Status    string `json:"status"`            // "ok" or "error"
	Message   string `json:"message,omitempty"` // error message if status is "error"
	LatencyMs int64  `json:"latency_ms"`
}

// Healthy reports whether every check passed.
func (r *Report) Healthy() bool {
	return r.Status == StatusHealthy
}

// Failed returns the names of the failed checks in sorted order.
func (r *Report) Failed() []string {
	var names []string
	for name, res := range r.Checks {
		if res.Status != StatusOK {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Option configures a Health.
type Option func(*Health)

// WithTimeout bounds each check that runs without a caller deadline.
func WithTimeout(d time.Duration) Option {
	return func(h *Health) {
		h.checkTimeout = d
	}
}

// WithLogger sets the logger failed checks are reported to.
func WithLogger(logger *logging.Logger) Option {
	return func(h *Health) {
		h.logger = logger.WithComponent("health")
	}
}

// New creates a Health with a 5 second check timeout.
func New(opts ...Option) *Health {
	h := &Health{
		checkers:     make(map[string]Checker),
		checkTimeout: 5 * time.Second,
		logger:       logging.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds a checker under name, replacing any checker already
// registered under it.
func (h *Health) Register(name string, checker Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.checkers[name] = checker
}

// Check runs every registered checker concurrently and aggregates the
// results. With no checkers the report is healthy.
func (h *Health) Check(ctx context.Context) *Report {
	h.mu.RLock()
	checkers := make(map[string]Checker, len(h.checkers))
	for name, checker := range h.checkers {
		checkers[name] = checker
	}
	h.mu.RUnlock()

	report := &Report{
		Status: StatusHealthy,
		Checks: make(map[string]CheckResult, len(checkers)),
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, checker := range checkers {
		wg.Add(1)
		go func(name string, checker Checker) {
			defer wg.Done()
			res := h.run(ctx, name, checker)

			mu.Lock()
			defer mu.Unlock()
			report.Checks[name] = res
			if res.Status != StatusOK {
				report.Status = StatusUnhealthy
			}
		}(name, checker)
	}
	wg.Wait()

	return report
}

func (h *Health) run(ctx context.Context, name string, checker Checker) CheckResult {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.checkTimeout)
		defer cancel()
	}

	start := time.Now()
	err := checker.Check(ctx)
	res := CheckResult{
		Status:    StatusOK,
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		res.Status = StatusError
		res.Message = err.Error()
		h.logger.Warn().Err(err).Str("check", name).Msg("health check failed")
	}
	return res
}
