// Package vehicles is the cache-aware data access layer for vehicle
// listings. Reads go through the cache with stale-while-revalidate: a fresh
// hit is returned as is, a stale hit is returned and refreshed in the
// background, and a miss is fetched, mapped and cached. When the backend
// fails, reads fall back to the last cached value of any age, or to an
// empty result. Reads never return an error.
//
// Writes go straight to the backend and, on success, invalidate every cache
// entry they could have changed.
//
// Example usage:
//
//	repo := vehicles.New(service, manager, vehicles.WithLogger(logger))
//	active := repo.GetVehicles(ctx, vehicles.StatusActive, false)
//
//	updated, err := repo.UpdateVehicle(ctx, id, vehicles.Patch{Price: &price})
package vehicles

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/Combine-Capital/imoto/pkg/cache"
	"github.com/Combine-Capital/imoto/pkg/errors"
	"github.com/Combine-Capital/imoto/pkg/logging"
	"github.com/Combine-Capital/imoto/pkg/metrics"
	"github.com/Combine-Capital/imoto/pkg/refresh"
	"github.com/Combine-Capital/imoto/pkg/remote"
	"github.com/Combine-Capital/imoto/pkg/tracing"
	"go.opentelemetry.io/otel/trace"
)

// Repository serves vehicle data from the cache and the remote backend.
type Repository struct {
	remote    remote.DataService
	cache     *cache.Manager
	scheduler *refresh.Scheduler
	logger    *logging.Logger
	metrics   *metrics.Collectors
	now       func() time.Time

	// gens counts invalidations per key. A load only stores its result if
	// the key was not invalidated while it was fetching.
	mu   sync.Mutex
	gens map[string]uint64
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(r *Repository) {
		r.logger = logger
	}
}

// WithMetrics records refreshes and stale fallbacks on c.
func WithMetrics(c *metrics.Collectors) Option {
	return func(r *Repository) {
		r.metrics = c
	}
}

// WithScheduler sets the scheduler running background refreshes.
func WithScheduler(s *refresh.Scheduler) Option {
	return func(r *Repository) {
		r.scheduler = s
	}
}

// WithClock sets the clock used for created_at and updated_at.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		r.now = now
	}
}

// New creates a Repository reading from svc through m.
func New(svc remote.DataService, m *cache.Manager, opts ...Option) *Repository {
	r := &Repository{
		remote: svc,
		cache:  m,
		logger: logging.Nop(),
		now:    time.Now,
		gens:   make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.scheduler == nil {
		r.scheduler = refresh.New(refresh.WithLogger(r.logger), refresh.WithMetrics(r.metrics))
	}
	r.logger = r.logger.WithComponent("vehicles")
	return r
}

// Scheduler returns the scheduler running background refreshes.
func (r *Repository) Scheduler() *refresh.Scheduler {
	return r.scheduler
}

// GetVehicles returns the listings with status, newest first.
func (r *Repository) GetVehicles(ctx context.Context, status string, forceRefresh bool) []Vehicle {
	if status == "" {
		status = StatusActive
	}
	key := r.cache.Key(cache.KindVehicles, status)
	vs, err := read(ctx, r, key, forceRefresh, func(ctx context.Context) ([]Vehicle, error) {
		return r.fetchVehicles(ctx, remote.Filter{
			Where:  []remote.Condition{remote.Eq("status", status)},
			Select: Columns,
			Order:  "created_at.desc",
		})
	})
	if err != nil {
		return []Vehicle{}
	}
	return vs
}

// GetVehicleByID returns the listing with id, or nil if it does not exist
// or cannot be loaded.
func (r *Repository) GetVehicleByID(ctx context.Context, id string, forceRefresh bool) *Vehicle {
	if id == "" {
		return nil
	}
	key := r.cache.Key(cache.KindVehicleDetails, id)
	v, err := read(ctx, r, key, forceRefresh, func(ctx context.Context) (*Vehicle, error) {
		raw, err := r.remote.FetchOne(ctx, TableVehicles, id)
		if err != nil {
			return nil, err
		}
		return decodeVehicle(raw)
	})
	if err != nil {
		return nil
	}
	return v
}

// GetUserVehicles returns the listings owned by userID, newest first.
func (r *Repository) GetUserVehicles(ctx context.Context, userID string, forceRefresh bool) []Vehicle {
	if userID == "" {
		return []Vehicle{}
	}
	key := r.cache.Key(cache.KindUserVehicles, userID)
	vs, err := read(ctx, r, key, forceRefresh, func(ctx context.Context) ([]Vehicle, error) {
		return r.fetchVehicles(ctx, remote.Filter{
			Where:  []remote.Condition{remote.Eq("user_id", userID)},
			Select: Columns,
			Order:  "created_at.desc",
		})
	})
	if err != nil {
		return []Vehicle{}
	}
	return vs
}

// Preload warms the active listings cache.
func (r *Repository) Preload(ctx context.Context) {
	vs := r.GetVehicles(ctx, StatusActive, false)
	r.logger.Info().Int(logging.Count, len(vs)).Msg("vehicle cache preloaded")
}

// Outcomes of a cached read, recorded on its span.
const (
	resultFresh    = "fresh"
	resultStale    = "stale"
	resultLoaded   = "loaded"
	resultFallback = "fallback"
)

// read is the cached read path for key: a fresh hit is returned at once and,
// when stale, refreshed in the background; a miss, an expired entry or a
// forced refresh loads from the backend; a failed load falls back to the
// cached value of any age.
func read[T any](ctx context.Context, r *Repository, key string, force bool, fetch func(context.Context) (T, error)) (T, error) {
	ctx, span := tracing.StartSpan(ctx, "cache.read", trace.WithAttributes(tracing.CacheAttributes(key, force)...))
	defer span.End()

	var (
		fallback     T
		haveFallback bool
	)
	if !force {
		v, fresh, found := cache.Lookup[T](r.cache, key)
		if fresh {
			tracing.SetCacheResult(ctx, resultFresh)
			if r.cache.IsStale(key) {
				tracing.SetCacheResult(ctx, resultStale)
				r.scheduler.Schedule(ctx, key, cache.KindOf(r.cache.Prefix(), key), func(ctx context.Context) error {
					_, err := load(ctx, r, key, fetch)
					return err
				})
			}
			return v, nil
		}
		fallback, haveFallback = v, found
	}

	v, err := load(ctx, r, key, fetch)
	if err == nil {
		tracing.SetCacheResult(ctx, resultLoaded)
		return v, nil
	}
	tracing.SetSpanError(ctx, err)

	if errors.IsNotFound(err) {
		r.invalidate(key)
		r.logger.Debug().Err(err).Str(logging.CacheKey, key).Msg("not found")
		return v, err
	}

	if force {
		fallback, haveFallback = cache.GetWithMaxAge[T](r.cache, key, cache.NoExpiry)
	}
	if haveFallback {
		tracing.SetCacheResult(ctx, resultFallback)
		r.metrics.StaleFallback(cache.KindOf(r.cache.Prefix(), key))
		r.logger.Warn().
			Err(err).
			Str(logging.CacheKey, key).
			Int64(logging.Age, r.cache.GetAge(key).Milliseconds()).
			Msg("fetch failed, serving stale cache")
		return fallback, nil
	}

	r.logger.Error().Err(err).Str(logging.CacheKey, key).Msg("fetch failed, no cached fallback")
	return v, err
}

// load fetches from the backend and caches the result, unless key was
// invalidated while the fetch was in flight.
func load[T any](ctx context.Context, r *Repository, key string, fetch func(context.Context) (T, error)) (T, error) {
	gen := r.generation(key)
	v, err := fetch(ctx)
	if err != nil {
		return v, err
	}
	if r.generation(key) != gen {
		r.logger.Debug().Str(logging.CacheKey, key).Msg("invalidated during fetch, result not cached")
		return v, nil
	}
	cache.Set(r.cache, key, v)
	return v, nil
}

func (r *Repository) generation(key string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gens[key]
}

// invalidate deletes keys and discards the results of loads already in
// flight for them.
func (r *Repository) invalidate(keys ...string) {
	r.mu.Lock()
	for _, key := range keys {
		r.gens[key]++
	}
	r.mu.Unlock()

	for _, key := range keys {
		r.cache.Delete(key)
	}
}

func (r *Repository) fetchVehicles(ctx context.Context, filter remote.Filter) ([]Vehicle, error) {
	rows, err := r.remote.FetchList(ctx, TableVehicles, filter)
	if err != nil {
		return nil, err
	}
	return mapRows(rows)
}

func mapRows(rows []json.RawMessage) ([]Vehicle, error) {
	out := make([]Vehicle, 0, len(rows))
	for _, raw := range rows {
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, errors.Wrap(err, "decode vehicle")
		}
		out = append(out, mapRecord(rec))
	}
	return out, nil
}
