// Package metrics provides the Prometheus collectors for the vehicle cache:
// hit/miss/write counters for the cache manager, refresh and fallback counters
// for the data-access layer, and a latency histogram for remote requests.
// Collectors register on a caller-supplied registry so tests and embedding
// applications stay isolated from the process-wide default registry.
//
// Example usage:
//
//	reg := metrics.NewRegistry(cfg.Metrics)
//	collectors, err := metrics.New(reg, cfg.Metrics.Namespace)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	manager := cache.New(store, cfg.Cache, cache.WithMetrics(collectors))
//
// A nil *Collectors is valid and records nothing.
package metrics

import (
	"time"

	"github.com/Combine-Capital/imoto/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Miss reasons.
const (
	MissAbsent  = "absent"
	MissExpired = "expired"
	MissVersion = "version"
	MissCorrupt = "corrupt"
	MissError   = "error"
)

// Write results.
const (
	WriteOK         = "ok"
	WriteTooLarge   = "too_large"
	WriteStoreError = "store_error"
	WriteEncodeErr  = "encode_error"
)

// Refresh results.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Collectors groups every metric the cache layer records.
type Collectors struct {
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	cacheWrites     *prometheus.CounterVec
	cacheEvictions  *prometheus.CounterVec
	refreshes       *prometheus.CounterVec
	staleFallbacks  *prometheus.CounterVec
	remoteDuration  *prometheus.HistogramVec
	refreshInFlight *prometheus.GaugeVec
}

// NewRegistry returns a registry for the cache metrics. When cfg.Enabled is
// set it also carries the Go runtime and process collectors.
func NewRegistry(cfg config.MetricsConfig) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	if cfg.Enabled {
		reg.MustRegister(collectors.NewGoCollector())
		reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	return reg
}

// New creates the cache collectors under namespace and registers them with reg.
func New(reg prometheus.Registerer, namespace string) (*Collectors, error) {
	c := &Collectors{}
	var err error

	if c.cacheHits, err = newCounter(reg, vecOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Cache reads that returned a valid entry",
		Labels:    []string{"kind"},
	}); err != nil {
		return nil, err
	}

	if c.cacheMisses, err = newCounter(reg, vecOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Cache reads that returned nothing, by reason",
		Labels:    []string{"kind", "reason"},
	}); err != nil {
		return nil, err
	}

	if c.cacheWrites, err = newCounter(reg, vecOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "writes_total",
		Help:      "Cache writes by result",
		Labels:    []string{"result"},
	}); err != nil {
		return nil, err
	}

	if c.cacheEvictions, err = newCounter(reg, vecOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "evictions_total",
		Help:      "Entries removed to reclaim store space",
	}); err != nil {
		return nil, err
	}

	if c.refreshes, err = newCounter(reg, vecOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "refresh_total",
		Help:      "Background refreshes by result",
		Labels:    []string{"kind", "result"},
	}); err != nil {
		return nil, err
	}

	if c.staleFallbacks, err = newCounter(reg, vecOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "stale_fallback_total",
		Help:      "Reads served from an expired entry after a remote failure",
		Labels:    []string{"kind"},
	}); err != nil {
		return nil, err
	}

	if c.remoteDuration, err = newHistogram(reg, vecOpts{
		Namespace: namespace,
		Subsystem: "remote",
		Name:      "request_duration_seconds",
		Help:      "Remote data service request duration in seconds",
		Labels:    []string{"op"},
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}); err != nil {
		return nil, err
	}

	if c.refreshInFlight, err = newGauge(reg, vecOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "refresh_in_flight",
		Help:      "Background refreshes currently running",
	}); err != nil {
		return nil, err
	}

	return c, nil
}

// CacheHit records a hit for an entry kind.
func (c *Collectors) CacheHit(kind string) {
	if c == nil {
		return
	}
	c.cacheHits.WithLabelValues(kind).Inc()
}

// CacheMiss records a miss for an entry kind.
func (c *Collectors) CacheMiss(kind, reason string) {
	if c == nil {
		return
	}
	c.cacheMisses.WithLabelValues(kind, reason).Inc()
}

// CacheWrite records the outcome of a write.
func (c *Collectors) CacheWrite(result string) {
	if c == nil {
		return
	}
	c.cacheWrites.WithLabelValues(result).Inc()
}

// CacheEvictions records n evicted entries.
func (c *Collectors) CacheEvictions(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.cacheEvictions.WithLabelValues().Add(float64(n))
}

// RefreshStarted marks a background refresh as running.
func (c *Collectors) RefreshStarted() {
	if c == nil {
		return
	}
	c.refreshInFlight.WithLabelValues().Inc()
}

// RefreshFinished marks a background refresh as settled.
func (c *Collectors) RefreshFinished(kind, result string) {
	if c == nil {
		return
	}
	c.refreshInFlight.WithLabelValues().Dec()
	c.refreshes.WithLabelValues(kind, result).Inc()
}

// StaleFallback records a read served from an expired entry.
func (c *Collectors) StaleFallback(kind string) {
	if c == nil {
		return
	}
	c.staleFallbacks.WithLabelValues(kind).Inc()
}

// ObserveRemote records the duration of a remote operation.
func (c *Collectors) ObserveRemote(op string, d time.Duration) {
	if c == nil {
		return
	}
	c.remoteDuration.WithLabelValues(op).Observe(d.Seconds())
}
