package metrics

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// validMetricName validates metric names according to Prometheus conventions
	validMetricName = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)

	// validLabelName validates label names according to Prometheus conventions
	validLabelName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

// vecOpts describes one metric vector. The full metric name is
// "{namespace}_{subsystem}_{name}".
type vecOpts struct {
	Namespace string
	Subsystem string
	Name      string
	Help      string
	Labels    []string
	Buckets   []float64 // histograms only; nil selects prometheus.DefBuckets
}

// newCounter creates a counter vector and registers it with reg.
func newCounter(reg prometheus.Registerer, o vecOpts) (*prometheus.CounterVec, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: o.Namespace,
		Subsystem: o.Subsystem,
		Name:      o.Name,
		Help:      o.Help,
	}, o.Labels)
	if err := reg.Register(vec); err != nil {
		return nil, fmt.Errorf("failed to register counter %s: %w", o.Name, err)
	}
	return vec, nil
}

// newGauge creates a gauge vector and registers it with reg.
func newGauge(reg prometheus.Registerer, o vecOpts) (*prometheus.GaugeVec, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: o.Namespace,
		Subsystem: o.Subsystem,
		Name:      o.Name,
		Help:      o.Help,
	}, o.Labels)
	if err := reg.Register(vec); err != nil {
		return nil, fmt.Errorf("failed to register gauge %s: %w", o.Name, err)
	}
	return vec, nil
}

// newHistogram creates a histogram vector and registers it with reg.
func newHistogram(reg prometheus.Registerer, o vecOpts) (*prometheus.HistogramVec, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	buckets := o.Buckets
	if buckets == nil {
		buckets = prometheus.DefBuckets
	}
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: o.Namespace,
		Subsystem: o.Subsystem,
		Name:      o.Name,
		Help:      o.Help,
		Buckets:   buckets,
	}, o.Labels)
	if err := reg.Register(vec); err != nil {
		return nil, fmt.Errorf("failed to register histogram %s: %w", o.Name, err)
	}
	return vec, nil
}

// validate checks the full name and the label names against Prometheus
// naming rules.
func (o vecOpts) validate() error {
	fullName := prometheus.BuildFQName(o.Namespace, o.Subsystem, o.Name)
	if fullName == "" || !validMetricName.MatchString(fullName) {
		return fmt.Errorf("invalid metric name: %q (must match %s)", fullName, validMetricName.String())
	}

	for _, label := range o.Labels {
		if !validLabelName.MatchString(label) {
			return fmt.Errorf("invalid label name: %s (must match %s)", label, validLabelName.String())
		}
		if strings.HasPrefix(label, "__") {
			return fmt.Errorf("label name %s is reserved (starts with __)", label)
		}
	}
	return nil
}
