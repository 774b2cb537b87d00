// Package tracing provides OpenTelemetry tracing for cache reads and backend
// calls, exported over OTLP/HTTP with W3C trace context propagation.
//
// Example usage:
//
//	cfg := config.TracingConfig{
//	    Enabled:    true,
//	    Endpoint:   "localhost:4318",
//	    SampleRate: 0.1,
//	}
//	tp, shutdown, err := tracing.NewTracerProvider(ctx, cfg, "imoto")
//	if err != nil {
//	    return err
//	}
//	defer shutdown(ctx)
package tracing

import (
	"context"
	"fmt"
	"time"

	"github.com/Combine-Capital/imoto/pkg/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TracerName names the tracer every span in this module is started from.
const TracerName = "github.com/Combine-Capital/imoto"

// ShutdownFunc flushes pending spans and stops the tracer provider.
type ShutdownFunc func(context.Context) error

// NewTracerProvider creates a TracerProvider exporting to cfg.Endpoint and
// installs it as the global provider together with the W3C propagator.
//
// If tracing is disabled in config, it returns an unregistered provider and a
// no-op shutdown function, leaving the global no-op tracer in place.
func NewTracerProvider(ctx context.Context, cfg config.TracingConfig, serviceName string) (*sdktrace.TracerProvider, ShutdownFunc, error) {
	if !cfg.Enabled {
		noopShutdown := func(context.Context) error { return nil }
		return sdktrace.NewTracerProvider(), noopShutdown, nil
	}

	if cfg.Endpoint == "" {
		return nil, nil, fmt.Errorf("tracing endpoint is required when tracing is enabled")
	}

	svcName := cfg.ServiceName
	if svcName == "" {
		svcName = serviceName
	}
	if svcName == "" {
		return nil, nil, fmt.Errorf("service name is required for tracing")
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", svcName)),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create resource: %w", err)
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	batchTimeout := 5 * time.Second
	if cfg.BatchTimeout > 0 {
		batchTimeout = cfg.BatchTimeout
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRate)),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(batchTimeout)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(GetPropagator())

	shutdown := func(ctx context.Context) error {
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return tp.Shutdown(shutdownCtx)
	}

	return tp, shutdown, nil
}

// sampler maps a sample rate onto a parent-based sampler.
func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate <= 0:
		return sdktrace.NeverSample()
	case rate >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

// GetTracer returns the module tracer from the global tracer provider.
func GetTracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// GetPropagator returns the W3C trace context and baggage propagator.
func GetPropagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}
