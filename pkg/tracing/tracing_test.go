package tracing

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/Combine-Capital/imoto/pkg/config"
	"github.com/Combine-Capital/imoto/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// setupTracer installs an in-memory provider for the duration of the test.
func setupTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(GetPropagator())
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
	return exporter
}

func attr(span tracetest.SpanStub, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestNewTracerProvider_Disabled(t *testing.T) {
	tp, shutdown, err := NewTracerProvider(context.Background(), config.TracingConfig{}, "imoto")
	if err != nil {
		t.Fatalf("expected no error for disabled tracing, got %v", err)
	}
	if tp == nil {
		t.Fatal("expected non-nil tracer provider")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}

func TestNewTracerProvider_MissingEndpoint(t *testing.T) {
	_, _, err := NewTracerProvider(context.Background(), config.TracingConfig{Enabled: true}, "imoto")
	if err == nil || err.Error() != "tracing endpoint is required when tracing is enabled" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewTracerProvider_MissingServiceName(t *testing.T) {
	cfg := config.TracingConfig{Enabled: true, Endpoint: "localhost:4318"}
	_, _, err := NewTracerProvider(context.Background(), cfg, "")
	if err == nil || err.Error() != "service name is required for tracing" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewTracerProvider_Enabled(t *testing.T) {
	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})

	cfg := config.TracingConfig{
		Enabled:     true,
		Endpoint:    "localhost:4318",
		Insecure:    true,
		SampleRate:  1,
		ServiceName: "imoto-test",
	}
	tp, shutdown, err := NewTracerProvider(context.Background(), cfg, "imoto")
	if err != nil {
		t.Fatalf("NewTracerProvider() error = %v", err)
	}
	if otel.GetTracerProvider() != trace.TracerProvider(tp) {
		t.Error("provider was not installed globally")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{0, "AlwaysOffSampler"},
		{-1, "AlwaysOffSampler"},
		{1, "AlwaysOnSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		if got := sampler(tt.rate).Description(); !strings.Contains(got, tt.want) {
			t.Errorf("sampler(%v) = %s, want it to contain %s", tt.rate, got, tt.want)
		}
	}
}

func TestStartSpan(t *testing.T) {
	exporter := setupTracer(t)

	ctx, span := StartSpan(context.Background(), "cache.read",
		trace.WithAttributes(CacheAttributes("imoto_vehicles_active", true)...))
	SetCacheResult(ctx, "fresh")
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != "cache.read" {
		t.Errorf("span name = %q", spans[0].Name)
	}
	if v, _ := attr(spans[0], AttrCacheKey); v.AsString() != "imoto_vehicles_active" {
		t.Errorf("%s = %v", AttrCacheKey, v)
	}
	if v, _ := attr(spans[0], AttrCacheForce); !v.AsBool() {
		t.Errorf("%s = %v, want true", AttrCacheForce, v)
	}
	if v, _ := attr(spans[0], AttrCacheResult); v.AsString() != "fresh" {
		t.Errorf("%s = %v, want fresh", AttrCacheResult, v)
	}
}

func TestStartSpan_Nested(t *testing.T) {
	exporter := setupTracer(t)

	ctx, parent := StartSpan(context.Background(), "cache.read")
	_, child := StartSpan(ctx, "remote.fetch_list", trace.WithAttributes(RemoteAttributes("fetch_list", "vehicles")...))
	child.End()
	parent.End()

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Parent.SpanID() != spans[1].SpanContext.SpanID() {
		t.Error("remote span is not a child of the cache span")
	}
}

func TestSetSpanError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus codes.Code
		wantCat    string
	}{
		{"temporary", errors.NewTemporary("backend unavailable", nil), codes.Error, "temporary"},
		{"permanent", errors.NewPermanent("bad request", nil), codes.Error, "permanent"},
		{"not found", errors.NewNotFound("vehicle", "v1"), codes.Unset, "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter := setupTracer(t)

			ctx, span := StartSpan(context.Background(), "op")
			SetSpanError(ctx, tt.err)
			span.End()

			s := exporter.GetSpans()[0]
			if s.Status.Code != tt.wantStatus {
				t.Errorf("status = %v, want %v", s.Status.Code, tt.wantStatus)
			}
			if v, _ := attr(s, AttrErrorCategory); v.AsString() != tt.wantCat {
				t.Errorf("category = %v, want %s", v, tt.wantCat)
			}
			if len(s.Events) != 1 || s.Events[0].Name != "exception" {
				t.Errorf("events = %v, want one exception", s.Events)
			}
		})
	}
}

func TestSetSpanError_Nil(t *testing.T) {
	exporter := setupTracer(t)

	ctx, span := StartSpan(context.Background(), "op")
	SetSpanError(ctx, nil)
	span.End()

	s := exporter.GetSpans()[0]
	if s.Status.Code != codes.Unset || len(s.Events) != 0 {
		t.Errorf("nil error changed the span: status %v, events %v", s.Status.Code, s.Events)
	}
}

func TestInjectExtractHTTP(t *testing.T) {
	setupTracer(t)

	ctx, span := StartSpan(context.Background(), "remote.fetch_one")
	defer span.End()

	header := http.Header{}
	InjectHTTP(ctx, header)
	if header.Get("traceparent") == "" {
		t.Fatal("expected traceparent header")
	}

	extracted := trace.SpanContextFromContext(ExtractHTTP(context.Background(), header))
	if extracted.TraceID() != span.SpanContext().TraceID() {
		t.Errorf("trace id = %s, want %s", extracted.TraceID(), span.SpanContext().TraceID())
	}
}

func TestCategory(t *testing.T) {
	tests := map[string]error{
		"":              nil,
		"not_found":     errors.NewNotFound("vehicle", "1"),
		"invalid_input": errors.NewInvalidInput("make", "empty"),
		"unauthorized":  errors.NewUnauthorized("expired"),
		"temporary":     errors.NewTemporary("timeout", nil),
		"capacity":      errors.NewCapacity("full", 0, 0, nil),
		"corrupt":       errors.NewCorrupt("k", "bad", nil),
		"permanent":     errors.NewPermanent("rejected", nil),
	}
	for want, err := range tests {
		if got := Category(err); got != want {
			t.Errorf("Category(%v) = %q, want %q", err, got, want)
		}
	}
}
