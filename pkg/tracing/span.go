package tracing

import (
	"context"

	"github.com/Combine-Capital/imoto/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys.
const (
	AttrCacheKey      = "cache.key"
	AttrCacheResult   = "cache.result"
	AttrCacheForce    = "cache.force_refresh"
	AttrRemoteOp      = "remote.operation"
	AttrRemoteKind    = "remote.kind"
	AttrErrorCategory = "error.category"
)

// StartSpan creates a span linked to the span in ctx, if any. The returned
// context carries the new span.
//
// Example:
//
//	ctx, span := tracing.StartSpan(ctx, "cache.read",
//	    trace.WithAttributes(tracing.CacheAttributes(key, false)...))
//	defer span.End()
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, name, opts...)
}

// SetSpanError records err on the span in ctx and marks it failed.
// A NotFound error is recorded but leaves the status unset.
func SetSpanError(ctx context.Context, err error) {
	if err == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.String(AttrErrorCategory, Category(err)))
	span.RecordError(err)
	if !errors.IsNotFound(err) {
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetCacheResult tags the span in ctx with how a cached read was served.
func SetCacheResult(ctx context.Context, result string) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String(AttrCacheResult, result))
}

// CacheAttributes returns the attributes of a cached read.
func CacheAttributes(key string, force bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrCacheKey, key),
		attribute.Bool(AttrCacheForce, force),
	}
}

// RemoteAttributes returns the attributes of a backend call.
func RemoteAttributes(op, kind string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrRemoteOp, op),
		attribute.String(AttrRemoteKind, kind),
	}
}

// Category names the pkg/errors category of err.
func Category(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.IsNotFound(err):
		return "not_found"
	case errors.IsInvalidInput(err):
		return "invalid_input"
	case errors.IsUnauthorized(err):
		return "unauthorized"
	case errors.IsTemporary(err):
		return "temporary"
	case errors.IsCapacity(err):
		return "capacity"
	case errors.IsCorrupt(err):
		return "corrupt"
	default:
		return "permanent"
	}
}
