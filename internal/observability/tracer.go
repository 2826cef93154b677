package observability

import (
	"context"
	"fmt"

	"github.com/oriys/quasar/internal/cache"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for quasar spans.
var (
	AttrCacheKey   = attribute.Key("quasar.cache.key")
	AttrResolver   = attribute.Key("quasar.resolver")
	AttrRequestID  = attribute.Key("quasar.request_id")
	AttrValueBytes = attribute.Key("quasar.value.bytes")
)

// StartSpan creates an internal span with the given attributes.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// SetSpanError marks the span as failed.
func SetSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanOK marks the span as successful.
func SetSpanOK(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// TraceResolver wraps next so every resolver call runs in a
// "resolve <name>" span carrying the key.
func TraceResolver[K comparable, V any](name string, next cache.Resolver[K, V]) cache.Resolver[K, V] {
	spanName := "resolve " + name
	return func(ctx context.Context, key K) (V, error) {
		ctx, span := StartSpan(ctx, spanName,
			AttrResolver.String(name),
			AttrCacheKey.String(fmt.Sprint(key)),
		)
		defer span.End()

		v, err := next(ctx, key)
		if err != nil {
			SetSpanError(span, err)
			return v, err
		}
		if b, ok := any(v).([]byte); ok {
			span.SetAttributes(AttrValueBytes.Int(len(b)))
		}
		SetSpanOK(span)
		return v, nil
	}
}
