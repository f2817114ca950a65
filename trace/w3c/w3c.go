// Package w3c writes W3C Trace Context (traceparent) headers for callspan
// spans using the OpenTelemetry propagator.
//
// Span IDs map directly. The 64-bit trace ID is left-padded with zeros to the
// 128-bit width traceparent requires, the same way Zipkin-compatible systems
// widen B3 trace IDs.
package w3c

import (
	"context"

	"go.opentelemetry.io/otel/propagation"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/kzs0/callspan/trace"
)

// TraceparentHeader is the header written by Injector.
const TraceparentHeader = "traceparent"

// Injector writes traceparent for a span. Non-exportable spans are written
// with the sampled flag cleared.
type Injector struct{}

var _ trace.Injector = Injector{}

// Inject writes span into carrier.
func (Injector) Inject(span *trace.Span, carrier trace.Carrier) {
	if span == nil || carrier == nil {
		return
	}
	sc := SpanContext(span.Context())
	if !sc.IsValid() {
		return
	}
	ctx := oteltrace.ContextWithSpanContext(context.Background(), sc)
	propagation.TraceContext{}.Inject(ctx, NewTextMapCarrier(carrier))
}

// SpanContext converts a callspan span identity to an OpenTelemetry one.
func SpanContext(sc trace.SpanContext) oteltrace.SpanContext {
	var traceID oteltrace.TraceID
	low := sc.TraceID.Bytes()
	copy(traceID[8:], low[:])

	var flags oteltrace.TraceFlags
	if sc.Exportable {
		flags = oteltrace.FlagsSampled
	}

	return oteltrace.NewSpanContext(oteltrace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     oteltrace.SpanID(sc.SpanID.Bytes()),
		TraceFlags: flags,
	})
}

// TextMapCarrier exposes a trace.Carrier as an OpenTelemetry TextMapCarrier.
type TextMapCarrier struct {
	carrier trace.Carrier
}

var _ propagation.TextMapCarrier = TextMapCarrier{}

// NewTextMapCarrier wraps c.
func NewTextMapCarrier(c trace.Carrier) TextMapCarrier {
	return TextMapCarrier{carrier: c}
}

// Get returns the first value of key or "".
func (t TextMapCarrier) Get(key string) string {
	v, _ := t.carrier.Get(key)
	return v
}

// Set stores value under key.
func (t TextMapCarrier) Set(key, value string) {
	t.carrier.Put(key, value)
}

// Keys lists the carrier keys.
func (t TextMapCarrier) Keys() []string {
	var keys []string
	t.carrier.Range(func(k, _ string) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}
