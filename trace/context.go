package trace

import (
	"context"
	"time"
)

type contextKey int

const (
	spanContextKey contextKey = iota
)

// ContextWithSpan returns a copy of ctx whose current span is span.
func ContextWithSpan(ctx context.Context, span *Span) context.Context {
	return context.WithValue(ctx, spanContextKey, span)
}

// SpanFromContext returns the current span of ctx, or nil if none.
func SpanFromContext(ctx context.Context) *Span {
	if span, ok := ctx.Value(spanContextKey).(*Span); ok {
		return span
	}
	return nil
}

// IsTracing reports whether ctx carries a current span.
func IsTracing(ctx context.Context) bool {
	return SpanFromContext(ctx) != nil
}

// ContinueSpan establishes an existing span identity as the current span of
// the returned context, so that spans created from it join that trace.
// The continued span is owned elsewhere and is never exported from here.
func ContinueSpan(ctx context.Context, sc SpanContext) context.Context {
	return ContextWithSpan(ctx, &Span{
		traceID:    sc.TraceID,
		spanID:     sc.SpanID,
		parentID:   sc.ParentID,
		exportable: sc.Exportable,
		startTime:  time.Now(),
	})
}
