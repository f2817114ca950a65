package callspan

import (
	"context"

	"github.com/kzs0/callspan/intercept"
)

type contextKey int

const callspanKey contextKey = iota

// WithCallspan returns a context with the instance attached.
func WithCallspan(ctx context.Context, c *Callspan) context.Context {
	return context.WithValue(ctx, callspanKey, c)
}

// FromContext returns the instance attached to ctx, or nil.
func FromContext(ctx context.Context) *Callspan {
	c, _ := ctx.Value(callspanKey).(*Callspan)
	return c
}

// fromContext is FromContext with the no-op instance as fallback.
func fromContext(ctx context.Context) *Callspan {
	if c := FromContext(ctx); c != nil {
		return c
	}
	return noopCallspan()
}

// Start opens a client span for call using the instance attached to ctx.
// Without one, no span is created and the guard is already closed.
//
// Usage:
//
//	ctx, guard := callspan.Start(ctx, intercept.Call{URL: u, Method: "GET", Carrier: carrier})
//	defer func() { guard.Finish(err) }()
func Start(ctx context.Context, call intercept.Call) (context.Context, *intercept.Guard) {
	return fromContext(ctx).interceptor.Start(ctx, call)
}
