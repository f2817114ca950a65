package callspan

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/kzs0/callspan/attr"
	"github.com/kzs0/callspan/intercept"
	"github.com/kzs0/callspan/metric"
	"github.com/kzs0/callspan/trace"
)

var (
	noopInstance *Callspan
	noopOnce     sync.Once
)

// noopTracer never creates spans, so interceptors built on it do nothing.
type noopTracer struct{}

func (noopTracer) CreateSpan(ctx context.Context, _ string) (context.Context, *trace.Span) {
	return ctx, nil
}

func (noopTracer) Close(*trace.Span) {}

// noopCallspan returns a singleton instance that records nothing. It is
// used when no instance is found in the context.
func noopCallspan() *Callspan {
	noopOnce.Do(func() {
		logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
		noopInstance = &Callspan{
			config:      Config{Service: "noop"},
			logger:      logger,
			tracer:      trace.NewTracer(trace.TracerConfig{ServiceName: "noop", Sampler: trace.NeverSampler{}}),
			interceptor: intercept.New(noopTracer{}, intercept.WithLogger(logger)),
			metrics:     metric.NewRegistry(""),
			resource:    attr.NewSet(),
			isNoop:      true,
		}
	})
	return noopInstance
}
