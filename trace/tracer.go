package trace

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/kzs0/callspan/attr"
	"github.com/kzs0/callspan/internal"
)

// Exporter ships finished spans to a collector.
type Exporter interface {
	ExportSpans(ctx context.Context, spans []*Span) error
	Shutdown(ctx context.Context) error
}

// Processor receives every exportable span once it is closed.
type Processor interface {
	OnEnd(span *Span)
}

// IDGenerator produces trace and span identifiers.
type IDGenerator interface {
	NewTraceID() TraceID
	NewSpanID() SpanID
}

type randomIDGenerator struct{}

func (randomIDGenerator) NewTraceID() TraceID { return internal.NewTraceID() }
func (randomIDGenerator) NewSpanID() SpanID   { return internal.NewSpanID() }

// Tracer creates, continues and closes spans.
type Tracer struct {
	serviceName string
	resource    attr.Set
	sampler     Sampler
	processor   Processor
	ids         IDGenerator
	logger      *slog.Logger
}

// TracerConfig configures the tracer.
type TracerConfig struct {
	ServiceName string
	Resource    attr.Set
	// Sampler decides exportability of root spans. Defaults to AlwaysSampler.
	Sampler Sampler
	// Processor receives closed exportable spans. Nil drops them.
	Processor Processor
	// IDGenerator defaults to crypto/rand backed 64-bit IDs.
	IDGenerator IDGenerator
	Logger      *slog.Logger
}

// NewTracer creates a new tracer.
func NewTracer(cfg TracerConfig) *Tracer {
	sampler := cfg.Sampler
	if sampler == nil {
		sampler = AlwaysSampler{}
	}
	ids := cfg.IDGenerator
	if ids == nil {
		ids = randomIDGenerator{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Tracer{
		serviceName: cfg.ServiceName,
		resource:    cfg.Resource,
		sampler:     sampler,
		processor:   cfg.Processor,
		ids:         ids,
		logger:      logger,
	}
}

// CreateSpan starts a span named name. When ctx already carries a span the
// new span is its child: same trace, parent set to the current span, and the
// exportable flag inherited. Otherwise a new trace is started and the sampler
// decides exportability.
//
// The returned context carries the new span; ctx itself is not modified.
func (t *Tracer) CreateSpan(ctx context.Context, name string) (context.Context, *Span) {
	name = ShortenName(name)

	span := &Span{
		name:      name,
		spanID:    t.ids.NewSpanID(),
		startTime: time.Now(),
		tracer:    t,
	}

	if parent := SpanFromContext(ctx); parent != nil {
		span.traceID = parent.traceID
		span.parentID = parent.spanID
		span.exportable = parent.exportable
	} else {
		span.traceID = t.ids.NewTraceID()
		span.exportable = t.sampler.ShouldSample(span.traceID, name)
	}

	return ContextWithSpan(ctx, span), span
}

// ContinueSpan makes span the current span of the returned context.
func (t *Tracer) ContinueSpan(ctx context.Context, span *Span) context.Context {
	return ContextWithSpan(ctx, span)
}

// CurrentSpan returns the span carried by ctx, or nil.
func (t *Tracer) CurrentSpan(ctx context.Context) *Span {
	return SpanFromContext(ctx)
}

// IsTracing reports whether ctx carries a span.
func (t *Tracer) IsTracing(ctx context.Context) bool {
	return IsTracing(ctx)
}

// Close ends the span and hands it to the processor if it is exportable.
// Closing an already closed span is a no-op.
func (t *Tracer) Close(span *Span) {
	if span == nil {
		return
	}
	if !span.end() {
		t.logger.Debug("span already closed", slog.String("span", span.String()))
		return
	}

	// Continued spans belong to whoever started them.
	if span.tracer == nil || !span.exportable || t.processor == nil {
		return
	}
	t.processor.OnEnd(span)
}

// Shutdown flushes the processor if it supports shutdown.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if s, ok := t.processor.(interface{ Shutdown(context.Context) error }); ok {
		return s.Shutdown(ctx)
	}
	return nil
}

// ServiceName returns the service name.
func (t *Tracer) ServiceName() string {
	return t.serviceName
}

// Resource returns the resource attributes.
func (t *Tracer) Resource() attr.Set {
	return t.resource
}

// SyncProcessor exports each span as soon as it is closed.
type SyncProcessor struct {
	exporter Exporter
	timeout  time.Duration
	logger   *slog.Logger
}

// NewSyncProcessor returns a processor that exports spans one at a time.
func NewSyncProcessor(exporter Exporter, timeout time.Duration, logger *slog.Logger) *SyncProcessor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SyncProcessor{exporter: exporter, timeout: timeout, logger: logger}
}

// OnEnd exports span and logs export failures.
func (p *SyncProcessor) OnEnd(span *Span) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.exporter.ExportSpans(ctx, []*Span{span}); err != nil {
		p.logger.Warn("span export failed", slog.String("span", span.String()), slog.Any("error", err))
	}
}

// Shutdown shuts the exporter down.
func (p *SyncProcessor) Shutdown(ctx context.Context) error {
	return p.exporter.Shutdown(ctx)
}
