// Package tracetest provides in-memory span collection for tests.
package tracetest

import (
	"context"
	"sync"

	"github.com/kzs0/callspan/trace"
)

// Recorder accumulates closed spans. It is both a trace.Processor and a
// trace.Exporter.
type Recorder struct {
	mu    sync.Mutex
	spans []*trace.Span
}

var (
	_ trace.Processor = (*Recorder)(nil)
	_ trace.Exporter  = (*Recorder)(nil)
)

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// OnEnd records span.
func (r *Recorder) OnEnd(span *trace.Span) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spans = append(r.spans, span)
}

// ExportSpans records spans.
func (r *Recorder) ExportSpans(_ context.Context, spans []*trace.Span) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spans = append(r.spans, spans...)
	return nil
}

// Shutdown is a no-op.
func (r *Recorder) Shutdown(context.Context) error {
	return nil
}

// Spans returns the recorded spans in close order.
func (r *Recorder) Spans() []*trace.Span {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*trace.Span, len(r.spans))
	copy(out, r.spans)
	return out
}

// Reset drops every recorded span.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spans = nil
}

// SequentialIDs hands out 1, 2, 3, ... for both trace and span IDs.
type SequentialIDs struct {
	mu   sync.Mutex
	next uint64
}

// NewTraceID returns the next ID.
func (g *SequentialIDs) NewTraceID() trace.TraceID {
	return trace.TraceID(g.advance())
}

// NewSpanID returns the next ID.
func (g *SequentialIDs) NewSpanID() trace.SpanID {
	return trace.SpanID(g.advance())
}

func (g *SequentialIDs) advance() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return g.next
}
