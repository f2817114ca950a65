package trace

import (
	"fmt"
	"sync"
	"time"

	"github.com/kzs0/callspan/attr"
	"github.com/kzs0/callspan/internal"
)

// TraceID and SpanID are the 64-bit identifiers written onto the wire.
type (
	TraceID = internal.TraceID
	SpanID  = internal.SpanID
)

// Event names logged by client instrumentation.
const (
	EventClientSend = "cs"
	EventClientRecv = "cr"
)

// Span represents a single timed unit of work within a trace.
//
// A span is mutable until Close and immutable afterwards: tag and event
// writes on a closed span are dropped.
type Span struct {
	mu sync.Mutex

	name       string
	traceID    TraceID
	spanID     SpanID
	parentID   SpanID
	exportable bool
	startTime  time.Time
	endTime    time.Time
	tags       attr.Set
	events     []Event

	// tracer is nil for spans continued from elsewhere; those are never exported here.
	tracer *Tracer
	closed bool
}

// Event is a timestamped annotation on a span.
type Event struct {
	Name string
	Time time.Time
}

// SpanContext is the propagated identity of a span.
type SpanContext struct {
	TraceID    TraceID
	SpanID     SpanID
	ParentID   SpanID
	Exportable bool
}

// IsValid reports whether both trace and span IDs are set.
func (sc SpanContext) IsValid() bool {
	return !sc.TraceID.IsZero() && !sc.SpanID.IsZero()
}

// TraceID returns the trace ID.
func (s *Span) TraceID() TraceID {
	return s.traceID
}

// SpanID returns the span ID.
func (s *Span) SpanID() SpanID {
	return s.spanID
}

// ParentID returns the parent span ID; it is zero for a root span.
func (s *Span) ParentID() SpanID {
	return s.parentID
}

// HasParent reports whether the span is a child.
func (s *Span) HasParent() bool {
	return !s.parentID.IsZero()
}

// Name returns the span name.
func (s *Span) Name() string {
	return s.name
}

// Exportable reports whether the span is recorded and exported.
// Non-exportable spans still propagate their IDs.
func (s *Span) Exportable() bool {
	return s.exportable
}

// Context returns the span's propagated identity.
func (s *Span) Context() SpanContext {
	return SpanContext{
		TraceID:    s.traceID,
		SpanID:     s.spanID,
		ParentID:   s.parentID,
		Exportable: s.exportable,
	}
}

// StartTime returns the span start time.
func (s *Span) StartTime() time.Time {
	return s.startTime
}

// EndTime returns the span end time, zero while the span is open.
func (s *Span) EndTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endTime
}

// Duration returns the span duration, or the time elapsed so far if still open.
func (s *Span) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.endTime.IsZero() {
		return time.Since(s.startTime)
	}
	return s.endTime.Sub(s.startTime)
}

// Tags returns the span tags.
func (s *Span) Tags() attr.Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tags
}

// Tag sets a string tag.
func (s *Span) Tag(key, value string) {
	s.SetAttr(attr.String(key, value))
}

// SetAttr adds or updates tags on the span.
func (s *Span) SetAttr(attrs ...attr.Attr) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.tags = s.tags.Merge(attrs...)
}

// LogEvent appends a timestamped event.
func (s *Span) LogEvent(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.events = append(s.events, Event{Name: name, Time: time.Now()})
}

// Events returns a copy of the span events in the order they were logged.
func (s *Span) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := make([]Event, len(s.events))
	copy(events, s.events)
	return events
}

// HasEvent reports whether an event with the given name was logged.
func (s *Span) HasEvent(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e.Name == name {
			return true
		}
	}
	return false
}

// IsClosed reports whether the span has been closed.
func (s *Span) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// end marks the span closed. It reports false if it was already closed.
func (s *Span) end() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.endTime = time.Now()
	s.closed = true
	return true
}

// String renders the span for debug logs.
func (s *Span) String() string {
	return fmt.Sprintf("[Trace: %s, Span: %s, Parent: %s, exportable: %t]",
		s.traceID, s.spanID, s.parentID, s.exportable)
}
