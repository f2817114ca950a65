package otlp

import (
	json "github.com/goccy/go-json"

	"github.com/kzs0/callspan/attr"
	"github.com/kzs0/callspan/trace"
)

// ExportRequest represents an OTLP trace export request.
type ExportRequest struct {
	ResourceSpans []ResourceSpans `json:"resourceSpans"`
}

// ResourceSpans groups spans by resource.
type ResourceSpans struct {
	Resource   Resource     `json:"resource"`
	ScopeSpans []ScopeSpans `json:"scopeSpans"`
}

// Resource represents a resource with attributes.
type Resource struct {
	Attributes []KeyValue `json:"attributes"`
}

// ScopeSpans groups spans by instrumentation scope.
type ScopeSpans struct {
	Scope InstrumentationScope `json:"scope"`
	Spans []Span               `json:"spans"`
}

// InstrumentationScope identifies the instrumentation library.
type InstrumentationScope struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// Span represents an OTLP span.
type Span struct {
	TraceID           string     `json:"traceId"`
	SpanID            string     `json:"spanId"`
	ParentSpanID      string     `json:"parentSpanId,omitempty"`
	Name              string     `json:"name"`
	Kind              int        `json:"kind"`
	StartTimeUnixNano uint64     `json:"startTimeUnixNano,string"`
	EndTimeUnixNano   uint64     `json:"endTimeUnixNano,string"`
	Attributes        []KeyValue `json:"attributes,omitempty"`
	Events            []Event    `json:"events,omitempty"`
	Status            Status     `json:"status,omitempty"`
}

// KeyValue represents a key-value attribute.
type KeyValue struct {
	Key   string   `json:"key"`
	Value AnyValue `json:"value"`
}

// AnyValue represents any attribute value.
type AnyValue struct {
	StringValue *string  `json:"stringValue,omitempty"`
	IntValue    *int64   `json:"intValue,string,omitempty"`
	DoubleValue *float64 `json:"doubleValue,omitempty"`
	BoolValue   *bool    `json:"boolValue,omitempty"`
}

// Event represents a span event.
type Event struct {
	TimeUnixNano uint64 `json:"timeUnixNano,string"`
	Name         string `json:"name"`
}

// Status represents the span status.
type Status struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

const (
	spanKindClient  = 3
	statusCodeError = 2
	// 64-bit trace IDs are widened to the 128-bit OTLP width.
	traceIDPadding = "0000000000000000"
)

// EncodeSpans encodes spans to OTLP JSON format.
func EncodeSpans(spans []*trace.Span, serviceName string, resource attr.Set) ([]byte, error) {
	if len(spans) == 0 {
		return nil, nil
	}

	resourceAttrs := []KeyValue{
		{Key: "service.name", Value: stringValue(serviceName)},
	}
	resource.Range(func(a attr.Attr) bool {
		resourceAttrs = append(resourceAttrs, attrToKeyValue(a))
		return true
	})

	otlpSpans := make([]Span, len(spans))
	for i, s := range spans {
		otlpSpans[i] = spanToOTLP(s)
	}

	return json.Marshal(ExportRequest{
		ResourceSpans: []ResourceSpans{{
			Resource: Resource{Attributes: resourceAttrs},
			ScopeSpans: []ScopeSpans{{
				Scope: InstrumentationScope{Name: "callspan", Version: "1.0.0"},
				Spans: otlpSpans,
			}},
		}},
	})
}

// spanToOTLP converts a client span to an OTLP span. Every span produced by
// callspan is a client span; a non-empty "error" tag marks it failed.
func spanToOTLP(s *trace.Span) Span {
	out := Span{
		TraceID:           traceIDPadding + s.TraceID().String(),
		SpanID:            s.SpanID().String(),
		Name:              s.Name(),
		Kind:              spanKindClient,
		StartTimeUnixNano: uint64(s.StartTime().UnixNano()),
		EndTimeUnixNano:   uint64(s.EndTime().UnixNano()),
	}
	if s.HasParent() {
		out.ParentSpanID = s.ParentID().String()
	}

	tags := s.Tags()
	tags.Range(func(a attr.Attr) bool {
		out.Attributes = append(out.Attributes, attrToKeyValue(a))
		return true
	})
	if v, ok := tags.Get("error"); ok && v.String() != "" {
		out.Status = Status{Code: statusCodeError, Message: v.String()}
	}

	for _, e := range s.Events() {
		out.Events = append(out.Events, Event{
			TimeUnixNano: uint64(e.Time.UnixNano()),
			Name:         e.Name,
		})
	}

	return out
}

func attrToKeyValue(a attr.Attr) KeyValue {
	return KeyValue{Key: a.Key, Value: valueToAnyValue(a.Value)}
}

func valueToAnyValue(v attr.Value) AnyValue {
	switch v.Kind() {
	case attr.KindInt64:
		i := v.AsInt64()
		return AnyValue{IntValue: &i}
	case attr.KindFloat64:
		f := v.AsFloat64()
		return AnyValue{DoubleValue: &f}
	case attr.KindBool:
		b := v.AsBool()
		return AnyValue{BoolValue: &b}
	default:
		return stringValue(v.String())
	}
}

func stringValue(s string) AnyValue {
	return AnyValue{StringValue: &s}
}
