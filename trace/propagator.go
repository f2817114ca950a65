package trace

// B3 header names and the not-sampled sentinel.
const (
	TraceIDName    = "X-B3-TraceId"
	SpanIDName     = "X-B3-SpanId"
	ParentIDName   = "X-B3-ParentSpanId"
	SampledName    = "X-B3-Sampled"
	SpanNotSampled = "0"
)

// Injector writes a span's propagated identity into a carrier.
// Implementations must be idempotent.
type Injector interface {
	Inject(span *Span, carrier Carrier)
}

// B3Injector writes Zipkin B3 multi-header propagation fields.
//
// Trace and span IDs are always written, the parent only for child spans, and
// the sampled header only as "0" for spans that are not exportable. A missing
// sampled header means the receiver applies its own default.
type B3Injector struct{}

var _ Injector = B3Injector{}

// Inject writes span into carrier. A nil span writes nothing.
func (B3Injector) Inject(span *Span, carrier Carrier) {
	if span == nil || carrier == nil {
		return
	}

	carrier.Put(TraceIDName, span.TraceID().String())
	carrier.Put(SpanIDName, span.SpanID().String())
	if span.HasParent() {
		carrier.Put(ParentIDName, span.ParentID().String())
	}
	if !span.Exportable() {
		carrier.Put(SampledName, SpanNotSampled)
	}
}

// CompositeInjector runs several injectors in order.
type CompositeInjector []Injector

// Inject delegates to every injector.
func (c CompositeInjector) Inject(span *Span, carrier Carrier) {
	for _, inj := range c {
		inj.Inject(span, carrier)
	}
}
