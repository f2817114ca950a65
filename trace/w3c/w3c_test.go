package w3c

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/kzs0/callspan/trace"
	httpcarrier "github.com/kzs0/callspan/trace/http"
)

func TestInjectTraceparent(t *testing.T) {
	ctx := trace.ContinueSpan(context.Background(), trace.SpanContext{TraceID: 0xabc, SpanID: 2, Exportable: true})
	_, span := trace.NewTracer(trace.TracerConfig{}).CreateSpan(ctx, "child")

	h := http.Header{}
	Injector{}.Inject(span, httpcarrier.HeaderCarrier(h))

	want := "00-0000000000000000" + "0000000000000abc" + "-" + span.SpanID().String() + "-01"
	assert.Equal(t, want, h.Get(TraceparentHeader))
}

func TestInjectNotExportableClearsSampledFlag(t *testing.T) {
	tracer := trace.NewTracer(trace.TracerConfig{Sampler: trace.NeverSampler{}})
	_, span := tracer.CreateSpan(context.Background(), "root")

	c := trace.MapCarrier{}
	Injector{}.Inject(span, c)

	v, ok := c.Get(TraceparentHeader)
	require.True(t, ok)
	assert.Equal(t, "00", v[len(v)-2:])
}

func TestInjectNilSpan(t *testing.T) {
	c := trace.MapCarrier{}
	Injector{}.Inject(nil, c)
	assert.Empty(t, c)
}

func TestSpanContextRoundTripsThroughOtel(t *testing.T) {
	c := trace.MapCarrier{}
	sc := SpanContext(trace.SpanContext{TraceID: 1, SpanID: 2, Exportable: true})
	propagation.TraceContext{}.Inject(oteltrace.ContextWithSpanContext(context.Background(), sc), NewTextMapCarrier(c))

	extracted := oteltrace.SpanContextFromContext(
		propagation.TraceContext{}.Extract(context.Background(), NewTextMapCarrier(c)),
	)
	require.True(t, extracted.IsValid())
	assert.Equal(t, "00000000000000000000000000000001", extracted.TraceID().String())
	assert.Equal(t, "0000000000000002", extracted.SpanID().String())
	assert.True(t, extracted.IsSampled())
}

func TestTextMapCarrierKeys(t *testing.T) {
	c := trace.MapCarrier{"a": {"1"}, "b": {"2"}}
	keys := NewTextMapCarrier(c).Keys()
	assert.ElementsMatch(t, []string{"a", "b"}, keys)
}

func TestCompositeWithB3(t *testing.T) {
	_, span := trace.NewTracer(trace.TracerConfig{}).CreateSpan(context.Background(), "both")

	c := trace.MapCarrier{}
	trace.CompositeInjector{trace.B3Injector{}, Injector{}}.Inject(span, c)

	assert.Contains(t, c, trace.TraceIDName)
	assert.Contains(t, c, TraceparentHeader)
}
