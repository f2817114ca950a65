package trace_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kzs0/callspan/internal"
	"github.com/kzs0/callspan/trace"
)

func TestMapCarrierPutReplaces(t *testing.T) {
	c := trace.MapCarrier{"k": {"a", "b"}}

	c.Put("k", "c")

	assert.Equal(t, []string{"c"}, c["k"])
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "c", v)
}

func TestMapCarrierPutBlankIsNoop(t *testing.T) {
	c := trace.MapCarrier{"k": {"kept"}}

	c.Put("k", "")
	c.Put("k", "   ")
	c.Put("new", "")

	assert.Equal(t, []string{"kept"}, c["k"])
	_, ok := c.Get("new")
	assert.False(t, ok)
}

func TestMapCarrierGetFirstValue(t *testing.T) {
	c := trace.MapCarrier{"k": {"first", "second"}, "empty": {}}

	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "first", v)

	_, ok = c.Get("empty")
	assert.False(t, ok)
}

func TestMapCarrierRangeIsRestartable(t *testing.T) {
	c := trace.MapCarrier{"a": {"1", "x"}, "b": {"2"}, "c": {}}

	collect := func() map[string]string {
		out := map[string]string{}
		c.Range(func(k, v string) bool {
			out[k] = v
			return true
		})
		return out
	}

	want := map[string]string{"a": "1", "b": "2", "c": ""}
	assert.Equal(t, want, collect())
	assert.Equal(t, want, collect())

	n := 0
	c.Range(func(string, string) bool {
		n++
		return false
	})
	assert.Equal(t, 1, n)
}

func TestShortenName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{name: "short", in: "http:/", want: 6},
		{name: "exactly max", in: strings.Repeat("a", 50), want: 50},
		{name: "sixty chars", in: "http:/" + strings.Repeat("a", 60), want: 50},
		{name: "multibyte", in: strings.Repeat("é", 60), want: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := trace.ShortenName(tt.in)
			assert.Equal(t, tt.want, len([]rune(got)))
			assert.True(t, strings.HasPrefix(tt.in, got))
		})
	}
}

func TestB3InjectRootSpan(t *testing.T) {
	tracer := trace.NewTracer(trace.TracerConfig{})
	_, span := tracer.CreateSpan(context.Background(), "root")

	c := trace.MapCarrier{}
	trace.B3Injector{}.Inject(span, c)

	traceID, ok := c.Get(trace.TraceIDName)
	require.True(t, ok)
	parsed, err := internal.TraceIDFromHex(traceID)
	require.NoError(t, err)
	assert.Equal(t, span.TraceID(), parsed)

	spanID, _ := c.Get(trace.SpanIDName)
	assert.Equal(t, span.SpanID().String(), spanID)

	_, hasParent := c.Get(trace.ParentIDName)
	assert.False(t, hasParent)
	_, hasSampled := c.Get(trace.SampledName)
	assert.False(t, hasSampled, "positive sampling is never written")
}

func TestB3InjectChildNotExportable(t *testing.T) {
	tracer := trace.NewTracer(trace.TracerConfig{})
	ctx := trace.ContinueSpan(context.Background(), trace.SpanContext{TraceID: 1, SpanID: 2, Exportable: false})
	_, span := tracer.CreateSpan(ctx, "child")

	c := trace.MapCarrier{}
	trace.B3Injector{}.Inject(span, c)

	assert.Equal(t, []string{"0000000000000001"}, c[trace.TraceIDName])
	assert.Equal(t, []string{"0000000000000002"}, c[trace.ParentIDName])
	assert.Equal(t, []string{trace.SpanNotSampled}, c[trace.SampledName])
}

func TestB3InjectIdempotent(t *testing.T) {
	tracer := trace.NewTracer(trace.TracerConfig{Sampler: trace.NeverSampler{}})
	_, span := tracer.CreateSpan(context.Background(), "idem")

	once := trace.MapCarrier{}
	trace.B3Injector{}.Inject(span, once)
	twice := trace.MapCarrier{}
	trace.B3Injector{}.Inject(span, twice)
	trace.B3Injector{}.Inject(span, twice)

	assert.Equal(t, once, twice)
}

func TestB3InjectNilSpan(t *testing.T) {
	c := trace.MapCarrier{}
	trace.B3Injector{}.Inject(nil, c)
	assert.Empty(t, c)
}

type recordingInjector struct{ calls *[]string }

func (r recordingInjector) Inject(*trace.Span, trace.Carrier) { *r.calls = append(*r.calls, "x") }

func TestCompositeInjector(t *testing.T) {
	var calls []string
	tracer := trace.NewTracer(trace.TracerConfig{})
	_, span := tracer.CreateSpan(context.Background(), "composite")

	c := trace.MapCarrier{}
	trace.CompositeInjector{trace.B3Injector{}, recordingInjector{&calls}}.Inject(span, c)

	assert.Len(t, calls, 1)
	assert.Contains(t, c, trace.TraceIDName)
}
