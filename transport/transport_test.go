package transport_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kzs0/callspan/intercept"
	"github.com/kzs0/callspan/trace"
	"github.com/kzs0/callspan/trace/tracetest"
	"github.com/kzs0/callspan/transport"
)

func newInterceptor(t *testing.T, sampler trace.Sampler) (*intercept.Interceptor, *tracetest.Recorder) {
	t.Helper()
	rec := tracetest.NewRecorder()
	tracer := trace.NewTracer(trace.TracerConfig{Sampler: sampler, Processor: rec})
	keys := trace.DefaultTraceKeys()
	keys.Headers = []string{"X-Tenant"}
	tags, err := trace.NewHTTPTagInjector(keys)
	require.NoError(t, err)
	return intercept.New(tracer, intercept.WithTagInjector(tags)), rec
}

type headerEcho struct {
	mu     sync.Mutex
	header http.Header
	status int
}

func (h *headerEcho) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.header = r.Header.Clone()
	if h.status != 0 {
		w.WriteHeader(h.status)
	}
}

func (h *headerEcho) received() http.Header {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.header
}

func TestTransportInjectsHeadersAndTags(t *testing.T) {
	echo := &headerEcho{}
	srv := httptest.NewServer(echo)
	defer srv.Close()

	i, rec := newInterceptor(t, nil)
	client := &http.Client{Transport: &transport.Transport{Interceptor: i}}

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/foo?a=b", nil)
	require.NoError(t, err)
	req.Header.Set("X-Tenant", "acme")

	resp, err := client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	spans := rec.Spans()
	require.Len(t, spans, 1)
	span := spans[0]

	got := echo.received()
	assert.Equal(t, span.TraceID().String(), got.Get(trace.TraceIDName))
	assert.Equal(t, span.SpanID().String(), got.Get(trace.SpanIDName))
	assert.Empty(t, got.Get(trace.ParentIDName))
	assert.Empty(t, got.Get(trace.SampledName))
	assert.Empty(t, req.Header.Get(trace.TraceIDName), "caller request must not be modified")

	assert.Equal(t, "http:/foo", span.Name())
	tags := span.Tags().StringMap()
	assert.Equal(t, srv.URL+"/foo?a=b", tags["http.url"])
	assert.Equal(t, "127.0.0.1", tags["http.host"])
	assert.Equal(t, "/foo", tags["http.path"])
	assert.Equal(t, "GET", tags["http.method"])
	assert.Equal(t, "acme", tags["http.x-tenant"])
	assert.NotContains(t, tags, "http.status_code")
	assert.True(t, span.HasEvent(trace.EventClientSend))
	assert.True(t, span.HasEvent(trace.EventClientRecv))
}

func TestTransportContinuesParent(t *testing.T) {
	echo := &headerEcho{}
	srv := httptest.NewServer(echo)
	defer srv.Close()

	i, _ := newInterceptor(t, nil)
	client := &http.Client{Transport: &transport.Transport{Interceptor: i}}

	ctx := trace.ContinueSpan(context.Background(), trace.SpanContext{TraceID: 1, SpanID: 2, ParentID: 3})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	got := echo.received()
	assert.Equal(t, "0000000000000001", got.Get(trace.TraceIDName))
	assert.NotEqual(t, "0000000000000002", got.Get(trace.SpanIDName))
	assert.Equal(t, "0000000000000002", got.Get(trace.ParentIDName))
	assert.Equal(t, trace.SpanNotSampled, got.Get(trace.SampledName))
}

func TestTransportTagsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(&headerEcho{status: http.StatusInternalServerError})
	defer srv.Close()

	i, rec := newInterceptor(t, nil)
	client := &http.Client{Transport: &transport.Transport{Interceptor: i}}

	resp, err := client.Get(srv.URL + "/fail")
	require.NoError(t, err)
	_ = resp.Body.Close()

	require.Len(t, rec.Spans(), 1)
	tags := rec.Spans()[0].Tags().StringMap()
	assert.Equal(t, "500", tags["http.status_code"])
	assert.NotContains(t, tags, "error")
}

func TestTransportErrorClosesSpan(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	i, rec := newInterceptor(t, nil)
	tr := &transport.Transport{Interceptor: i}

	ctx := trace.ContinueSpan(context.Background(), trace.SpanContext{TraceID: 7, SpanID: 8, Exportable: true})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+"/exception", nil)
	require.NoError(t, err)

	_, err = tr.RoundTrip(req)
	require.Error(t, err)

	assert.Equal(t, trace.SpanID(8), trace.SpanFromContext(req.Context()).SpanID())

	spans := rec.Spans()
	require.Len(t, spans, 1)
	assert.Equal(t, trace.SpanID(8), spans[0].ParentID())
	assert.Equal(t, err.Error(), spans[0].Tags().StringMap()["error"])
	assert.True(t, spans[0].IsClosed())
}

type errTransport struct{ err error }

func (e errTransport) RoundTrip(*http.Request) (*http.Response, error) { return nil, e.err }

func TestTransportPropagatesErrorUnchanged(t *testing.T) {
	sentinel := errors.New("dial failed")
	i, _ := newInterceptor(t, nil)
	tr := &transport.Transport{Base: errTransport{sentinel}, Interceptor: i}

	req := httptest.NewRequest(http.MethodGet, "http://example.invalid/", nil)
	_, err := tr.RoundTrip(req)
	assert.Same(t, sentinel, err)
}

type panicTransport struct{}

func (panicTransport) RoundTrip(*http.Request) (*http.Response, error) { panic("boom") }

func TestTransportPanicClosesSpan(t *testing.T) {
	i, rec := newInterceptor(t, nil)
	tr := &transport.Transport{Base: panicTransport{}, Interceptor: i}

	req := httptest.NewRequest(http.MethodGet, "http://example.invalid/", nil)
	assert.PanicsWithValue(t, "boom", func() { _, _ = tr.RoundTrip(req) })

	require.Len(t, rec.Spans(), 1)
	assert.Equal(t, "transport: panic: boom", rec.Spans()[0].Tags().StringMap()["error"])
}

func TestTransportWithoutInterceptor(t *testing.T) {
	echo := &headerEcho{}
	srv := httptest.NewServer(echo)
	defer srv.Close()

	client := &http.Client{Transport: &transport.Transport{}}
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Empty(t, echo.received().Get(trace.TraceIDName))
}
