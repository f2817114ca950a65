package callspan

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/kzs0/callspan/attr"
	"github.com/kzs0/callspan/intercept"
	"github.com/kzs0/callspan/trace"
	"github.com/kzs0/callspan/trace/tracetest"
	"github.com/kzs0/callspan/trace/w3c"
)

func TestNewDefaults(t *testing.T) {
	c, err := New(Config{LogOutput: io.Discard})
	require.NoError(t, err)

	cfg := c.Config()
	assert.Equal(t, "unknown", cfg.Service)
	assert.Equal(t, []string{PropagationB3}, cfg.TracePropagation)
	assert.Nil(t, cfg.TraceSampleRate)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, trace.DefaultTraceKeys(), cfg.Keys)
	assert.False(t, c.IsNoop())

	assert.NotNil(t, c.Logger())
	assert.NotNil(t, c.Tracer())
	assert.NotNil(t, c.Interceptor())
	assert.NotNil(t, c.Metrics())
}

func TestNewKeepsExplicitValues(t *testing.T) {
	keys := trace.TraceKeys{Headers: []string{"X-Tenant"}}
	c, err := New(Config{
		Service:   "orders",
		LogOutput: io.Discard,
		Keys:      keys,
	})
	require.NoError(t, err)

	cfg := c.Config()
	assert.Equal(t, "orders", cfg.Service)
	assert.Equal(t, []string{"X-Tenant"}, cfg.Keys.Headers)
	assert.Equal(t, "http.url", cfg.Keys.URL)
}

func TestNewErrors(t *testing.T) {
	_, err := New(Config{LogOutput: io.Discard, LogLevel: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid level")

	_, err = New(Config{LogOutput: io.Discard, TracePropagation: []string{"jaeger"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown trace propagation "jaeger"`)
}

func TestResource(t *testing.T) {
	c, err := New(Config{Service: "orders", LogOutput: io.Discard},
		WithStaticAttrs(attr.String("env", "test")))
	require.NoError(t, err)

	res := c.Resource().StringMap()
	assert.Equal(t, "orders", res["service.name"])
	assert.Equal(t, "test", res["env"])
	_, err = uuid.Parse(res["service.instance.id"])
	assert.NoError(t, err)
}

func TestSampler(t *testing.T) {
	assert.IsType(t, trace.AlwaysSampler{}, newSampler(Config{}))
	assert.IsType(t, trace.AlwaysSampler{}, newSampler(Config{TraceSampleRate: SampleRate(1)}))
	assert.IsType(t, trace.AlwaysSampler{}, newSampler(Config{TraceSampleRate: SampleRate(3)}))
	assert.IsType(t, trace.NeverSampler{}, newSampler(Config{TraceSampleRate: SampleRate(0)}))
	assert.IsType(t, trace.NeverSampler{}, newSampler(Config{TraceSampleRate: SampleRate(-1)}))
	assert.IsType(t, trace.NeverSampler{}, newSampler(Config{TraceSampler: trace.NeverSampler{}, TraceSampleRate: SampleRate(0.5)}))

	ratio, ok := newSampler(Config{TraceSampleRate: SampleRate(0.25)}).(*trace.RatioSampler)
	require.True(t, ok)
	assert.Equal(t, 0.25, ratio.Ratio())
}

func TestExplicitZeroSampleRateDisablesExport(t *testing.T) {
	t.Setenv("CALLSPAN_TRACE_SAMPLE_RATE", "0")

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.NotNil(t, cfg.TraceSampleRate)
	cfg.LogOutput = io.Discard

	c, err := New(cfg)
	require.NoError(t, err)
	require.NotNil(t, c.Config().TraceSampleRate)
	assert.Equal(t, 0.0, *c.Config().TraceSampleRate)

	_, span := c.Tracer().CreateSpan(context.Background(), "root")
	assert.False(t, span.Exportable())
}

func TestFromEnv(t *testing.T) {
	t.Setenv("CALLSPAN_SERVICE", "orders")
	t.Setenv("CALLSPAN_TRACE_PROPAGATION", "b3,w3c")
	t.Setenv("CALLSPAN_TRACE_SAMPLE_RATE", "0.5")
	t.Setenv("CALLSPAN_KEYS_HEADERS", "X-Tenant, Accept")
	t.Setenv("CALLSPAN_KEYS_HEADER_PREFIX", "req.")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "orders", cfg.Service)
	assert.Equal(t, []string{"b3", "w3c"}, cfg.TracePropagation)
	require.NotNil(t, cfg.TraceSampleRate)
	assert.Equal(t, 0.5, *cfg.TraceSampleRate)
	assert.Equal(t, []string{"X-Tenant", "Accept"}, cfg.Keys.Headers)
	require.NotNil(t, cfg.Keys.HeaderPrefix)
	assert.Equal(t, "req.", *cfg.Keys.HeaderPrefix)
	assert.Equal(t, 10*time.Second, cfg.TraceExportTimeout)
}

func TestFromEnvInvalid(t *testing.T) {
	t.Setenv("CALLSPAN_TRACE_BATCH_SIZE", "many")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "callspan: failed to parse config from env")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "callspan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
service: billing
trace_propagation: [w3c]
keys:
  headers: [X-Request-Id]
  url: url
`), 0o600))
	t.Setenv("CALLSPAN_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "billing", cfg.Service)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"w3c"}, cfg.TracePropagation)
	assert.Equal(t, []string{"X-Request-Id"}, cfg.Keys.Headers)
	assert.Equal(t, "url", cfg.Keys.URL)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestInit(t *testing.T) {
	t.Setenv("CALLSPAN_SERVICE", "from-env")
	t.Setenv("CALLSPAN_LOG_FORMAT", "text")

	ctx, done := Init(context.Background(), WithConfig(Config{Service: "explicit", LogOutput: io.Discard}))
	defer done()

	c := FromContext(ctx)
	require.NotNil(t, c)
	assert.Equal(t, "explicit", c.Config().Service)
	assert.Equal(t, "json", c.Config().LogFormat, "explicit config is not merged with env")
}

func TestInitFromEnv(t *testing.T) {
	t.Setenv("CALLSPAN_SERVICE", "from-env")

	ctx, done := Init(context.Background())
	defer done()

	assert.Equal(t, "from-env", FromContext(ctx).Config().Service)
}

func TestInitPanicsOnBadConfig(t *testing.T) {
	assert.Panics(t, func() {
		Init(context.Background(), WithConfig(Config{LogOutput: io.Discard, LogLevel: "loud"}))
	})
}

func TestFromContextMissing(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
	assert.True(t, fromContext(context.Background()).IsNoop())
}

func TestStart(t *testing.T) {
	rec := tracetest.NewRecorder()
	c, err := New(Config{LogOutput: io.Discard}, WithProcessor(rec))
	require.NoError(t, err)
	ctx := WithCallspan(context.Background(), c)

	carrier := trace.MapCarrier{}
	_, guard := Start(ctx, intercept.Call{Method: "GET", Carrier: carrier})
	guard.Finish(nil)

	require.Len(t, rec.Spans(), 1)
	assert.Equal(t, "http:", rec.Spans()[0].Name())
	_, ok := carrier.Get(trace.TraceIDName)
	assert.True(t, ok)
}

func TestStartWithoutCallspan(t *testing.T) {
	carrier := trace.MapCarrier{}
	ctx, guard := Start(context.Background(), intercept.Call{Carrier: carrier})
	guard.Finish(nil)

	assert.Nil(t, guard.Span())
	assert.Nil(t, trace.SpanFromContext(ctx))
	assert.Empty(t, carrier)
}

func TestLoggerCarriesSpanIDs(t *testing.T) {
	var logs bytes.Buffer
	c, err := New(Config{LogOutput: &logs, LogLevel: "debug", Service: "orders"})
	require.NoError(t, err)

	ctx, guard := c.Interceptor().Start(context.Background(), intercept.Call{Method: "GET"})
	c.Logger().InfoContext(ctx, "calling inventory")
	guard.Finish(nil)

	out := logs.String()
	assert.Contains(t, out, `"msg":"starting client span"`)
	assert.Contains(t, out, `"msg":"calling inventory"`)
	assert.Contains(t, out, `"trace_id":"`+guard.Span().TraceID().String()+`"`)
	assert.Contains(t, out, `"service":"orders"`)
}

func TestUnaryClientInterceptor(t *testing.T) {
	rec := tracetest.NewRecorder()
	c, err := New(Config{LogOutput: io.Discard, TracePropagation: []string{"b3", "w3c"}}, WithProcessor(rec))
	require.NoError(t, err)

	var sent metadata.MD
	invoker := func(ctx context.Context, _ string, _, _ any, _ *grpc.ClientConn, _ ...grpc.CallOption) error {
		sent, _ = metadata.FromOutgoingContext(ctx)
		return nil
	}

	require.NoError(t, c.UnaryClientInterceptor()(context.Background(), "/svc/Get", nil, nil, nil, invoker))

	require.Len(t, rec.Spans(), 1)
	span := rec.Spans()[0]
	assert.Equal(t, []string{span.SpanID().String()}, sent.Get("x-b3-spanid"))
	require.Len(t, sent.Get(w3c.TraceparentHeader), 1)
	assert.Contains(t, sent.Get(w3c.TraceparentHeader)[0], span.SpanID().String())
}

func TestExportToCollector(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []string
	)
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(data))
		mu.Unlock()
	}))
	defer collector.Close()

	c, err := New(Config{
		Service:           "orders",
		LogOutput:         io.Discard,
		TraceURL:          collector.URL,
		TraceBatchTimeout: time.Hour,
	})
	require.NoError(t, err)

	ctx := WithCallspan(context.Background(), c)
	_, guard := Start(ctx, intercept.Call{Method: "GET"})
	guard.Finish(nil)

	require.NoError(t, c.Shutdown(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 1)
	assert.Contains(t, bodies[0], `"name":"http:"`)
	assert.Contains(t, bodies[0], `"stringValue":"orders"`)
}

func TestMetricsHandler(t *testing.T) {
	c, err := New(Config{LogOutput: io.Discard, MetricPrefix: "app"})
	require.NoError(t, err)

	_, guard := c.Interceptor().Start(context.Background(), intercept.Call{})
	guard.Finish(nil)

	rr := httptest.NewRecorder()
	c.MetricsHandler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rr.Body.String()
	assert.True(t, strings.Contains(body, `app_client_calls_total{outcome="ok"} 1`), body)
	assert.Contains(t, body, "app_client_call_duration_seconds_count")
}
