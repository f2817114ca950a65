// Package callspan instruments outbound calls with client spans.
//
// A Callspan ties together logging, the tracer, span export and the call
// interceptor. Attach one to a context with Init or WithCallspan, then make
// calls through NewClient, Do, Get, Post or UnaryClientInterceptor.
package callspan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"dario.cat/mergo"
	"github.com/google/uuid"
	"google.golang.org/grpc"

	"github.com/kzs0/callspan/attr"
	"github.com/kzs0/callspan/intercept"
	clog "github.com/kzs0/callspan/log"
	"github.com/kzs0/callspan/metric"
	"github.com/kzs0/callspan/metric/prometheus"
	"github.com/kzs0/callspan/trace"
	"github.com/kzs0/callspan/trace/otlp"
	"github.com/kzs0/callspan/trace/w3c"
	"github.com/kzs0/callspan/transport"
)

// Callspan is the main entry point for client call instrumentation.
type Callspan struct {
	config      Config
	logger      *slog.Logger
	tracer      *trace.Tracer
	interceptor *intercept.Interceptor
	metrics     *metric.Registry
	resource    attr.Set

	exporter  *otlp.Exporter
	processor *otlp.BatchProcessor

	isNoop bool
}

// New creates a Callspan from cfg. Unset fields take their DefaultConfig
// values.
func New(cfg Config, opts ...Option) (*Callspan, error) {
	o := applyOptions(opts)

	if err := mergo.Merge(&cfg, DefaultConfig(), mergo.WithoutDereference); err != nil {
		return nil, fmt.Errorf("callspan: failed to apply defaults: %w", err)
	}
	if cfg.LogOutput == nil {
		cfg.LogOutput = os.Stderr
	}

	level, err := clog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("callspan: %w", err)
	}
	injector, err := newInjector(cfg.TracePropagation)
	if err != nil {
		return nil, err
	}
	tags, err := trace.NewHTTPTagInjector(cfg.Keys)
	if err != nil {
		return nil, fmt.Errorf("callspan: %w", err)
	}

	c := &Callspan{
		config:  cfg,
		metrics: metric.NewRegistry(cfg.MetricPrefix),
		resource: attr.NewSet(o.staticAttrs...).Merge(
			attr.String("service.name", cfg.Service),
			attr.String("service.instance.id", uuid.NewString()),
		),
	}

	handler := clog.NewHandler(&clog.HandlerOptions{
		Level:  level,
		Output: cfg.LogOutput,
		Format: cfg.LogFormat,
	})
	c.logger = slog.New(handler.WithAttrs(clog.SetToSlog(attr.NewSet(o.staticAttrs...).Merge(
		attr.String("service", cfg.Service),
	))))

	processor := o.processor
	if processor == nil && cfg.TraceURL != "" {
		c.exporter = otlp.NewExporter(otlp.ExporterConfig{
			Endpoint:    cfg.TraceURL,
			Headers:     cfg.TraceHeaders,
			Timeout:     cfg.TraceExportTimeout,
			ServiceName: cfg.Service,
			Resource:    c.resource,
		})
		c.processor = otlp.NewBatchProcessor(c.exporter, otlp.BatchProcessorConfig{
			MaxQueueSize:  cfg.TraceQueueSize,
			BatchSize:     cfg.TraceBatchSize,
			BatchTimeout:  cfg.TraceBatchTimeout,
			ExportTimeout: cfg.TraceExportTimeout,
		}, c.logger)
		processor = c.processor
	}

	c.tracer = trace.NewTracer(trace.TracerConfig{
		ServiceName: cfg.Service,
		Resource:    c.resource,
		Sampler:     newSampler(cfg),
		Processor:   processor,
		IDGenerator: o.ids,
		Logger:      c.logger,
	})

	c.interceptor = intercept.New(c.tracer,
		intercept.WithInjector(injector),
		intercept.WithTagInjector(tags),
		intercept.WithLogger(c.logger),
		intercept.WithMetrics(intercept.NewMetrics(c.metrics)),
	)

	return c, nil
}

func newSampler(cfg Config) trace.Sampler {
	if cfg.TraceSampler != nil {
		return cfg.TraceSampler
	}

	rate := 1.0
	if cfg.TraceSampleRate != nil {
		rate = *cfg.TraceSampleRate
	}
	switch {
	case rate <= 0:
		return trace.NeverSampler{}
	case rate < 1:
		return trace.NewRatioSampler(rate)
	default:
		return trace.AlwaysSampler{}
	}
}

var errNoPropagation = errors.New("callspan: no trace propagation configured")

func newInjector(formats []string) (trace.Injector, error) {
	var injectors trace.CompositeInjector
	for _, f := range formats {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case PropagationB3:
			injectors = append(injectors, trace.B3Injector{})
		case PropagationW3C, "tracecontext":
			injectors = append(injectors, w3c.Injector{})
		default:
			return nil, fmt.Errorf("callspan: unknown trace propagation %q", f)
		}
	}

	switch len(injectors) {
	case 0:
		return nil, errNoPropagation
	case 1:
		return injectors[0], nil
	default:
		return injectors, nil
	}
}

// Init creates a Callspan and attaches it to ctx. Without WithConfig the
// configuration is read from the environment, falling back to defaults.
// The returned function shuts the instance down.
//
// Usage:
//
//	ctx, close := callspan.Init(ctx, callspan.WithConfig(cfg))
//	defer close()
func Init(ctx context.Context, opts ...Option) (context.Context, func()) {
	o := applyOptions(opts)

	if o.config == nil {
		envCfg, err := FromEnv()
		if err != nil {
			envCfg = DefaultConfig()
		}
		o.config = &envCfg
	}

	c, err := New(*o.config, opts...)
	if err != nil {
		panic(fmt.Errorf("callspan: failed to initialize: %w", err))
	}

	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), c.config.ShutdownTimeout)
		defer cancel()
		if err := c.Shutdown(shutdownCtx); err != nil {
			c.logger.Warn("callspan shutdown failed", slog.Any("error", err))
		}
	}

	return WithCallspan(ctx, c), cleanup
}

// Logger returns the logger. Records logged with a context that carries a
// span include its trace and span IDs.
func (c *Callspan) Logger() *slog.Logger {
	return c.logger
}

// Tracer returns the tracer.
func (c *Callspan) Tracer() *trace.Tracer {
	return c.tracer
}

// Interceptor returns the call interceptor.
func (c *Callspan) Interceptor() *intercept.Interceptor {
	return c.interceptor
}

// Metrics returns the metric registry.
func (c *Callspan) Metrics() *metric.Registry {
	return c.metrics
}

// MetricsHandler serves the metric registry in Prometheus text format.
func (c *Callspan) MetricsHandler() http.Handler {
	return prometheus.Handler(c.metrics)
}

// Resource returns the attributes describing this process.
func (c *Callspan) Resource() attr.Set {
	return c.resource
}

// Config returns the effective configuration.
func (c *Callspan) Config() Config {
	return c.config
}

// IsNoop reports whether this is the no-op instance.
func (c *Callspan) IsNoop() bool {
	return c.isNoop
}

// Transport wraps base so that every request gets a client span.
func (c *Callspan) Transport(base http.RoundTripper) http.RoundTripper {
	if c.isNoop {
		if base == nil {
			return http.DefaultTransport
		}
		return base
	}
	return &transport.Transport{Base: base, Interceptor: c.interceptor}
}

// UnaryClientInterceptor returns a gRPC interceptor that wraps every unary
// RPC in a client span.
func (c *Callspan) UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	if c.isNoop {
		return transport.UnaryClientInterceptor(nil)
	}
	return transport.UnaryClientInterceptor(c.interceptor)
}

// Shutdown flushes pending spans and stops the exporter.
func (c *Callspan) Shutdown(ctx context.Context) error {
	if c.tracer == nil {
		return nil
	}
	if err := c.tracer.Shutdown(ctx); err != nil {
		return fmt.Errorf("callspan: shutdown: %w", err)
	}
	return nil
}
