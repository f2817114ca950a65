// Package intercept wraps one outbound call in a client span.
//
// Start creates (or continues) the span, writes its identity onto the
// call's carrier, tags it from the request and logs the "cs" event. The
// returned Guard closes the span exactly once, either through Finish or,
// when the dispatch context is cancelled first, on its own.
package intercept

import (
	"context"
	"io"
	"log/slog"
	"net/url"

	"github.com/kzs0/callspan/trace"
)

// Tracer is the span capability the interceptor needs.
type Tracer interface {
	CreateSpan(ctx context.Context, name string) (context.Context, *trace.Span)
	Close(span *trace.Span)
}

// Call describes one outbound call.
type Call struct {
	URL *url.URL
	// RawURL is the literal URL tagged on the span. Empty means URL.String().
	RawURL string
	// Host is the host tagged on the span. Empty means URL.Hostname().
	Host    string
	Method  string
	Headers map[string][]string
	// Carrier receives the propagated span identity. Nil skips injection.
	Carrier trace.Carrier
}

// Interceptor starts client spans around outbound calls.
type Interceptor struct {
	tracer   Tracer
	injector trace.Injector
	tags     trace.TagInjector
	namer    func(string) string
	logger   *slog.Logger
	metrics  *Metrics
}

// Option configures an Interceptor.
type Option func(*Interceptor)

// WithInjector sets how span identity is written to carriers.
// Defaults to trace.B3Injector.
func WithInjector(inj trace.Injector) Option {
	return func(i *Interceptor) { i.injector = inj }
}

// WithTagInjector sets the request/response tag policy.
// Defaults to trace.DefaultTagInjector.
func WithTagInjector(tags trace.TagInjector) Option {
	return func(i *Interceptor) { i.tags = tags }
}

// WithNamer sets the naming policy applied to "scheme:path".
// Defaults to trace.ShortenName.
func WithNamer(namer func(string) string) Option {
	return func(i *Interceptor) { i.namer = namer }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Interceptor) { i.logger = logger }
}

// WithMetrics records call outcomes and durations.
func WithMetrics(m *Metrics) Option {
	return func(i *Interceptor) { i.metrics = m }
}

// New creates an interceptor around tracer.
func New(tracer Tracer, opts ...Option) *Interceptor {
	i := &Interceptor{
		tracer:   tracer,
		injector: trace.B3Injector{},
		tags:     trace.DefaultTagInjector(),
		namer:    trace.ShortenName,
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.logger == nil {
		i.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return i
}

// BuildName names a span after the scheme and path of a call. An empty
// scheme means "http". The result is at most trace.MaxNameLength runes.
func BuildName(scheme, path string) string {
	return trace.ShortenName(baseName(scheme, path))
}

// SpanName is BuildName for a URL. A nil URL names the span "http:".
func SpanName(u *url.URL) string {
	if u == nil {
		return BuildName("", "")
	}
	return BuildName(u.Scheme, u.Path)
}

func baseName(scheme, path string) string {
	if scheme == "" {
		scheme = "http"
	}
	return scheme + ":" + path
}

// Start opens a client span for call. The span is a child of the span
// carried by ctx, or the root of a new trace when there is none.
//
// The returned context carries the new span and must be used for the call
// itself; ctx is left untouched and is available again as Guard.Parent.
// Callers must Finish the guard, normally with defer.
func (i *Interceptor) Start(ctx context.Context, call Call) (context.Context, *Guard) {
	var scheme, path string
	if call.URL != nil {
		scheme, path = call.URL.Scheme, call.URL.Path
	}

	g := &Guard{interceptor: i, parent: ctx}
	name := baseName(scheme, path)
	i.safely(nil, "name", func() { name = i.namer(name) })

	spanCtx, span := i.tracer.CreateSpan(ctx, name)
	if span == nil {
		g.state = StateClosed
		return ctx, g
	}
	g.span = span

	if call.Carrier != nil {
		i.safely(span, "inject", func() { i.injector.Inject(span, call.Carrier) })
	}
	i.safely(span, "request tags", func() {
		rawURL, host := call.RawURL, call.Host
		if call.URL != nil {
			if rawURL == "" {
				rawURL = call.URL.String()
			}
			if host == "" {
				host = call.URL.Hostname()
			}
		}
		i.tags.AddRequestTags(span, rawURL, host, path, call.Method, call.Headers)
	})
	span.LogEvent(trace.EventClientSend)

	g.start(ctx)
	i.logger.DebugContext(spanCtx, "starting client span",
		slog.String("name", span.Name()),
		slog.String("span", span.String()),
	)

	return spanCtx, g
}

// safely runs an instrumentation step; a panic is logged and swallowed so
// the call itself always proceeds.
func (i *Interceptor) safely(span *trace.Span, step string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			attrs := []any{slog.String("step", step), slog.Any("panic", r)}
			if span != nil {
				attrs = append(attrs, slog.String("span", span.String()))
			}
			i.logger.Warn("client span instrumentation failed", attrs...)
		}
	}()
	fn()
}
