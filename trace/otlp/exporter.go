// Package otlp exports closed spans to an OTLP/HTTP JSON endpoint.
package otlp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kzs0/callspan/attr"
	"github.com/kzs0/callspan/trace"
)

// ExporterConfig configures the OTLP exporter.
type ExporterConfig struct {
	// Endpoint is the OTLP HTTP endpoint (e.g., "http://localhost:4318/v1/traces").
	Endpoint string
	// Headers are additional HTTP headers to send.
	Headers map[string]string
	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration
	// MaxRetries bounds retries of retryable failures (network, 429, 5xx).
	MaxRetries uint64
	// RetryInitialInterval is the first backoff delay.
	RetryInitialInterval time.Duration
	ServiceName          string
	Resource             attr.Set
	// Client overrides the HTTP client. Export requests must not be traced.
	Client *http.Client
}

// ErrStopped is returned by ExportSpans after Shutdown.
var ErrStopped = errors.New("otlp: exporter stopped")

// Exporter exports spans to an OTLP endpoint.
type Exporter struct {
	cfg    ExporterConfig
	client *http.Client

	mu      sync.Mutex
	stopped bool
}

var _ trace.Exporter = (*Exporter)(nil)

// NewExporter creates a new OTLP exporter.
func NewExporter(cfg ExporterConfig) *Exporter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryInitialInterval <= 0 {
		cfg.RetryInitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &Exporter{cfg: cfg, client: client}
}

// ExportSpans encodes spans and posts them, retrying transient failures.
func (e *Exporter) ExportSpans(ctx context.Context, spans []*trace.Span) error {
	e.mu.Lock()
	stopped := e.stopped
	e.mu.Unlock()
	if stopped {
		return ErrStopped
	}
	if len(spans) == 0 {
		return nil
	}

	data, err := EncodeSpans(spans, e.cfg.ServiceName, e.cfg.Resource)
	if err != nil {
		return fmt.Errorf("otlp: failed to encode spans: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.cfg.RetryInitialInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, e.cfg.MaxRetries), ctx)

	return backoff.Retry(func() error { return e.send(ctx, data) }, policy)
}

func (e *Exporter) send(ctx context.Context, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Endpoint, bytes.NewReader(data))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("otlp: failed to create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range e.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("otlp: failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	err = fmt.Errorf("otlp: server returned %d: %s", resp.StatusCode, string(body))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return err
	}
	return backoff.Permanent(err)
}

// Shutdown stops the exporter. Later exports fail with ErrStopped.
func (e *Exporter) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()
	return nil
}
