package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kzs0/callspan"
	"github.com/kzs0/callspan/attr"
	"github.com/kzs0/callspan/config"
	"github.com/kzs0/callspan/trace"
)

type Config struct {
	Callspan callspan.Config `envPrefix:"CALLSPAN_"`
	Interval time.Duration   `env:"CALL_INTERVAL" envDefault:"2s"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Parse[Config]()
	if err != nil {
		cfg = Config{Callspan: callspan.DefaultConfig(), Interval: 2 * time.Second}
	}
	cfg.Callspan.Service = "example-service"
	cfg.Callspan.LogFormat = "console"
	cfg.Callspan.LogLevel = "debug"
	cfg.Callspan.Keys.Headers = []string{"X-Request-Id"}

	ctx, done := callspan.Init(ctx,
		callspan.WithConfig(cfg.Callspan),
		callspan.WithStaticAttrs(attr.String("env", "development")),
	)
	defer done()

	logger := callspan.FromContext(ctx).Logger()

	// A downstream service that echoes the propagated identity.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		logger.Error("listen failed", slog.Any("error", err))
		os.Exit(1)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "trace=%s span=%s parent=%s\n",
			r.Header.Get(trace.TraceIDName), r.Header.Get(trace.SpanIDName), r.Header.Get(trace.ParentIDName))
	})
	mux.Handle("/metrics", callspan.FromContext(ctx).MetricsHandler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	defer func() { _ = srv.Shutdown(context.Background()) }()

	base := "http://" + ln.Addr().String()
	logger.Info("downstream listening", slog.String("metrics", base+"/metrics"))

	client := callspan.NewClient(&http.Client{Timeout: 5 * time.Second})
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			callUsers(ctx, client, base+"/users?page=1", logger)
		}
	}
}

func callUsers(ctx context.Context, client *http.Client, url string, logger *slog.Logger) {
	// Continue an existing trace, as if this work was triggered by an inbound request.
	ctx = trace.ContinueSpan(ctx, trace.SpanContext{
		TraceID:    trace.TraceID(time.Now().UnixNano()),
		SpanID:     1,
		Exportable: true,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		logger.ErrorContext(ctx, "build request", slog.Any("error", err))
		return
	}
	req.Header.Set("X-Request-Id", "example")

	resp, err := client.Do(req)
	if err != nil {
		logger.ErrorContext(ctx, "call failed", slog.Any("error", err))
		return
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	logger.InfoContext(ctx, "downstream replied", slog.String("body", string(body)))
}
