// Package log builds the slog handlers used across callspan. Records logged
// with a context carrying a span get trace_id and span_id attributes.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/kzs0/callspan/attr"
	"github.com/kzs0/callspan/trace"
)

// Output formats.
const (
	FormatJSON    = "json"
	FormatText    = "text"
	FormatConsole = "console"
)

// Handler is a slog.Handler that adds the current span's IDs to records.
type Handler struct {
	inner slog.Handler
}

// HandlerOptions configures the Handler.
type HandlerOptions struct {
	// Level is the minimum log level to output.
	Level slog.Leveler
	// AddSource adds source code position to log output.
	AddSource bool
	// Output is the writer to write logs to. Defaults to os.Stderr.
	Output io.Writer
	// Format is "json", "text" or "console". Defaults to "json".
	Format string
}

// NewHandler creates a new Handler with the given options.
func NewHandler(opts *HandlerOptions) *Handler {
	if opts == nil {
		opts = &HandlerOptions{}
	}

	output := opts.Output
	if output == nil {
		output = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     opts.Level,
		AddSource: opts.AddSource,
	}

	var inner slog.Handler
	switch strings.ToLower(opts.Format) {
	case FormatText:
		inner = slog.NewTextHandler(output, handlerOpts)
	case FormatConsole:
		inner = newConsoleHandler(output, opts.Level)
	default:
		inner = slog.NewJSONHandler(output, handlerOpts)
	}

	return &Handler{inner: inner}
}

// Wrap adds span IDs to records passed to inner.
func Wrap(inner slog.Handler) *Handler {
	return &Handler{inner: inner}
}

// Enabled reports whether the handler handles records at the given level.
func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle handles the Record.
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if span := trace.SpanFromContext(ctx); span != nil {
		r.AddAttrs(
			slog.String("trace_id", span.TraceID().String()),
			slog.String("span_id", span.SpanID().String()),
		)
	}
	return h.inner.Handle(ctx, r)
}

// WithAttrs returns a new Handler with the given attributes added.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{inner: h.inner.WithAttrs(attrs)}
}

// WithGroup returns a new Handler with the given group name.
func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{inner: h.inner.WithGroup(name)}
}

// ParseLevel parses "debug", "info", "warn" or "error", case-insensitively.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log: invalid level %q: %w", s, err)
	}
	return level, nil
}

// AttrToSlog converts an attr.Attr to a slog.Attr.
func AttrToSlog(a attr.Attr) slog.Attr {
	switch a.Value.Kind() {
	case attr.KindInt64:
		return slog.Int64(a.Key, a.Value.AsInt64())
	case attr.KindFloat64:
		return slog.Float64(a.Key, a.Value.AsFloat64())
	case attr.KindBool:
		return slog.Bool(a.Key, a.Value.AsBool())
	default:
		return slog.String(a.Key, a.Value.AsString())
	}
}

// SetToSlog converts every attribute of s, in key order.
func SetToSlog(s attr.Set) []slog.Attr {
	out := make([]slog.Attr, 0, s.Len())
	s.Range(func(a attr.Attr) bool {
		out = append(out, AttrToSlog(a))
		return true
	})
	return out
}
