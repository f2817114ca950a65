package callspan

import (
	"github.com/kzs0/callspan/attr"
	"github.com/kzs0/callspan/trace"
)

// Option configures New and Init.
type Option func(*options)

type options struct {
	config      *Config
	staticAttrs []attr.Attr
	processor   trace.Processor
	ids         trace.IDGenerator
}

// WithConfig sets the configuration used by Init. New ignores it.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.config = &cfg
	}
}

// WithStaticAttrs adds attributes to the resource and to every log record.
func WithStaticAttrs(attrs ...attr.Attr) Option {
	return func(o *options) {
		o.staticAttrs = append(o.staticAttrs, attrs...)
	}
}

// WithProcessor receives closed exportable spans instead of the OTLP
// exporter configured by TraceURL.
func WithProcessor(p trace.Processor) Option {
	return func(o *options) {
		o.processor = p
	}
}

// WithIDGenerator replaces the random trace and span ID source.
func WithIDGenerator(ids trace.IDGenerator) Option {
	return func(o *options) {
		o.ids = ids
	}
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
