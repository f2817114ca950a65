package callspan

import (
	"fmt"
	"io"
	"time"

	"github.com/kzs0/callspan/config"
	"github.com/kzs0/callspan/trace"
)

// EnvPrefix prefixes every environment variable read by FromEnv and Load.
const EnvPrefix = "CALLSPAN_"

// Propagation formats accepted in Config.TracePropagation.
const (
	PropagationB3  = "b3"
	PropagationW3C = "w3c"
)

// Config configures a Callspan instance.
type Config struct {
	// Service is the name of the service.
	Service string `yaml:"service" env:"SERVICE" envDefault:"unknown"`

	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" envDefault:"info"`
	// LogFormat is "json", "text" or "console".
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT" envDefault:"json"`
	// LogOutput is the log output writer. Defaults to os.Stderr.
	LogOutput io.Writer `yaml:"-" env:"-"`

	// TraceURL is the OTLP HTTP endpoint for spans. Empty disables export.
	TraceURL string `yaml:"trace_url" env:"TRACE_URL"`
	// TraceHeaders are sent with every export request.
	TraceHeaders map[string]string `yaml:"trace_headers" env:"TRACE_HEADERS"`
	// TraceSampleRate is the fraction of root spans that are exportable.
	// Nil means 1; an explicit 0 makes no root span exportable.
	TraceSampleRate *float64 `yaml:"trace_sample_rate" env:"TRACE_SAMPLE_RATE" envDefault:"1.0"`
	// TraceSampler overrides TraceSampleRate when set.
	TraceSampler trace.Sampler `yaml:"-" env:"-"`
	// TracePropagation lists the wire formats written on outbound calls.
	TracePropagation []string `yaml:"trace_propagation" env:"TRACE_PROPAGATION" envDefault:"b3"`
	// TraceExportTimeout bounds a single export request.
	TraceExportTimeout time.Duration `yaml:"trace_export_timeout" env:"TRACE_EXPORT_TIMEOUT" envDefault:"10s"`
	// TraceBatchSize is the maximum number of spans per export.
	TraceBatchSize int `yaml:"trace_batch_size" env:"TRACE_BATCH_SIZE" envDefault:"512"`
	// TraceQueueSize bounds the spans waiting for export.
	TraceQueueSize int `yaml:"trace_queue_size" env:"TRACE_QUEUE_SIZE" envDefault:"2048"`
	// TraceBatchTimeout is the longest a span waits before export.
	TraceBatchTimeout time.Duration `yaml:"trace_batch_timeout" env:"TRACE_BATCH_TIMEOUT" envDefault:"5s"`

	// MetricPrefix is prepended to all metric names.
	MetricPrefix string `yaml:"metric_prefix" env:"METRIC_PREFIX"`

	// Keys names the request tags and lists the headers copied onto spans.
	Keys trace.TraceKeys `yaml:"keys" envPrefix:"KEYS_"`

	// ShutdownTimeout is the timeout for shutdown operations.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Service:            "unknown",
		LogLevel:           "info",
		LogFormat:          "json",
		TracePropagation:   []string{PropagationB3},
		TraceExportTimeout: 10 * time.Second,
		TraceBatchSize:     512,
		TraceQueueSize:     2048,
		TraceBatchTimeout:  5 * time.Second,
		Keys:               trace.DefaultTraceKeys(),
		ShutdownTimeout:    30 * time.Second,
	}
}

// SampleRate returns r as a value for Config.TraceSampleRate.
func SampleRate(r float64) *float64 {
	return &r
}

// FromEnv loads configuration from CALLSPAN_* environment variables.
func FromEnv() (Config, error) {
	cfg, err := config.ParseWithPrefix[Config](EnvPrefix)
	if err != nil {
		return Config{}, fmt.Errorf("callspan: failed to parse config from env: %w", err)
	}
	return cfg, nil
}

// Load reads a YAML config file with CALLSPAN_* environment overrides.
func Load(path string) (Config, error) {
	cfg, err := config.LoadFile[Config](path, EnvPrefix)
	if err != nil {
		return Config{}, fmt.Errorf("callspan: failed to load config: %w", err)
	}
	return cfg, nil
}

// MustFromEnv loads configuration from environment variables, panicking on error.
func MustFromEnv() Config {
	cfg, err := FromEnv()
	if err != nil {
		panic(err)
	}
	return cfg
}
