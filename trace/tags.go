package trace

import (
	"fmt"
	"strings"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// TraceKeys names the tags written by HTTPTagInjector and lists the request
// headers copied onto spans.
type TraceKeys struct {
	URL        string `yaml:"url" env:"URL"`
	Host       string `yaml:"host" env:"HOST"`
	Path       string `yaml:"path" env:"PATH"`
	Method     string `yaml:"method" env:"METHOD"`
	StatusCode string `yaml:"status_code" env:"STATUS_CODE"`

	// HeaderPrefix is prepended to the lowercased header name. Nil means
	// "http."; an explicit empty prefix tags bare header names.
	HeaderPrefix *string `yaml:"header_prefix" env:"HEADER_PREFIX"`
	// Headers is the allowlist of request headers tagged onto spans.
	Headers []string `yaml:"headers" env:"HEADERS"`
}

// DefaultTraceKeys returns the standard http.* tag names with no headers.
func DefaultTraceKeys() TraceKeys {
	return TraceKeys{
		URL:          "http.url",
		Host:         "http.host",
		Path:         "http.path",
		Method:       "http.method",
		StatusCode:   "http.status_code",
		HeaderPrefix: HeaderPrefix("http."),
	}
}

// HeaderPrefix returns p as a value for TraceKeys.HeaderPrefix.
func HeaderPrefix(p string) *string {
	return &p
}

// WithDefaults fills every unset tag name from DefaultTraceKeys. A non-nil
// HeaderPrefix is kept as is, even when empty.
func (k TraceKeys) WithDefaults() (TraceKeys, error) {
	if err := mergo.Merge(&k, DefaultTraceKeys(), mergo.WithoutDereference); err != nil {
		return TraceKeys{}, fmt.Errorf("trace: apply trace key defaults: %w", err)
	}
	return k, nil
}

// ParseTraceKeys reads a YAML trace keys document. Omitted names keep their
// defaults.
func ParseTraceKeys(data []byte) (TraceKeys, error) {
	var keys TraceKeys
	if err := yaml.Unmarshal(data, &keys); err != nil {
		return TraceKeys{}, fmt.Errorf("trace: parse trace keys: %w", err)
	}
	return keys.WithDefaults()
}

// TagInjector writes semantic tags describing a call onto its span.
type TagInjector interface {
	AddRequestTags(span *Span, url, host, path, method string, headers map[string][]string)
	AddResponseTags(span *Span, status int)
}

// HTTPTagInjector tags spans using a TraceKeys policy.
type HTTPTagInjector struct {
	keys TraceKeys
}

var _ TagInjector = (*HTTPTagInjector)(nil)

// NewHTTPTagInjector creates a tag injector; unset keys take their defaults.
func NewHTTPTagInjector(keys TraceKeys) (*HTTPTagInjector, error) {
	keys, err := keys.WithDefaults()
	if err != nil {
		return nil, err
	}
	return &HTTPTagInjector{keys: keys}, nil
}

// DefaultTagInjector tags spans with DefaultTraceKeys.
func DefaultTagInjector() *HTTPTagInjector {
	return &HTTPTagInjector{keys: DefaultTraceKeys()}
}

// Keys returns the effective policy.
func (i *HTTPTagInjector) Keys() TraceKeys {
	return i.keys
}

// AddRequestTags tags the literal url, host, path and method, then every
// allowlisted header present in headers.
func (i *HTTPTagInjector) AddRequestTags(span *Span, url, host, path, method string, headers map[string][]string) {
	if span == nil {
		return
	}
	span.Tag(i.keys.URL, url)
	span.Tag(i.keys.Host, host)
	span.Tag(i.keys.Path, path)
	span.Tag(i.keys.Method, method)

	prefix := ""
	if i.keys.HeaderPrefix != nil {
		prefix = *i.keys.HeaderPrefix
	}
	for _, name := range i.keys.Headers {
		values := lookupHeader(headers, name)
		if len(values) == 0 {
			continue
		}
		span.Tag(prefix+strings.ToLower(name), joinHeaderValues(values))
	}
}

// AddResponseTags tags the status code when it is not a 2xx.
func (i *HTTPTagInjector) AddResponseTags(span *Span, status int) {
	if span == nil || (status >= 200 && status < 300) {
		return
	}
	span.Tag(i.keys.StatusCode, fmt.Sprint(status))
}

func lookupHeader(headers map[string][]string, name string) []string {
	if values, ok := headers[name]; ok {
		return values
	}
	for k, values := range headers {
		if strings.EqualFold(k, name) {
			return values
		}
	}
	return nil
}

func joinHeaderValues(values []string) string {
	if len(values) == 1 {
		return values[0]
	}
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + v + "'"
	}
	return strings.Join(quoted, ",")
}
