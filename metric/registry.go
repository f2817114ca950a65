// Package metric records client call counts and latencies for Prometheus
// exposition.
package metric

import (
	"sort"
	"strings"
	"sync"

	"github.com/kzs0/callspan/attr"
)

// Registry holds the counters and histograms of one process.
type Registry struct {
	prefix string

	mu         sync.RWMutex
	counters   map[string]*Counter
	histograms map[string]*Histogram
}

// NewRegistry creates a registry. A non-empty prefix is joined to every
// metric name with an underscore.
func NewRegistry(prefix string) *Registry {
	return &Registry{
		prefix:     prefix,
		counters:   make(map[string]*Counter),
		histograms: make(map[string]*Histogram),
	}
}

func (r *Registry) fullName(name string) string {
	if r.prefix != "" {
		name = r.prefix + "_" + name
	}
	return sanitizeName(name)
}

// Counter returns the counter registered under name, creating it on first use.
func (r *Registry) Counter(name, help string, labelNames ...string) *Counter {
	name = r.fullName(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.counters[name]; ok {
		return c
	}
	c := &Counter{
		desc:   newDesc(name, help, labelNames),
		series: newSeries[counterValue](),
	}
	r.counters[name] = c
	return c
}

// Histogram returns the histogram registered under name, creating it on
// first use. Nil buckets fall back to DefaultBuckets.
func (r *Registry) Histogram(name, help string, buckets []float64, labelNames ...string) *Histogram {
	name = r.fullName(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.histograms[name]; ok {
		return h
	}
	if len(buckets) == 0 {
		buckets = DefaultBuckets
	}
	bounds := append([]float64(nil), buckets...)
	sort.Float64s(bounds)

	h := &Histogram{
		desc:    newDesc(name, help, labelNames),
		buckets: bounds,
		series:  newSeries[histogramValue](),
	}
	r.histograms[name] = h
	return h
}

// Gather snapshots every family, sorted by name.
func (r *Registry) Gather() []MetricFamily {
	r.mu.RLock()
	families := make([]MetricFamily, 0, len(r.counters)+len(r.histograms))
	for _, c := range r.counters {
		families = append(families, c.collect())
	}
	for _, h := range r.histograms {
		families = append(families, h.collect())
	}
	r.mu.RUnlock()

	sort.Slice(families, func(i, j int) bool { return families[i].Name < families[j].Name })
	return families
}

// MetricFamily is every series of one metric.
type MetricFamily struct {
	Name    string
	Help    string
	Type    MetricType
	Metrics []Metric
}

// MetricType is the Prometheus type of a family.
type MetricType string

const (
	TypeCounter   MetricType = "counter"
	TypeHistogram MetricType = "histogram"
)

// Metric is one labelled series. Counters use Value; histograms use
// Buckets, Count and Sum.
type Metric struct {
	Labels  attr.Set
	Value   float64
	Buckets []Bucket
	Count   uint64
	Sum     float64
}

// Bucket is a cumulative histogram bucket.
type Bucket struct {
	UpperBound float64
	Count      uint64
}

// DefaultBuckets are latency buckets in seconds.
var DefaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// desc is the identity shared by counters and histograms.
type desc struct {
	name   string
	help   string
	labels map[string]struct{}
}

func newDesc(name, help string, labelNames []string) desc {
	labels := make(map[string]struct{}, len(labelNames))
	for _, l := range labelNames {
		labels[sanitizeName(l)] = struct{}{}
	}
	return desc{name: name, help: help, labels: labels}
}

// filter keeps only declared labels, with sanitized keys.
func (d desc) filter(labels []attr.Attr) attr.Set {
	kept := make([]attr.Attr, 0, len(labels))
	for _, l := range labels {
		key := sanitizeName(l.Key)
		if _, ok := d.labels[key]; ok {
			kept = append(kept, l.WithKey(key))
		}
	}
	return attr.NewSet(kept...)
}

// series maps a label set to its value cell.
type series[V any] struct {
	mu     sync.RWMutex
	cells  map[string]*cell[V]
}

type cell[V any] struct {
	labels attr.Set
	value  V
}

func newSeries[V any]() *series[V] {
	return &series[V]{cells: make(map[string]*cell[V])}
}

func (s *series[V]) get(labels attr.Set, init func(*V)) *cell[V] {
	key := labelsKey(labels)

	s.mu.RLock()
	c, ok := s.cells[key]
	s.mu.RUnlock()
	if ok {
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok = s.cells[key]; ok {
		return c
	}
	c = &cell[V]{labels: labels}
	if init != nil {
		init(&c.value)
	}
	s.cells[key] = c
	return c
}

func (s *series[V]) each(fn func(*cell[V])) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.cells {
		fn(c)
	}
}

func labelsKey(labels attr.Set) string {
	var sb strings.Builder
	labels.Range(func(a attr.Attr) bool {
		sb.WriteString(a.Key)
		sb.WriteByte('=')
		sb.WriteString(a.Value.String())
		sb.WriteByte(0)
		return true
	})
	return sb.String()
}

// sanitizeName maps a name onto [a-zA-Z0-9_:].
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == ':':
			return r
		default:
			return '_'
		}
	}, name)
}
