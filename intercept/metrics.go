package intercept

import (
	"time"

	"github.com/kzs0/callspan/attr"
	"github.com/kzs0/callspan/metric"
)

// Metrics counts closed client spans by outcome and observes their duration.
type Metrics struct {
	calls    *metric.Counter
	duration *metric.Histogram
}

// NewMetrics registers the client call metrics on r.
func NewMetrics(r *metric.Registry) *Metrics {
	return &Metrics{
		calls:    r.Counter("client_calls_total", "Outbound calls by outcome.", "outcome"),
		duration: r.Histogram("client_call_duration_seconds", "Outbound call duration in seconds.", nil, "outcome"),
	}
}

func (m *Metrics) record(outcome string, start time.Time) {
	if m == nil {
		return
	}
	label := attr.String("outcome", outcome)
	m.calls.With(label).Inc()
	m.duration.With(label).Since(start)
}
