package metric

import (
	"math"
	"sort"
	"sync/atomic"
	"time"

	"github.com/kzs0/callspan/attr"
)

// Histogram counts observations into fixed buckets per label set.
type Histogram struct {
	desc
	buckets []float64
	series  *series[histogramValue]
}

type histogramValue struct {
	// counts[i] holds observations in (buckets[i-1], buckets[i]].
	counts  []atomic.Uint64
	count   atomic.Uint64
	sumBits atomic.Uint64
}

// With returns the series for labels.
func (h *Histogram) With(labels ...attr.Attr) *HistogramVec {
	cl := h.series.get(h.filter(labels), func(v *histogramValue) {
		v.counts = make([]atomic.Uint64, len(h.buckets))
	})
	return &HistogramVec{cell: cl, buckets: h.buckets}
}

// Observe records v on the unlabelled series.
func (h *Histogram) Observe(v float64) {
	h.With().Observe(v)
}

func (h *Histogram) collect() MetricFamily {
	fam := MetricFamily{Name: h.name, Help: h.help, Type: TypeHistogram}
	h.series.each(func(cl *cell[histogramValue]) {
		m := Metric{
			Labels:  cl.labels,
			Buckets: make([]Bucket, len(h.buckets)),
			Count:   cl.value.count.Load(),
			Sum:     math.Float64frombits(cl.value.sumBits.Load()),
		}
		var cumulative uint64
		for i, bound := range h.buckets {
			cumulative += cl.value.counts[i].Load()
			m.Buckets[i] = Bucket{UpperBound: bound, Count: cumulative}
		}
		fam.Metrics = append(fam.Metrics, m)
	})
	return fam
}

// HistogramVec is one labelled histogram series.
type HistogramVec struct {
	cell    *cell[histogramValue]
	buckets []float64
}

// Observe records v.
func (hv *HistogramVec) Observe(v float64) {
	val := &hv.cell.value
	val.count.Add(1)
	addFloat(&val.sumBits, v)

	// Observations above the last bound only show up in +Inf.
	if i := sort.SearchFloat64s(hv.buckets, v); i < len(hv.buckets) {
		val.counts[i].Add(1)
	}
}

// Since observes the seconds elapsed since start.
func (hv *HistogramVec) Since(start time.Time) {
	hv.Observe(time.Since(start).Seconds())
}
