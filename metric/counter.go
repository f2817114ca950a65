package metric

import (
	"math"
	"sync/atomic"

	"github.com/kzs0/callspan/attr"
)

// Counter is a monotonically increasing value per label set.
type Counter struct {
	desc
	series *series[counterValue]
}

type counterValue struct {
	bits atomic.Uint64
}

// With returns the series for labels. Labels not declared at registration
// are ignored.
func (c *Counter) With(labels ...attr.Attr) *CounterVec {
	return &CounterVec{cell: c.series.get(c.filter(labels), nil)}
}

// Inc adds one to the unlabelled series.
func (c *Counter) Inc() {
	c.With().Inc()
}

// Add adds v to the unlabelled series.
func (c *Counter) Add(v float64) {
	c.With().Add(v)
}

func (c *Counter) collect() MetricFamily {
	fam := MetricFamily{Name: c.name, Help: c.help, Type: TypeCounter}
	c.series.each(func(cl *cell[counterValue]) {
		fam.Metrics = append(fam.Metrics, Metric{
			Labels: cl.labels,
			Value:  math.Float64frombits(cl.value.bits.Load()),
		})
	})
	return fam
}

// CounterVec is one labelled counter series.
type CounterVec struct {
	cell *cell[counterValue]
}

// Inc adds one.
func (cv *CounterVec) Inc() {
	cv.Add(1)
}

// Add adds v. Negative values are ignored.
func (cv *CounterVec) Add(v float64) {
	if v < 0 {
		return
	}
	addFloat(&cv.cell.value.bits, v)
}

func addFloat(bits *atomic.Uint64, v float64) {
	for {
		old := bits.Load()
		if bits.CompareAndSwap(old, math.Float64bits(math.Float64frombits(old)+v)) {
			return
		}
	}
}
