package trace

import (
	"math/rand"
	"sync"
)

// Sampler decides whether a new trace is exportable.
type Sampler interface {
	ShouldSample(traceID TraceID, name string) bool
}

// AlwaysSampler exports every trace.
type AlwaysSampler struct{}

// ShouldSample always returns true.
func (AlwaysSampler) ShouldSample(TraceID, string) bool {
	return true
}

// NeverSampler exports nothing; IDs are still propagated.
type NeverSampler struct{}

// ShouldSample always returns false.
func (NeverSampler) ShouldSample(TraceID, string) bool {
	return false
}

// RatioSampler exports a fraction of traces.
type RatioSampler struct {
	ratio float64
	mu    sync.Mutex
	rng   *rand.Rand
}

// NewRatioSampler creates a sampler exporting the given fraction of traces.
// The ratio is clamped to [0, 1].
func NewRatioSampler(ratio float64) *RatioSampler {
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return &RatioSampler{
		ratio: ratio,
		rng:   rand.New(rand.NewSource(rand.Int63())),
	}
}

// ShouldSample samples based on the configured ratio.
func (s *RatioSampler) ShouldSample(TraceID, string) bool {
	switch s.ratio {
	case 0:
		return false
	case 1:
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < s.ratio
}

// Ratio returns the configured ratio.
func (s *RatioSampler) Ratio() float64 {
	return s.ratio
}
