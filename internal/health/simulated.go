package health

import (
	"context"
	"math/rand"
)

// SimulatedSource generates synthetic health readings, for demoing
// localrate's adaptive behavior without a live Prometheus.
type SimulatedSource struct {
	rng *rand.Rand
}

// NewSimulatedSource seeds its own generator so callers don't need to seed
// math/rand globally.
func NewSimulatedSource(seed int64) *SimulatedSource {
	return &SimulatedSource{rng: rand.New(rand.NewSource(seed))}
}

func (s *SimulatedSource) FetchMetrics(context.Context) (Data, error) {
	errBase := 0.02
	latencyBase := 15.0 // ms, a healthy Redis round trip

	data := Data{
		ErrorRate:    clamp(errBase+(s.rng.Float64()*0.02-0.01), 0.001, 1),
		P95LatencyMs: clamp(latencyBase+(s.rng.Float64()*10-5), 1, 1000),
	}
	return data, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
