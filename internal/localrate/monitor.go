package localrate

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"go-limiters/internal/health"
)

// Monitor periodically reads a health.Source and feeds a throttling factor
// to a Limiter. Adapted from the teacher's adaptive Monitor; the SLO
// targets below are tuned for Redis command health rather than an HTTP
// service's CPU/latency/error budget.
type Monitor struct {
	limiter  *Limiter
	source   health.Source
	interval time.Duration
	logger   zerolog.Logger
}

// NewMonitor wires limiter to source, to be polled every interval once Run
// is called.
func NewMonitor(limiter *Limiter, source health.Source, interval time.Duration, logger zerolog.Logger) *Monitor {
	return &Monitor{limiter: limiter, source: source, interval: interval, logger: logger}
}

// Run polls the health source on a ticker until ctx is cancelled. Intended
// to be started in its own goroutine.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			data, err := m.source.FetchMetrics(ctx)
			if err != nil {
				m.logger.Warn().Err(err).Msg("health fetch failed, keeping current rate")
				continue
			}
			m.limiter.UpdateFactor(calculateFactor(data))
		}
	}
}

// calculateFactor derives a throttling factor in [0.1, 1.0] from observed
// Redis command health: the most stressed signal dictates the factor.
func calculateFactor(data health.Data) float64 {
	const (
		targetLatencyMs = 50.0
		targetErrorRate = 0.05
	)

	latencyFactor := targetLatencyMs / max1(data.P95LatencyMs)
	errorFactor := targetErrorRate / max1(data.ErrorRate)

	factor := latencyFactor
	if errorFactor < factor {
		factor = errorFactor
	}

	if factor > 1.0 {
		return 1.0
	}
	if factor < 0.1 {
		return 0.1
	}
	return factor
}

// max1 keeps a factor's denominator away from zero/near-zero readings,
// which would otherwise blow the factor up unboundedly before
// calculateFactor's 1.0 clamp runs.
func max1(v float64) float64 {
	if v < 0.01 {
		return 0.01
	}
	return v
}
