package health

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// PromQL queries against the limiters_redis_* metrics this module exports
// via internal/metrics, read back from whatever Prometheus is scraping the
// fleet. Adapted from the teacher's node/http-level queries to the
// substrate-level signals this module actually produces.
const (
	errorRateQuery = `sum(rate(limiters_redis_commands_total{outcome="error"}[1m])) / sum(rate(limiters_redis_commands_total[1m]))`
	p95LatencyQuery = `histogram_quantile(0.95, rate(limiters_redis_command_duration_seconds_bucket[1m]))`
)

// PrometheusSource reads fleet-wide Redis substrate health back out of
// Prometheus, for operators who want cmd/limiters-demo's local fallback
// limiter to throttle in step with observed Redis distress.
type PrometheusSource struct {
	client v1.API
}

// NewPrometheusSource builds a query client for promURL. It opens no
// connection and issues no query yet.
func NewPrometheusSource(promURL string) (*PrometheusSource, error) {
	c, err := api.NewClient(api.Config{Address: promURL})
	if err != nil {
		return nil, fmt.Errorf("health: create prometheus client: %w", err)
	}
	return &PrometheusSource{client: v1.NewAPI(c)}, nil
}

// FetchMetrics executes the PromQL queries and converts their results into
// Data. CPUUtilization is left at zero: this module has no CPU signal of
// its own, only Redis command health.
func (p *PrometheusSource) FetchMetrics(ctx context.Context) (Data, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	now := time.Now()
	data := Data{}

	query := func(q string) (float64, error) {
		result, _, err := p.client.Query(ctx, q, now)
		if err != nil {
			return 0, fmt.Errorf("health: query %q: %w", q, err)
		}
		if v, ok := result.(model.Vector); ok && len(v) > 0 {
			return float64(v[0].Value), nil
		}
		return 0, nil
	}

	errRate, err := query(errorRateQuery)
	if err != nil {
		return data, err
	}
	data.ErrorRate = errRate

	p95, err := query(p95LatencyQuery)
	if err != nil {
		return data, err
	}
	data.P95LatencyMs = p95 * 1000.0

	return data, nil
}
