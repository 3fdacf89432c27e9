// Package health adapts metrics about the limiters' own Redis-facing call
// path into a factor the local fallback limiter can throttle against.
// Grounded on the teacher's pkg/health adapter interface, generalized from
// HTTP-service health to Redis substrate health.
package health

import "context"

// Data is the health snapshot a Source reports.
type Data struct {
	// CPUUtilization is a 0..1 ratio of host CPU in use.
	CPUUtilization float64
	// P95LatencyMs is the observed P95 latency of Redis commands, in ms.
	P95LatencyMs float64
	// ErrorRate is the fraction (0..1) of recent Redis commands that failed.
	ErrorRate float64
}

// Source is the adapter interface for anything that can report Data.
type Source interface {
	FetchMetrics(ctx context.Context) (Data, error)
}
