// Package localrate is the process-local, in-memory fallback pacer used by
// cmd/limiters-demo when the caller wants to shed load independently of the
// Redis-backed TokenBucket — e.g. to stay under a target rate even while
// Redis itself is unreachable. It cannot provide the fleet-wide guarantee
// the spec's TokenBucket makes (each process paces against its own clock,
// not a shared schedule); it exists purely as a degrade-gracefully
// secondary limiter, never as a substitute for tokenbucket.TokenBucket.
//
// Adapted from the teacher's pkg/adaptive: same golang.org/x/time/rate core
// and the same health-driven UpdateFactor loop, generalized from HTTP
// request throttling to pacing retries against a degraded Redis substrate.
package localrate

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter wraps golang.org/x/time/rate.Limiter with a mutable throttling
// factor: UpdateFactor(f) scales the configured base rate by f, in [0, 1].
type Limiter struct {
	mu        sync.RWMutex
	baseLimit float64
	burst     int
	inner     *rate.Limiter
}

// New creates a Limiter starting at baseLimit events/second with the given
// burst.
func New(baseLimit float64, burst int) *Limiter {
	return &Limiter{
		baseLimit: baseLimit,
		burst:     burst,
		inner:     rate.NewLimiter(rate.Limit(baseLimit), burst),
	}
}

// Allow reports whether an event may proceed right now.
func (l *Limiter) Allow() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.inner.Allow()
}

// UpdateFactor rescales the limiter's rate to factor*baseLimit. Called by
// Monitor whenever a fresh health.Data reading is available.
func (l *Limiter) UpdateFactor(factor float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inner.SetLimit(rate.Limit(l.baseLimit * factor))
}
