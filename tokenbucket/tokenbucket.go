// Package tokenbucket implements a leaky/refilling token bucket rate
// limiter coordinated through Redis, so independent processes across a
// fleet share one global schedule.
package tokenbucket

import (
	"context"
	"fmt"
	"time"

	"go-limiters/internal/redisx"
	"go-limiters/limiters"
)

const (
	keyPrefix = "__self-limiters:"
	graceMs   = 1000
)

// TokenBucket schedules callers onto a shared, Redis-backed timeline so
// that the aggregate rate across every process never exceeds
// capacity*refill_amount/refill_frequency in expectation. Construct with
// New; every field is set once and never mutated afterwards.
type TokenBucket struct {
	client *redisx.Client
	cfg    config

	schedKey string
}

// New constructs a TokenBucket. Options are validated before any Redis I/O
// happens; an invalid option returns a *limiters.ValidationError.
func New(client *redisx.Client, name string, opts ...Option) (*TokenBucket, error) {
	cfg, err := newConfig(name, opts)
	if err != nil {
		return nil, err
	}

	return &TokenBucket{
		client:   client,
		cfg:      cfg,
		schedKey: keyPrefix + cfg.name,
	}, nil
}

func (tb *TokenBucket) Name() string                        { return tb.cfg.name }
func (tb *TokenBucket) Capacity() int64                      { return tb.cfg.capacity }
func (tb *TokenBucket) RefillFrequency() time.Duration        { return tb.cfg.refillFrequency }
func (tb *TokenBucket) RefillAmount() int64                   { return tb.cfg.refillAmount }
func (tb *TokenBucket) MaxSleep() time.Duration                { return tb.cfg.maxSleep }

// String implements fmt.Stringer, matching the required observability
// representation: "Token bucket instance for queue __self-limiters:<name>".
func (tb *TokenBucket) String() string {
	return fmt.Sprintf("Token bucket instance for queue %s", tb.schedKey)
}

// Guard is the scoped handle returned by Acquire. TokenBucket has nothing
// to give back on exit — Release is a documented no-op kept only so
// TokenBucket and semaphore.Guard satisfy the same acquire/release shape.
type Guard struct{}

// Release is a no-op: token buckets are fire-and-forget, there is no
// permit to return.
func (Guard) Release(context.Context) error { return nil }

// Acquire runs the scheduling script to reserve a wake-up slot, then sleeps
// until that slot arrives before returning. It returns a
// *limiters.MaxSleepExceededError if the assigned slot is at or beyond
// max_sleep ahead of now (the slot itself stays consumed, so the schedule
// never moves backwards), a *limiters.StoreError on any Redis failure, or a
// *limiters.CancelledError if ctx is cancelled during the sleep.
func (tb *TokenBucket) Acquire(ctx context.Context) (*Guard, error) {
	nowMs := time.Now().UnixMilli()
	freqMs := tb.cfg.refillFrequency.Milliseconds()

	slot, err := tb.client.RunTokenBucketSchedule(ctx, tb.schedKey, nowMs, freqMs, tb.cfg.refillAmount, graceMs)
	if err != nil {
		tb.cfg.logger.Error().Err(err).Str("queue", tb.schedKey).Msg("token bucket schedule failed")
		tb.cfg.metrics.ObserveAcquire("tokenbucket", "store_error", 0)
		return nil, err
	}

	waitSeconds := float64(slot-nowMs) / 1000
	if waitSeconds < 0 {
		waitSeconds = 0
	}

	if tb.cfg.maxSleep > 0 && waitSeconds >= tb.cfg.maxSleep.Seconds() {
		tb.cfg.metrics.ObserveAcquire("tokenbucket", "max_sleep_exceeded", time.Duration(waitSeconds*float64(time.Second)))
		return nil, &limiters.MaxSleepExceededError{
			WaitSeconds:     waitSeconds,
			MaxSleepSeconds: tb.cfg.maxSleep.Seconds(),
		}
	}

	if waitSeconds > 0 {
		timer := time.NewTimer(time.Duration(waitSeconds * float64(time.Second)))
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			tb.cfg.metrics.ObserveAcquire("tokenbucket", "cancelled", time.Since(time.UnixMilli(nowMs)))
			return nil, &limiters.CancelledError{Err: ctx.Err()}
		}
	}

	tb.cfg.metrics.ObserveAcquire("tokenbucket", "fired", time.Duration(waitSeconds*float64(time.Second)))
	return &Guard{}, nil
}
