// Package limiters holds the error types shared by the semaphore and token
// bucket packages, so callers can errors.As against a single hierarchy
// regardless of which limiter raised it.
package limiters

import "fmt"

// ValidationError is returned by a constructor when an option fails its
// constraint. It is always returned before any Redis I/O happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("limiters: invalid %s: %s", e.Field, e.Reason)
}

// StoreError wraps any transport, protocol, wrong-type, or script-execution
// failure surfaced by the Redis substrate. Op names the operation that
// failed (e.g. "blpop", "semaphore_init", "parse redis_url").
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("limiters: store error during %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// MaxSleepExceededError is returned when a wait bound configured via
// WithMaxSleep is exceeded: the semaphore's blocking pop timed out, or the
// token bucket's scheduled wake-up is at or beyond max_sleep ahead of now.
type MaxSleepExceededError struct {
	WaitSeconds    float64
	MaxSleepSeconds float64
}

func (e *MaxSleepExceededError) Error() string {
	return fmt.Sprintf(
		"Received wake up time in %.0f seconds, which is greater or equal to the specified max sleep of %.0f seconds",
		e.WaitSeconds, e.MaxSleepSeconds,
	)
}

// CancelledError wraps a context cancellation observed while waiting for a
// permit or a scheduled slot. The release protocol still runs if a permit
// was already held when cancellation was observed.
type CancelledError struct {
	Err error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("limiters: acquisition cancelled: %v", e.Err)
}

func (e *CancelledError) Unwrap() error { return e.Err }
