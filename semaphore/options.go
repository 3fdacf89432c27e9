package semaphore

import (
	"time"

	"github.com/rs/zerolog"

	"go-limiters/internal/metrics"
	"go-limiters/limiters"
)

// config is the immutable record captured at construction. It has no
// setters: accessors on Semaphore read from it, but nothing can mutate it
// after New returns.
type config struct {
	name     string
	capacity int64
	maxSleep time.Duration
	expiry   time.Duration
	logger   zerolog.Logger
	metrics  *metrics.Metrics
}

// Option configures a Semaphore at construction time.
type Option func(*config)

// WithCapacity sets the number of permits the semaphore hands out. Required:
// New rejects a Semaphore built without a positive capacity.
func WithCapacity(n int) Option {
	return func(c *config) { c.capacity = int64(n) }
}

// WithMaxSleep bounds how long Acquire will block waiting for a permit.
// Zero (the default) blocks indefinitely.
func WithMaxSleep(d time.Duration) Option {
	return func(c *config) { c.maxSleep = d }
}

// WithExpiry sets the TTL applied to the queue and sentinel keys when the
// queue is first created and refreshed on every release. Zero disables
// expiry.
func WithExpiry(d time.Duration) Option {
	return func(c *config) { c.expiry = d }
}

// WithLogger attaches a zerolog.Logger. Default: zerolog.Nop().
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithMetrics attaches Prometheus instrumentation. Default: disabled.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *config) { c.metrics = m }
}

func newConfig(name string, opts []Option) (config, error) {
	cfg := config{
		name:   name,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.name == "" {
		return cfg, &limiters.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if cfg.capacity <= 0 {
		return cfg, &limiters.ValidationError{Field: "capacity", Reason: "must be >= 1"}
	}
	if cfg.maxSleep < 0 {
		return cfg, &limiters.ValidationError{Field: "max_sleep", Reason: "must be >= 0"}
	}
	if cfg.expiry < 0 {
		return cfg, &limiters.ValidationError{Field: "expiry", Reason: "must be >= 0"}
	}

	return cfg, nil
}
