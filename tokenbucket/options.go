package tokenbucket

import (
	"time"

	"github.com/rs/zerolog"

	"go-limiters/internal/metrics"
	"go-limiters/limiters"
)

// config is the immutable record captured at construction.
type config struct {
	name            string
	capacity        int64
	refillFrequency time.Duration
	refillAmount    int64
	maxSleep        time.Duration
	logger          zerolog.Logger
	metrics         *metrics.Metrics
}

// Option configures a TokenBucket at construction time.
type Option func(*config)

// WithCapacity sets the bucket's capacity. It is validated (must be >= 1)
// and reported by Capacity(), but it is not passed to the scheduling
// script: pacing depends only on the refill frequency and refill amount.
func WithCapacity(n int) Option {
	return func(c *config) { c.capacity = int64(n) }
}

// WithRefillFrequency sets the tick period. Defaults to one second; must
// be > 0.
func WithRefillFrequency(d time.Duration) Option {
	return func(c *config) { c.refillFrequency = d }
}

// WithRefillAmount sets the number of tokens produced per tick.
func WithRefillAmount(n int) Option {
	return func(c *config) { c.refillAmount = int64(n) }
}

// WithMaxSleep bounds how far in the future a caller will wait for its
// scheduled slot. Zero (the default) disables the bound.
func WithMaxSleep(d time.Duration) Option {
	return func(c *config) { c.maxSleep = d }
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
		name:            name,
		refillFrequency: time.Second,
		refillAmount:    1,
		logger:          zerolog.Nop(),
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
	if cfg.refillFrequency <= 0 {
		return cfg, &limiters.ValidationError{Field: "refill_frequency", Reason: "must be > 0"}
	}
	if cfg.refillAmount < 1 {
		return cfg, &limiters.ValidationError{Field: "refill_amount", Reason: "must be >= 1"}
	}
	if cfg.maxSleep < 0 {
		return cfg, &limiters.ValidationError{Field: "max_sleep", Reason: "must be >= 0"}
	}

	return cfg, nil
}
