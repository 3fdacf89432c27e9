package redisx

import (
	"github.com/rs/zerolog"

	"go-limiters/internal/metrics"
)

// Option configures a Client at construction time.
type Option func(*Client)

// WithPoolSize bounds the underlying connection pool. Zero leaves the
// go-redis default in place.
func WithPoolSize(n int) Option {
	return func(c *Client) { c.poolSize = n }
}

// WithLogger attaches a zerolog.Logger for failed-command events.
// The default is zerolog.Nop(), so an unconfigured Client stays silent.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics registers Prometheus instrumentation for every command this
// Client issues. Passing nil (the default) disables metrics entirely.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}
