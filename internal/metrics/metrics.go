// Package metrics instruments the Redis substrate and the two limiters with
// Prometheus counters and histograms, grounded on the teacher's use of
// github.com/prometheus/client_golang for its adaptive rate limiter.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors shared by internal/redisx,
// semaphore, and tokenbucket. A nil *Metrics is valid and every method on it
// is a no-op, so instrumentation is opt-in.
type Metrics struct {
	commands *prometheus.CounterVec
	duration *prometheus.HistogramVec
	acquires *prometheus.CounterVec
	wait     *prometheus.HistogramVec
}

// New builds and registers the collectors against reg. Passing a nil
// Registerer returns nil, which callers may use directly as a no-op
// instrumentation source.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "limiters_redis_commands_total",
			Help: "Redis commands issued by the limiters substrate, by command and outcome.",
		}, []string{"command", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "limiters_redis_command_duration_seconds",
			Help:    "Latency of Redis commands issued by the limiters substrate.",
			Buckets: prometheus.DefBuckets,
		}, []string{"command"}),
		acquires: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "limiters_acquires_total",
			Help: "Acquisition attempts, by limiter type and outcome.",
		}, []string{"limiter", "outcome"}),
		wait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "limiters_wait_seconds",
			Help:    "Time spent waiting for a permit or scheduled slot, by limiter type.",
			Buckets: prometheus.DefBuckets,
		}, []string{"limiter"}),
	}

	reg.MustRegister(m.commands, m.duration, m.acquires, m.wait)
	return m
}

// ObserveCommand records a single Redis command's outcome and latency.
func (m *Metrics) ObserveCommand(command string, dur time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.commands.WithLabelValues(command, outcome).Inc()
	m.duration.WithLabelValues(command).Observe(dur.Seconds())
}

// ObserveAcquire records an acquisition outcome and the time spent waiting
// for it, for one of "semaphore" or "tokenbucket".
func (m *Metrics) ObserveAcquire(limiter, outcome string, wait time.Duration) {
	if m == nil {
		return
	}
	m.acquires.WithLabelValues(limiter, outcome).Inc()
	m.wait.WithLabelValues(limiter).Observe(wait.Seconds())
}
