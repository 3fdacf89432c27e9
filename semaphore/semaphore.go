// Package semaphore implements a fair, FIFO counting semaphore whose state
// lives on Redis so independent processes across a fleet observe a single
// global limit. See the package's Acquire for the guard lifecycle.
package semaphore

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"go-limiters/internal/redisx"
	"go-limiters/limiters"
)

const keyPrefix = "__self-limiters:"

// Semaphore is a fair counting semaphore with capacity C, coordinated
// through Redis. Construct with New; every field here is set once at
// construction and is never mutated afterwards.
type Semaphore struct {
	client *redisx.Client
	cfg    config

	queueKey    string
	sentinelKey string
}

// New constructs a Semaphore. Options are validated before any Redis I/O
// happens; an invalid option returns a *limiters.ValidationError.
func New(client *redisx.Client, name string, opts ...Option) (*Semaphore, error) {
	cfg, err := newConfig(name, opts)
	if err != nil {
		return nil, err
	}

	return &Semaphore{
		client:      client,
		cfg:         cfg,
		queueKey:    keyPrefix + cfg.name,
		sentinelKey: keyPrefix + cfg.name + "-exists",
	}, nil
}

// Name returns the semaphore's configured name.
func (s *Semaphore) Name() string { return s.cfg.name }

// Capacity returns the configured permit count.
func (s *Semaphore) Capacity() int64 { return s.cfg.capacity }

// MaxSleep returns the configured wait bound; zero means unbounded.
func (s *Semaphore) MaxSleep() time.Duration { return s.cfg.maxSleep }

// String implements fmt.Stringer, matching the required observability
// representation: "Semaphore instance for queue __self-limiters:<name>".
func (s *Semaphore) String() string {
	return fmt.Sprintf("Semaphore instance for queue %s", s.queueKey)
}

// Guard is a scoped acquisition handle. Its Release is idempotent: the
// first call runs the release protocol, every subsequent call is a no-op.
type Guard struct {
	sem      *Semaphore
	token    string
	released atomic.Bool
}

// Acquire runs the full acquisition protocol: idempotent queue
// initialization, then a blocking pop for a permit token. It returns a
// *limiters.MaxSleepExceededError if max_sleep elapses first, a
// *limiters.StoreError on any Redis failure, or a *limiters.CancelledError
// if ctx is cancelled while waiting.
func (s *Semaphore) Acquire(ctx context.Context) (*Guard, error) {
	tokens := make([]string, s.cfg.capacity)
	for i := range tokens {
		tokens[i] = uuid.New().String()
	}

	expirySeconds := int64(s.cfg.expiry / time.Second)
	if err := s.client.RunSemaphoreInit(ctx, s.sentinelKey, s.queueKey, expirySeconds, tokens); err != nil {
		s.cfg.logger.Error().Err(err).Str("queue", s.queueKey).Msg("semaphore init failed")
		s.cfg.metrics.ObserveAcquire("semaphore", "store_error", 0)
		return nil, err
	}

	start := time.Now()
	token, ok, err := s.client.BLPop(ctx, s.cfg.maxSleep, s.queueKey)
	wait := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			s.cfg.metrics.ObserveAcquire("semaphore", "cancelled", wait)
			return nil, &limiters.CancelledError{Err: ctx.Err()}
		}
		s.cfg.metrics.ObserveAcquire("semaphore", "store_error", wait)
		return nil, err
	}
	if !ok {
		s.cfg.metrics.ObserveAcquire("semaphore", "max_sleep_exceeded", wait)
		return nil, &limiters.MaxSleepExceededError{
			WaitSeconds:     wait.Seconds(),
			MaxSleepSeconds: s.cfg.maxSleep.Seconds(),
		}
	}

	s.cfg.metrics.ObserveAcquire("semaphore", "acquired", wait)
	return &Guard{sem: s, token: token}, nil
}

// Release returns the permit to the queue, unblocking the next FIFO waiter.
// Calling Release more than once is safe: every call after the first is a
// no-op, so a deferred Release alongside an explicit one never double-frees
// the permit.
func (g *Guard) Release(ctx context.Context) error {
	if !g.released.CompareAndSwap(false, true) {
		return nil
	}
	s := g.sem
	expirySeconds := int64(s.cfg.expiry / time.Second)
	if err := s.client.RunSemaphoreRelease(ctx, s.queueKey, s.sentinelKey, g.token, expirySeconds); err != nil {
		s.cfg.logger.Error().Err(err).Str("queue", s.queueKey).Msg("semaphore release failed")
		return err
	}
	return nil
}
