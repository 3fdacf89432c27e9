// Package redisx is the substrate adapter every core operation funnels
// through. It is the only package that imports github.com/go-redis/redis/v8
// directly; semaphore and tokenbucket speak to it through this small
// command surface and never see a raw *redis.Error.
package redisx

import (
	"context"
	_ "embed"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"go-limiters/internal/metrics"
	"go-limiters/limiters"
)

//go:embed scripts/semaphore_init.lua
var semaphoreInitSource string

//go:embed scripts/semaphore_release.lua
var semaphoreReleaseSource string

//go:embed scripts/tokenbucket_schedule.lua
var tokenBucketScheduleSource string

// Client wraps a pooled *redis.Client. It dials lazily: construction never
// touches the network, so a malformed redis_url surfaces as a StoreError on
// the first command rather than at New time.
type Client struct {
	url      string
	poolSize int
	logger   zerolog.Logger
	metrics  *metrics.Metrics

	mu      sync.Mutex
	rdb     *redis.Client
	dialErr error

	semaphoreInit    *script
	semaphoreRelease *script
	tokenBucketSched *script
}

// New returns a Client for redisURL. No connection is opened yet.
func New(redisURL string, opts ...Option) *Client {
	c := &Client{
		url:              redisURL,
		logger:           zerolog.Nop(),
		semaphoreInit:    newScript("semaphore_init", semaphoreInitSource),
		semaphoreRelease: newScript("semaphore_release", semaphoreReleaseSource),
		tokenBucketSched: newScript("tokenbucket_schedule", tokenBucketScheduleSource),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) dial() (*redis.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rdb != nil {
		return c.rdb, nil
	}
	if c.dialErr != nil {
		return nil, c.dialErr
	}

	options, err := redis.ParseURL(c.url)
	if err != nil {
		c.dialErr = &limiters.StoreError{Op: "parse redis_url", Err: err}
		return nil, c.dialErr
	}
	if c.poolSize > 0 {
		options.PoolSize = c.poolSize
	}

	c.rdb = redis.NewClient(options)
	return c.rdb, nil
}

func (c *Client) observe(op string, start time.Time, err error) error {
	c.metrics.ObserveCommand(op, time.Since(start), err)
	if err != nil {
		c.logger.Debug().Str("op", op).Err(err).Msg("redis command failed")
	}
	return err
}

func wrapStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &limiters.StoreError{Op: op, Err: err}
}

// RunSemaphoreInit runs the idempotent queue-initialization script.
func (c *Client) RunSemaphoreInit(ctx context.Context, sentinelKey, queueKey string, expirySeconds int64, tokens []string) error {
	rdb, err := c.dial()
	if err != nil {
		return err
	}
	args := make([]interface{}, 0, 1+len(tokens))
	args = append(args, expirySeconds)
	for _, t := range tokens {
		args = append(args, t)
	}
	start := time.Now()
	_, err = c.semaphoreInit.Run(ctx, rdb, []string{sentinelKey, queueKey}, args...)
	c.observe("semaphore_init", start, err)
	return wrapStoreError("semaphore_init", err)
}

// BLPop blocks (cooperatively, via the Redis protocol and ctx) until a
// permit token is available on queueKey or timeout elapses. A zero timeout
// blocks indefinitely, matching BLPOP's own semantics.
func (c *Client) BLPop(ctx context.Context, timeout time.Duration, queueKey string) (string, bool, error) {
	rdb, err := c.dial()
	if err != nil {
		return "", false, err
	}
	start := time.Now()
	res, err := rdb.BLPop(ctx, timeout, queueKey).Result()
	c.observe("blpop", start, err)
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrapStoreError("blpop", err)
	}
	// res is [key, value]
	if len(res) < 2 {
		return "", false, nil
	}
	return res[1], true, nil
}

// RunSemaphoreRelease returns token to the tail of queueKey and refreshes
// both keys' TTLs.
func (c *Client) RunSemaphoreRelease(ctx context.Context, queueKey, sentinelKey, token string, expirySeconds int64) error {
	rdb, err := c.dial()
	if err != nil {
		return err
	}
	start := time.Now()
	_, err = c.semaphoreRelease.Run(ctx, rdb, []string{queueKey, sentinelKey}, token, expirySeconds)
	c.observe("semaphore_release", start, err)
	return wrapStoreError("semaphore_release", err)
}

// RunTokenBucketSchedule runs the scheduling script and returns the slot
// (monotonic milliseconds since epoch) assigned to this caller.
func (c *Client) RunTokenBucketSchedule(ctx context.Context, schedKey string, nowMs, refillFrequencyMs, refillAmount, graceMs int64) (int64, error) {
	rdb, err := c.dial()
	if err != nil {
		return 0, err
	}
	start := time.Now()
	res, err := c.tokenBucketSched.Run(ctx, rdb, []string{schedKey}, nowMs, refillFrequencyMs, refillAmount, graceMs)
	c.observe("tokenbucket_schedule", start, err)
	if err != nil {
		return 0, wrapStoreError("tokenbucket_schedule", err)
	}
	slot, ok := toInt64(res)
	if !ok {
		return 0, &limiters.StoreError{Op: "tokenbucket_schedule", Err: errUnexpectedReply(res)}
	}
	return slot, nil
}

// Del deletes keys.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	rdb, err := c.dial()
	if err != nil {
		return err
	}
	start := time.Now()
	err = rdb.Del(ctx, keys...).Err()
	c.observe("del", start, err)
	return wrapStoreError("del", err)
}

// Close releases the pooled connection, if one was ever opened.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}

type unexpectedReplyError struct{ repr string }

func (e *unexpectedReplyError) Error() string { return "unexpected reply: " + e.repr }

func errUnexpectedReply(v interface{}) error {
	return &unexpectedReplyError{repr: fmt.Sprintf("%v", v)}
}
