package redisx

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func startMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestSemaphoreInitIsIdempotent(t *testing.T) {
	s := startMiniredis(t)
	c := New("redis://" + s.Addr())
	ctx := context.Background()

	err := c.RunSemaphoreInit(ctx, "sentinel", "queue", 0, []string{"a", "b", "c"})
	require.NoError(t, err)

	vals, err := s.List("queue")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, vals)

	// Second call must be a no-op: the queue is not re-populated.
	err = c.RunSemaphoreInit(ctx, "sentinel", "queue", 0, []string{"x", "y", "z"})
	require.NoError(t, err)

	vals, err = s.List("queue")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, vals)
}

func TestBLPopAndRelease(t *testing.T) {
	s := startMiniredis(t)
	c := New("redis://" + s.Addr())
	ctx := context.Background()

	require.NoError(t, c.RunSemaphoreInit(ctx, "sentinel", "queue", 0, []string{"token-1"}))

	token, ok, err := c.BLPop(ctx, time.Second, "queue")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "token-1", token)

	require.NoError(t, c.RunSemaphoreRelease(ctx, "queue", "sentinel", token, 0))

	vals, err := s.List("queue")
	require.NoError(t, err)
	require.Equal(t, []string{"token-1"}, vals)
}

func TestTokenBucketScheduleIsMonotonic(t *testing.T) {
	s := startMiniredis(t)
	c := New("redis://" + s.Addr())
	ctx := context.Background()

	slot1, err := c.RunTokenBucketSchedule(ctx, "sched", 1000, 100, 1, 1000)
	require.NoError(t, err)
	require.Equal(t, int64(1000), slot1)

	slot2, err := c.RunTokenBucketSchedule(ctx, "sched", 1000, 100, 1, 1000)
	require.NoError(t, err)
	require.Equal(t, int64(1100), slot2)

	// A now_ms far in the future still clamps against real time, not the
	// prior schedule.
	slot3, err := c.RunTokenBucketSchedule(ctx, "sched", 5000, 100, 1, 1000)
	require.NoError(t, err)
	require.Equal(t, int64(5000), slot3)
}

func TestScriptCacheSurvivesFlush(t *testing.T) {
	s := startMiniredis(t)
	c := New("redis://" + s.Addr())
	ctx := context.Background()

	require.NoError(t, c.RunSemaphoreInit(ctx, "sentinel", "queue", 0, []string{"token-1"}))
	require.NotEmpty(t, c.semaphoreInit.sha)

	c.semaphoreInit.flush()
	require.Empty(t, c.semaphoreInit.sha)

	// Falls back through SCRIPT LOAD + EVALSHA again; must still succeed.
	require.NoError(t, c.RunSemaphoreInit(ctx, "sentinel", "queue", 0, []string{"token-1"}))
}

func TestBadURLFailsOnFirstUseNotConstruction(t *testing.T) {
	c := New("not-a-valid-redis-url")
	ctx := context.Background()

	_, _, err := c.BLPop(ctx, time.Millisecond, "queue")
	require.Error(t, err)
}
