package tokenbucket_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"go-limiters/internal/redisx"
	"go-limiters/limiters"
	"go-limiters/tokenbucket"
)

func newTestClient(t *testing.T) *redisx.Client {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return redisx.New("redis://" + s.Addr())
}

func TestConstructorRejectsInvalidOptions(t *testing.T) {
	client := newTestClient(t)

	_, err := tokenbucket.New(client, "")
	require.Error(t, err)
	var ve *limiters.ValidationError
	require.ErrorAs(t, err, &ve)

	_, err = tokenbucket.New(client, "x", tokenbucket.WithCapacity(0))
	require.Error(t, err)
	require.ErrorAs(t, err, &ve)

	_, err = tokenbucket.New(client, "x", tokenbucket.WithCapacity(1), tokenbucket.WithRefillFrequency(0))
	require.Error(t, err)
	require.ErrorAs(t, err, &ve)

	_, err = tokenbucket.New(client, "x", tokenbucket.WithCapacity(1), tokenbucket.WithRefillAmount(0))
	require.Error(t, err)
	require.ErrorAs(t, err, &ve)
}

func TestConstructorAcceptsValidOptions(t *testing.T) {
	client := newTestClient(t)
	tb, err := tokenbucket.New(client, "x", tokenbucket.WithCapacity(1), tokenbucket.WithRefillFrequency(time.Second), tokenbucket.WithRefillAmount(1))
	require.NoError(t, err)
	require.Equal(t, time.Second, tb.RefillFrequency())
	require.Equal(t, int64(1), tb.RefillAmount())
	require.Equal(t, "Token bucket instance for queue __self-limiters:x", tb.String())
}

func TestTokenBucketPacesCallers(t *testing.T) {
	client := newTestClient(t)
	tb, err := tokenbucket.New(client, "pace",
		tokenbucket.WithCapacity(1),
		tokenbucket.WithRefillFrequency(50*time.Millisecond),
		tokenbucket.WithRefillAmount(1),
	)
	require.NoError(t, err)

	ctx := context.Background()
	start := time.Now()
	const n = 5
	for i := 0; i < n; i++ {
		g, err := tb.Acquire(ctx)
		require.NoError(t, err)
		require.NoError(t, g.Release(ctx))
	}
	elapsed := time.Since(start)

	// n callers spaced 50ms apart take at least (n-1)*50ms.
	require.GreaterOrEqual(t, elapsed, 4*50*time.Millisecond)
	require.Less(t, elapsed, 2*time.Second)
}

func TestMaxSleepExceeded(t *testing.T) {
	client := newTestClient(t)
	tb, err := tokenbucket.New(client, "max-sleep",
		tokenbucket.WithCapacity(1),
		tokenbucket.WithRefillFrequency(2*time.Second),
		tokenbucket.WithRefillAmount(1),
		tokenbucket.WithMaxSleep(time.Second),
	)
	require.NoError(t, err)

	ctx := context.Background()
	// First caller fires immediately (sched starts at now).
	_, err = tb.Acquire(ctx)
	require.NoError(t, err)

	// Second caller is scheduled ~2s out, beyond max_sleep.
	_, err = tb.Acquire(ctx)
	require.Error(t, err)
	var mse *limiters.MaxSleepExceededError
	require.ErrorAs(t, err, &mse)
}

func TestScheduleMonotoneAcrossCalls(t *testing.T) {
	client := newTestClient(t)
	tb, err := tokenbucket.New(client, "monotone",
		tokenbucket.WithCapacity(1),
		tokenbucket.WithRefillFrequency(10*time.Millisecond),
		tokenbucket.WithRefillAmount(1),
	)
	require.NoError(t, err)

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 3; i++ {
		g, err := tb.Acquire(ctx)
		require.NoError(t, err)
		require.NoError(t, g.Release(ctx))
	}

	// Each call is scheduled one 10ms step after the previous one, so the
	// third fires about 20ms after the first (less up to 1ms lost to
	// millisecond truncation of the client clock).
	require.GreaterOrEqual(t, time.Since(start), 19*time.Millisecond)
}

func TestAcquireCancelledDuringSleep(t *testing.T) {
	client := newTestClient(t)
	tb, err := tokenbucket.New(client, "cancelled",
		tokenbucket.WithCapacity(1),
		tokenbucket.WithRefillFrequency(500*time.Millisecond),
		tokenbucket.WithRefillAmount(1),
	)
	require.NoError(t, err)

	ctx := context.Background()
	// First caller fires immediately and leaves the second caller scheduled
	// ~500ms out, comfortably longer than the cancellation below.
	_, err = tb.Acquire(ctx)
	require.NoError(t, err)

	waitCtx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err = tb.Acquire(waitCtx)
	require.Error(t, err)
	var ce *limiters.CancelledError
	require.ErrorAs(t, err, &ce)
}

func TestReleaseIsANoOp(t *testing.T) {
	g := &tokenbucket.Guard{}
	require.NoError(t, g.Release(context.Background()))
	require.NoError(t, g.Release(context.Background()))
}
