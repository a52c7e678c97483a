package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flowgate/flowgate/kv"
	"github.com/flowgate/flowgate/types"
)

func setupTestQueue(t *testing.T) (*miniredis.Miniredis, *Queue) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := kv.NewStoreFromClient(client, zap.NewNop())
	policy := types.RetryPolicy{MaxRetries: 3, RetryIntervals: []time.Duration{
		60 * time.Second, 120 * time.Second, 240 * time.Second,
	}}
	q := New(store, policy)

	t.Cleanup(func() {
		store.Close()
		mr.Close()
	})
	return mr, q
}

func TestQueue_EnqueueIsNoOpForExistingNonTerminalJob(t *testing.T) {
	_, q := setupTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "event-1", "calendar:booked:evt-1"))
	require.NoError(t, q.Enqueue(ctx, "event-2", "calendar:booked:evt-1"))

	depth, err := q.Depths(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth.Ready, "second enqueue with the same fingerprint must be a no-op")
}

func TestQueue_ReserveAndAck(t *testing.T) {
	_, q := setupTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "event-1", "calendar:booked:evt-1"))

	job, err := q.Reserve(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "calendar:booked:evt-1", job.JobID)

	require.NoError(t, q.Ack(ctx, job))

	depth, err := q.Depths(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), depth.Processing)

	// the fingerprint is free again after ack.
	require.NoError(t, q.Enqueue(ctx, "event-2", "calendar:booked:evt-1"))
	depth, err = q.Depths(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth.Ready)
}

func TestQueue_RetryReschedulesWithinMaxRetries(t *testing.T) {
	_, q := setupTestQueue(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, q.Enqueue(ctx, "event-1", "calendar:booked:evt-1"))
	job, err := q.Reserve(ctx, time.Second)
	require.NoError(t, err)

	require.NoError(t, q.Retry(ctx, job, 1, now))

	depth, err := q.Depths(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth.Delayed)
	assert.Equal(t, int64(0), depth.Failed)

	promoted, err := q.PromoteDue(ctx, now.Add(61*time.Second), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, promoted)

	depth, err = q.Depths(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth.Ready)
}

func TestQueue_RetryBeyondMaxGoesToFailureSink(t *testing.T) {
	_, q := setupTestQueue(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, q.Enqueue(ctx, "event-1", "calendar:booked:evt-1"))
	job, err := q.Reserve(ctx, time.Second)
	require.NoError(t, err)

	require.NoError(t, q.Retry(ctx, job, 4, now))

	depth, err := q.Depths(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth.Failed)
	assert.Equal(t, int64(0), depth.Delayed)
}

func TestQueue_FailClearsInflightTracking(t *testing.T) {
	_, q := setupTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "event-1", "calendar:booked:evt-1"))
	job, err := q.Reserve(ctx, time.Second)
	require.NoError(t, err)

	require.NoError(t, q.Fail(ctx, job))

	require.NoError(t, q.Enqueue(ctx, "event-2", "calendar:booked:evt-1"))
	depth, err := q.Depths(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth.Ready)
}
