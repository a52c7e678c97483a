package kv

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestStore(t *testing.T) (*miniredis.Miniredis, *Store) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewStoreFromClient(client, zap.NewNop())

	t.Cleanup(func() {
		store.Close()
		mr.Close()
	})
	return mr, store
}

func TestStore_SetAndGet(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "v", time.Minute))

	val, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)
}

func TestStore_GetMissingReturnsNotFound(t *testing.T) {
	_, store := setupTestStore(t)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SetNXOnlyFirstCallerWins(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()

	first, err := store.SetNX(ctx, "fingerprint", "event-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := store.SetNX(ctx, "fingerprint", "event-2", time.Hour)
	require.NoError(t, err)
	assert.False(t, second)

	val, err := store.Get(ctx, "fingerprint")
	require.NoError(t, err)
	assert.Equal(t, "event-1", val)
}

func TestStore_HashRoundTrip(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.HSet(ctx, "event:1", map[string]any{
		"status":   "queued",
		"attempts": 0,
	}))

	all, err := store.HGetAll(ctx, "event:1")
	require.NoError(t, err)
	assert.Equal(t, "queued", all["status"])
}

func TestQueueOps_ReserveAndAck(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()
	q := store.Queue()

	require.NoError(t, q.Push(ctx, "ready", "job-1"))

	got, err := q.Reserve(ctx, "ready", "processing", 100*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "job-1", got)

	n, err := q.Len(ctx, "processing")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, q.Remove(ctx, "processing", "job-1", 1))

	n, err = q.Len(ctx, "processing")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestQueueOps_NonTerminalSetTracksMembership(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()
	q := store.Queue()

	added, err := q.SAdd(ctx, "inflight", "job-1")
	require.NoError(t, err)
	assert.True(t, added)

	again, err := q.SAdd(ctx, "inflight", "job-1")
	require.NoError(t, err)
	assert.False(t, again)

	present, err := q.SIsMember(ctx, "inflight", "job-1")
	require.NoError(t, err)
	assert.True(t, present)

	require.NoError(t, q.SRem(ctx, "inflight", "job-1"))
	present, err = q.SIsMember(ctx, "inflight", "job-1")
	require.NoError(t, err)
	assert.False(t, present)
}
