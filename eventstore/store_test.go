package eventstore

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

func setupTestStore(t *testing.T) (*miniredis.Miniredis, *Store) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	kvStore := kv.NewStoreFromClient(client, zap.NewNop())
	store := New(kvStore, 30*24*time.Hour)

	t.Cleanup(func() {
		kvStore.Close()
		mr.Close()
	})
	return mr, store
}

func TestStore_StoreAndLoad(t *testing.T) {
	mr, store := setupTestStore(t)
	ctx := context.Background()

	ev, err := store.StoreEvent(ctx, types.SourceCalendar, "booked", "evt-123", []byte(`{"a":1}`), "calendar:booked:evt-123")
	require.NoError(t, err)
	assert.Equal(t, types.StatusQueued, ev.Status)
	assert.Equal(t, 0, ev.Attempts)

	loaded, err := store.Load(ctx, ev.EventID)
	require.NoError(t, err)
	assert.Equal(t, ev.EventID, loaded.EventID)
	assert.Equal(t, ev.IdempotencyKey, loaded.IdempotencyKey)
	assert.Equal(t, []byte(`{"a":1}`), loaded.Payload)

	ttl := mr.TTL("event:" + ev.EventID)
	assert.InDelta(t, (30 * 24 * time.Hour).Seconds(), ttl.Seconds(), 5)
}

func TestStore_LoadMissingReturnsNotFound(t *testing.T) {
	_, store := setupTestStore(t)

	_, err := store.Load(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SetStatusPreservesOtherFields(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()

	ev, err := store.StoreEvent(ctx, types.SourceCalendar, "booked", "evt-1", []byte("body"), "calendar:booked:evt-1")
	require.NoError(t, err)

	require.NoError(t, store.SetStatus(ctx, ev.EventID, types.StatusProcessing, 1, ""))

	loaded, err := store.Load(ctx, ev.EventID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusProcessing, loaded.Status)
	assert.Equal(t, 1, loaded.Attempts)
	assert.Equal(t, ev.ExternalID, loaded.ExternalID)
	assert.Equal(t, []byte("body"), loaded.Payload)

	require.NoError(t, store.SetStatus(ctx, ev.EventID, types.StatusFailed, 4, "llm_schema_invalid"))
	loaded, err = store.Load(ctx, ev.EventID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, loaded.Status)
	assert.Equal(t, "llm_schema_invalid", loaded.LastError)
}

func TestStore_DeleteRemovesEvent(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()

	ev, err := store.StoreEvent(ctx, types.SourceCalendar, "booked", "evt-1", nil, "calendar:booked:evt-1")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, ev.EventID))

	_, err = store.Load(ctx, ev.EventID)
	assert.ErrorIs(t, err, ErrNotFound)
}
