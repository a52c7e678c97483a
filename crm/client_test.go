package crm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
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

func setupTestStore(t *testing.T) *kv.Store {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := kv.NewStoreFromClient(client, zap.NewNop())
	t.Cleanup(func() {
		store.Close()
		mr.Close()
	})
	return store
}

func tokenHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-1", "expires_in": 3600})
}

func TestClient_UpsertLeadSucceedsAfterTokenFetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", tokenHandler)
	mux.HandleFunc("/leads/by-email/alice@example.com", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(leadDTO{ID: "lead-1", Email: "alice@example.com"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := setupTestStore(t)
	c := New(store, Config{BaseURL: srv.URL, RetryInitialDelay: time.Millisecond}, zap.NewNop())

	lead, err := c.UpsertLeadByEmail(context.Background(), "alice@example.com", map[string]any{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, "lead-1", lead.ID)
}

func TestClient_DryRunSkipsWrite(t *testing.T) {
	var called atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", tokenHandler)
	mux.HandleFunc("/leads/by-email/alice@example.com", func(w http.ResponseWriter, r *http.Request) {
		called.Store(true)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := setupTestStore(t)
	c := New(store, Config{BaseURL: srv.URL, DryRun: true, RetryInitialDelay: time.Millisecond}, zap.NewNop())

	lead, err := c.UpsertLeadByEmail(context.Background(), "alice@example.com", map[string]any{"x": 1})
	require.NoError(t, err)
	assert.True(t, lead.ID != "")
	assert.False(t, called.Load())
}

func TestClient_TransientThenSuccessRetries(t *testing.T) {
	var attempts atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", tokenHandler)
	mux.HandleFunc("/leads/by-email/alice@example.com", func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(leadDTO{ID: "lead-2", Email: "alice@example.com"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := setupTestStore(t)
	c := New(store, Config{BaseURL: srv.URL, RetryInitialDelay: time.Millisecond}, zap.NewNop())

	lead, err := c.UpsertLeadByEmail(context.Background(), "alice@example.com", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "lead-2", lead.ID)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestClient_PermanentErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", tokenHandler)
	mux.HandleFunc("/leads/by-email/alice@example.com", func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := setupTestStore(t)
	c := New(store, Config{BaseURL: srv.URL, RetryInitialDelay: time.Millisecond}, zap.NewNop())

	_, err := c.UpsertLeadByEmail(context.Background(), "alice@example.com", map[string]any{})
	require.Error(t, err)
	var typed *types.Error
	require.ErrorAs(t, err, &typed)
	assert.False(t, typed.Retryable)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestClient_Unauthorized401RetriesOnceWithFreshToken(t *testing.T) {
	var tokenCalls, apiCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		n := tokenCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-" + strconv.Itoa(int(n)), "expires_in": 3600})
	})
	mux.HandleFunc("/leads/by-email/alice@example.com", func(w http.ResponseWriter, r *http.Request) {
		if apiCalls.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(leadDTO{ID: "lead-3", Email: "alice@example.com"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := setupTestStore(t)
	c := New(store, Config{BaseURL: srv.URL, RetryInitialDelay: time.Millisecond}, zap.NewNop())

	lead, err := c.UpsertLeadByEmail(context.Background(), "alice@example.com", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "lead-3", lead.ID)
	assert.Equal(t, int32(2), tokenCalls.Load())
}
