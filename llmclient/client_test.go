package llmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flowgate/flowgate/types"
)

type summarySchema struct {
	Summary string `json:"summary"`
}

func chatReply(content string) map[string]any {
	return map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	}
}

func TestExtract_ValidOnFirstCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatReply(`{"summary":"a good call"}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Model: "gpt-4o-mini"}, zap.NewNop())
	raw, err := c.Extract(context.Background(), "summarize", "transcript text", summarySchema{})
	require.NoError(t, err)

	var out summarySchema
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "a good call", out.Summary)
}

func TestExtract_StripsFencedCodeBlock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatReply("```json\n{\"summary\":\"fenced\"}\n```"))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Model: "gpt-4o-mini"}, zap.NewNop())
	raw, err := c.Extract(context.Background(), "summarize", "transcript text", summarySchema{})
	require.NoError(t, err)

	var out summarySchema
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "fenced", out.Summary)
}

func TestExtract_RepairsOnceThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			_ = json.NewEncoder(w).Encode(chatReply("not json at all"))
			return
		}
		_ = json.NewEncoder(w).Encode(chatReply(`{"summary":"repaired"}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Model: "gpt-4o-mini"}, zap.NewNop())
	raw, err := c.Extract(context.Background(), "summarize", "transcript text", summarySchema{})
	require.NoError(t, err)

	var out summarySchema
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "repaired", out.Summary)
	assert.Equal(t, int32(2), calls.Load())
}

func TestExtract_StillInvalidAfterRepairIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatReply("still not json"))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Model: "gpt-4o-mini"}, zap.NewNop())
	_, err := c.Extract(context.Background(), "summarize", "transcript text", summarySchema{})
	require.Error(t, err)

	var typed *types.Error
	require.ErrorAs(t, err, &typed)
	assert.False(t, typed.Retryable)
	assert.Equal(t, types.ErrSchemaInvalid, typed.Code)
}

func TestExtract_TransportErrorIsTransientNotRepaired(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Model: "gpt-4o-mini"}, zap.NewNop())
	_, err := c.Extract(context.Background(), "summarize", "transcript text", summarySchema{})
	require.Error(t, err)

	var typed *types.Error
	require.ErrorAs(t, err, &typed)
	assert.True(t, typed.Retryable)
	assert.Equal(t, int32(1), calls.Load())
}
