package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSlack_NotifyPostsWebhookPayload(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	n := NewSlack(srv.URL, "#alerts", time.Second, zap.NewNop())
	err := n.Notify(context.Background(), "Webhook job failed", "event_id: evt-123\nretries exhausted", "critical")
	require.NoError(t, err)

	assert.Equal(t, "#alerts", captured["channel"])
	assert.NotEmpty(t, captured["blocks"])
}

func TestNoop_NotifyNeverFails(t *testing.T) {
	var n Noop
	assert.NoError(t, n.Notify(context.Background(), "title", "body", "warning"))
}
