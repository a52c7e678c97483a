package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/flowgate/flowgate/kv"
)

const tokenCacheKey = "crm:access_token"

type cachedToken struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// tokenCache holds the OAuth access token both in process memory and in
// the K/V store, per spec.md §4.9: "shared by all handlers; refreshed
// lazily on expiry or on 401." The in-memory copy is a fast path guarded
// by a mutex; the K/V copy is the source of truth across processes.
type tokenCache struct {
	mu    sync.Mutex
	inmem *cachedToken

	store      *kv.Store
	httpClient *http.Client
	tokenURL   string
	clientID   string
	clientSecr string
	refreshTok string
	logger     *zap.Logger
}

func newTokenCache(store *kv.Store, httpClient *http.Client, tokenURL, clientID, clientSecret, refreshToken string, logger *zap.Logger) *tokenCache {
	return &tokenCache{
		store:      store,
		httpClient: httpClient,
		tokenURL:   tokenURL,
		clientID:   clientID,
		clientSecr: clientSecret,
		refreshTok: refreshToken,
		logger:     logger,
	}
}

// Get returns a usable access token, refreshing if the cached copy is
// expired or absent.
func (c *tokenCache) Get(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inmem != nil && time.Now().Before(c.inmem.ExpiresAt) {
		return c.inmem.AccessToken, nil
	}

	if tok, ok := c.loadFromStore(ctx); ok {
		c.inmem = tok
		return tok.AccessToken, nil
	}

	return c.refreshLocked(ctx)
}

// Invalidate drops the cached token, forcing the next Get to refresh.
// Called once on a 401 response (spec.md §4.9).
func (c *tokenCache) Invalidate(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inmem = nil
	if err := c.store.Del(ctx, tokenCacheKey); err != nil {
		c.logger.Warn("invalidate cached token failed", zap.Error(err))
	}
}

func (c *tokenCache) loadFromStore(ctx context.Context) (*cachedToken, bool) {
	raw, err := c.store.Get(ctx, tokenCacheKey)
	if err != nil {
		return nil, false
	}
	var tok cachedToken
	if err := json.Unmarshal([]byte(raw), &tok); err != nil {
		return nil, false
	}
	if time.Now().After(tok.ExpiresAt) {
		return nil, false
	}
	return &tok, true
}

// refreshLocked performs the OAuth refresh-token grant and caches the
// result with TTL = expires_in - 30s (spec.md §4.9). Caller holds c.mu.
func (c *tokenCache) refreshLocked(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecr)
	form.Set("refresh_token", c.refreshTok)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("crm: build token refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &transientRefreshErr{cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return "", &transientRefreshErr{cause: fmt.Errorf("token refresh http %d", resp.StatusCode)}
		}
		return "", fmt.Errorf("crm: token refresh failed with http %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("crm: decode token response: %w", err)
	}

	ttl := time.Duration(body.ExpiresIn)*time.Second - 30*time.Second
	if ttl <= 0 {
		ttl = time.Second
	}
	expiresAt := time.Now().Add(ttl)
	tok := &cachedToken{AccessToken: body.AccessToken, ExpiresAt: expiresAt}

	data, err := json.Marshal(tok)
	if err != nil {
		return "", fmt.Errorf("crm: marshal cached token: %w", err)
	}
	if err := c.store.Set(ctx, tokenCacheKey, string(data), ttl); err != nil {
		c.logger.Warn("cache token in kv store failed", zap.Error(err))
	}

	c.inmem = tok
	return tok.AccessToken, nil
}

// transientRefreshErr marks a token-refresh failure as transient per
// spec.md §4.9: "CRM token-refresh transient failures" are always
// retryable network/429/5xx cases.
type transientRefreshErr struct {
	cause error
}

func (e *transientRefreshErr) Error() string {
	return "crm: transient token refresh failure: " + e.cause.Error()
}

func (e *transientRefreshErr) Unwrap() error { return e.cause }

func datacenterBaseURL(datacenter string) string {
	return fmt.Sprintf("https://api.%s.crm.example.com", datacenter)
}
