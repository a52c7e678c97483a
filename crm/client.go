package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/flowgate/flowgate/circuitbreaker"
	"github.com/flowgate/flowgate/handlers"
	"github.com/flowgate/flowgate/kv"
	"github.com/flowgate/flowgate/retry"
	"github.com/flowgate/flowgate/types"
)

// errRetryable is the sentinel retry.Policy.RetryableErrors matches
// against, so the in-process retryer only re-attempts calls the §7
// taxonomy classifies as transient and returns permanent errors
// immediately.
var errRetryable = errors.New("crm: retryable")

// Config configures the CRM client, mirroring config.CRMConfig. BaseURL
// overrides the datacenter-derived API base, used by tests to point at a
// local httptest server.
type Config struct {
	Datacenter   string
	BaseURL      string
	ClientID     string
	ClientSecret string
	RefreshToken string
	TokenURL     string
	BookedStatus string
	Timeout      time.Duration
	RateLimitRPS float64
	DryRun       bool

	// RetryInitialDelay overrides the in-process retryer's starting
	// backoff; zero uses retry.DefaultPolicy's 1s. Tests shrink this to
	// keep table-driven 429/timeout cases fast.
	RetryInitialDelay time.Duration
}

// Client is the outbound CRM client of spec.md §4.9.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *tokenCache
	limiter    *rate.Limiter
	breaker    circuitbreaker.CircuitBreaker
	retryer    retry.Retryer
	dryRun     bool
	logger     *zap.Logger
}

// New returns a CRM client satisfying handlers.CRMClient.
func New(store *kv.Store, cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = 5
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = datacenterBaseURL(cfg.Datacenter)
	}

	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = baseURL + "/oauth/token"
	}

	policy := retry.DefaultPolicy()
	policy.RetryableErrors = []error{errRetryable}
	if cfg.RetryInitialDelay > 0 {
		policy.InitialDelay = cfg.RetryInitialDelay
		policy.MaxDelay = cfg.RetryInitialDelay * 5
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		tokens:     newTokenCache(store, httpClient, tokenURL, cfg.ClientID, cfg.ClientSecret, cfg.RefreshToken, logger),
		limiter:    rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		breaker:    circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig(), logger),
		retryer:    retry.NewBackoffRetryer(policy, logger),
		dryRun:     cfg.DryRun,
		logger:     logger,
	}
}

var _ handlers.CRMClient = (*Client)(nil)

// BreakerState exposes the outbound circuit breaker's current state for
// the metrics poller (internal/metrics.Collector.SetCircuitBreakerState).
func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}

type leadDTO struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (c *Client) toLeadRef(d leadDTO) *handlers.LeadRef {
	return &handlers.LeadRef{ID: d.ID, Email: d.Email}
}

// FindLeadByEmail looks up a lead; a 404 is reported as !found, not an
// error.
func (c *Client) FindLeadByEmail(ctx context.Context, email string) (*handlers.LeadRef, bool, error) {
	var out leadDTO
	status, err := c.do(ctx, http.MethodGet, "/leads/by-email/"+email, nil, &out)
	if err != nil {
		return nil, false, err
	}
	if status == http.StatusNotFound {
		return nil, false, nil
	}
	return c.toLeadRef(out), true, nil
}

// UpsertLeadByEmail creates or updates a lead by email, merging fields.
func (c *Client) UpsertLeadByEmail(ctx context.Context, email string, fields map[string]any) (*handlers.LeadRef, error) {
	if c.dryRun {
		c.logger.Info("dry_run: upsert_lead_by_email skipped",
			zap.String("email", email), zap.Any("fields", fields))
		return &handlers.LeadRef{ID: "dry-run", Email: email}, nil
	}

	body := map[string]any{"email": email, "fields": fields}
	var out leadDTO
	if _, err := c.do(ctx, http.MethodPut, "/leads/by-email/"+email, body, &out); err != nil {
		return nil, err
	}
	return c.toLeadRef(out), nil
}

// CreateNote attaches a note to a lead.
func (c *Client) CreateNote(ctx context.Context, leadID, title, body string) error {
	if c.dryRun {
		c.logger.Info("dry_run: create_note skipped",
			zap.String("lead_id", leadID), zap.String("title", title))
		return nil
	}
	payload := map[string]any{"title": title, "body": body}
	_, err := c.do(ctx, http.MethodPost, "/leads/"+leadID+"/notes", payload, nil)
	return err
}

// CreateTask attaches a task to a lead.
func (c *Client) CreateTask(ctx context.Context, leadID, subject string, due time.Time, priority, body string) error {
	if c.dryRun {
		c.logger.Info("dry_run: create_task skipped",
			zap.String("lead_id", leadID), zap.String("subject", subject), zap.String("priority", priority))
		return nil
	}
	payload := map[string]any{
		"subject":  subject,
		"due":      due.Format(time.RFC3339),
		"priority": priority,
		"body":     body,
	}
	_, err := c.do(ctx, http.MethodPost, "/leads/"+leadID+"/tasks", payload, nil)
	return err
}

// do issues one authenticated request through the rate limiter and
// circuit breaker, retrying transient faults, and handling the single
// token-invalidate-and-retry on 401 (spec.md §4.9).
func (c *Client) do(ctx context.Context, method, path string, body any, out any) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("crm: rate limiter: %w", err)
	}

	status, retried := 0, false
	var finalErr *types.Error
	result, err := c.breaker.CallWithResult(ctx, func() (any, error) {
		return nil, c.retryer.Do(ctx, func() error {
			s, rerr := c.attempt(ctx, method, path, body, out, &retried)
			status = s
			if rerr == nil {
				finalErr = nil
				return nil
			}
			var typed *types.Error
			if errors.As(rerr, &typed) {
				finalErr = typed
				if typed.Retryable {
					return fmt.Errorf("%w: %w", typed, errRetryable)
				}
				return typed
			}
			finalErr = types.Transient(types.ErrUpstreamTimeout, "crm", rerr.Error(), rerr)
			return fmt.Errorf("%w: %w", finalErr, errRetryable)
		})
	})
	_ = result
	if err != nil && finalErr != nil {
		return status, finalErr
	}
	return status, err
}

func (c *Client) attempt(ctx context.Context, method, path string, body any, out any, retriedOnce *bool) (int, error) {
	token, err := c.tokens.Get(ctx)
	if err != nil {
		if _, ok := err.(*transientRefreshErr); ok {
			return 0, types.Transient(types.ErrUpstreamTimeout, "crm", "token refresh failed", err)
		}
		return 0, types.Permanent(types.ErrConfigError, "crm", "token refresh failed", err)
	}

	var reader io.Reader
	if body != nil {
		data, merr := json.Marshal(body)
		if merr != nil {
			return 0, types.Permanent(types.ErrInvalidRequest, "crm", "marshal request body", merr)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, types.Permanent(types.ErrInvalidRequest, "crm", "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, types.Transient(types.ErrUpstreamTimeout, "crm", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized && !*retriedOnce {
		*retriedOnce = true
		c.tokens.Invalidate(ctx)
		return c.attempt(ctx, method, path, body, out, retriedOnce)
	}

	if resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusNotFound {
			return resp.StatusCode, nil
		}
		return resp.StatusCode, types.ClassifyHTTPStatus("crm", resp.StatusCode, fmt.Sprintf("crm request failed with %d", resp.StatusCode), nil)
	}

	if out != nil {
		if derr := json.NewDecoder(resp.Body).Decode(out); derr != nil {
			return resp.StatusCode, types.Permanent(types.ErrSchemaInvalid, "crm", "decode response", derr)
		}
	}
	return resp.StatusCode, nil
}
