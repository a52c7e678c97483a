package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/flowgate/flowgate/handlers"
)

// Config configures the enrichment sub-lookups, mirroring
// config.EnrichmentConfig. ContactAPIURL and ScraperURL are the base
// URLs of already-built external services; this package does no
// contact-matching or HTML scraping of its own. LogoURL is a template
// containing a single "%s" for the domain.
type Config struct {
	ContactAPIURL string
	ContactAPIKey string
	ScraperURL    string
	LogoURL       string
	Timeout       time.Duration
}

// Client implements handlers.EnrichmentClient as three independent,
// narrow HTTP calls against external services.
type Client struct {
	contactAPIURL string
	contactAPIKey string
	scraperURL    string
	logoTemplate  string
	httpClient    *http.Client
	logger        *zap.Logger
}

// New returns an enrichment client. Any lookup whose backing URL is
// unconfigured returns an error immediately rather than attempting a
// request, letting the caller's best-effort fan-out skip it silently.
func New(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	logoTemplate := cfg.LogoURL
	if logoTemplate == "" {
		logoTemplate = "https://logo.clearbit.com/%s"
	}
	return &Client{
		contactAPIURL: strings.TrimRight(cfg.ContactAPIURL, "/"),
		contactAPIKey: cfg.ContactAPIKey,
		scraperURL:    strings.TrimRight(cfg.ScraperURL, "/"),
		logoTemplate:  logoTemplate,
		httpClient:    &http.Client{Timeout: timeout},
		logger:        logger,
	}
}

var _ handlers.EnrichmentClient = (*Client)(nil)

// LookupContact calls the configured contact-enrichment API and returns
// whatever fields it reports for the email.
func (c *Client) LookupContact(ctx context.Context, email string) (map[string]any, error) {
	if c.contactAPIURL == "" {
		return nil, fmt.Errorf("enrichment: contact API not configured")
	}
	q := url.Values{"email": {email}}
	fields, err := c.getJSON(ctx, c.contactAPIURL+"?"+q.Encode(), c.contactAPIKey)
	if err != nil {
		return nil, fmt.Errorf("enrichment: lookup contact: %w", err)
	}
	return fields, nil
}

// ScrapeCompanySite delegates to the configured scraping service and
// returns whatever company fields it reports for the domain. This
// package does not parse HTML itself.
func (c *Client) ScrapeCompanySite(ctx context.Context, domain string) (map[string]any, error) {
	if c.scraperURL == "" {
		return nil, fmt.Errorf("enrichment: scraper service not configured")
	}
	q := url.Values{"domain": {domain}}
	fields, err := c.getJSON(ctx, c.scraperURL+"?"+q.Encode(), "")
	if err != nil {
		return nil, fmt.Errorf("enrichment: scrape company site: %w", err)
	}
	return fields, nil
}

// FetchLogoURL builds the logo URL for domain from the configured
// template and confirms it resolves with a HEAD request before
// returning it.
func (c *Client) FetchLogoURL(ctx context.Context, domain string) (string, error) {
	logoURL := fmt.Sprintf(c.logoTemplate, domain)

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, logoURL, nil)
	if err != nil {
		return "", fmt.Errorf("enrichment: build logo request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("enrichment: fetch logo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("enrichment: logo request for %s returned %d", domain, resp.StatusCode)
	}
	return logoURL, nil
}

func (c *Client) getJSON(ctx context.Context, reqURL, bearer string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("request returned %d", resp.StatusCode)
	}

	var fields map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&fields); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return fields, nil
}
