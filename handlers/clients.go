package handlers

import (
	"context"
	"encoding/json"
	"time"
)

// LeadRef identifies a CRM lead returned by FindLeadByEmail/UpsertLeadByEmail.
type LeadRef struct {
	ID    string
	Email string
}

// CRMClient is the subset of the Outbound CRM Client (spec.md §4.9) a
// Handler may call. Handlers depend on this interface, not the concrete
// client, so they stay pure functions testable with a fake.
type CRMClient interface {
	FindLeadByEmail(ctx context.Context, email string) (*LeadRef, bool, error)
	UpsertLeadByEmail(ctx context.Context, email string, fields map[string]any) (*LeadRef, error)
	CreateNote(ctx context.Context, leadID, title, body string) error
	CreateTask(ctx context.Context, leadID, subject string, due time.Time, priority, body string) error
}

// LLMClient is the Outbound LLM Client operation a Handler may call
// (spec.md §4.10).
type LLMClient interface {
	Extract(ctx context.Context, systemPrompt, userPrompt string, schema any) (json.RawMessage, error)
}

// EnrichmentClient bundles the manual-enrich handler's best-effort
// sub-lookups (spec.md §4.11 manual_enrich.enrich_request).
type EnrichmentClient interface {
	LookupContact(ctx context.Context, email string) (map[string]any, error)
	ScrapeCompanySite(ctx context.Context, domain string) (map[string]any, error)
	FetchLogoURL(ctx context.Context, domain string) (string, error)
}

// NotifierClient is the Notifier operation a Handler may call to raise a
// best-effort opportunity alert (spec.md §4.12). It never returns an
// error the caller needs to act on.
type NotifierClient interface {
	Notify(ctx context.Context, title, body, severity string) error
}

// Clients bundles every outbound dependency a Handler may use, plus the
// static configuration the pure ranking/signal functions need.
type Clients struct {
	CRM        CRMClient
	LLM        LLMClient
	Enrichment EnrichmentClient
	Notifier   NotifierClient

	CustomerDomains []string
}
