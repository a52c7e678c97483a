package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/flowgate/flowgate/internal/pool"
	"github.com/flowgate/flowgate/types"
)

type enrichPayload struct {
	EventType  string `json:"event_type"`
	ExternalID string `json:"external_id"`
	Email      string `json:"email"`
	LeadID     string `json:"lead_id"`
}

func domainFromEmail(email string) string {
	at := -1
	for i, r := range email {
		if r == '@' {
			at = i
		}
	}
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return email[at+1:]
}

type websiteAnalysis struct {
	Industry    string `json:"industry"`
	Description string `json:"description"`
}

var websiteAnalysisSchema = struct {
	Industry    string `json:"industry"`
	Description string `json:"description"`
}{}

// HandleManualEnrichRequest runs the four best-effort enrichment
// sub-steps (contact lookup, company-site scrape, LLM website analysis,
// logo fetch) through a worker pool, each one awaited before the next is
// submitted, so they run one at a time; it merges whatever comes back. A
// sub-step failing does not fail the whole request: the lead is
// upserted with the partial fields that did succeed. Only when every
// sub-step errors does the request fail, and it fails permanently —
// a sub-step that succeeds with nothing to report (e.g. no logo found)
// is not a failure (spec.md §4.11 manual_enrich, best-effort fan-out).
func HandleManualEnrichRequest(ctx context.Context, ev *types.Event, clients *Clients) types.Outcome {
	var payload enrichPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		return types.PermanentError(types.Permanent(types.ErrInvalidRequest, "", "invalid enrich payload", err))
	}
	if payload.Email == "" {
		return types.PermanentError(types.Permanent(types.ErrMissingField, "", "no usable email", nil))
	}

	fields := make(map[string]any)
	var mu sync.Mutex
	steps := 0
	errored := 0

	record := func(err error, merge func()) {
		mu.Lock()
		defer mu.Unlock()
		steps++
		if err != nil {
			errored++
			return
		}
		merge()
	}

	fanout := pool.NewGoroutinePool(pool.GoroutinePoolConfig{MaxWorkers: 4, QueueSize: 4})
	defer fanout.Close()

	_ = fanout.SubmitWait(ctx, func(ctx context.Context) error {
		contact, err := clients.Enrichment.LookupContact(ctx, payload.Email)
		record(err, func() {
			for k, v := range contact {
				fields[k] = v
			}
		})
		return nil
	})

	domain := domainFromEmail(payload.Email)
	if domain != "" {
		_ = fanout.SubmitWait(ctx, func(ctx context.Context) error {
			company, err := clients.Enrichment.ScrapeCompanySite(ctx, domain)
			record(err, func() {
				for k, v := range company {
					fields[k] = v
				}
			})
			return nil
		})

		_ = fanout.SubmitWait(ctx, func(ctx context.Context) error {
			logoURL, err := clients.Enrichment.FetchLogoURL(ctx, domain)
			record(err, func() {
				if logoURL != "" {
					fields["logo_url"] = logoURL
				}
			})
			return nil
		})

		if clients.LLM != nil {
			_ = fanout.SubmitWait(ctx, func(ctx context.Context) error {
				var analysis websiteAnalysis
				raw, err := clients.LLM.Extract(ctx,
					"Analyze this company's website domain and summarize its industry and what it does.",
					domain,
					websiteAnalysisSchema,
				)
				if err == nil {
					err = json.Unmarshal(raw, &analysis)
				}
				record(err, func() {
					if analysis.Industry != "" {
						fields["industry"] = analysis.Industry
					}
					if analysis.Description != "" {
						fields["website_analysis"] = analysis.Description
					}
				})
				return nil
			})
		}
	}

	mu.Lock()
	allFailed := steps > 0 && errored == steps
	mu.Unlock()
	if allFailed {
		return types.PermanentError(types.Permanent(types.ErrServiceUnavailable, "", "all enrichment sub-steps failed", nil))
	}

	if _, err := clients.CRM.UpsertLeadByEmail(ctx, payload.Email, fields); err != nil {
		return classifyDependencyErr(err)
	}
	return types.Success()
}
