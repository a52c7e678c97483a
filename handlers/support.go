package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/flowgate/flowgate/types"
)

type supportTagPayload struct {
	Topic      string `json:"topic"`
	ExternalID string `json:"external_id"`
	Email      string `json:"email"`
	Tag        string `json:"tag"`
}

// HandleSupportTagAdded tags the CRM lead matching the ticket requester
// (spec.md §4.11 support_tag.tag_added).
func HandleSupportTagAdded(ctx context.Context, ev *types.Event, clients *Clients) types.Outcome {
	var payload supportTagPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		return types.PermanentError(types.Permanent(types.ErrInvalidRequest, "", "invalid support tag payload", err))
	}
	if payload.Email == "" {
		return types.PermanentError(types.Permanent(types.ErrMissingField, "", "no usable requester email", nil))
	}

	_, err := clients.CRM.UpsertLeadByEmail(ctx, payload.Email, map[string]any{
		"support_tag": payload.Tag,
	})
	if err != nil {
		return classifyDependencyErr(err)
	}
	return types.Success()
}

type supportCompanyPayload struct {
	Topic          string `json:"topic"`
	ExternalID     string `json:"external_id"`
	CompanyDomain  string `json:"company_domain"`
	OwnerEmail     string `json:"owner_email"`
	Members        int    `json:"members"`
	SeatLimit      int    `json:"seat_limit"`
	ActiveProjects int    `json:"active_projects"`
	ProjectLimit   int    `json:"project_limit"`
}

// HandleSupportCompanyUpdated runs the pure signal-detection function
// over the company snapshot and records a CRM task per detected signal
// (spec.md §4.11, §8 invariant 9).
func HandleSupportCompanyUpdated(ctx context.Context, ev *types.Event, clients *Clients) types.Outcome {
	var payload supportCompanyPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		return types.PermanentError(types.Permanent(types.ErrInvalidRequest, "", "invalid support company payload", err))
	}
	if payload.OwnerEmail == "" {
		return types.PermanentError(types.Permanent(types.ErrMissingField, "", "no usable owner email", nil))
	}

	signals := DetectCompanySignals(CompanySnapshot{
		Members:        payload.Members,
		SeatLimit:      payload.SeatLimit,
		ActiveProjects: payload.ActiveProjects,
		ProjectLimit:   payload.ProjectLimit,
	})
	if len(signals) == 0 {
		return types.Ignored("no_signal")
	}

	lead, err := clients.CRM.UpsertLeadByEmail(ctx, payload.OwnerEmail, map[string]any{
		"company_domain": payload.CompanyDomain,
	})
	if err != nil {
		return classifyDependencyErr(err)
	}

	for _, s := range signals {
		subject := fmt.Sprintf("Account signal: %s", s.Name)
		body := fmt.Sprintf("Company %s tripped %s (priority %s).", payload.CompanyDomain, s.Name, s.Priority)
		if err := clients.CRM.CreateTask(ctx, lead.ID, subject, time.Now().Add(24*time.Hour), string(s.Priority), body); err != nil {
			return classifyDependencyErr(err)
		}
		if s.Priority == PriorityCritical && clients.Notifier != nil {
			// Best-effort per spec.md §4.12: the Notifier never raises, so a
			// failed alert never turns an otherwise-successful outcome into
			// an error.
			_ = clients.Notifier.Notify(ctx, subject, body, string(s.Priority))
		}
	}
	return types.Success()
}
