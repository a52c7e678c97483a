package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flowgate/flowgate/types"
)

type meetingPayload struct {
	EventType       string     `json:"event_type"`
	ExternalID      string     `json:"external_id"`
	DurationMinutes int        `json:"duration_minutes"`
	Attendees       []Attendee `json:"attendees"`
	Transcript      string     `json:"transcript"`
}

type meetingSummary struct {
	Summary     string   `json:"summary"`
	ActionItems []string `json:"action_items"`
}

var meetingSummarySchema = struct {
	Summary     string   `json:"summary"`
	ActionItems []string `json:"action_items"`
}{}

// HandleMeetingCompleted extracts a structured summary from the
// transcript via the LLM client and attaches it as a CRM note on the
// primary attendee's lead (spec.md §4.10, §4.11, §8 invariant 8).
func HandleMeetingCompleted(ctx context.Context, ev *types.Event, clients *Clients) types.Outcome {
	var payload meetingPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		return types.PermanentError(types.Permanent(types.ErrInvalidRequest, "", "invalid meeting payload", err))
	}

	attendee, ok := SelectPrimaryAttendee(payload.Attendees, clients.CustomerDomains)
	if !ok {
		return types.PermanentError(types.Permanent(types.ErrMissingField, "", "no usable attendee email", nil))
	}

	raw, err := clients.LLM.Extract(ctx,
		"Summarize this sales meeting transcript into a short summary and a list of action items.",
		payload.Transcript,
		meetingSummarySchema,
	)
	if err != nil {
		return classifyDependencyErr(err)
	}

	var summary meetingSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return types.PermanentError(types.Permanent(types.ErrSchemaInvalid, "", "llm_schema_invalid", err))
	}

	lead, err := clients.CRM.UpsertLeadByEmail(ctx, attendee.Email, map[string]any{
		"last_meeting_event_id": payload.ExternalID,
	})
	if err != nil {
		return classifyDependencyErr(err)
	}

	body := fmt.Sprintf("%s\n\nAction items:\n", summary.Summary)
	for _, item := range summary.ActionItems {
		body += "- " + item + "\n"
	}
	if err := clients.CRM.CreateNote(ctx, lead.ID, "Meeting transcript summary", body); err != nil {
		return classifyDependencyErr(err)
	}
	return types.Success()
}
