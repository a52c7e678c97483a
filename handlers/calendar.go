package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/flowgate/flowgate/types"
)

type calendarPayload struct {
	EventType    string     `json:"event_type"`
	ExternalID   string     `json:"external_id"`
	Invitees     []Attendee `json:"invitees"`
	StartTime    time.Time  `json:"start_time"`
	RescheduleTo time.Time  `json:"reschedule_to"`
}

func decodeCalendarPayload(ev *types.Event) (calendarPayload, error) {
	var p calendarPayload
	err := json.Unmarshal(ev.Payload, &p)
	return p, err
}

// HandleCalendarBooked upserts the primary invitee as a CRM lead and
// schedules a follow-up task.
func HandleCalendarBooked(ctx context.Context, ev *types.Event, clients *Clients) types.Outcome {
	payload, err := decodeCalendarPayload(ev)
	if err != nil {
		return types.PermanentError(types.Permanent(types.ErrInvalidRequest, "", "invalid calendar payload", err))
	}

	attendee, ok := SelectPrimaryAttendee(payload.Invitees, clients.CustomerDomains)
	if !ok {
		return types.PermanentError(types.Permanent(types.ErrMissingField, "", "no usable invitee email", nil))
	}

	lead, err := clients.CRM.UpsertLeadByEmail(ctx, attendee.Email, map[string]any{
		"last_meeting_booked_at": payload.StartTime,
		"last_meeting_event_id":  payload.ExternalID,
	})
	if err != nil {
		return classifyDependencyErr(err)
	}

	if err := clients.CRM.CreateTask(ctx, lead.ID, "Prepare for upcoming meeting", payload.StartTime, "normal", "Meeting booked via calendar webhook"); err != nil {
		return classifyDependencyErr(err)
	}
	return types.Success()
}

// HandleCalendarCanceled logs a note on the lead that the meeting was
// canceled; it performs no lead creation, only a best-effort lookup.
func HandleCalendarCanceled(ctx context.Context, ev *types.Event, clients *Clients) types.Outcome {
	payload, err := decodeCalendarPayload(ev)
	if err != nil {
		return types.PermanentError(types.Permanent(types.ErrInvalidRequest, "", "invalid calendar payload", err))
	}

	attendee, ok := SelectPrimaryAttendee(payload.Invitees, clients.CustomerDomains)
	if !ok {
		return types.Ignored("no_usable_invitee")
	}

	lead, found, err := clients.CRM.FindLeadByEmail(ctx, attendee.Email)
	if err != nil {
		return classifyDependencyErr(err)
	}
	if !found {
		return types.Ignored("lead_not_found")
	}

	if err := clients.CRM.CreateNote(ctx, lead.ID, "Meeting canceled", "The calendar event "+payload.ExternalID+" was canceled."); err != nil {
		return classifyDependencyErr(err)
	}
	return types.Success()
}

// HandleCalendarRescheduled upserts the lead with the new time, keyed by
// the rescheduled event's own external_id per the §9 open-question
// decision preserving at-most-one-in-flight per physical event.
func HandleCalendarRescheduled(ctx context.Context, ev *types.Event, clients *Clients) types.Outcome {
	payload, err := decodeCalendarPayload(ev)
	if err != nil {
		return types.PermanentError(types.Permanent(types.ErrInvalidRequest, "", "invalid calendar payload", err))
	}

	attendee, ok := SelectPrimaryAttendee(payload.Invitees, clients.CustomerDomains)
	if !ok {
		return types.PermanentError(types.Permanent(types.ErrMissingField, "", "no usable invitee email", nil))
	}

	lead, err := clients.CRM.UpsertLeadByEmail(ctx, attendee.Email, map[string]any{
		"last_meeting_booked_at": payload.RescheduleTo,
		"last_meeting_event_id":  payload.ExternalID,
	})
	if err != nil {
		return classifyDependencyErr(err)
	}

	if err := clients.CRM.CreateNote(ctx, lead.ID, "Meeting rescheduled", "New time: "+payload.RescheduleTo.String()); err != nil {
		return classifyDependencyErr(err)
	}
	return types.Success()
}
