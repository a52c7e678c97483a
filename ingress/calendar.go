package ingress

import (
	"net/http"

	"github.com/flowgate/flowgate/types"
)

var calendarEventTypes = map[string]bool{
	"booked":      true,
	"canceled":    true,
	"rescheduled": true,
}

type calendarEnvelope struct {
	EventType  string `json:"event_type"`
	ExternalID string `json:"external_id"`
}

// HandleCalendar handles POST /webhooks/calendar (spec.md §4.6, §6).
func (rt *Router) HandleCalendar(w http.ResponseWriter, r *http.Request) {
	body, ok := rt.readVerifiedBody(w, r, rt.calendarVerifier, "Calendar-Signature")
	if !ok {
		return
	}

	var env calendarEnvelope
	if err := DecodeJSONEnvelope(body, &env); err != nil {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "invalid calendar webhook body", rt.logger)
		return
	}

	if !calendarEventTypes[env.EventType] {
		WriteIgnored(w, "unknown_event_type")
		return
	}

	rt.stage(w, r, types.SourceCalendar, env.EventType, env.ExternalID, body)
}
