package ingress

import (
	"net/http"

	"github.com/flowgate/flowgate/types"
)

type meetingEnvelope struct {
	EventType       string `json:"event_type"`
	ExternalID      string `json:"external_id"`
	DurationMinutes int    `json:"duration_minutes"`
}

// HandleMeetings handles POST /webhooks/meetings (spec.md §4.6, §6).
func (rt *Router) HandleMeetings(w http.ResponseWriter, r *http.Request) {
	body, ok := rt.readVerifiedBody(w, r, rt.meetingsVerifier, "X-Meeting-Secret")
	if !ok {
		return
	}

	var env meetingEnvelope
	if err := DecodeJSONEnvelope(body, &env); err != nil {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "invalid meeting webhook body", rt.logger)
		return
	}

	if env.EventType != "completed" {
		WriteIgnored(w, "unknown_event_type")
		return
	}

	if env.DurationMinutes < rt.minDurationMinutes {
		WriteIgnored(w, "too_short")
		return
	}

	rt.stage(w, r, types.SourceMeetingTranscript, env.EventType, env.ExternalID, body)
}
