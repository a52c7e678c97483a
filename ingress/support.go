package ingress

import (
	"net/http"

	"github.com/flowgate/flowgate/types"
)

type supportEnvelope struct {
	Topic      string `json:"topic"`
	ExternalID string `json:"external_id"`
	Tag        string `json:"tag"`
}

// HandleSupport handles POST /webhooks/support, covering both the
// support_tag and support_company sources keyed off the envelope's
// "topic" field (spec.md §4.6, §6).
func (rt *Router) HandleSupport(w http.ResponseWriter, r *http.Request) {
	body, ok := rt.readVerifiedBody(w, r, rt.supportVerifier, "Support-Signature")
	if !ok {
		return
	}

	var env supportEnvelope
	if err := DecodeJSONEnvelope(body, &env); err != nil {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "invalid support webhook body", rt.logger)
		return
	}

	switch env.Topic {
	case "tag_added":
		if !rt.qualifyingTags[env.Tag] {
			WriteIgnored(w, "tag_not_qualifying")
			return
		}
		rt.stage(w, r, types.SourceSupportTag, env.Topic, env.ExternalID, body)
	case "company_updated":
		rt.stage(w, r, types.SourceSupportCompany, env.Topic, env.ExternalID, body)
	default:
		WriteIgnored(w, "unknown_event_type")
	}
}
