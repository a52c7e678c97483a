package ingress

import (
	"crypto/subtle"
	"net/http"

	"github.com/flowgate/flowgate/types"
)

type enrichRequest struct {
	Email  string `json:"email"`
	LeadID string `json:"lead_id,omitempty"`
}

// HandleEnrichLead handles POST /enrich/lead, gated by a constant-time
// compare of X-Enrich-Secret (spec.md §4.6, §6).
func (rt *Router) HandleEnrichLead(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("X-Enrich-Secret")
	if subtle.ConstantTimeCompare([]byte(header), []byte(rt.enrichSecret)) != 1 {
		WriteErrorMessage(w, http.StatusUnauthorized, types.ErrSignatureInvalid, "invalid enrich secret", rt.logger)
		return
	}

	body, ok := ReadRawBody(w, r, maxBodyBytes, rt.logger)
	if !ok {
		return
	}

	var req enrichRequest
	if err := DecodeJSONEnvelope(body, &req); err != nil || req.Email == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrMissingField, "email is required", rt.logger)
		return
	}

	externalID := req.LeadID
	if externalID == "" {
		externalID = req.Email
	}

	rt.stage(w, r, types.SourceManualEnrich, "enrich_request", externalID, body)
}
