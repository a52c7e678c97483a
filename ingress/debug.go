package ingress

import (
	"net/http"
	"strings"

	"github.com/flowgate/flowgate/types"
)

// HandleDebugEvent handles GET /debug/events/{event_id} (spec.md §6).
func (rt *Router) HandleDebugEvent(w http.ResponseWriter, r *http.Request) {
	eventID := strings.TrimPrefix(r.URL.Path, "/debug/events/")
	if eventID == "" {
		http.NotFound(w, r)
		return
	}

	ev, found, err := rt.debug.LoadEvent(eventID)
	if err != nil {
		WriteErrorMessage(w, http.StatusInternalServerError, types.ErrInternalError, "failed to load event", rt.logger)
		return
	}
	if !found {
		http.NotFound(w, r)
		return
	}
	WriteJSON(w, http.StatusOK, ev)
}

// HandleDebugIdem handles GET /debug/idem/{key}.
func (rt *Router) HandleDebugIdem(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/debug/idem/")
	if key == "" {
		http.NotFound(w, r)
		return
	}

	acquired, processed, eventID, err := rt.debug.IdemState(key)
	if err != nil {
		WriteErrorMessage(w, http.StatusInternalServerError, types.ErrInternalError, "failed to read idempotency state", rt.logger)
		return
	}

	WriteJSON(w, http.StatusOK, struct {
		Acquired  bool   `json:"acquired"`
		Processed bool   `json:"processed"`
		EventID   string `json:"event_id,omitempty"`
	}{Acquired: acquired, Processed: processed, EventID: eventID})
}

// HandleDebugStatus handles GET /debug/status.
func (rt *Router) HandleDebugStatus(w http.ResponseWriter, r *http.Request) {
	status, err := rt.debug.Status()
	if err != nil {
		WriteErrorMessage(w, http.StatusInternalServerError, types.ErrInternalError, "failed to read queue status", rt.logger)
		return
	}
	WriteJSON(w, http.StatusOK, status)
}
