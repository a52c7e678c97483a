package ingress

import (
	"net/http"
	"time"
)

type healthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// HandleHealthz handles GET /healthz — a liveness probe with no
// dependency checks (spec.md §6).
func (rt *Router) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, healthStatus{Status: "healthy", Timestamp: time.Now().UTC()})
}
