package ingress

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/flowgate/flowgate/queue"
	"github.com/flowgate/flowgate/staging"
	"github.com/flowgate/flowgate/types"
	"github.com/flowgate/flowgate/verify"
)

// Router wires the per-source HTTP handlers of spec.md §4.6 to a shared
// Staging Pipeline.
type Router struct {
	staging *staging.Pipeline
	queue   *queue.Queue

	calendarVerifier verify.Verifier
	meetingsVerifier verify.Verifier
	supportVerifier  verify.Verifier
	enrichSecret     string

	minDurationMinutes int
	qualifyingTags     map[string]bool

	allowDebugEndpoints bool
	debug               DebugSource

	logger *zap.Logger
}

// Config carries the Router's construction-time settings, taken directly
// from config.SourcesConfig / config.PipelineConfig / config.ServerConfig.
type Config struct {
	CalendarVerifier    verify.Verifier
	MeetingsVerifier    verify.Verifier
	SupportVerifier     verify.Verifier
	EnrichSecret        string
	MinDurationMinutes  int
	QualifyingTags      []string
	AllowDebugEndpoints bool
}

// DebugSource supplies the read-only views the §6 debug endpoints expose.
// Implemented by the runner/event-store wiring at the composition root.
type DebugSource interface {
	LoadEvent(eventID string) (*types.Event, bool, error)
	IdemState(key string) (acquired bool, processed bool, eventID string, err error)
	Status() (QueueStatus, error)
}

// QueueStatus is the §6 `/debug/status` response shape.
type QueueStatus struct {
	Queued  int64 `json:"queued"`
	Started int64 `json:"started"`
	Failed  int64 `json:"failed"`
}

// New builds a Router over the given Staging Pipeline.
func New(pipeline *staging.Pipeline, q *queue.Queue, cfg Config, debug DebugSource, logger *zap.Logger) *Router {
	tags := make(map[string]bool, len(cfg.QualifyingTags))
	for _, t := range cfg.QualifyingTags {
		tags[t] = true
	}
	return &Router{
		staging:             pipeline,
		queue:               q,
		calendarVerifier:    cfg.CalendarVerifier,
		meetingsVerifier:    cfg.MeetingsVerifier,
		supportVerifier:     cfg.SupportVerifier,
		enrichSecret:        cfg.EnrichSecret,
		minDurationMinutes:  cfg.MinDurationMinutes,
		qualifyingTags:      tags,
		allowDebugEndpoints: cfg.AllowDebugEndpoints,
		debug:               debug,
		logger:              logger,
	}
}

// RegisterRoutes attaches every ingress and debug handler to mux, the way
// the teacher's config.ConfigAPIHandler.RegisterRoutes registers its own
// endpoints onto the shared http.ServeMux.
func (rt *Router) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/webhooks/calendar", rt.HandleCalendar)
	mux.HandleFunc("/webhooks/meetings", rt.HandleMeetings)
	mux.HandleFunc("/webhooks/support", rt.HandleSupport)
	mux.HandleFunc("/enrich/lead", rt.HandleEnrichLead)
	mux.HandleFunc("/healthz", rt.HandleHealthz)

	if rt.allowDebugEndpoints {
		mux.HandleFunc("/debug/events/", rt.HandleDebugEvent)
		mux.HandleFunc("/debug/idem/", rt.HandleDebugIdem)
		mux.HandleFunc("/debug/status", rt.HandleDebugStatus)
	}
}

// stage builds the idempotency key, runs the staging flow and writes the
// queued/duplicate response, used by every source handler after it has
// verified the body and decided on event_type/external_id.
func (rt *Router) stage(w http.ResponseWriter, r *http.Request, source types.Source, eventType, externalID string, body []byte) {
	idempotencyKey := types.IdempotencyKeyFor(source, eventType, externalID)

	result, err := rt.staging.Stage(r.Context(), source, eventType, externalID, body, idempotencyKey)
	if err != nil {
		rt.logger.Error("staging failed", zap.String("source", string(source)), zap.String("event_type", eventType), zap.Error(err))
		WriteErrorMessage(w, http.StatusInternalServerError, types.ErrInternalError, "failed to stage event", rt.logger)
		return
	}

	if result.Duplicate {
		WriteDuplicate(w, result.EventID)
		return
	}
	WriteQueued(w, result.EventID, result.IdempotencyKey)
}

func (rt *Router) readVerifiedBody(w http.ResponseWriter, r *http.Request, v verify.Verifier, signatureHeader string) ([]byte, bool) {
	body, ok := ReadRawBody(w, r, maxBodyBytes, rt.logger)
	if !ok {
		return nil, false
	}
	if err := v.Verify(r.Header.Get(signatureHeader), body); err != nil {
		WriteErrorMessage(w, http.StatusUnauthorized, types.ErrSignatureInvalid, err.Error(), rt.logger)
		return nil, false
	}
	return body, true
}
