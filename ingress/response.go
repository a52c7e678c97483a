package ingress

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"

	"go.uber.org/zap"

	"github.com/flowgate/flowgate/types"
)

// Envelope is the canonical response shape of spec.md §6: every ingress
// handler replies with exactly one of queued/duplicate/ignored set, or an
// error detail.
type Envelope struct {
	OK             bool   `json:"ok"`
	Queued         bool   `json:"queued,omitempty"`
	Duplicate      bool   `json:"duplicate,omitempty"`
	Ignored        bool   `json:"ignored,omitempty"`
	Reason         string `json:"reason,omitempty"`
	EventID        string `json:"event_id,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	DryRun         bool   `json:"dry_run,omitempty"`
}

// ErrorEnvelope is the error shape of spec.md §6: `{detail}`.
type ErrorEnvelope struct {
	Detail string `json:"detail"`
}

// WriteJSON writes data as a JSON body with status, matching the
// teacher's content-type and sniff-protection headers.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteQueued responds with the "queued" envelope (spec.md §6 Normal).
func WriteQueued(w http.ResponseWriter, eventID, idempotencyKey string) {
	WriteJSON(w, http.StatusOK, Envelope{OK: true, Queued: true, EventID: eventID, IdempotencyKey: idempotencyKey})
}

// WriteDuplicate responds with the "duplicate" envelope.
func WriteDuplicate(w http.ResponseWriter, eventID string) {
	WriteJSON(w, http.StatusOK, Envelope{OK: true, Duplicate: true, EventID: eventID})
}

// WriteIgnored responds with the "ignored" envelope.
func WriteIgnored(w http.ResponseWriter, reason string) {
	WriteJSON(w, http.StatusOK, Envelope{OK: true, Ignored: true, Reason: reason})
}

// WriteError maps a *types.Error to the `{detail}` error shape, logging
// the underlying cause.
func WriteError(w http.ResponseWriter, err *types.Error, logger *zap.Logger) {
	status := err.HTTPStatus
	if status == 0 {
		status = mapErrorCodeToHTTPStatus(err.Code)
	}

	if logger != nil {
		logger.Error("ingress error",
			zap.String("code", string(err.Code)),
			zap.String("message", err.Message),
			zap.Int("status", status),
			zap.Bool("retryable", err.Retryable),
			zap.Error(err.Cause),
		)
	}

	WriteJSON(w, status, ErrorEnvelope{Detail: err.Message})
}

// WriteErrorMessage writes a simple error with the given status and code.
func WriteErrorMessage(w http.ResponseWriter, status int, code types.ErrorCode, message string, logger *zap.Logger) {
	WriteError(w, types.NewError(code, message).WithHTTPStatus(status), logger)
}

func mapErrorCodeToHTTPStatus(code types.ErrorCode) int {
	switch code {
	case types.ErrInvalidRequest:
		return http.StatusBadRequest
	case types.ErrSignatureInvalid, types.ErrUnauthorized:
		return http.StatusUnauthorized
	case types.ErrForbidden:
		return http.StatusForbidden
	case types.ErrNotFound:
		return http.StatusNotFound
	case types.ErrRateLimit:
		return http.StatusTooManyRequests
	case types.ErrSchemaInvalid, types.ErrMissingField:
		return http.StatusUnprocessableEntity
	case types.ErrUpstreamTimeout:
		return http.StatusGatewayTimeout
	case types.ErrServiceUnavailable, types.ErrProviderUnavailable:
		return http.StatusServiceUnavailable
	case types.ErrUpstreamError:
		return http.StatusBadGateway
	case types.ErrConfigError, types.ErrInternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// ValidateContentType rejects anything but application/json, writing the
// error response itself.
func ValidateContentType(w http.ResponseWriter, r *http.Request, logger *zap.Logger) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "Content-Type must be application/json", logger)
		return false
	}
	return true
}

// ReadRawBody reads and size-limits the raw request body, returning it
// unconsumed so the caller can still decode the envelope from it
// (spec.md §4.6 step 1: "Reads the raw body").
func ReadRawBody(w http.ResponseWriter, r *http.Request, limit int64, logger *zap.Logger) ([]byte, bool) {
	if r.Body == nil {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "request body is empty", logger)
		return nil, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "failed to read request body", logger)
		return nil, false
	}
	return body, true
}

// DecodeJSONEnvelope parses only the subset of fields dst names,
// rejecting unknown-top-level surprises is intentionally NOT enforced
// here: spec.md §4.6 step 3 requires the full body to remain available
// as payload, so callers pass a loosely-typed envelope struct rather
// than a strict DisallowUnknownFields decode.
func DecodeJSONEnvelope(body []byte, dst any) error {
	return json.Unmarshal(body, dst)
}

const maxBodyBytes = 1 << 20
