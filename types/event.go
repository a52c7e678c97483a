package types

import "time"

// Status is the lifecycle state of a staged Event. Transitions are
// monotonic along queued -> processing -> {processed, ignored, failed}.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusProcessed  Status = "processed"
	StatusIgnored    Status = "ignored"
	StatusFailed     Status = "failed"
)

// Source identifies the upstream system an Event was received from.
type Source string

const (
	SourceCalendar          Source = "calendar"
	SourceMeetingTranscript Source = "meeting_transcript"
	SourceSupportTag        Source = "support_tag"
	SourceSupportCompany    Source = "support_company"
	SourceManualEnrich      Source = "manual_enrich"
)

// Event is the durably staged record of one incoming webhook (spec.md §3).
// event_id is server-assigned and never reused; payload is carried as an
// opaque blob so the core never needs to understand upstream wire shapes.
type Event struct {
	EventID        string    `json:"event_id"`
	Source         Source    `json:"source"`
	EventType      string    `json:"event_type"`
	ExternalID     string    `json:"external_id"`
	IdempotencyKey string    `json:"idempotency_key"`
	Status         Status    `json:"status"`
	Attempts       int       `json:"attempts"`
	LastError      string    `json:"last_error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Payload        []byte    `json:"payload"`
}

// IdempotencyKeyFor builds the "{source}:{event_type}:{external_id}"
// fingerprint shared by the Event, the Queue job id, and both
// IdempotencyRecord keys.
func IdempotencyKeyFor(source Source, eventType, externalID string) string {
	return string(source) + ":" + eventType + ":" + externalID
}
