package types

import "time"

// RetryPolicy bounds the number of redeliveries the Queue grants a job and
// the backoff interval before each one (spec.md §3, §4.4).
type RetryPolicy struct {
	MaxRetries     int
	RetryIntervals []time.Duration
}

// IntervalFor returns the backoff before the given attempt number (1-based).
// Attempts beyond the configured interval list reuse the last interval.
func (p RetryPolicy) IntervalFor(attempt int) time.Duration {
	if len(p.RetryIntervals) == 0 {
		return 0
	}
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(p.RetryIntervals) {
		idx = len(p.RetryIntervals) - 1
	}
	return p.RetryIntervals[idx]
}

// Job is a Queue entry. JobID always equals the fingerprinting
// IdempotencyKey, which is what gives the Queue its "at most one
// non-terminal job per fingerprint" property.
type Job struct {
	JobID          string      `json:"job_id"`
	EventID        string      `json:"event_id"`
	IdempotencyKey string      `json:"idempotency_key"`
	RetryPolicy    RetryPolicy `json:"-"`
	EnqueuedAt     time.Time   `json:"enqueued_at"`
	NotBefore      time.Time   `json:"not_before"`
}
