/*
Package runner implements the Job Runner of spec.md §4.8: a pool of
worker goroutines that reserve jobs from the Queue, dispatch them to the
Handler Set keyed by (source, event_type), and translate the Handler's
Outcome into Event status transitions, queue acknowledgement/retry/fail,
and idempotency marking.
*/
package runner
