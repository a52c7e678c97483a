/*
Package queue implements the FIFO Queue of spec.md §4.4 over the K/V
adapter's queue namespace. A job's identity is its idempotency key, which
enforces "at most one non-terminal job per fingerprint"; retries preserve
job id and reschedule through a delayed set keyed by the configured
backoff intervals. Jobs that exhaust their retries, or that fail
permanently, move to a failure sink read only by operators.
*/
package queue
