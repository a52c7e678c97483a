/*
Package retry provides a generic exponential-backoff Retryer used by the
outbound CRM and LLM clients to absorb transient network faults within a
single call, independent of the Queue's job-level retry policy.
*/
package retry
