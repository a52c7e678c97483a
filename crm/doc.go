/*
Package crm implements the outbound CRM client of spec.md §4.9: lead
upsert-by-email, note and task creation, backed by an OAuth
refresh-token flow cached in the K/V store, a rate limiter,
a circuit breaker, and in-process retry for transient faults. DRY_RUN
mode short-circuits every write into a structured log line and a
synthetic result instead of calling the upstream API.
*/
package crm
