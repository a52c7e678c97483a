/*
Package staging implements the Staging Pipeline of spec.md §4.7: the
four-step store, acquire, enqueue, respond flow shared by every ingress
handler. Any failure before enqueue is reported to the caller as a
retryable HTTP 5xx, since nothing outside the K/V store has happened yet.
*/
package staging
