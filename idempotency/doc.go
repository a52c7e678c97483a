/*
Package idempotency implements the Idempotency Guard of spec.md §4.3: an
atomic acquire on a fingerprint key, and a separate "processed" marker
that replays consult before a handler ever runs again. Guard is an
interface so tests can swap the Redis-backed implementation for an
in-memory one without a running store.
*/
package idempotency
