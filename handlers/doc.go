/*
Package handlers implements the Handler Set of spec.md §4.11: one pure
function per (source, event_type) pair, each shaped
(*types.Event, *Clients) -> types.Outcome. Handlers never touch Event
status or idempotency state directly; all bookkeeping belongs to the
Job Runner (spec.md §4.8).
*/
package handlers
