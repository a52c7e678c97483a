/*
Package circuitbreaker provides a generic failure-counting breaker used by
the outbound CRM and LLM clients to stop hammering a dependency that is
already down, independent of the per-job retry policy the Queue enforces.
*/
package circuitbreaker
