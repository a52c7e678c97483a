/*
Package llmclient implements the outbound LLM extraction client of
spec.md §4.10: a single generate -> validate -> repair loop producing a
schema-shaped JSON object from a free-text prompt, with a character-budgeted
truncation step ahead of the call and two-attempt cap on schema-repair
(transport failures are not subject to that cap — they surface directly
as transient errors for the Job Runner to retry).
*/
package llmclient
