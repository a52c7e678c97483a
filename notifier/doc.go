/*
Package notifier implements the best-effort alerting sink of spec.md
§4.12: a single Slack message per terminal job failure (retries
exhausted or a permanent error). It never returns an error the caller
is expected to retry on — the Job Runner logs and discards whatever
Notify returns (spec.md §7).
*/
package notifier
