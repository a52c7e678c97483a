/*
Package kv provides flowgate's typed access to the external K/V store
(spec.md §4.1). Store wraps get/set/del, set-with-TTL, atomic
set-if-absent, and hash operations over go-redis; Queue, in the same
package, adds the FIFO work-queue primitives the Queue component builds
on. The adapter owns connection pooling and retries on transient network
faults only — application-level errors (a missing key, a failed
unmarshal) are returned to the caller rather than retried here.
*/
package kv
