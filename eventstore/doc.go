/*
Package eventstore implements the Event Store of spec.md §4.2: it durably
stages each incoming webhook under a server-generated event id, tracks its
lifecycle status, attempt count, and last error, and reapplies the
configured TTL on every write so storage stays bounded regardless of
terminal state.
*/
package eventstore
