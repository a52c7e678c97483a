/*
Package ingress implements the Ingress Router of spec.md §4.6: one HTTP
handler per source, each verifying its signature, extracting only the
event_type/external_id envelope fields it needs, and delegating staging
to the [github.com/flowgate/flowgate/staging] package.
*/
package ingress
