/*
Package enrichment implements the three best-effort sub-lookups the
manual-enrich handler fans out to (spec.md §4.11 manual_enrich.enrich_request):
a contact-enrichment API, a company-site scraping service, and a logo
lookup. Per spec.md's explicit out-of-scope carve-out, this package does
no scraping or contact-matching itself — each method is a narrow HTTP
client against an already-built external service, decoding whatever
fields that service returns.
*/
package enrichment
