/*
Package types provides flowgate's shared, dependency-free domain types:
the structured Error taxonomy, the staged Event record, the Job queue
entry, and the Outcome a Handler returns. Every other package imports
types; types imports nothing internal, to avoid cycles.
*/
package types
