// Package plan turns one parsed GroupGraphPattern into an ordered scan
// plan: prefixed-name/IRI/literal resolution against the atom store,
// greedy cardinality-driven pattern reordering, and filter push-down to
// the earliest level at which every variable a filter references is
// bound, per SPEC_FULL.md §4.5.
package plan
