// Package store implements the multi-index quad-store facade: three
// B+Tree indexes (SPO, POS, OSP) over an atom store, index selection,
// batched writes, and the statistics the planner consumes. See spec.md
// §4.3 and SPEC_FULL.md's "Multi-index store" entry.
package store
