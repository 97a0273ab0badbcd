// Package reasoner is a forward-chaining OWL/RDFS materializer: it
// reads facts through the store's ordinary pattern-scan interface,
// derives new triples in memory, and inserts the non-duplicate ones
// back through the batched-write interface, iterating to a fixed point
// or a configured pass limit. It is specified (spec.md §4.9) as an
// external collaborator behind that two-call contract; this package is
// a reference runner built against it rather than a hard dependency of
// the store or query engine.
package reasoner
