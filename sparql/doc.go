// Package sparql implements a hand-written lexer and recursive-descent
// parser for the SPARQL 1.1 query/update subset in SPEC_FULL.md §4.4.
// The resulting AST stores no strings of its own: every term is a Span
// (start, length) window into the caller's source bytes, resolved
// lazily via Span.Text. Pattern groups use fixed-capacity inline arrays
// with documented limits; overflowing one is a qerr.Capacity error, not
// silent truncation.
package sparql
