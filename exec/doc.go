// Package exec composes a parsed, planned SPARQL query into a tree of
// Scan iterators and a solution pipeline, per SPEC_FULL.md §4.6–§4.8.
// Every concrete scan (triple-pattern, property-path, optional, union,
// minus, graph, subquery, filter, bind) implements the same closed Scan
// interface; multiPatternScan nested-loop-joins an ordered slice of them
// with backtracking, pushing filters in at the plan-assigned level; BINDs
// and VALUES follow the pattern steps.
package exec
