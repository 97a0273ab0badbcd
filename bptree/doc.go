// Package bptree implements an ordered, persistent, memory-mapped B+Tree
// over 4-component atom-id keys {graph, a, b, c}, per spec.md §4.2 and
// §4.3's graph-dimension resolution. Pages are fixed-size and
// mmap-backed; the format is shared by the GSPO/GPOS/GOSP indexes the
// store package composes (named spo.db/pos.db/osp.db on disk per
// spec.md §6).
package bptree
