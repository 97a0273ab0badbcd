package store

import (
	"github.com/larkspur/quadstore/bptree"
	"github.com/larkspur/quadstore/rdf"
)

// Iterator yields quads matching a resolved pattern. It is not safe for
// concurrent use from multiple goroutines, and must be released with
// Close once exhausted or abandoned (spec.md §4.3 "a query holds shared
// for the duration of its iterator").
type Iterator struct {
	store *Store
	ord   order
	rp    resolvedPattern

	// single-graph scan state
	inner *bptree.Iterator

	// named-graph iteration (rp.anyGraph): one inner scan per known graph,
	// advanced in sequence.
	graphs   []rdf.AtomID
	graphIdx int
	released bool
	empty    bool
}

// scanIDs opens the iterator for an already-resolved, atom-id pattern.
func (s *Store) scanIDs(rp resolvedPattern) (*Iterator, error) {
	s.mu.RLock()

	if !rp.anyGraph {
		tree, ord := s.selectIndex(rp)
		key, prefixLen := buildKey(rp, ord)
		inner, err := tree.Scan(key, prefixLen)
		if err != nil {
			s.mu.RUnlock()
			return nil, err
		}
		return &Iterator{store: s, ord: ord, rp: rp, inner: inner}, nil
	}

	// named-graph iteration: enumerate every known graph and scan each in
	// turn with that graph bound, per spec.md §4.3 "caller explicitly
	// requests named-graph iteration via named_graphs()".
	graphs := make([]rdf.AtomID, 0, len(s.namedG))
	for g := range s.namedG {
		graphs = append(graphs, g)
	}
	it := &Iterator{store: s, rp: rp, graphs: graphs, graphIdx: -1}
	if !it.advanceGraph() {
		it.empty = true
	}
	return it, nil
}

// advanceGraph opens the next per-graph scan; returns false when graphs
// are exhausted.
func (it *Iterator) advanceGraph() bool {
	it.graphIdx++
	if it.graphIdx >= len(it.graphs) {
		return false
	}
	rp := it.rp
	rp.graph = it.graphs[it.graphIdx]
	rp.graphBound = true
	tree, ord := it.store.selectIndex(rp)
	key, prefixLen := buildKey(rp, ord)
	inner, err := tree.Scan(key, prefixLen)
	if err != nil {
		return it.advanceGraph()
	}
	it.ord = ord
	it.inner = inner
	return true
}

// Next advances to the next matching quad.
func (it *Iterator) Next() (rdf.Quad, bool) {
	if it.empty {
		return rdf.Quad{}, false
	}
	for {
		k, ok := it.inner.Next()
		if !ok {
			if it.rp.anyGraph && it.advanceGraph() {
				continue
			}
			return rdf.Quad{}, false
		}
		q := quadFromKey(k, it.ord)
		if it.rp.matches(q) {
			return q, true
		}
	}
}

// Close releases the read lock the iterator holds over the triple view.
func (it *Iterator) Close() {
	if it.released || it.store == nil {
		return
	}
	it.released = true
	it.store.mu.RUnlock()
}
