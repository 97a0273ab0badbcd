package store

import (
	"github.com/larkspur/quadstore/bptree"
	"github.com/larkspur/quadstore/rdf"
)

// order names which permutation of (subject, predicate, object) a given
// B+Tree stores, graph always leading (§4.3's "extend each index key
// with graph id as the leading dimension", resolved in DESIGN.md).
type order int

const (
	orderSPO order = iota
	orderPOS
	orderOSP
)

// resolvedPattern is a pattern translated into atom-id space, with
// "wildcard" meaning the position is unbound (rdf.NoAtom).
type resolvedPattern struct {
	s, p, o rdf.AtomID
	sBound  bool
	pBound  bool
	oBound  bool

	graph      rdf.AtomID
	graphBound bool // a specific graph id is bound
	anyGraph   bool // GRAPH ?g with ?g itself unbound: iterate named graphs
}

// selectIndex implements spec.md §4.3's table: choose the index whose
// key order binds the longest prefix of bound positions.
func (s *Store) selectIndex(rp resolvedPattern) (*bptree.Tree, order) {
	switch {
	case rp.sBound:
		return s.spo, orderSPO
	case rp.pBound:
		return s.pos, orderPOS
	case rp.oBound:
		return s.osp, orderOSP
	default:
		return s.spo, orderSPO
	}
}

// buildKey translates (graph, s, p, o) into the 4-component key for ord,
// and reports how many leading components are actually bound (the scan
// prefix length).
func buildKey(rp resolvedPattern, ord order) (bptree.Key4, int) {
	prefixLen := 1 // graph always occupies component 0 of the prefix
	var a, b, c uint32
	var aBound, bBound bool

	switch ord {
	case orderSPO:
		a, aBound = uint32(rp.s), rp.sBound
		b, bBound = uint32(rp.p), rp.pBound
		c = uint32(rp.o)
	case orderPOS:
		a, aBound = uint32(rp.p), rp.pBound
		b, bBound = uint32(rp.o), rp.oBound
		c = uint32(rp.s)
	case orderOSP:
		a, aBound = uint32(rp.o), rp.oBound
		b, bBound = uint32(rp.s), rp.sBound
		c = uint32(rp.p)
	}
	if aBound {
		prefixLen++
		if bBound {
			prefixLen++
		}
	}
	return bptree.Key4{uint32(rp.graph), a, b, c}, prefixLen
}

// quadFromKey reverses buildKey's permutation back to an (s,p,o,g) quad.
func quadFromKey(k bptree.Key4, ord order) rdf.Quad {
	g := rdf.AtomID(k[0])
	switch ord {
	case orderSPO:
		return rdf.Quad{S: rdf.AtomID(k[1]), P: rdf.AtomID(k[2]), O: rdf.AtomID(k[3]), G: g}
	case orderPOS:
		return rdf.Quad{P: rdf.AtomID(k[1]), O: rdf.AtomID(k[2]), S: rdf.AtomID(k[3]), G: g}
	case orderOSP:
		return rdf.Quad{O: rdf.AtomID(k[1]), S: rdf.AtomID(k[2]), P: rdf.AtomID(k[3]), G: g}
	}
	return rdf.Quad{}
}

// matches reports whether q satisfies every bound (non-wildcard)
// component of rp; used as the post-scan filter spec.md §4.3 requires
// for bound components outside the chosen prefix.
func (rp resolvedPattern) matches(q rdf.Quad) bool {
	if rp.sBound && q.S != rp.s {
		return false
	}
	if rp.pBound && q.P != rp.p {
		return false
	}
	if rp.oBound && q.O != rp.o {
		return false
	}
	if rp.graphBound && q.G != rp.graph {
		return false
	}
	return true
}

func keyForQuad(q rdf.Quad, ord order) bptree.Key4 {
	switch ord {
	case orderSPO:
		return bptree.Key4{uint32(q.G), uint32(q.S), uint32(q.P), uint32(q.O)}
	case orderPOS:
		return bptree.Key4{uint32(q.G), uint32(q.P), uint32(q.O), uint32(q.S)}
	case orderOSP:
		return bptree.Key4{uint32(q.G), uint32(q.O), uint32(q.S), uint32(q.P)}
	}
	return bptree.Key4{}
}
