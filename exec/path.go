package exec

import (
	"github.com/larkspur/quadstore/plan"
	"github.com/larkspur/quadstore/qerr"
	"github.com/larkspur/quadstore/rdf"
	"github.com/larkspur/quadstore/sparql"
	"github.com/larkspur/quadstore/store"
)

// pathScan evaluates a property-path pattern by BFS enumeration outward
// from whichever endpoint is bound (a constant, or a variable already
// bound by an earlier step), per SPEC_FULL.md §4.4. Both endpoints
// unbound is a documented scope limitation (qerr.Semantic) rather than
// a full-graph enumeration.
type pathScan struct {
	store  *store.Store
	binder *plan.Binder

	path     *sparql.PropertyPath
	sSlot    rdf.Slot
	oSlot    rdf.Slot
	graph    rdf.Slot
	hasGraph bool

	results  []pathPair
	idx      int
	opened   bool
	lastVars []string
}

type pathPair struct {
	s, o rdf.AtomID
}

func newPathScan(st *store.Store, b *plan.Binder, path *sparql.PropertyPath, sSlot, oSlot, graph rdf.Slot, hasGraph bool) *pathScan {
	return &pathScan{store: st, binder: b, path: path, sSlot: sSlot, oSlot: oSlot, graph: graph, hasGraph: hasGraph}
}

func (s *pathScan) MoveNext(b *Bindings) (bool, error) {
	if len(s.lastVars) > 0 {
		for _, v := range s.lastVars {
			b.Unset(v)
		}
		s.lastVars = nil
	}
	if !s.opened {
		pairs, err := s.materialize(b)
		if err != nil {
			return false, err
		}
		s.results = pairs
		s.idx = 0
		s.opened = true
	}

	for s.idx < len(s.results) {
		p := s.results[s.idx]
		s.idx++
		vars, ok, err := s.tryBind(p, b)
		if err != nil {
			return false, err
		}
		if ok {
			s.lastVars = vars
			return true, nil
		}
	}
	s.opened = false
	s.results = nil
	return false, nil
}

func (s *pathScan) Dispose() {}

func (s *pathScan) materialize(b *Bindings) ([]pathPair, error) {
	sResolved, sOK := resolveSlotDynamic(s.sSlot, b, s.store)
	oResolved, oOK := resolveSlotDynamic(s.oSlot, b, s.store)
	if !sOK || !oOK {
		return nil, nil
	}

	gSlot := s.graph
	if s.hasGraph {
		var ok bool
		gSlot, ok = resolveSlotDynamic(s.graph, b, s.store)
		if !ok {
			return nil, nil
		}
	}

	switch {
	case sResolved.Bound:
		reached, err := s.closure(s.path, map[rdf.AtomID]bool{sResolved.Atom: true}, true, gSlot)
		if err != nil {
			return nil, err
		}
		pairs := make([]pathPair, 0, len(reached))
		for o := range reached {
			pairs = append(pairs, pathPair{s: sResolved.Atom, o: o})
		}
		return pairs, nil
	case oResolved.Bound:
		reached, err := s.closure(s.path, map[rdf.AtomID]bool{oResolved.Atom: true}, false, gSlot)
		if err != nil {
			return nil, err
		}
		pairs := make([]pathPair, 0, len(reached))
		for sid := range reached {
			pairs = append(pairs, pathPair{s: sid, o: oResolved.Atom})
		}
		return pairs, nil
	default:
		return nil, qerr.New(qerr.Semantic, "property path requires at least one bound endpoint")
	}
}

func (s *pathScan) tryBind(p pathPair, b *Bindings) (newVars []string, ok bool, err error) {
	bindOne := func(slot rdf.Slot, id rdf.AtomID) (bool, error) {
		if slot.Bound {
			return slot.Atom == id, nil
		}
		if slot.Variable == "" {
			return true, nil
		}
		if existing, found := b.Get(slot.Variable); found {
			raw := rdf.EncodeTerm(existing)
			want, ok := s.store.Atoms().Lookup(raw)
			return ok && want == id, nil
		}
		raw, ferr := s.store.Atoms().Fetch(id)
		if ferr != nil {
			return false, ferr
		}
		val, derr := rdf.DecodeTerm(raw)
		if derr != nil {
			return false, derr
		}
		b.Set(slot.Variable, val)
		newVars = append(newVars, slot.Variable)
		return true, nil
	}

	ok, err = bindOne(s.sSlot, p.s)
	if err != nil || !ok {
		return nil, false, err
	}
	ok, err = bindOne(s.oSlot, p.o)
	if err != nil || !ok {
		return nil, false, err
	}
	return newVars, true, nil
}

// closure computes the set of nodes reachable from frontier by zero or
// more applications of path in the given direction (forward means
// following the path as written, s-to-o; false means s-to-o read
// backward, o-to-s).
func (s *pathScan) closure(path *sparql.PropertyPath, frontier map[rdf.AtomID]bool, forward bool, graph rdf.Slot) (map[rdf.AtomID]bool, error) {
	switch path.Kind {
	case sparql.PathStar:
		return s.bfs(path.Inner, frontier, forward, true, graph)
	case sparql.PathPlus:
		once, err := s.step(path.Inner, frontier, forward, graph)
		if err != nil {
			return nil, err
		}
		return s.bfs(path.Inner, once, forward, true, graph)
	case sparql.PathQuestion:
		once, err := s.step(path.Inner, frontier, forward, graph)
		if err != nil {
			return nil, err
		}
		out := map[rdf.AtomID]bool{}
		for k := range frontier {
			out[k] = true
		}
		for k := range once {
			out[k] = true
		}
		return out, nil
	default:
		return s.step(path, frontier, forward, graph)
	}
}

// bfs repeatedly applies path to the growing frontier until no new
// nodes are discovered; includeZero seeds the visited set with the
// starting frontier itself (the zero-step case of `*`).
func (s *pathScan) bfs(path *sparql.PropertyPath, frontier map[rdf.AtomID]bool, forward, includeZero bool, graph rdf.Slot) (map[rdf.AtomID]bool, error) {
	visited := map[rdf.AtomID]bool{}
	if includeZero {
		for k := range frontier {
			visited[k] = true
		}
	}
	current := frontier
	for len(current) > 0 {
		next, err := s.step(path, current, forward, graph)
		if err != nil {
			return nil, err
		}
		fresh := map[rdf.AtomID]bool{}
		for k := range next {
			if !visited[k] {
				visited[k] = true
				fresh[k] = true
			}
		}
		current = fresh
	}
	return visited, nil
}

// step applies path once to every node in frontier and returns the
// union of resulting nodes.
func (s *pathScan) step(path *sparql.PropertyPath, frontier map[rdf.AtomID]bool, forward bool, graph rdf.Slot) (map[rdf.AtomID]bool, error) {
	switch path.Kind {
	case sparql.PathSimple:
		return s.stepSimple(path, frontier, forward, graph)
	case sparql.PathInverse:
		return s.step(path.Inner, frontier, !forward, graph)
	case sparql.PathSequence:
		if forward {
			mid, err := s.step(path.Left, frontier, true, graph)
			if err != nil {
				return nil, err
			}
			return s.step(path.Right, mid, true, graph)
		}
		mid, err := s.step(path.Right, frontier, false, graph)
		if err != nil {
			return nil, err
		}
		return s.step(path.Left, mid, false, graph)
	case sparql.PathAlternative:
		left, err := s.step(path.Left, frontier, forward, graph)
		if err != nil {
			return nil, err
		}
		right, err := s.step(path.Right, frontier, forward, graph)
		if err != nil {
			return nil, err
		}
		for k := range right {
			left[k] = true
		}
		return left, nil
	case sparql.PathStar, sparql.PathPlus, sparql.PathQuestion:
		return s.closure(path, frontier, forward, graph)
	default:
		return nil, qerr.New(qerr.Semantic, "unknown property path kind")
	}
}

func (s *pathScan) stepSimple(path *sparql.PropertyPath, frontier map[rdf.AtomID]bool, forward bool, graph rdf.Slot) (map[rdf.AtomID]bool, error) {
	pSlot, err := s.binder.ResolveSlot(path.IRI)
	if err != nil {
		return nil, err
	}
	out := map[rdf.AtomID]bool{}
	for node := range frontier {
		var pattern rdf.Pattern
		if forward {
			pattern = rdf.Pattern{S: rdf.BoundSlot(node), P: pSlot, O: rdf.VarSlot("?o"), G: graph, HasGraph: s.hasGraph}
		} else {
			pattern = rdf.Pattern{S: rdf.VarSlot("?s"), P: pSlot, O: rdf.BoundSlot(node), G: graph, HasGraph: s.hasGraph}
		}
		it, err := s.store.Lookup(pattern)
		if err != nil {
			return nil, err
		}
		for {
			q, ok := it.Next()
			if !ok {
				break
			}
			if forward {
				out[q.O] = true
			} else {
				out[q.S] = true
			}
		}
		it.Close()
	}
	return out, nil
}
