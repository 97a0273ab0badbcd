package exec

import (
	"github.com/larkspur/quadstore/rdf"
	"github.com/larkspur/quadstore/store"
)

// triplePatternScan evaluates one resolved triple pattern against the
// store, re-resolving any slot that has since become bound (by an
// earlier step in the same join, or by an enclosing OPTIONAL/GRAPH
// scan's outer row) each time it is (re)opened.
type triplePatternScan struct {
	store   *store.Store
	pattern rdf.Pattern

	iter     *store.Iterator
	lastVars []string
}

func newTriplePatternScan(st *store.Store, pattern rdf.Pattern) *triplePatternScan {
	return &triplePatternScan{store: st, pattern: pattern}
}

func (s *triplePatternScan) MoveNext(b *Bindings) (bool, error) {
	if len(s.lastVars) > 0 {
		for _, v := range s.lastVars {
			b.Unset(v)
		}
		s.lastVars = nil
	}
	if s.iter == nil {
		rp, ok := resolveDynamicPattern(s.pattern, b, s.store)
		if !ok {
			return false, nil
		}
		it, err := s.store.Lookup(rp)
		if err != nil {
			return false, err
		}
		s.iter = it
	}
	for {
		q, ok := s.iter.Next()
		if !ok {
			s.iter.Close()
			s.iter = nil
			return false, nil
		}
		vars, matched, err := tryExtend(q, s.pattern, b, s.store)
		if err != nil {
			return false, err
		}
		if matched {
			s.lastVars = vars
			return true, nil
		}
	}
}

func (s *triplePatternScan) Dispose() {
	if s.iter != nil {
		s.iter.Close()
		s.iter = nil
	}
}

// resolveDynamicPattern rewrites every still-unbound variable slot that
// now has a value in b into a bound atom slot, by looking that value up
// (never interning) in the atom store. A variable whose current value
// was never interned means this pattern can match nothing; the caller
// short-circuits rather than opening a doomed scan.
func resolveDynamicPattern(p rdf.Pattern, b *Bindings, st *store.Store) (rdf.Pattern, bool) {
	out := p
	var ok bool
	if out.S, ok = resolveSlotDynamic(p.S, b, st); !ok {
		return rdf.Pattern{}, false
	}
	if out.P, ok = resolveSlotDynamic(p.P, b, st); !ok {
		return rdf.Pattern{}, false
	}
	if out.O, ok = resolveSlotDynamic(p.O, b, st); !ok {
		return rdf.Pattern{}, false
	}
	if p.HasGraph {
		if out.G, ok = resolveSlotDynamic(p.G, b, st); !ok {
			return rdf.Pattern{}, false
		}
	}
	return out, true
}

func resolveSlotDynamic(s rdf.Slot, b *Bindings, st *store.Store) (rdf.Slot, bool) {
	if s.Bound || s.Variable == "" {
		return s, true
	}
	v, found := b.Get(s.Variable)
	if !found {
		return s, true
	}
	id, ok := st.Atoms().Lookup(rdf.EncodeTerm(v))
	if !ok {
		return rdf.Slot{}, false
	}
	return rdf.BoundSlot(id), true
}

// tryExtend binds every free variable in p (including a repeated
// variable name across two slots, or a variable graph slot) from a
// candidate quad, rejecting it if a repeated variable disagrees across
// slots. Returns the variable names newly set into b.
func tryExtend(q rdf.Quad, p rdf.Pattern, b *Bindings, st *store.Store) (newVars []string, matched bool, err error) {
	seen := map[string]rdf.AtomID{}

	bindOne := func(slot rdf.Slot, id rdf.AtomID) (bool, error) {
		if slot.Bound || slot.Variable == "" {
			return true, nil
		}
		if prior, ok := seen[slot.Variable]; ok {
			return prior == id, nil
		}
		seen[slot.Variable] = id
		if _, already := b.Get(slot.Variable); !already {
			raw, ferr := st.Atoms().Fetch(id)
			if ferr != nil {
				return false, ferr
			}
			val, derr := rdf.DecodeTerm(raw)
			if derr != nil {
				return false, derr
			}
			b.Set(slot.Variable, val)
			newVars = append(newVars, slot.Variable)
		}
		return true, nil
	}

	ok, err := bindOne(p.S, q.S)
	if err != nil || !ok {
		return nil, false, err
	}
	ok, err = bindOne(p.P, q.P)
	if err != nil || !ok {
		return nil, false, err
	}
	ok, err = bindOne(p.O, q.O)
	if err != nil || !ok {
		return nil, false, err
	}
	if p.HasGraph {
		ok, err = bindOne(p.G, q.G)
		if err != nil || !ok {
			return nil, false, err
		}
	}
	return newVars, true, nil
}
