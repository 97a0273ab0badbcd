package exec

import (
	"github.com/larkspur/quadstore/plan"
	"github.com/larkspur/quadstore/rdf"
	"github.com/larkspur/quadstore/sparql"
)

// optionalScan implements left-outer join: for each outer row it
// materializes every solution of the inner group, cloned from the
// current row; if none exist, the sole alternative is the unchanged
// original row (the left-outer fallback). Once materialized, rows are
// replayed by index, swapping the shared Bindings' backing map wholesale
// via Bindings.assign rather than tracking individual unset keys.
type optionalScan struct {
	c     *Compiler
	group *sparql.GroupGraphPattern

	rows     []rdf.Binding
	idx      int
	opened   bool
	original rdf.Binding
}

func newOptionalScan(c *Compiler, group *sparql.GroupGraphPattern) *optionalScan {
	return &optionalScan{c: c, group: group}
}

func (s *optionalScan) MoveNext(b *Bindings) (bool, error) {
	if !s.opened {
		s.original = b.Snapshot()
		rows, err := s.c.solveGroup(s.group, b)
		if err != nil {
			return false, err
		}
		if len(rows) == 0 {
			rows = []rdf.Binding{s.original}
		}
		s.rows = rows
		s.idx = 0
		s.opened = true
	}
	if s.idx >= len(s.rows) {
		s.opened = false
		s.rows = nil
		b.assign(&Bindings{vars: s.original})
		return false, nil
	}
	row := s.rows[s.idx]
	s.idx++
	b.assign(&Bindings{vars: row})
	return true, nil
}

func (s *optionalScan) Dispose() {}

// unionScan evaluates both branches independently against a clone of
// the current row and replays their combined solution rows by index,
// the same materialize-then-swap technique as optionalScan.
type unionScan struct {
	c           *Compiler
	left, right *sparql.GroupGraphPattern

	rows     []rdf.Binding
	idx      int
	opened   bool
	original rdf.Binding
}

func newUnionScan(c *Compiler, left, right *sparql.GroupGraphPattern) *unionScan {
	return &unionScan{c: c, left: left, right: right}
}

func (s *unionScan) MoveNext(b *Bindings) (bool, error) {
	if !s.opened {
		s.original = b.Snapshot()
		lrows, err := s.c.solveGroup(s.left, b)
		if err != nil {
			return false, err
		}
		rrows, err := s.c.solveGroup(s.right, b)
		if err != nil {
			return false, err
		}
		s.rows = append(lrows, rrows...)
		s.idx = 0
		s.opened = true
	}
	if s.idx >= len(s.rows) {
		s.opened = false
		s.rows = nil
		b.assign(&Bindings{vars: s.original})
		return false, nil
	}
	row := s.rows[s.idx]
	s.idx++
	b.assign(&Bindings{vars: row})
	return true, nil
}

func (s *unionScan) Dispose() {}

// minusScan is an anti-join: it contributes no new variables, admitting
// the outer row unchanged exactly when the minus group has no solution
// compatible with it.
type minusScan struct {
	c     *Compiler
	group *sparql.GroupGraphPattern
	done  bool
}

func newMinusScan(c *Compiler, group *sparql.GroupGraphPattern) *minusScan {
	return &minusScan{c: c, group: group}
}

func (s *minusScan) MoveNext(b *Bindings) (bool, error) {
	if s.done {
		s.done = false
		return false, nil
	}
	s.done = true
	rows, err := s.c.solveGroup(s.group, b)
	if err != nil {
		return false, err
	}
	if len(rows) > 0 {
		s.done = false
		return false, nil
	}
	return true, nil
}

func (s *minusScan) Dispose() {}

// graphScan wraps a nested group with a GRAPH clause's scope: a bound
// IRI restricts every pattern in the group to that graph; an unbound
// variable iterates every named graph the store has observed, binding
// the variable to each in turn (spec.md §4.3's named_graphs() escape
// hatch, reused here for GRAPH-variable semantics).
type graphScan struct {
	c     *Compiler
	term  sparql.Term
	group *sparql.GroupGraphPattern

	varName string

	rows     []rdf.Binding
	idx      int
	opened   bool
	original rdf.Binding
}

func newGraphScan(c *Compiler, term sparql.Term, group *sparql.GroupGraphPattern) *graphScan {
	s := &graphScan{c: c, term: term, group: group}
	if term.Kind == sparql.TermVar {
		s.varName = term.Span.Text(c.Binder.Src)[1:]
	}
	return s
}

func (s *graphScan) MoveNext(b *Bindings) (bool, error) {
	if !s.opened {
		s.original = b.Snapshot()
		rows, err := s.materialize(b)
		if err != nil {
			return false, err
		}
		s.rows = rows
		s.idx = 0
		s.opened = true
	}
	if s.idx >= len(s.rows) {
		s.opened = false
		s.rows = nil
		b.assign(&Bindings{vars: s.original})
		return false, nil
	}
	row := s.rows[s.idx]
	s.idx++
	b.assign(&Bindings{vars: row})
	return true, nil
}

func (s *graphScan) Dispose() {}

func (s *graphScan) materialize(b *Bindings) ([]rdf.Binding, error) {
	if s.varName == "" {
		slot, err := s.c.Binder.ResolveSlot(s.term)
		if err != nil {
			return nil, err
		}
		if slot.Bound && !s.c.graphAllowed(slot.Atom) {
			return nil, nil
		}
		gctx := plan.GraphContext{Slot: slot, HasGraph: true}
		return s.c.solveGroupIn(s.group, b, gctx)
	}

	if existing, ok := b.Get(s.varName); ok {
		id, ok := s.c.Store.Atoms().Lookup(rdf.EncodeTerm(existing))
		if !ok || !s.c.graphAllowed(id) {
			return nil, nil
		}
		gctx := plan.GraphContext{Slot: rdf.BoundSlot(id), HasGraph: true}
		return s.c.solveGroupIn(s.group, b, gctx)
	}

	var all []rdf.Binding
	for _, gid := range s.c.allowedNamedGraphs() {
		raw, err := s.c.Store.Atoms().Fetch(gid)
		if err != nil {
			return nil, err
		}
		val, err := rdf.DecodeTerm(raw)
		if err != nil {
			return nil, err
		}
		seed := b.Clone()
		seed.Set(s.varName, val)
		gctx := plan.GraphContext{Slot: rdf.BoundSlot(gid), HasGraph: true}
		rows, err := s.c.solveGroupIn(s.group, seed, gctx)
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
	}
	return all, nil
}

// subqueryScan evaluates a nested SELECT independently (non-correlated,
// like a standalone query against the store) and natural-joins its
// projected rows onto the outer row by shared variable names.
type subqueryScan struct {
	c     *Compiler
	query *sparql.Query

	rows     []rdf.Binding
	idx      int
	opened   bool
	original rdf.Binding
}

func newSubqueryScan(c *Compiler, q *sparql.Query) *subqueryScan {
	return &subqueryScan{c: c, query: q}
}

func (s *subqueryScan) MoveNext(b *Bindings) (bool, error) {
	if !s.opened {
		s.original = b.Snapshot()
		rows, err := s.c.solveQuery(s.query)
		if err != nil {
			return false, err
		}
		var joined []rdf.Binding
		for _, row := range rows {
			merged, ok := joinCompatible(s.original, row)
			if ok {
				joined = append(joined, merged)
			}
		}
		s.rows = joined
		s.idx = 0
		s.opened = true
	}
	if s.idx >= len(s.rows) {
		s.opened = false
		s.rows = nil
		b.assign(&Bindings{vars: s.original})
		return false, nil
	}
	row := s.rows[s.idx]
	s.idx++
	b.assign(&Bindings{vars: row})
	return true, nil
}

func (s *subqueryScan) Dispose() {}

// joinCompatible merges two bindings, succeeding only if every variable
// shared between them carries an equal value.
func joinCompatible(a, b rdf.Binding) (rdf.Binding, bool) {
	out := make(rdf.Binding, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		if existing, ok := out[k]; ok && !existing.Equal(v) {
			return nil, false
		}
		out[k] = v
	}
	return out, true
}
