// Package update executes parsed SPARQL Update operations (INSERT DATA,
// DELETE DATA, CLEAR, DROP, DELETE/INSERT/WHERE) against a store,
// reusing the exec package's WHERE-clause evaluation for the Modify
// form and committing every mutation through store.Batch/store.Remove
// under the store's own writer lock (spec.md §4.10).
package update

import (
	"context"
	"strconv"

	"github.com/go-kit/log/level"

	"github.com/larkspur/quadstore/exec"
	"github.com/larkspur/quadstore/plan"
	"github.com/larkspur/quadstore/qerr"
	"github.com/larkspur/quadstore/quadlog"
	"github.com/larkspur/quadstore/rdf"
	"github.com/larkspur/quadstore/sparql"
	"github.com/larkspur/quadstore/store"
)

// Result reports how many quads an update operation inserted and
// removed.
type Result struct {
	Inserted int
	Deleted  int
}

// Execute parses src as a single SPARQL Update operation and applies it
// to st.
func Execute(ctx context.Context, st *store.Store, src []byte) (Result, error) {
	u, err := sparql.ParseUpdate(src)
	if err != nil {
		return Result{}, err
	}
	binder := plan.NewBinder(st, src, u.Prefixes)
	log := quadlog.With("component", "update")

	switch u.Kind {
	case sparql.UpdateInsertData:
		n, err := applyGroundData(st, binder, u.Data, u.GraphTerm, true)
		if err != nil {
			return Result{}, err
		}
		level.Debug(log).Log("msg", "insert data applied", "quads", n)
		return Result{Inserted: n}, nil

	case sparql.UpdateDeleteData:
		n, err := applyGroundData(st, binder, u.Data, u.GraphTerm, false)
		if err != nil {
			return Result{}, err
		}
		level.Debug(log).Log("msg", "delete data applied", "quads", n)
		return Result{Deleted: n}, nil

	case sparql.UpdateClear:
		n, err := applyClear(st, binder, u.Target, u.TargetGraph)
		if err != nil {
			return Result{}, err
		}
		level.Debug(log).Log("msg", "clear applied", "quads", n)
		return Result{Deleted: n}, nil

	case sparql.UpdateDrop:
		n, err := applyClear(st, binder, u.Target, u.TargetGraph)
		if err != nil {
			return Result{}, err
		}
		level.Debug(log).Log("msg", "drop applied", "quads", n)
		return Result{Deleted: n}, nil

	case sparql.UpdateModify:
		return applyModify(ctx, st, binder, u)

	default:
		return Result{}, qerr.Newf(qerr.Semantic, "unsupported update kind %d", u.Kind)
	}
}

// applyGroundData interns (insert=true) or looks up (insert=false) every
// term of each ground triple and buffers/removes the resulting quads.
// Terms that can't be found during a delete are simply skipped, per
// SPARQL's "DELETE DATA only removes what actually matches" semantics.
func applyGroundData(st *store.Store, b *plan.Binder, data []sparql.TriplePattern, graphTerm sparql.Term, insert bool) (int, error) {
	var graph rdf.AtomID
	if graphTerm.IsSet() {
		slot, err := resolveGraphSlot(b, graphTerm, insert)
		if err != nil {
			return 0, err
		}
		if !slot.Bound {
			return 0, nil // graph term never interned; nothing to delete
		}
		graph = slot.Atom
	}

	batch := st.NewBatch()
	var toRemove []rdf.Quad
	n := 0
	for _, tp := range data {
		q, ok, err := groundQuad(b, tp, graph, insert)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		if insert {
			batch.AddQuad(q)
		} else {
			toRemove = append(toRemove, q)
		}
		n++
	}
	if insert {
		if err := batch.Commit(); err != nil {
			return 0, err
		}
		return n, nil
	}
	removed := 0
	for _, q := range toRemove {
		if err := st.Remove(q); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func resolveGraphSlot(b *plan.Binder, t sparql.Term, insert bool) (rdf.Slot, error) {
	if insert {
		return b.ResolveSlot(t)
	}
	slot, _, err := b.ResolveExisting(t)
	return slot, err
}

// groundQuad resolves one ground triple pattern's three terms to atom
// ids (interning on insert, looking up on delete) and folds in the
// already-resolved graph atom (default graph when graphTerm was unset).
func groundQuad(b *plan.Binder, tp sparql.TriplePattern, graph rdf.AtomID, insert bool) (rdf.Quad, bool, error) {
	s, ok, err := resolveGroundTerm(b, tp.S, insert)
	if err != nil || !ok {
		return rdf.Quad{}, false, err
	}
	p, ok, err := resolveGroundTerm(b, tp.Path.IRI, insert)
	if err != nil || !ok {
		return rdf.Quad{}, false, err
	}
	o, ok, err := resolveGroundTerm(b, tp.O, insert)
	if err != nil || !ok {
		return rdf.Quad{}, false, err
	}
	return rdf.Quad{S: s, P: p, O: o, G: graph}, true, nil
}

func resolveGroundTerm(b *plan.Binder, t sparql.Term, insert bool) (rdf.AtomID, bool, error) {
	if insert {
		slot, err := b.ResolveSlot(t)
		if err != nil {
			return 0, false, err
		}
		return slot.Atom, true, nil
	}
	slot, ok, err := b.ResolveExisting(t)
	if err != nil || !ok {
		return 0, false, err
	}
	return slot.Atom, true, nil
}

// applyClear removes every quad CLEAR/DROP's target names: one specific
// graph, the default graph, every named graph, or both (ALL).
func applyClear(st *store.Store, b *plan.Binder, target sparql.ClearTarget, graphTerm sparql.Term) (int, error) {
	switch target {
	case sparql.ClearGraphIRI:
		slot, ok, err := b.ResolveExisting(graphTerm)
		if err != nil || !ok {
			return 0, err
		}
		return clearGraph(st, slot.Atom, true)
	case sparql.ClearDefault:
		return clearGraph(st, rdf.DefaultGraph, false)
	case sparql.ClearNamed:
		return clearNamedGraphs(st)
	case sparql.ClearAll:
		n, err := clearGraph(st, rdf.DefaultGraph, false)
		if err != nil {
			return n, err
		}
		m, err := clearNamedGraphs(st)
		return n + m, err
	default:
		return 0, qerr.Newf(qerr.Semantic, "unsupported clear target %d", target)
	}
}

func clearNamedGraphs(st *store.Store) (int, error) {
	total := 0
	for _, g := range st.NamedGraphs() {
		n, err := clearGraph(st, g, true)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func clearGraph(st *store.Store, graph rdf.AtomID, hasGraph bool) (int, error) {
	pattern := rdf.Pattern{HasGraph: hasGraph}
	if hasGraph {
		pattern.G = rdf.BoundSlot(graph)
	}
	it, err := st.Lookup(pattern)
	if err != nil {
		return 0, err
	}
	defer it.Close()
	var quads []rdf.Quad
	for {
		q, ok := it.Next()
		if !ok {
			break
		}
		quads = append(quads, q)
	}
	for _, q := range quads {
		if err := st.Remove(q); err != nil {
			return 0, err
		}
	}
	return len(quads), nil
}

// applyModify evaluates u.Where once, then for each solution instantiates
// DeleteTemplate against the store's existing data (ResolveExisting —
// never interning a term solely to delete it) and InsertTemplate against
// fresh/interned atoms, per SPARQL 1.1's "evaluate WHERE once against the
// pre-update state, then delete before insert" ordering.
func applyModify(ctx context.Context, st *store.Store, b *plan.Binder, u *sparql.Update) (Result, error) {
	compiler := exec.NewCompiler(ctx, st, b)
	scan, err := compiler.CompileGroup(u.Where)
	if err != nil {
		return Result{}, err
	}
	defer scan.Dispose()

	bnd := exec.NewBindings()
	var solutions []rdf.Binding
	for {
		ok, err := scan.MoveNext(bnd)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			break
		}
		solutions = append(solutions, bnd.Snapshot())
	}

	var toDelete, toInsert []rdf.Quad
	bnodes := map[string]string{}
	for i, sol := range solutions {
		for k := range bnodes {
			delete(bnodes, k)
		}
		for _, tp := range u.DeleteTemplate {
			q, ok, err := instantiateTemplate(st, b, tp, sol, bnodes, false, i)
			if err != nil {
				return Result{}, err
			}
			if ok {
				toDelete = append(toDelete, q)
			}
		}
		for _, tp := range u.InsertTemplate {
			q, ok, err := instantiateTemplate(st, b, tp, sol, bnodes, true, i)
			if err != nil {
				return Result{}, err
			}
			if ok {
				toInsert = append(toInsert, q)
			}
		}
	}

	deleted := 0
	for _, q := range toDelete {
		if err := st.Remove(q); err != nil {
			return Result{Deleted: deleted}, err
		}
		deleted++
	}
	batch := st.NewBatch()
	for _, q := range toInsert {
		batch.AddQuad(q)
	}
	if len(toInsert) > 0 {
		if err := batch.Commit(); err != nil {
			return Result{Deleted: deleted}, err
		}
	}
	return Result{Inserted: len(toInsert), Deleted: deleted}, nil
}

// instantiateTemplate resolves one template triple against one WHERE
// solution: variables come from the solution, blank nodes are scoped
// per-solution (labeled by solution index so the same template label
// across two solutions yields two distinct nodes), and constants are
// resolved via ResolveExisting for deletes / ResolveSlot for inserts.
func instantiateTemplate(st *store.Store, b *plan.Binder, tp sparql.TriplePattern, sol rdf.Binding, bnodes map[string]string, insert bool, solIdx int) (rdf.Quad, bool, error) {
	s, ok, err := instantiateTerm(st, b, tp.S, sol, bnodes, insert, solIdx)
	if err != nil || !ok {
		return rdf.Quad{}, false, err
	}
	p, ok, err := instantiateTerm(st, b, tp.Path.IRI, sol, bnodes, insert, solIdx)
	if err != nil || !ok {
		return rdf.Quad{}, false, err
	}
	o, ok, err := instantiateTerm(st, b, tp.O, sol, bnodes, insert, solIdx)
	if err != nil || !ok {
		return rdf.Quad{}, false, err
	}
	return rdf.Quad{S: s, P: p, O: o}, true, nil
}

func instantiateTerm(st *store.Store, b *plan.Binder, t sparql.Term, sol rdf.Binding, bnodes map[string]string, insert bool, solIdx int) (rdf.AtomID, bool, error) {
	if t.Kind == sparql.TermVar {
		name := t.Span.Text(b.Src)[1:]
		v, ok := sol[name]
		if !ok {
			return 0, false, nil
		}
		return internOrLookup(st, v, insert)
	}
	if t.Kind == sparql.TermBlankNode {
		label := t.Span.Text(b.Src)
		key, ok := bnodes[label]
		if !ok {
			key = label + "#" + strconv.Itoa(solIdx)
			bnodes[label] = key
		}
		return internOrLookup(st, rdf.BlankNode(key), insert)
	}
	return resolveGroundTerm(b, t, insert)
}

func internOrLookup(st *store.Store, v rdf.Value, insert bool) (rdf.AtomID, bool, error) {
	if insert {
		id, err := st.Atoms().Intern(rdf.EncodeTerm(v))
		if err != nil {
			return 0, false, err
		}
		return id, true, nil
	}
	id, ok := st.Atoms().Lookup(rdf.EncodeTerm(v))
	return id, ok, nil
}
