package exec

import (
	"context"

	"github.com/larkspur/quadstore/plan"
	"github.com/larkspur/quadstore/qerr"
	"github.com/larkspur/quadstore/rdf"
	"github.com/larkspur/quadstore/sparql"
	"github.com/larkspur/quadstore/store"
)

// Compiler turns a parsed group pattern into a Scan tree, recursively,
// for every nested OPTIONAL/UNION/MINUS/GRAPH/subquery construct it
// meets along the way. One Compiler serves a whole query: its
// histogram and quad-count snapshots are reused by every plan.Build
// call so nested groups cost-estimate consistently with the outer one.
type Compiler struct {
	Store  *store.Store
	Binder *plan.Binder
	Ctx    context.Context

	hist       map[rdf.AtomID]uint64
	totalQuads uint64

	// datasetNamed restricts GRAPH ?g/GRAPH <iri> scans to the query's
	// declared FROM NAMED set; nil means unrestricted (no FROM NAMED
	// clause, every named graph in the store is visible). Set once per
	// top-level query by RestrictDataset and shared by every nested or
	// subquery compile through this same Compiler, so a subquery never
	// widens visibility beyond its parent's FROM NAMED (SPEC_FULL.md §9).
	datasetNamed map[rdf.AtomID]bool
}

// NewCompiler snapshots the store's predicate histogram once; a single
// query's planning uses that one snapshot rather than re-reading it for
// every nested group.
func NewCompiler(ctx context.Context, st *store.Store, b *plan.Binder) *Compiler {
	return &Compiler{
		Store:      st,
		Binder:     b,
		Ctx:        ctx,
		hist:       st.PredicateHistogram(),
		totalQuads: st.Stats().QuadCount,
	}
}

// CompileGroup builds the top-level Scan for a query's WHERE clause.
func (c *Compiler) CompileGroup(g *sparql.GroupGraphPattern) (Scan, error) {
	return c.compileGroup(g, plan.GraphContext{})
}

// RestrictDataset narrows every GRAPH ?g/GRAPH <iri> scan this Compiler
// later builds (including nested subqueries, which share this same
// Compiler) to the named graphs resolved from fromNamed. An empty
// fromNamed leaves the compiler unrestricted. A name that doesn't
// resolve to an existing atom contributes no graph rather than erroring,
// since naming a graph that doesn't exist yet just restricts to nothing
// new, not a query error.
func (c *Compiler) RestrictDataset(fromNamed []sparql.Term) error {
	if len(fromNamed) == 0 {
		return nil
	}
	restricted := make(map[rdf.AtomID]bool, len(fromNamed))
	for _, t := range fromNamed {
		iri, err := plan.ResolveIRI(t, c.Binder.Src, c.Binder.Prefixes)
		if err != nil {
			return err
		}
		id, ok := c.Store.Atoms().Lookup(rdf.EncodeTerm(rdf.IRI(iri)))
		if !ok {
			continue
		}
		restricted[id] = true
	}
	c.datasetNamed = restricted
	return nil
}

// allowedNamedGraphs returns the named graphs an unbound GRAPH ?g scan
// may visit under the current dataset restriction.
func (c *Compiler) allowedNamedGraphs() []rdf.AtomID {
	all := c.Store.NamedGraphs()
	if c.datasetNamed == nil {
		return all
	}
	out := make([]rdf.AtomID, 0, len(all))
	for _, gid := range all {
		if c.datasetNamed[gid] {
			out = append(out, gid)
		}
	}
	return out
}

// graphAllowed reports whether a bound graph id is visible under the
// current dataset restriction.
func (c *Compiler) graphAllowed(gid rdf.AtomID) bool {
	return c.datasetNamed == nil || c.datasetNamed[gid]
}

func (c *Compiler) compileGroup(g *sparql.GroupGraphPattern, gctx plan.GraphContext) (Scan, error) {
	p, err := plan.Build(c.Binder, g, c.hist, c.totalQuads, gctx)
	if err != nil {
		return nil, err
	}

	directVars := map[string]bool{}
	for _, st := range p.Steps {
		for _, v := range st.Vars {
			directVars[v] = true
		}
	}

	eval := c.evaluator()
	children := make([]Scan, 0, len(p.Steps)+g.BindCount+g.GraphCount+g.MinusCount+len(g.Optional)+len(g.Union)+g.SubqueryCount)
	var deferred []*sparql.Expr

	for i := 0; i <= len(p.Steps); i++ {
		if i < len(p.Steps) {
			leaf, err := c.compileStep(p.Steps[i])
			if err != nil {
				return nil, err
			}
			children = append(children, leaf)
		}
		if i < 8 {
			for _, f := range p.FilterLevels[i] {
				if coveredBy(plan.ExprVars(f, c.Binder.Src), directVars) {
					children = append(children, newFilterScan(eval, f))
				} else {
					deferred = append(deferred, f)
				}
			}
		}
	}

	for i := 0; i < g.BindCount; i++ {
		bind := g.Binds[i]
		varName := c.text(bind.Var)
		if bind.Expr.Kind == sparql.ExprCall && bind.Expr.Op == "VALUES_ONE_OF" {
			children = append(children, newValuesScan(eval, varName, bind.Expr.Args))
		} else {
			children = append(children, newBindScan(eval, bind, varName))
		}
	}

	for i := 0; i < g.GraphCount; i++ {
		gc := g.Graphs[i]
		children = append(children, newGraphScan(c, gc.Term, gc.Group))
	}
	for _, opt := range g.Optional {
		children = append(children, newOptionalScan(c, opt))
	}
	for _, u := range g.Union {
		children = append(children, newUnionScan(c, u[0], u[1]))
	}
	for i := 0; i < g.MinusCount; i++ {
		children = append(children, newMinusScan(c, g.Minus[i]))
	}
	for i := 0; i < g.SubqueryCount; i++ {
		children = append(children, newSubqueryScan(c, g.Subqueries[i]))
	}

	for _, f := range deferred {
		children = append(children, newFilterScan(eval, f))
	}

	if len(children)+1 > defaultMaxScanLevels {
		return nil, qerr.Newf(qerr.Capacity, "group needs %d scan levels, exceeding the %d-level limit", len(children)+1, defaultMaxScanLevels)
	}

	return newMultiPatternScan(c.Ctx, children), nil
}

func (c *Compiler) compileStep(st plan.Step) (Scan, error) {
	if st.Kind == plan.StepTriple {
		return newTriplePatternScan(c.Store, st.Pattern), nil
	}
	return newPathScan(c.Store, c.Binder, st.Path, st.SSlot, st.OSlot, st.Graph, st.HasGraph), nil
}

func (c *Compiler) evaluator() *Evaluator {
	return &Evaluator{
		Src:         c.Binder.Src,
		Prefixes:    c.Binder.Prefixes,
		ExistsCheck: c.existsCheck,
	}
}

func (c *Compiler) existsCheck(g *sparql.GroupGraphPattern, b *Bindings) (bool, error) {
	sc, err := c.compileGroup(g, plan.GraphContext{})
	if err != nil {
		return false, err
	}
	defer sc.Dispose()
	seed := b.Clone()
	return sc.MoveNext(seed)
}

func (c *Compiler) text(t sparql.Term) string { return t.Span.Text(c.Binder.Src)[1:] }

func coveredBy(vars []string, set map[string]bool) bool {
	for _, v := range vars {
		if !set[v] {
			return false
		}
	}
	return true
}

// solveGroup evaluates a nested group correlated to outer's current row
// (cloned so the nested scan's own bindings don't leak back except
// through the returned rows), returning every resulting solution.
func (c *Compiler) solveGroup(g *sparql.GroupGraphPattern, outer *Bindings) ([]rdf.Binding, error) {
	return c.solveGroupIn(g, outer, plan.GraphContext{})
}

func (c *Compiler) solveGroupIn(g *sparql.GroupGraphPattern, outer *Bindings, gctx plan.GraphContext) ([]rdf.Binding, error) {
	sc, err := c.compileGroup(g, gctx)
	if err != nil {
		return nil, err
	}
	defer sc.Dispose()
	seed := outer.Clone()
	var rows []rdf.Binding
	for {
		ok, err := sc.MoveNext(seed)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		rows = append(rows, seed.Snapshot())
	}
	return rows, nil
}

// solveQuery evaluates a subquery independently (no correlation to any
// outer row) and projects down to its own SELECT list, since only those
// variables are visible to the enclosing group's natural join.
func (c *Compiler) solveQuery(q *sparql.Query) ([]rdf.Binding, error) {
	sc, err := c.compileGroup(q.Where, plan.GraphContext{})
	if err != nil {
		return nil, err
	}
	defer sc.Dispose()
	b := NewBindings()
	var rows []rdf.Binding
	for {
		ok, err := sc.MoveNext(b)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		rows = append(rows, c.projectRow(q, b))
	}
	return rows, nil
}

// projectRow narrows a subquery solution down to its SELECT list.
// Computed/aggregate projections inside a subquery are a
// documented scope limitation (DESIGN.md): only bare-variable and
// SELECT * projections cross the subquery boundary here; the top-level
// solution pipeline (exec/pipeline.go) handles the full projection
// grammar for the outermost query.
func (c *Compiler) projectRow(q *sparql.Query, b *Bindings) rdf.Binding {
	if q.ProjectAll {
		return b.Snapshot()
	}
	out := rdf.Binding{}
	for _, p := range q.Projection {
		if p.IsAggregate || p.Var.Kind != sparql.TermVar {
			continue
		}
		name := c.text(p.Var)
		if v, ok := b.Get(name); ok {
			out[name] = v
		}
	}
	return out
}
