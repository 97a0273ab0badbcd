package plan

import (
	"github.com/larkspur/quadstore/rdf"
	"github.com/larkspur/quadstore/sparql"
)

// StepKind distinguishes a plain triple-pattern scan from a
// property-path scan, which the exec package walks recursively instead
// of resolving through a single store.Lookup call.
type StepKind int

const (
	StepTriple StepKind = iota
	StepPath
)

// Step is one resolved, ordered pattern in a plan.
type Step struct {
	Kind StepKind

	Pattern rdf.Pattern // StepTriple

	SSlot rdf.Slot // StepPath subject
	OSlot rdf.Slot // StepPath object
	Path  *sparql.PropertyPath
	Graph rdf.Slot
	HasGraph bool

	// Vars lists every variable name this step can newly bind, used for
	// reordering and filter push-down bookkeeping.
	Vars []string
}

// Plan is an ordered scan plan for one GroupGraphPattern's direct
// pattern list (nested OPTIONAL/UNION/MINUS/GRAPH/subquery groups are
// planned independently, recursively, by the exec package).
type Plan struct {
	Steps        []Step
	FilterLevels [8][]*sparql.Expr
}

// maxFilterLevel mirrors SPEC_FULL.md §4.5's "push down to levels 0..7"
// bound: a filter whose variables aren't all bound until later than
// this collapses onto the last level instead of growing the array.
const maxFilterLevel = 7

// GraphContext carries the enclosing GRAPH clause's slot (if any) down
// into every direct pattern of a group: a bound IRI restricts the scan
// to that graph, a variable makes it a named-graph scan, and the zero
// value (HasGraph == false) means the default graph.
type GraphContext struct {
	Slot     rdf.Slot
	HasGraph bool
}

// Build resolves every direct triple pattern in g against store atoms,
// reorders them by estimated cardinality, and places filters at the
// earliest level safe for each. gctx stamps the enclosing GRAPH clause
// (if any) onto every resolved pattern.
func Build(b *Binder, g *sparql.GroupGraphPattern, hist map[rdf.AtomID]uint64, totalQuads uint64, gctx GraphContext) (*Plan, error) {
	steps := make([]Step, 0, g.PatternCount)
	for i := 0; i < g.PatternCount; i++ {
		st, err := resolveStep(b, g.Patterns[i], gctx)
		if err != nil {
			return nil, err
		}
		steps = append(steps, st)
	}

	ordered := reorder(steps, hist, totalQuads)

	p := &Plan{Steps: ordered}
	boundAt := boundLevels(ordered)
	for i := 0; i < g.FilterCount; i++ {
		f := g.Filters[i].Expr
		level := filterLevel(f, boundAt, b.Src)
		p.FilterLevels[level] = append(p.FilterLevels[level], f)
	}
	return p, nil
}

func resolveStep(b *Binder, tp sparql.TriplePattern, gctx GraphContext) (Step, error) {
	sSlot, err := b.ResolveSlot(tp.S)
	if err != nil {
		return Step{}, err
	}
	oSlot, err := b.ResolveSlot(tp.O)
	if err != nil {
		return Step{}, err
	}
	vars := collectSlotVars(sSlot, oSlot)
	if gctx.HasGraph && gctx.Slot.Variable != "" {
		vars = append(vars, gctx.Slot.Variable)
	}

	if tp.Path.Kind != sparql.PathSimple {
		return Step{
			Kind:     StepPath,
			SSlot:    sSlot,
			OSlot:    oSlot,
			Path:     &tp.Path,
			Graph:    gctx.Slot,
			HasGraph: gctx.HasGraph,
			Vars:     vars,
		}, nil
	}

	pSlot, err := b.ResolveSlot(tp.Path.IRI)
	if err != nil {
		return Step{}, err
	}
	if pSlot.Variable != "" {
		vars = append(vars, pSlot.Variable)
	}
	return Step{
		Kind:     StepTriple,
		Pattern:  rdf.Pattern{S: sSlot, P: pSlot, O: oSlot, G: gctx.Slot, HasGraph: gctx.HasGraph},
		Graph:    gctx.Slot,
		HasGraph: gctx.HasGraph,
		Vars:     vars,
	}, nil
}

func collectSlotVars(slots ...rdf.Slot) []string {
	var vars []string
	for _, s := range slots {
		if !s.Bound && s.Variable != "" {
			vars = append(vars, s.Variable)
		}
	}
	return vars
}

// estimate scores a step's cardinality given which variables are
// already bound by earlier steps: a variable bound upstream acts as a
// constant for this purpose, so a pattern that joins onto prior results
// is scored as if that slot were bound from the start.
func estimate(st Step, bound map[string]bool, hist map[rdf.AtomID]uint64, totalQuads uint64) uint64 {
	if st.Kind == StepPath {
		return totalQuads/4 + 1 // unindexed by predicate; treat as moderately expensive
	}
	effBound := func(s rdf.Slot) bool {
		return s.Bound || (s.Variable != "" && bound[s.Variable])
	}
	sBound := effBound(st.Pattern.S)
	pBound := effBound(st.Pattern.P)
	oBound := effBound(st.Pattern.O)

	switch {
	case sBound && pBound:
		return 1
	case sBound:
		return 10
	case pBound:
		if st.Pattern.P.Bound {
			if c, ok := hist[st.Pattern.P.Atom]; ok && c > 0 {
				return c
			}
		}
		return 1000
	case oBound:
		return 2000
	default:
		return totalQuads + 1
	}
}

// reorder greedily picks, at each step, the remaining pattern with the
// lowest estimated cardinality given variables bound so far — patterns
// that join onto already-bound variables become cheap automatically,
// which is what drives the algorithm toward a connected join order
// without separate connectivity bookkeeping.
func reorder(steps []Step, hist map[rdf.AtomID]uint64, totalQuads uint64) []Step {
	remaining := append([]Step(nil), steps...)
	bound := make(map[string]bool, len(steps)*2)
	ordered := make([]Step, 0, len(steps))

	for len(remaining) > 0 {
		bestIdx := 0
		bestCost := estimate(remaining[0], bound, hist, totalQuads)
		for i := 1; i < len(remaining); i++ {
			c := estimate(remaining[i], bound, hist, totalQuads)
			if c < bestCost {
				bestCost, bestIdx = c, i
			}
		}
		chosen := remaining[bestIdx]
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
		ordered = append(ordered, chosen)
		for _, v := range chosen.Vars {
			bound[v] = true
		}
	}
	return ordered
}

// boundLevels maps each variable to the first step index (0-based,
// exclusive of that step) after which it is guaranteed bound.
func boundLevels(ordered []Step) map[string]int {
	levels := make(map[string]int, len(ordered)*2)
	for i, st := range ordered {
		for _, v := range st.Vars {
			if _, ok := levels[v]; !ok {
				levels[v] = i + 1
			}
		}
	}
	return levels
}

func filterLevel(f *sparql.Expr, boundAt map[string]int, src []byte) int {
	level := 0
	for _, v := range exprVars(f, src) {
		if lv, ok := boundAt[v]; ok && lv > level {
			level = lv
		}
	}
	if level > maxFilterLevel {
		level = maxFilterLevel
	}
	return level
}

// ExprVars collects every TermVar reference in an expression tree; used
// by exec's compiler to decide whether a filter is fully covered by the
// group's direct patterns (safe to push down per FilterLevels) or
// reaches into a nested OPTIONAL/GRAPH/subquery (deferred until after
// those nested scans run).
func ExprVars(e *sparql.Expr, src []byte) []string { return exprVars(e, src) }

// exprVars collects every TermVar reference in an expression tree.
// EXISTS/NOT EXISTS sub-groups are not descended into: their own
// pattern variables are scoped to the nested group, not free variables
// of the enclosing filter (documented in DESIGN.md).
func exprVars(e *sparql.Expr, src []byte) []string {
	if e == nil {
		return nil
	}
	var vars []string
	var walk func(*sparql.Expr)
	walk = func(e *sparql.Expr) {
		if e == nil {
			return
		}
		if e.Kind == sparql.ExprTerm && e.Term.Kind == sparql.TermVar {
			vars = append(vars, e.Term.Span.Text(src)[1:])
			return
		}
		walk(e.Left)
		walk(e.Right)
		for _, a := range e.Args {
			walk(a)
		}
	}
	walk(e)
	return vars
}
