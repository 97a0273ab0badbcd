package exec

import "github.com/larkspur/quadstore/rdf"

// Bindings is the mutable current solution row threaded through a Scan
// tree's MoveNext calls: every scan at every nesting level reads and
// writes the same *Bindings, rather than allocating a fresh map per
// candidate, matching the module's general zero-allocation-on-the-
// hot-path bent (atom interning, B+Tree iteration).
type Bindings struct {
	vars rdf.Binding
}

// NewBindings returns an empty solution row.
func NewBindings() *Bindings {
	return &Bindings{vars: rdf.Binding{}}
}

func (b *Bindings) Get(name string) (rdf.Value, bool) {
	v, ok := b.vars[name]
	return v, ok
}

func (b *Bindings) Set(name string, v rdf.Value) {
	b.vars[name] = v
}

func (b *Bindings) Unset(name string) {
	delete(b.vars, name)
}

// Clone deep-copies the current row, e.g. to snapshot one solution out
// of a scan tree that will keep mutating the shared row afterward.
func (b *Bindings) Clone() *Bindings {
	return &Bindings{vars: b.vars.Clone()}
}

// assign replaces b's backing map wholesale — the mechanism structural
// scans (OPTIONAL/UNION/MINUS/GRAPH/subquery) use to apply or roll back
// one materialized alternative without per-key unset bookkeeping.
func (b *Bindings) assign(other *Bindings) {
	b.vars = other.vars
}

// Snapshot returns an independent copy of the row as a plain
// rdf.Binding, suitable for handing to the solution pipeline.
func (b *Bindings) Snapshot() rdf.Binding {
	return b.vars.Clone()
}
