package plan

import (
	"github.com/larkspur/quadstore/rdf"
	"github.com/larkspur/quadstore/sparql"
	"github.com/larkspur/quadstore/store"
)

// Binder resolves AST terms against one store's atom space: constants
// are interned (never merely looked up) so a pattern naming a term the
// store has not yet seen still produces a valid, simply empty, scan
// rather than an error.
type Binder struct {
	Store    *store.Store
	Src      []byte
	Prefixes PrefixMap
}

// NewBinder builds a Binder for one query/update's source text and
// PREFIX declarations.
func NewBinder(st *store.Store, src []byte, decls []sparql.PrefixDecl) *Binder {
	return &Binder{Store: st, Src: src, Prefixes: BuildPrefixMap(src, decls)}
}

// ResolveSlot turns one AST term into a pattern Slot: a variable name,
// or an interned constant atom id.
func (b *Binder) ResolveSlot(t sparql.Term) (rdf.Slot, error) {
	if t.Kind == sparql.TermVar {
		return rdf.VarSlot(t.Span.Text(b.Src)[1:]), nil
	}
	val, err := ResolveValue(t, b.Src, b.Prefixes)
	if err != nil {
		return rdf.Slot{}, err
	}
	id, err := b.Store.Atoms().Intern(rdf.EncodeTerm(val))
	if err != nil {
		return rdf.Slot{}, err
	}
	return rdf.BoundSlot(id), nil
}

// ResolveExisting is ResolveSlot but via Lookup, not Intern: used when
// interning a never-before-seen term would be wrong, e.g. resolving a
// DELETE template's ground terms against data that may not exist.
func (b *Binder) ResolveExisting(t sparql.Term) (rdf.Slot, bool, error) {
	if t.Kind == sparql.TermVar {
		return rdf.VarSlot(t.Span.Text(b.Src)[1:]), true, nil
	}
	val, err := ResolveValue(t, b.Src, b.Prefixes)
	if err != nil {
		return rdf.Slot{}, false, err
	}
	id, ok := b.Store.Atoms().Lookup(rdf.EncodeTerm(val))
	if !ok {
		return rdf.Slot{}, false, nil
	}
	return rdf.BoundSlot(id), true, nil
}
