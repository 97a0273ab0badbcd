package exec

import (
	"context"

	"github.com/google/uuid"

	"github.com/larkspur/quadstore/plan"
	"github.com/larkspur/quadstore/rdf"
	"github.com/larkspur/quadstore/sparql"
	"github.com/larkspur/quadstore/store"
)

// Triple is a materialized (non-stored) result triple, produced by
// CONSTRUCT/DESCRIBE rather than read back from an index.
type Triple struct {
	S, P, O rdf.Value
}

// Result is the outcome of running one parsed query through the
// compiler and solution pipeline, shaped according to its QueryForm.
type Result struct {
	Form    sparql.QueryForm
	Select  *QueryResult
	Triples []Triple
}

// Execute parses src as a SPARQL query and runs it to completion
// against st, dispatching on query form.
func Execute(ctx context.Context, st *store.Store, src []byte) (*Result, error) {
	q, err := sparql.Parse(src)
	if err != nil {
		return nil, err
	}
	b := plan.NewBinder(st, src, q.Prefixes)
	c := NewCompiler(ctx, st, b)
	if err := c.RestrictDataset(q.FromNamed); err != nil {
		return nil, err
	}

	switch q.Form {
	case sparql.FormSelect, sparql.FormAsk:
		sel, err := ExecuteSelect(c, q)
		if err != nil {
			return nil, err
		}
		return &Result{Form: q.Form, Select: sel}, nil
	case sparql.FormConstruct:
		triples, err := executeConstruct(c, q)
		if err != nil {
			return nil, err
		}
		return &Result{Form: q.Form, Triples: triples}, nil
	case sparql.FormDescribe:
		triples, err := executeDescribe(c, q)
		if err != nil {
			return nil, err
		}
		return &Result{Form: q.Form, Triples: triples}, nil
	default:
		return nil, nil
	}
}

// executeConstruct instantiates the CONSTRUCT template once per WHERE
// solution, scoping each template blank node to a fresh id per
// solution (so two solutions never accidentally share a blank node),
// and dedupes the resulting triple set in memory.
func executeConstruct(c *Compiler, q *sparql.Query) ([]Triple, error) {
	sc, err := c.CompileGroup(q.Where)
	if err != nil {
		return nil, err
	}
	defer sc.Dispose()

	b := NewBindings()
	seen := map[string]bool{}
	var triples []Triple
	for {
		ok, err := sc.MoveNext(b)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		bnodes := map[string]string{}
		for i := 0; i < q.ConstructCount; i++ {
			tp := q.ConstructTemplate[i]
			sv, err1 := instantiateTerm(c, tp.S, b, bnodes)
			pv, err2 := instantiateTerm(c, tp.Path.IRI, b, bnodes)
			ov, err3 := instantiateTerm(c, tp.O, b, bnodes)
			if err1 != nil || err2 != nil || err3 != nil {
				continue
			}
			key := sv.String() + "\x1f" + pv.String() + "\x1f" + ov.String()
			if seen[key] {
				continue
			}
			seen[key] = true
			triples = append(triples, Triple{S: sv, P: pv, O: ov})
		}
	}
	return triples, nil
}

func instantiateTerm(c *Compiler, t sparql.Term, b *Bindings, bnodes map[string]string) (rdf.Value, error) {
	switch t.Kind {
	case sparql.TermVar:
		name := c.text(t)
		v, ok := b.Get(name)
		if !ok {
			return rdf.Value{}, unboundErr()
		}
		return v, nil
	case sparql.TermBlankNode:
		label := t.Span.Text(c.Binder.Src)
		fresh, ok := bnodes[label]
		if !ok {
			fresh = uuid.NewString()
			bnodes[label] = fresh
		}
		return rdf.BlankNode(fresh), nil
	default:
		return plan.ResolveValue(t, c.Binder.Src, c.Binder.Prefixes)
	}
}

// executeDescribe returns a concise bounded description (every quad with
// the described resource as subject) for each explicitly named term and,
// for `DESCRIBE *`/a bound variable, every distinct value that variable
// takes across the WHERE solutions.
func executeDescribe(c *Compiler, q *sparql.Query) ([]Triple, error) {
	var resources []rdf.Value

	for _, t := range q.DescribeTerms {
		if t.Kind == sparql.TermVar && q.Where != nil {
			vals, err := describedValues(c, q, t)
			if err != nil {
				return nil, err
			}
			resources = append(resources, vals...)
			continue
		}
		v, err := plan.ResolveValue(t, c.Binder.Src, c.Binder.Prefixes)
		if err != nil {
			return nil, err
		}
		resources = append(resources, v)
	}

	if q.DescribeAll && q.Where != nil {
		sc, err := c.CompileGroup(q.Where)
		if err != nil {
			return nil, err
		}
		defer sc.Dispose()
		b := NewBindings()
		seen := map[string]bool{}
		for {
			ok, err := sc.MoveNext(b)
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			for _, v := range b.Snapshot() {
				key := v.String()
				if !seen[key] {
					seen[key] = true
					resources = append(resources, v)
				}
			}
		}
	}

	var triples []Triple
	for _, res := range resources {
		id, ok := c.Store.Atoms().Lookup(rdf.EncodeTerm(res))
		if !ok {
			continue
		}
		it, err := c.Store.Lookup(rdf.Pattern{S: rdf.BoundSlot(id), P: rdf.VarSlot("?p"), O: rdf.VarSlot("?o")})
		if err != nil {
			return nil, err
		}
		for {
			quad, ok := it.Next()
			if !ok {
				break
			}
			pv, err := decodeAtom(c, quad.P)
			if err != nil {
				it.Close()
				return nil, err
			}
			ov, err := decodeAtom(c, quad.O)
			if err != nil {
				it.Close()
				return nil, err
			}
			triples = append(triples, Triple{S: res, P: pv, O: ov})
		}
		it.Close()
	}
	return triples, nil
}

func describedValues(c *Compiler, q *sparql.Query, t sparql.Term) ([]rdf.Value, error) {
	sc, err := c.CompileGroup(q.Where)
	if err != nil {
		return nil, err
	}
	defer sc.Dispose()
	name := c.text(t)
	b := NewBindings()
	seen := map[string]bool{}
	var out []rdf.Value
	for {
		ok, err := sc.MoveNext(b)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if v, ok := b.Get(name); ok {
			key := v.String()
			if !seen[key] {
				seen[key] = true
				out = append(out, v)
			}
		}
	}
	return out, nil
}

func decodeAtom(c *Compiler, id rdf.AtomID) (rdf.Value, error) {
	raw, err := c.Store.Atoms().Fetch(id)
	if err != nil {
		return rdf.Value{}, err
	}
	return rdf.DecodeTerm(raw)
}
