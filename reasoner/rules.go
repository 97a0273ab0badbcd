package reasoner

import (
	"context"

	"github.com/larkspur/quadstore/rdf"
	"github.com/larkspur/quadstore/store"
)

// pairsFor collects every (subject, object) pair of quads using
// predicate iri, keyed by subject for fast forward lookup.
func pairsFor(st *store.Store, iri string) (map[rdf.AtomID][]rdf.AtomID, bool, error) {
	pid, ok := lookupAtom(st, iri)
	if !ok {
		return nil, false, nil
	}
	quads, err := scanAll(st, rdf.Pattern{P: rdf.BoundSlot(pid)})
	if err != nil {
		return nil, false, err
	}
	out := make(map[rdf.AtomID][]rdf.AtomID, len(quads))
	for _, q := range quads {
		out[q.S] = append(out[q.S], q.O)
	}
	return out, true, nil
}

// ruleSubClassTransitive: (a subClassOf b) & (b subClassOf c) => (a subClassOf c).
func ruleSubClassTransitive(ctx context.Context, st *store.Store) ([]rdf.Quad, error) {
	return transitiveClosure(st, rdfsSubClassOf)
}

// ruleSubPropertyTransitive: (a subPropertyOf b) & (b subPropertyOf c) => (a subPropertyOf c).
func ruleSubPropertyTransitive(ctx context.Context, st *store.Store) ([]rdf.Quad, error) {
	return transitiveClosure(st, rdfsSubPropertyOf)
}

func transitiveClosure(st *store.Store, predIRI string) ([]rdf.Quad, error) {
	edges, ok, err := pairsFor(st, predIRI)
	if err != nil || !ok {
		return nil, err
	}
	pid, _ := lookupAtom(st, predIRI)
	var out []rdf.Quad
	for a, bs := range edges {
		for _, b := range bs {
			for _, c := range edges[b] {
				if c == a {
					continue
				}
				out = append(out, rdf.Quad{S: a, P: pid, O: c})
			}
		}
	}
	return out, nil
}

// ruleSubClassInstance: (x rdf:type a) & (a subClassOf b) => (x rdf:type b).
func ruleSubClassInstance(ctx context.Context, st *store.Store) ([]rdf.Quad, error) {
	return instanceClosure(st, rdfsSubClassOf)
}

// ruleSubPropertyInstance: (x p y) & (p subPropertyOf q) => (x q y).
func ruleSubPropertyInstance(ctx context.Context, st *store.Store) ([]rdf.Quad, error) {
	subProps, ok, err := pairsFor(st, rdfsSubPropertyOf)
	if err != nil || !ok {
		return nil, nil
	}
	all, err := scanAll(st, rdf.Pattern{})
	if err != nil {
		return nil, err
	}
	var out []rdf.Quad
	for _, q := range all {
		for _, super := range subProps[q.P] {
			out = append(out, rdf.Quad{S: q.S, P: super, O: q.O, G: q.G})
		}
	}
	return out, nil
}

func instanceClosure(st *store.Store, classPredIRI string) ([]rdf.Quad, error) {
	edges, ok, err := pairsFor(st, classPredIRI)
	if err != nil || !ok {
		return nil, err
	}
	typeID, ok := lookupAtom(st, rdfType)
	if !ok {
		return nil, nil
	}
	instances, err := scanAll(st, rdf.Pattern{P: rdf.BoundSlot(typeID)})
	if err != nil {
		return nil, err
	}
	var out []rdf.Quad
	for _, inst := range instances {
		for _, super := range edges[inst.O] {
			out = append(out, rdf.Quad{S: inst.S, P: typeID, O: super})
		}
	}
	return out, nil
}

// ruleDomain: (x p y) & (p domain c) => (x rdf:type c).
func ruleDomain(ctx context.Context, st *store.Store) ([]rdf.Quad, error) {
	return domainOrRange(st, rdfsDomain, true)
}

// ruleRange: (x p y) & (p range c) => (y rdf:type c).
func ruleRange(ctx context.Context, st *store.Store) ([]rdf.Quad, error) {
	return domainOrRange(st, rdfsRange, false)
}

func domainOrRange(st *store.Store, predIRI string, useSubject bool) ([]rdf.Quad, error) {
	classes, ok, err := pairsFor(st, predIRI)
	if err != nil || !ok {
		return nil, err
	}
	// rdf:type may not be interned yet when no type triple exists.
	typeID, err := st.Atoms().Intern(rdf.EncodeTerm(rdf.IRI(rdfType)))
	if err != nil {
		return nil, err
	}
	all, err := scanAll(st, rdf.Pattern{})
	if err != nil {
		return nil, err
	}
	var out []rdf.Quad
	for _, q := range all {
		classesFor, ok := classes[q.P]
		if !ok {
			continue
		}
		subj := q.O
		if useSubject {
			subj = q.S
		}
		for _, c := range classesFor {
			out = append(out, rdf.Quad{S: subj, P: typeID, O: c})
		}
	}
	return out, nil
}

// ruleTransitiveProperty: p declared owl:TransitiveProperty; (a p b) & (b p c) => (a p c).
func ruleTransitiveProperty(ctx context.Context, st *store.Store) ([]rdf.Quad, error) {
	props, err := declaredProperties(st, owlTransitiveProp)
	if err != nil {
		return nil, err
	}
	var out []rdf.Quad
	for p := range props {
		quads, err := scanAll(st, rdf.Pattern{P: rdf.BoundSlot(p)})
		if err != nil {
			return nil, err
		}
		bySubj := map[rdf.AtomID][]rdf.AtomID{}
		for _, q := range quads {
			bySubj[q.S] = append(bySubj[q.S], q.O)
		}
		for a, bs := range bySubj {
			for _, b := range bs {
				for _, c := range bySubj[b] {
					if c == a {
						continue
					}
					out = append(out, rdf.Quad{S: a, P: p, O: c})
				}
			}
		}
	}
	return out, nil
}

// ruleSymmetricProperty: p declared owl:SymmetricProperty; (a p b) => (b p a).
func ruleSymmetricProperty(ctx context.Context, st *store.Store) ([]rdf.Quad, error) {
	props, err := declaredProperties(st, owlSymmetricProp)
	if err != nil {
		return nil, err
	}
	var out []rdf.Quad
	for p := range props {
		quads, err := scanAll(st, rdf.Pattern{P: rdf.BoundSlot(p)})
		if err != nil {
			return nil, err
		}
		for _, q := range quads {
			out = append(out, rdf.Quad{S: q.O, P: p, O: q.S})
		}
	}
	return out, nil
}

func declaredProperties(st *store.Store, classIRI string) (map[rdf.AtomID]bool, error) {
	typeID, ok := lookupAtom(st, rdfType)
	if !ok {
		return nil, nil
	}
	classID, ok := lookupAtom(st, classIRI)
	if !ok {
		return nil, nil
	}
	quads, err := scanAll(st, rdf.Pattern{P: rdf.BoundSlot(typeID), O: rdf.BoundSlot(classID)})
	if err != nil {
		return nil, err
	}
	out := make(map[rdf.AtomID]bool, len(quads))
	for _, q := range quads {
		out[q.S] = true
	}
	return out, nil
}

// ruleInverseOf: (p owl:inverseOf q); (a p b) => (b q a), and symmetrically (a q b) => (b p a).
func ruleInverseOf(ctx context.Context, st *store.Store) ([]rdf.Quad, error) {
	pairs, ok, err := pairsFor(st, owlInverseOf)
	if err != nil || !ok {
		return nil, err
	}
	var out []rdf.Quad
	for p, qs := range pairs {
		for _, q := range qs {
			fwd, err := scanAll(st, rdf.Pattern{P: rdf.BoundSlot(p)})
			if err != nil {
				return nil, err
			}
			for _, quad := range fwd {
				out = append(out, rdf.Quad{S: quad.O, P: q, O: quad.S})
			}
			rev, err := scanAll(st, rdf.Pattern{P: rdf.BoundSlot(q)})
			if err != nil {
				return nil, err
			}
			for _, quad := range rev {
				out = append(out, rdf.Quad{S: quad.O, P: p, O: quad.S})
			}
		}
	}
	return out, nil
}

// ruleSameAs: owl:sameAs closed under symmetry and transitivity, per
// DESIGN.md's documented decision not to additionally replicate every
// other predicate across same-as individuals.
func ruleSameAs(ctx context.Context, st *store.Store) ([]rdf.Quad, error) {
	pid, ok := lookupAtom(st, owlSameAs)
	if !ok {
		return nil, nil
	}
	quads, err := scanAll(st, rdf.Pattern{P: rdf.BoundSlot(pid)})
	if err != nil {
		return nil, err
	}
	edges := map[rdf.AtomID][]rdf.AtomID{}
	for _, q := range quads {
		edges[q.S] = append(edges[q.S], q.O)
		edges[q.O] = append(edges[q.O], q.S)
	}
	var out []rdf.Quad
	for a, bs := range edges {
		for _, b := range bs {
			for _, c := range edges[b] {
				if c == a {
					continue
				}
				out = append(out, rdf.Quad{S: a, P: pid, O: c})
			}
		}
	}
	return out, nil
}

// ruleEquivalentClass: (a equivalentClass b) implies subClassOf in both
// directions plus the symmetric equivalentClass pair; subsequent passes
// of ruleSubClassTransitive/Instance pick up the rest.
func ruleEquivalentClass(ctx context.Context, st *store.Store) ([]rdf.Quad, error) {
	return equivalence(st, owlEquivalentClass, rdfsSubClassOf)
}

// ruleEquivalentProperty: analogous with subPropertyOf.
func ruleEquivalentProperty(ctx context.Context, st *store.Store) ([]rdf.Quad, error) {
	return equivalence(st, owlEquivalentProp, rdfsSubPropertyOf)
}

func equivalence(st *store.Store, equivIRI, subIRI string) ([]rdf.Quad, error) {
	eqID, ok := lookupAtom(st, equivIRI)
	if !ok {
		return nil, nil
	}
	// The subClassOf/subPropertyOf predicate may not be interned yet.
	subID, err := st.Atoms().Intern(rdf.EncodeTerm(rdf.IRI(subIRI)))
	if err != nil {
		return nil, err
	}
	quads, err := scanAll(st, rdf.Pattern{P: rdf.BoundSlot(eqID)})
	if err != nil {
		return nil, err
	}
	var out []rdf.Quad
	for _, q := range quads {
		out = append(out, rdf.Quad{S: q.S, P: subID, O: q.O})
		out = append(out, rdf.Quad{S: q.O, P: subID, O: q.S})
		out = append(out, rdf.Quad{S: q.O, P: eqID, O: q.S})
	}
	return out, nil
}
