package reasoner

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/larkspur/quadstore/rdf"
	"github.com/larkspur/quadstore/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.OpenWithRegisterer(t.TempDir(), store.Config{}, prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func add(t *testing.T, s *store.Store, subj, pred, obj rdf.Value) {
	t.Helper()
	_, err := s.Add(rdf.EncodeTerm(subj), rdf.EncodeTerm(pred), rdf.EncodeTerm(obj), nil)
	require.NoError(t, err)
}

func hasQuad(t *testing.T, s *store.Store, subj, pred, obj rdf.Value) bool {
	t.Helper()
	sid, ok := s.Atoms().Lookup(rdf.EncodeTerm(subj))
	if !ok {
		return false
	}
	pid, ok := s.Atoms().Lookup(rdf.EncodeTerm(pred))
	if !ok {
		return false
	}
	oid, ok := s.Atoms().Lookup(rdf.EncodeTerm(obj))
	if !ok {
		return false
	}
	it, err := s.Lookup(rdf.Pattern{S: rdf.BoundSlot(sid), P: rdf.BoundSlot(pid), O: rdf.BoundSlot(oid)})
	require.NoError(t, err)
	defer it.Close()
	_, found := it.Next()
	return found
}

func TestSubClassTransitivityAndInstance(t *testing.T) {
	s := newTestStore(t)
	subClassOf := rdf.IRI(rdfsSubClassOf)
	typeP := rdf.IRI(rdfType)
	cat := rdf.IRI("http://ex/Cat")
	mammal := rdf.IRI("http://ex/Mammal")
	animal := rdf.IRI("http://ex/Animal")
	felix := rdf.IRI("http://ex/felix")

	add(t, s, cat, subClassOf, mammal)
	add(t, s, mammal, subClassOf, animal)
	add(t, s, felix, typeP, cat)

	n, err := New(s, Config{}).Run(context.Background())
	require.NoError(t, err)
	require.Greater(t, n, 0)

	require.True(t, hasQuad(t, s, cat, subClassOf, animal), "transitive subClassOf")
	require.True(t, hasQuad(t, s, felix, typeP, mammal), "instance via subClassOf")
	require.True(t, hasQuad(t, s, felix, typeP, animal), "instance via transitive subClassOf")
}

func TestDomainAndRangeInference(t *testing.T) {
	s := newTestStore(t)
	typeP := rdf.IRI(rdfType)
	domainP := rdf.IRI(rdfsDomain)
	rangeP := rdf.IRI(rdfsRange)
	knows := rdf.IRI("http://ex/knows")
	person := rdf.IRI("http://ex/Person")
	alice := rdf.IRI("http://ex/alice")
	bob := rdf.IRI("http://ex/bob")

	add(t, s, knows, domainP, person)
	add(t, s, knows, rangeP, person)
	add(t, s, alice, knows, bob)

	_, err := New(s, Config{}).Run(context.Background())
	require.NoError(t, err)

	require.True(t, hasQuad(t, s, alice, typeP, person))
	require.True(t, hasQuad(t, s, bob, typeP, person))
}

func TestTransitiveAndSymmetricProperty(t *testing.T) {
	s := newTestStore(t)
	typeP := rdf.IRI(rdfType)
	ancestor := rdf.IRI("http://ex/ancestorOf")
	sibling := rdf.IRI("http://ex/siblingOf")
	a, b, c := rdf.IRI("http://ex/a"), rdf.IRI("http://ex/b"), rdf.IRI("http://ex/c")

	add(t, s, ancestor, typeP, rdf.IRI(owlTransitiveProp))
	add(t, s, sibling, typeP, rdf.IRI(owlSymmetricProp))
	add(t, s, a, ancestor, b)
	add(t, s, b, ancestor, c)
	add(t, s, a, sibling, b)

	_, err := New(s, Config{}).Run(context.Background())
	require.NoError(t, err)

	require.True(t, hasQuad(t, s, a, ancestor, c), "transitive property closure")
	require.True(t, hasQuad(t, s, b, sibling, a), "symmetric property closure")
}

func TestInverseOfBothDirections(t *testing.T) {
	s := newTestStore(t)
	parentOf := rdf.IRI("http://ex/parentOf")
	childOf := rdf.IRI("http://ex/childOf")
	alice := rdf.IRI("http://ex/alice")
	bob := rdf.IRI("http://ex/bob")

	add(t, s, parentOf, rdf.IRI(owlInverseOf), childOf)
	add(t, s, alice, parentOf, bob)

	_, err := New(s, Config{}).Run(context.Background())
	require.NoError(t, err)

	require.True(t, hasQuad(t, s, bob, childOf, alice))
}

func TestSameAsClosesTransitivelyAndSymmetrically(t *testing.T) {
	s := newTestStore(t)
	sameAs := rdf.IRI(owlSameAs)
	a, b, c := rdf.IRI("http://ex/a"), rdf.IRI("http://ex/b"), rdf.IRI("http://ex/c")

	add(t, s, a, sameAs, b)
	add(t, s, b, sameAs, c)

	_, err := New(s, Config{}).Run(context.Background())
	require.NoError(t, err)

	require.True(t, hasQuad(t, s, a, sameAs, c), "transitive sameAs")
	require.True(t, hasQuad(t, s, c, sameAs, a), "symmetric sameAs")
}

func TestEquivalentClassImpliesMutualSubClassOf(t *testing.T) {
	s := newTestStore(t)
	subClassOf := rdf.IRI(rdfsSubClassOf)
	equivClass := rdf.IRI(owlEquivalentClass)
	car := rdf.IRI("http://ex/Car")
	automobile := rdf.IRI("http://ex/Automobile")

	add(t, s, car, equivClass, automobile)

	_, err := New(s, Config{}).Run(context.Background())
	require.NoError(t, err)

	require.True(t, hasQuad(t, s, car, subClassOf, automobile))
	require.True(t, hasQuad(t, s, automobile, subClassOf, car))
}

func TestRunReachesFixedPointAndStops(t *testing.T) {
	s := newTestStore(t)
	subClassOf := rdf.IRI(rdfsSubClassOf)
	a, b := rdf.IRI("http://ex/A"), rdf.IRI("http://ex/B")
	add(t, s, a, subClassOf, b)

	r := New(s, Config{MaxPasses: 10})
	n1, err := r.Run(context.Background())
	require.NoError(t, err)

	n2, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, n2, "second run over an already-saturated store infers nothing new")
	require.GreaterOrEqual(t, n1, 0)
}

func TestDisabledRuleIsNotApplied(t *testing.T) {
	s := newTestStore(t)
	subClassOf := rdf.IRI(rdfsSubClassOf)
	typeP := rdf.IRI(rdfType)
	cat := rdf.IRI("http://ex/Cat")
	mammal := rdf.IRI("http://ex/Mammal")
	felix := rdf.IRI("http://ex/felix")

	add(t, s, cat, subClassOf, mammal)
	add(t, s, felix, typeP, cat)

	_, err := New(s, Config{Rules: RuleSubClassTransitive}).Run(context.Background())
	require.NoError(t, err)

	require.False(t, hasQuad(t, s, felix, typeP, mammal), "subClassInstance rule was disabled")
}
