package update

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

func add(t *testing.T, s *store.Store, subj, pred, obj rdf.Value, graph string) {
	t.Helper()
	var g []byte
	if graph != "" {
		g = rdf.EncodeTerm(rdf.IRI(graph))
	}
	_, err := s.Add(rdf.EncodeTerm(subj), rdf.EncodeTerm(pred), rdf.EncodeTerm(obj), g)
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

func TestInsertDataAddsGroundTriples(t *testing.T) {
	s := newTestStore(t)
	res, err := Execute(context.Background(), s, []byte(
		`INSERT DATA { <http://ex/alice> <http://ex/knows> <http://ex/bob> }`))
	require.NoError(t, err)
	require.Equal(t, 1, res.Inserted)
	require.True(t, hasQuad(t, s, rdf.IRI("http://ex/alice"), rdf.IRI("http://ex/knows"), rdf.IRI("http://ex/bob")))
}

func TestInsertDataIntoNamedGraph(t *testing.T) {
	s := newTestStore(t)
	res, err := Execute(context.Background(), s, []byte(
		`INSERT DATA { GRAPH <http://ex/g1> { <http://ex/alice> <http://ex/knows> <http://ex/bob> } }`))
	require.NoError(t, err)
	require.Equal(t, 1, res.Inserted)
	require.Contains(t, s.NamedGraphs(), func() rdf.AtomID {
		id, _ := s.Atoms().Lookup(rdf.EncodeTerm(rdf.IRI("http://ex/g1")))
		return id
	}())
}

func TestDeleteDataRemovesExistingTriple(t *testing.T) {
	s := newTestStore(t)
	add(t, s, rdf.IRI("http://ex/alice"), rdf.IRI("http://ex/knows"), rdf.IRI("http://ex/bob"), "")

	res, err := Execute(context.Background(), s, []byte(
		`DELETE DATA { <http://ex/alice> <http://ex/knows> <http://ex/bob> }`))
	require.NoError(t, err)
	require.Equal(t, 1, res.Deleted)
	require.False(t, hasQuad(t, s, rdf.IRI("http://ex/alice"), rdf.IRI("http://ex/knows"), rdf.IRI("http://ex/bob")))
}

func TestDeleteDataOnMissingTripleIsNoOp(t *testing.T) {
	s := newTestStore(t)
	res, err := Execute(context.Background(), s, []byte(
		`DELETE DATA { <http://ex/alice> <http://ex/knows> <http://ex/bob> }`))
	require.NoError(t, err)
	require.Equal(t, 0, res.Deleted)
}

func TestClearGraphRemovesOnlyThatGraph(t *testing.T) {
	s := newTestStore(t)
	add(t, s, rdf.IRI("http://ex/a"), rdf.IRI("http://ex/p"), rdf.IRI("http://ex/b"), "http://ex/g1")
	add(t, s, rdf.IRI("http://ex/a"), rdf.IRI("http://ex/p"), rdf.IRI("http://ex/c"), "")

	res, err := Execute(context.Background(), s, []byte(`CLEAR GRAPH <http://ex/g1>`))
	require.NoError(t, err)
	require.Equal(t, 1, res.Deleted)
	require.True(t, hasQuad(t, s, rdf.IRI("http://ex/a"), rdf.IRI("http://ex/p"), rdf.IRI("http://ex/c")))
}

func TestClearDefaultLeavesNamedGraphsIntact(t *testing.T) {
	s := newTestStore(t)
	add(t, s, rdf.IRI("http://ex/a"), rdf.IRI("http://ex/p"), rdf.IRI("http://ex/b"), "http://ex/g1")
	add(t, s, rdf.IRI("http://ex/a"), rdf.IRI("http://ex/p"), rdf.IRI("http://ex/c"), "")

	res, err := Execute(context.Background(), s, []byte(`CLEAR DEFAULT`))
	require.NoError(t, err)
	require.Equal(t, 1, res.Deleted)
	require.True(t, hasQuad(t, s, rdf.IRI("http://ex/a"), rdf.IRI("http://ex/p"), rdf.IRI("http://ex/b")))
	require.False(t, hasQuad(t, s, rdf.IRI("http://ex/a"), rdf.IRI("http://ex/p"), rdf.IRI("http://ex/c")))
}

func TestClearAllRemovesEverything(t *testing.T) {
	s := newTestStore(t)
	add(t, s, rdf.IRI("http://ex/a"), rdf.IRI("http://ex/p"), rdf.IRI("http://ex/b"), "http://ex/g1")
	add(t, s, rdf.IRI("http://ex/a"), rdf.IRI("http://ex/p"), rdf.IRI("http://ex/c"), "")

	res, err := Execute(context.Background(), s, []byte(`CLEAR ALL`))
	require.NoError(t, err)
	require.Equal(t, 2, res.Deleted)
	require.Equal(t, uint64(0), s.Stats().QuadCount)
}

func TestDropNamedClearsEveryNamedGraph(t *testing.T) {
	s := newTestStore(t)
	add(t, s, rdf.IRI("http://ex/a"), rdf.IRI("http://ex/p"), rdf.IRI("http://ex/b"), "http://ex/g1")
	add(t, s, rdf.IRI("http://ex/x"), rdf.IRI("http://ex/p"), rdf.IRI("http://ex/y"), "http://ex/g2")
	add(t, s, rdf.IRI("http://ex/a"), rdf.IRI("http://ex/p"), rdf.IRI("http://ex/c"), "")

	res, err := Execute(context.Background(), s, []byte(`DROP NAMED`))
	require.NoError(t, err)
	require.Equal(t, 2, res.Deleted)
	require.True(t, hasQuad(t, s, rdf.IRI("http://ex/a"), rdf.IRI("http://ex/p"), rdf.IRI("http://ex/c")))
}

func TestModifyDeleteInsertWhereRewritesMatchingRows(t *testing.T) {
	s := newTestStore(t)
	add(t, s, rdf.IRI("http://ex/alice"), rdf.IRI("http://ex/status"), rdf.PlainLiteral("pending"), "")
	add(t, s, rdf.IRI("http://ex/bob"), rdf.IRI("http://ex/status"), rdf.PlainLiteral("pending"), "")
	add(t, s, rdf.IRI("http://ex/carol"), rdf.IRI("http://ex/status"), rdf.PlainLiteral("done"), "")

	res, err := Execute(context.Background(), s, []byte(
		`DELETE { ?p <http://ex/status> "pending" }
		 INSERT { ?p <http://ex/status> "active" }
		 WHERE { ?p <http://ex/status> "pending" }`))
	require.NoError(t, err)
	require.Equal(t, 2, res.Deleted)
	require.Equal(t, 2, res.Inserted)

	require.False(t, hasQuad(t, s, rdf.IRI("http://ex/alice"), rdf.IRI("http://ex/status"), rdf.PlainLiteral("pending")))
	require.True(t, hasQuad(t, s, rdf.IRI("http://ex/alice"), rdf.IRI("http://ex/status"), rdf.PlainLiteral("active")))
	require.True(t, hasQuad(t, s, rdf.IRI("http://ex/carol"), rdf.IRI("http://ex/status"), rdf.PlainLiteral("done")))
}

func TestModifyInsertOnlyAddsDerivedTriples(t *testing.T) {
	s := newTestStore(t)
	add(t, s, rdf.IRI("http://ex/alice"), rdf.IRI("http://ex/knows"), rdf.IRI("http://ex/bob"), "")

	res, err := Execute(context.Background(), s, []byte(
		`INSERT { ?s <http://ex/friendOf> ?o } WHERE { ?s <http://ex/knows> ?o }`))
	require.NoError(t, err)
	require.Equal(t, 1, res.Inserted)
	require.True(t, hasQuad(t, s, rdf.IRI("http://ex/alice"), rdf.IRI("http://ex/friendOf"), rdf.IRI("http://ex/bob")))
}
