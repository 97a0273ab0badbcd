package exec

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

// addQuad interns atom bytes in the same canonical spelling
// rdf.EncodeTerm/the query binder produce, so store-seeded fixtures
// round-trip through the SPARQL layer exactly like query-interned terms.
func addQuad(t *testing.T, s *store.Store, subj, pred, obj rdf.Value, graph string) {
	t.Helper()
	var g []byte
	if graph != "" {
		g = rdf.EncodeTerm(rdf.IRI(graph))
	}
	_, err := s.Add(rdf.EncodeTerm(subj), rdf.EncodeTerm(pred), rdf.EncodeTerm(obj), g)
	require.NoError(t, err)
}

func addTriple(t *testing.T, s *store.Store, subjIRI, predIRI, objIRI string) {
	t.Helper()
	addQuad(t, s, rdf.IRI(subjIRI), rdf.IRI(predIRI), rdf.IRI(objIRI), "")
}

func addLiteral(t *testing.T, s *store.Store, subjIRI, predIRI string, obj rdf.Value) {
	t.Helper()
	addQuad(t, s, rdf.IRI(subjIRI), rdf.IRI(predIRI), obj, "")
}

func selectValues(t *testing.T, res *Result, varName string) []string {
	t.Helper()
	var out []string
	for _, row := range res.Select.Rows {
		v, ok := row[varName]
		require.True(t, ok, "row missing var %q", varName)
		out = append(out, v.String())
	}
	return out
}

// selectLexicals reads a variable's raw lexical form across every row,
// sidestepping the xsd:integer/xsd:double datatype suffix String() adds.
func selectLexicals(t *testing.T, res *Result, varName string) []string {
	t.Helper()
	var out []string
	for _, row := range res.Select.Rows {
		v, ok := row[varName]
		require.True(t, ok, "row missing var %q", varName)
		out = append(out, v.Lexical)
	}
	return out
}

func TestSelectBasicTriplePattern(t *testing.T) {
	s := newTestStore(t)
	addTriple(t, s, "http://ex/alice", "http://ex/knows", "http://ex/bob")
	addTriple(t, s, "http://ex/alice", "http://ex/knows", "http://ex/carol")

	res, err := Execute(context.Background(), s, []byte(
		`SELECT ?o WHERE { <http://ex/alice> <http://ex/knows> ?o }`))
	require.NoError(t, err)
	require.Equal(t, 2, len(res.Select.Rows))
}

func TestJoinAcrossTwoPatterns(t *testing.T) {
	s := newTestStore(t)
	addTriple(t, s, "http://ex/alice", "http://ex/knows", "http://ex/bob")
	addTriple(t, s, "http://ex/bob", "http://ex/likes", "http://ex/pizza")
	addTriple(t, s, "http://ex/carol", "http://ex/likes", "http://ex/tacos")

	res, err := Execute(context.Background(), s, []byte(
		`SELECT ?food WHERE {
			?p <http://ex/knows> ?friend .
			?friend <http://ex/likes> ?food .
		}`))
	require.NoError(t, err)
	require.Equal(t, []string{`<http://ex/pizza>`}, selectValues(t, res, "food"))
}

func TestOptionalLeavesUnboundWhenNoMatch(t *testing.T) {
	s := newTestStore(t)
	addLiteral(t, s, "http://ex/alice", "http://ex/name", rdf.PlainLiteral("Alice"))
	addLiteral(t, s, "http://ex/bob", "http://ex/name", rdf.PlainLiteral("Bob"))
	addLiteral(t, s, "http://ex/alice", "http://ex/age", rdf.Integer(30))

	res, err := Execute(context.Background(), s, []byte(
		`SELECT ?name ?age WHERE {
			?p <http://ex/name> ?name .
			OPTIONAL { ?p <http://ex/age> ?age }
		}`))
	require.NoError(t, err)
	require.Equal(t, 2, len(res.Select.Rows))

	var sawUnboundAge bool
	for _, row := range res.Select.Rows {
		if _, ok := row["age"]; !ok {
			sawUnboundAge = true
		}
	}
	require.True(t, sawUnboundAge)
}

func TestUnionCombinesBothBranches(t *testing.T) {
	s := newTestStore(t)
	addTriple(t, s, "http://ex/alice", "http://ex/knows", "http://ex/bob")
	addTriple(t, s, "http://ex/alice", "http://ex/likes", "http://ex/pizza")

	res, err := Execute(context.Background(), s, []byte(
		`SELECT ?o WHERE {
			{ <http://ex/alice> <http://ex/knows> ?o }
			UNION
			{ <http://ex/alice> <http://ex/likes> ?o }
		}`))
	require.NoError(t, err)
	require.Equal(t, 2, len(res.Select.Rows))
}

func TestMinusExcludesCompatibleSolutions(t *testing.T) {
	s := newTestStore(t)
	addTriple(t, s, "http://ex/alice", "http://ex/knows", "http://ex/bob")
	addTriple(t, s, "http://ex/alice", "http://ex/knows", "http://ex/carol")
	addLiteral(t, s, "http://ex/carol", "http://ex/banned", rdf.Boolean(true))

	res, err := Execute(context.Background(), s, []byte(
		`SELECT ?o WHERE {
			<http://ex/alice> <http://ex/knows> ?o .
			MINUS { ?o <http://ex/banned> ?x }
		}`))
	require.NoError(t, err)
	require.Equal(t, []string{`<http://ex/bob>`}, selectValues(t, res, "o"))
}

func TestFilterRejectsNonMatchingRows(t *testing.T) {
	s := newTestStore(t)
	addLiteral(t, s, "http://ex/alice", "http://ex/age", rdf.Integer(30))
	addLiteral(t, s, "http://ex/bob", "http://ex/age", rdf.Integer(12))

	res, err := Execute(context.Background(), s, []byte(
		`SELECT ?p WHERE { ?p <http://ex/age> ?age . FILTER(?age > 18) }`))
	require.NoError(t, err)
	require.Equal(t, []string{`<http://ex/alice>`}, selectValues(t, res, "p"))
}

func TestFilterDeferredPastOptional(t *testing.T) {
	s := newTestStore(t)
	addLiteral(t, s, "http://ex/alice", "http://ex/name", rdf.PlainLiteral("Alice"))
	addLiteral(t, s, "http://ex/alice", "http://ex/age", rdf.Integer(30))
	addLiteral(t, s, "http://ex/bob", "http://ex/name", rdf.PlainLiteral("Bob"))

	res, err := Execute(context.Background(), s, []byte(
		`SELECT ?name WHERE {
			?p <http://ex/name> ?name .
			OPTIONAL { ?p <http://ex/age> ?age }
			FILTER(!BOUND(?age) || ?age > 18)
		}`))
	require.NoError(t, err)
	require.Equal(t, 2, len(res.Select.Rows))
}

func TestBindComputesNewVariable(t *testing.T) {
	s := newTestStore(t)
	addLiteral(t, s, "http://ex/alice", "http://ex/age", rdf.Integer(30))

	res, err := Execute(context.Background(), s, []byte(
		`SELECT ?next WHERE { ?p <http://ex/age> ?age . BIND(?age + 1 AS ?next) }`))
	require.NoError(t, err)
	require.Equal(t, []string{"31"}, selectLexicals(t, res, "next"))
}

func TestValuesBacktracksOverEachRow(t *testing.T) {
	s := newTestStore(t)
	addLiteral(t, s, "http://ex/alice", "http://ex/age", rdf.Integer(30))
	addLiteral(t, s, "http://ex/bob", "http://ex/age", rdf.Integer(12))

	res, err := Execute(context.Background(), s, []byte(
		`SELECT ?age WHERE {
			?p <http://ex/age> ?age .
			VALUES ?age { 30 12 99 }
		}`))
	require.NoError(t, err)
	require.Equal(t, 2, len(res.Select.Rows))
}

func TestPropertyPathStarTransitiveClosure(t *testing.T) {
	s := newTestStore(t)
	addTriple(t, s, "http://ex/a", "http://ex/parent", "http://ex/b")
	addTriple(t, s, "http://ex/b", "http://ex/parent", "http://ex/c")
	addTriple(t, s, "http://ex/c", "http://ex/parent", "http://ex/d")

	res, err := Execute(context.Background(), s, []byte(
		`SELECT ?anc WHERE { <http://ex/a> <http://ex/parent>* ?anc }`))
	require.NoError(t, err)
	require.Equal(t, 4, len(res.Select.Rows))
}

func TestConstructMaterializesTemplate(t *testing.T) {
	s := newTestStore(t)
	addTriple(t, s, "http://ex/alice", "http://ex/knows", "http://ex/bob")

	res, err := Execute(context.Background(), s, []byte(
		`CONSTRUCT { ?s <http://ex/friendOf> ?o } WHERE { ?s <http://ex/knows> ?o }`))
	require.NoError(t, err)
	require.Len(t, res.Triples, 1)
	require.Equal(t, "http://ex/friendOf", res.Triples[0].P.Lexical)
}

func TestAskReturnsTrueOnFirstMatch(t *testing.T) {
	s := newTestStore(t)
	addTriple(t, s, "http://ex/alice", "http://ex/knows", "http://ex/bob")

	res, err := Execute(context.Background(), s, []byte(
		`ASK { <http://ex/alice> <http://ex/knows> ?o }`))
	require.NoError(t, err)
	require.True(t, res.Select.Ask)
}

func TestGroupByCountAggregates(t *testing.T) {
	s := newTestStore(t)
	addTriple(t, s, "http://ex/alice", "http://ex/knows", "http://ex/bob")
	addTriple(t, s, "http://ex/alice", "http://ex/knows", "http://ex/carol")
	addTriple(t, s, "http://ex/dave", "http://ex/knows", "http://ex/erin")

	res, err := Execute(context.Background(), s, []byte(
		`SELECT ?p (COUNT(?o) AS ?n) WHERE { ?p <http://ex/knows> ?o } GROUP BY ?p`))
	require.NoError(t, err)
	require.Equal(t, 2, len(res.Select.Rows))

	counts := map[string]string{}
	for _, row := range res.Select.Rows {
		counts[row["p"].String()] = row["n"].Lexical
	}
	require.Equal(t, "2", counts["<http://ex/alice>"])
	require.Equal(t, "1", counts["<http://ex/dave>"])
}

func TestDistinctDeduplicatesRows(t *testing.T) {
	s := newTestStore(t)
	addTriple(t, s, "http://ex/alice", "http://ex/knows", "http://ex/bob")
	addTriple(t, s, "http://ex/carol", "http://ex/knows", "http://ex/bob")

	res, err := Execute(context.Background(), s, []byte(
		`SELECT DISTINCT ?o WHERE { ?s <http://ex/knows> ?o }`))
	require.NoError(t, err)
	require.Equal(t, 1, len(res.Select.Rows))
}

func TestOrderByLimitOffset(t *testing.T) {
	s := newTestStore(t)
	addLiteral(t, s, "http://ex/alice", "http://ex/age", rdf.Integer(30))
	addLiteral(t, s, "http://ex/bob", "http://ex/age", rdf.Integer(12))
	addLiteral(t, s, "http://ex/carol", "http://ex/age", rdf.Integer(45))

	res, err := Execute(context.Background(), s, []byte(
		`SELECT ?age WHERE { ?p <http://ex/age> ?age } ORDER BY DESC(?age) LIMIT 1 OFFSET 1`))
	require.NoError(t, err)
	require.Equal(t, []string{"30"}, selectLexicals(t, res, "age"))
}

func TestGraphClauseScopesPatternsToNamedGraph(t *testing.T) {
	s := newTestStore(t)
	addQuad(t, s, rdf.IRI("http://ex/alice"), rdf.IRI("http://ex/knows"), rdf.IRI("http://ex/bob"), "http://ex/g1")
	addTriple(t, s, "http://ex/alice", "http://ex/knows", "http://ex/carol")

	res, err := Execute(context.Background(), s, []byte(
		`SELECT ?o WHERE { GRAPH <http://ex/g1> { <http://ex/alice> <http://ex/knows> ?o } }`))
	require.NoError(t, err)
	require.Equal(t, []string{`<http://ex/bob>`}, selectValues(t, res, "o"))
}

func TestFromNamedRestrictsUnboundGraphScanToDeclaredDataset(t *testing.T) {
	s := newTestStore(t)
	addQuad(t, s, rdf.IRI("http://ex/alice"), rdf.IRI("http://ex/knows"), rdf.IRI("http://ex/bob"), "http://ex/g1")
	addQuad(t, s, rdf.IRI("http://ex/alice"), rdf.IRI("http://ex/knows"), rdf.IRI("http://ex/carol"), "http://ex/g2")

	res, err := Execute(context.Background(), s, []byte(
		`SELECT ?g ?o FROM NAMED <http://ex/g1> WHERE { GRAPH ?g { <http://ex/alice> <http://ex/knows> ?o } }`))
	require.NoError(t, err)
	require.Equal(t, []string{`<http://ex/bob>`}, selectValues(t, res, "o"))
	require.Equal(t, []string{`<http://ex/g1>`}, selectValues(t, res, "g"))
}

func TestFromNamedRestrictionAppliesInsideSubquery(t *testing.T) {
	s := newTestStore(t)
	addQuad(t, s, rdf.IRI("http://ex/alice"), rdf.IRI("http://ex/knows"), rdf.IRI("http://ex/bob"), "http://ex/g1")
	addQuad(t, s, rdf.IRI("http://ex/alice"), rdf.IRI("http://ex/knows"), rdf.IRI("http://ex/carol"), "http://ex/g2")

	res, err := Execute(context.Background(), s, []byte(
		`SELECT ?o FROM NAMED <http://ex/g1> WHERE { { SELECT ?o WHERE { GRAPH ?g { <http://ex/alice> <http://ex/knows> ?o } } } }`))
	require.NoError(t, err)
	require.Equal(t, []string{`<http://ex/bob>`}, selectValues(t, res, "o"))
}

func TestLangMatchesSubtagPrefix(t *testing.T) {
	s := newTestStore(t)
	addQuad(t, s, rdf.IRI("http://ex/alice"), rdf.IRI("http://ex/name"), rdf.LangLiteral("Alice", "en-US"), "")
	addQuad(t, s, rdf.IRI("http://ex/bob"), rdf.IRI("http://ex/name"), rdf.LangLiteral("Bob", "fr"), "")

	res, err := Execute(context.Background(), s, []byte(
		`SELECT ?n WHERE { ?p <http://ex/name> ?n . FILTER(LANGMATCHES(LANG(?n), "en")) }`))
	require.NoError(t, err)
	require.Equal(t, []string{"Alice"}, selectLexicals(t, res, "n"))
}

func TestXsdIntegerCastConvertsStringLiteral(t *testing.T) {
	s := newTestStore(t)
	addLiteral(t, s, "http://ex/alice", "http://ex/age", rdf.PlainLiteral("30"))

	res, err := Execute(context.Background(), s, []byte(
		`PREFIX xsd: <http://www.w3.org/2001/XMLSchema#>
		 SELECT ?n WHERE { ?p <http://ex/age> ?age . BIND(xsd:integer(?age) + 1 AS ?n) }`))
	require.NoError(t, err)
	require.Equal(t, []string{"31"}, selectLexicals(t, res, "n"))
}

func TestExpressionErrorLeavesBindUnbound(t *testing.T) {
	s := newTestStore(t)
	addLiteral(t, s, "http://ex/alice", "http://ex/name", rdf.PlainLiteral("Alice"))

	res, err := Execute(context.Background(), s, []byte(
		`SELECT ?n WHERE { ?p <http://ex/name> ?name . BIND(?name + 1 AS ?n) }`))
	require.NoError(t, err)
	require.Equal(t, 1, len(res.Select.Rows))
	_, ok := res.Select.Rows[0]["n"]
	require.False(t, ok)
}
