package plan

import (
	"testing"

	"github.com/larkspur/quadstore/rdf"
	"github.com/larkspur/quadstore/sparql"
)

func parseOneTriplePattern(t *testing.T, src []byte) sparql.TriplePattern {
	t.Helper()
	q, err := sparql.Parse(src)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if q.Where.PatternCount != 1 {
		t.Fatalf("want 1 pattern, got %d", q.Where.PatternCount)
	}
	return q.Where.Patterns[0]
}

func TestResolveIRIExpandsPrefixedName(t *testing.T) {
	src := []byte(`PREFIX ex: <http://ex/> SELECT ?s WHERE { ?s ex:knows ex:bob }`)
	q, err := sparql.Parse(src)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	prefixes := BuildPrefixMap(src, q.Prefixes)
	tp := q.Where.Patterns[0]

	iri, err := ResolveIRI(tp.Path.IRI, src, prefixes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if iri != "http://ex/knows" {
		t.Fatalf("want http://ex/knows, got %q", iri)
	}
}

func TestResolveIRIUndeclaredPrefixErrors(t *testing.T) {
	src := []byte(`SELECT ?s WHERE { ?s ex:knows ?o }`)
	q, err := sparql.Parse(src)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	tp := q.Where.Patterns[0]
	if _, err := ResolveIRI(tp.Path.IRI, src, BuildPrefixMap(src, nil)); err == nil {
		t.Fatal("want an error for an undeclared prefix")
	}
}

func TestResolveIRIExpandsAShortcut(t *testing.T) {
	tp := parseOneTriplePattern(t, []byte(`SELECT ?s WHERE { ?s a <http://ex/Cat> }`))
	iri, err := ResolveIRI(tp.Path.IRI, []byte(`SELECT ?s WHERE { ?s a <http://ex/Cat> }`), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if iri != rdfType {
		t.Fatalf("want rdf:type expansion, got %q", iri)
	}
}

func TestResolveValuePlainLiteral(t *testing.T) {
	src := []byte(`SELECT ?s WHERE { ?s <http://ex/name> "Alice" }`)
	tp := parseOneTriplePattern(t, src)
	v, err := ResolveValue(tp.O, src, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != rdf.KindPlainLiteral || v.Lexical != "Alice" {
		t.Fatalf("want plain literal Alice, got %+v", v)
	}
}

func TestResolveValueTypedIntegerLiteral(t *testing.T) {
	src := []byte(`SELECT ?s WHERE { ?s <http://ex/age> "30"^^<http://www.w3.org/2001/XMLSchema#integer> }`)
	tp := parseOneTriplePattern(t, src)
	v, err := ResolveValue(tp.O, src, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != rdf.KindTypedInteger || v.Int != 30 {
		t.Fatalf("want typed integer 30, got %+v", v)
	}
}

func TestResolveValueDecodesBackslashEscapes(t *testing.T) {
	src := []byte(`SELECT ?s WHERE { ?s <http://ex/name> "line1\nline2" }`)
	tp := parseOneTriplePattern(t, src)
	v, err := ResolveValue(tp.O, src, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Lexical != "line1\nline2" {
		t.Fatalf("want decoded escape, got %q", v.Lexical)
	}
}

func TestResolveValueBooleanKeyword(t *testing.T) {
	src := []byte(`SELECT ?s WHERE { ?s <http://ex/active> true }`)
	tp := parseOneTriplePattern(t, src)
	v, err := ResolveValue(tp.O, src, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != rdf.KindTypedBoolean || v.Bool != true {
		t.Fatalf("want boolean true, got %+v", v)
	}
}

func TestResolveValueRejectsVariable(t *testing.T) {
	src := []byte(`SELECT ?s WHERE { ?s <http://ex/p> ?o }`)
	tp := parseOneTriplePattern(t, src)
	if _, err := ResolveValue(tp.O, src, nil); err == nil {
		t.Fatal("want an error resolving a variable term as a constant value")
	}
}
