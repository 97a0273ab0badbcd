package sparql

import "testing"

func TestParseSimpleSelect(t *testing.T) {
	src := []byte(`SELECT ?s ?o WHERE { ?s <http://ex/knows> ?o }`)
	q, err := Parse(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Form != FormSelect {
		t.Fatalf("want FormSelect, got %v", q.Form)
	}
	if q.Where.PatternCount != 1 {
		t.Fatalf("want 1 pattern, got %d", q.Where.PatternCount)
	}
	tp := q.Where.Patterns[0]
	if tp.S.Kind != TermVar || tp.S.Span.Text(src) != "?s" {
		t.Fatalf("subject = %+v", tp.S)
	}
	if tp.Path.Kind != PathSimple || tp.Path.IRI.Span.Text(src) != "<http://ex/knows>" {
		t.Fatalf("predicate = %+v", tp.Path)
	}
}

func TestParsePrefixedNameExpandsAgainstPrologue(t *testing.T) {
	src := []byte(`PREFIX ex: <http://ex/> SELECT ?s WHERE { ?s ex:knows ex:bob }`)
	q, err := Parse(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(q.Prefixes) != 1 || q.Prefixes[0].Prefix.Text(src) != "ex" {
		t.Fatalf("prefixes = %+v", q.Prefixes)
	}
}

func TestParseOptionalAndFilter(t *testing.T) {
	src := []byte(`SELECT ?s ?o WHERE {
		?s <http://ex/knows> ?o .
		OPTIONAL { ?s <http://ex/age> ?a }
		FILTER(?s != ?o)
	}`)
	q, err := Parse(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(q.Where.Optional) != 1 {
		t.Fatalf("want 1 optional group, got %d", len(q.Where.Optional))
	}
	if q.Where.FilterCount != 1 {
		t.Fatalf("want 1 filter, got %d", q.Where.FilterCount)
	}
}

func TestParseUnionBranches(t *testing.T) {
	src := []byte(`SELECT ?s WHERE {
		{ ?s <http://ex/p1> ?o } UNION { ?s <http://ex/p2> ?o }
	}`)
	q, err := Parse(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(q.Where.Union) != 1 {
		t.Fatalf("want 1 union pair, got %d", len(q.Where.Union))
	}
}

func TestParseAskForm(t *testing.T) {
	src := []byte(`ASK { ?s <http://ex/knows> <http://ex/bob> }`)
	q, err := Parse(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Form != FormAsk {
		t.Fatalf("want FormAsk, got %v", q.Form)
	}
}

func TestParseConstructTemplate(t *testing.T) {
	src := []byte(`CONSTRUCT { ?s <http://ex/mirrorOf> ?o } WHERE { ?o <http://ex/knows> ?s }`)
	q, err := Parse(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Form != FormConstruct || q.ConstructCount != 1 {
		t.Fatalf("form=%v constructCount=%d", q.Form, q.ConstructCount)
	}
}

func TestParseOrderByLimitOffset(t *testing.T) {
	src := []byte(`SELECT ?s WHERE { ?s <http://ex/age> ?a } ORDER BY DESC(?a) LIMIT 5 OFFSET 2`)
	q, err := Parse(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(q.OrderBy) != 1 || !q.OrderBy[0].Desc {
		t.Fatalf("orderBy = %+v", q.OrderBy)
	}
	if !q.HasLimit || q.Limit != 5 {
		t.Fatalf("limit = %v/%d", q.HasLimit, q.Limit)
	}
	if !q.HasOffset || q.Offset != 2 {
		t.Fatalf("offset = %v/%d", q.HasOffset, q.Offset)
	}
}

func TestParsePropertyPathStar(t *testing.T) {
	src := []byte(`SELECT ?s ?o WHERE { ?s <http://ex/knows>* ?o }`)
	q, err := Parse(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Where.Patterns[0].Path.Kind != PathStar {
		t.Fatalf("want PathStar, got %v", q.Where.Patterns[0].Path.Kind)
	}
}

func TestParseGraphClause(t *testing.T) {
	src := []byte(`SELECT ?s WHERE { GRAPH <http://ex/g1> { ?s <http://ex/knows> ?o } }`)
	q, err := Parse(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Where.GraphCount != 1 {
		t.Fatalf("want 1 graph clause, got %d", q.Where.GraphCount)
	}
}

func TestParseMalformedQueryReturnsError(t *testing.T) {
	_, err := Parse([]byte(`SELECT ?s WHERE { ?s <http://ex/knows> }`))
	if err == nil {
		t.Fatal("want a parse error for a truncated triple pattern")
	}
}

func TestParseTooManyTriplePatternsIsCapacityError(t *testing.T) {
	src := "SELECT ?s WHERE { "
	for i := 0; i < maxTriplePatterns+1; i++ {
		src += "?s <http://ex/p> ?s . "
	}
	src += "}"
	_, err := Parse([]byte(src))
	if err == nil {
		t.Fatal("want a capacity error for exceeding maxTriplePatterns")
	}
}

func TestParseTooManyExistsFiltersIsCapacityError(t *testing.T) {
	src := "SELECT ?s WHERE { ?s <http://ex/p> ?o . "
	for i := 0; i < maxExists+1; i++ {
		src += "FILTER EXISTS { ?s <http://ex/q> ?o } "
	}
	src += "}"
	_, err := Parse([]byte(src))
	if err == nil {
		t.Fatal("want a capacity error for exceeding maxExists")
	}
}

func TestParseExistsWithinFilterCapacityHolds(t *testing.T) {
	src := "SELECT ?s WHERE { ?s <http://ex/p> ?o . "
	for i := 0; i < maxExists; i++ {
		src += "FILTER EXISTS { ?s <http://ex/q> ?o } "
	}
	src += "}"
	q, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("maxExists EXISTS filters should parse, got %v", err)
	}
	if q.Where.ExistsCount != maxExists {
		t.Fatalf("ExistsCount = %d, want %d", q.Where.ExistsCount, maxExists)
	}
}

func TestParseInsertDataUpdate(t *testing.T) {
	src := []byte(`INSERT DATA { <http://ex/alice> <http://ex/knows> <http://ex/bob> }`)
	u, err := ParseUpdate(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Kind != UpdateInsertData || len(u.Data) != 1 {
		t.Fatalf("kind=%v data=%+v", u.Kind, u.Data)
	}
}

func TestParseClearAllUpdate(t *testing.T) {
	u, err := ParseUpdate([]byte(`CLEAR ALL`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Kind != UpdateClear || u.Target != ClearAll {
		t.Fatalf("kind=%v target=%v", u.Kind, u.Target)
	}
}

func TestParseModifyUpdate(t *testing.T) {
	src := []byte(`DELETE { ?s <http://ex/status> "old" } INSERT { ?s <http://ex/status> "new" } WHERE { ?s <http://ex/status> "old" }`)
	u, err := ParseUpdate(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Kind != UpdateModify || len(u.DeleteTemplate) != 1 || len(u.InsertTemplate) != 1 {
		t.Fatalf("kind=%v delete=%+v insert=%+v", u.Kind, u.DeleteTemplate, u.InsertTemplate)
	}
}
