package sparql

// Fixed capacities per SPEC_FULL.md §4.4 "Output shape": a pattern
// group holds up to this many triple patterns/filters/BINDs/MINUS
// groups/EXISTS filters/GRAPH clauses/subqueries. Overflowing any of
// these is a qerr.Capacity error (see parser.go), never silent
// truncation.
const (
	maxTriplePatterns    = 32
	maxFilters           = 16
	maxBinds             = 8
	maxMinus             = 8
	maxExists            = 4
	maxGraphClauses      = 4
	maxSubqueries        = 2
	maxSubselectPatterns = 16
)

// TermKind classifies a parsed RDF term reference.
type TermKind int

const (
	TermNone TermKind = iota
	TermVar
	TermIRI
	TermPrefixedName
	TermLiteral
	TermBlankNode
	TermNumeric
	TermBoolean
)

// Term is an arena-referencing RDF term: Span always covers the token
// text (including quotes/angle-brackets for IRIs and literals); Lang
// and Datatype are only meaningful for TermLiteral.
type Term struct {
	Kind     TermKind
	Span     Span
	Lang     Span
	Datatype Span
}

func (t Term) IsSet() bool { return t.Kind != TermNone }

// PathKind distinguishes the property-path shapes SPEC_FULL.md §4.4
// names: simple predicate, `^p`, `p*`, `p+`, `p?`, `p1/p2`, `p1|p2`.
type PathKind int

const (
	PathSimple PathKind = iota
	PathInverse
	PathStar
	PathPlus
	PathQuestion
	PathSequence
	PathAlternative
)

// PropertyPath is a small recursive tree (unbounded depth — spec caps
// pattern-group *counts*, not path expression nesting, which is
// typically two or three levels deep in practice).
type PropertyPath struct {
	Kind        PathKind
	IRI         Term // meaningful when Kind == PathSimple
	Inner       *PropertyPath
	Left, Right *PropertyPath
}

// TriplePattern is one (subject, property-path, object) pattern.
type TriplePattern struct {
	S    Term
	Path PropertyPath
	O    Term
}

// Filter wraps a boolean expression guarding a pattern group.
type Filter struct {
	Expr *Expr
}

// Bind is `expr AS ?v`.
type Bind struct {
	Expr *Expr
	Var  Term
}

// GraphClause is `GRAPH (<iri>|?var) { group }`.
type GraphClause struct {
	Term  Term
	Group *GroupGraphPattern
}

// GroupGraphPattern is one `{ ... }` WHERE-clause group, per
// SPEC_FULL.md §4.4's fixed-capacity layout. Optional and Union are
// plain slices: the distillation named explicit capacities for
// patterns/filters/BINDs/MINUS/EXISTS/GRAPH/subqueries but not for
// OPTIONAL or UNION branch counts, so those stay dynamically sized
// (documented in DESIGN.md).
type GroupGraphPattern struct {
	Patterns     [maxTriplePatterns]TriplePattern
	PatternCount int

	Filters     [maxFilters]Filter
	FilterCount int

	Binds     [maxBinds]Bind
	BindCount int

	Minus     [maxMinus]*GroupGraphPattern
	MinusCount int

	Optional []*GroupGraphPattern
	Union    [][2]*GroupGraphPattern

	Graphs     [maxGraphClauses]GraphClause
	GraphCount int

	Subqueries     [maxSubqueries]*Query
	SubqueryCount  int

	// ExistsCount tracks EXISTS/NOT EXISTS occurrences across every
	// filter added to this group (an EXISTS can sit anywhere inside a
	// boolean expression, not just as the whole FILTER), capped
	// separately from the general filter count by maxExists.
	ExistsCount int
}

func (g *GroupGraphPattern) addPattern(tp TriplePattern) error {
	if g.PatternCount >= maxTriplePatterns {
		return capacityErr("too-many-patterns")
	}
	g.Patterns[g.PatternCount] = tp
	g.PatternCount++
	return nil
}

func (g *GroupGraphPattern) addFilter(f Filter) error {
	if g.FilterCount >= maxFilters {
		return capacityErr("too-many-filters")
	}
	if n := countExists(f.Expr); n > 0 {
		if g.ExistsCount+n > maxExists {
			return capacityErr("too-many-exists-filters")
		}
		g.ExistsCount += n
	}
	g.Filters[g.FilterCount] = f
	g.FilterCount++
	return nil
}

// countExists walks an expression tree counting EXISTS/NOT EXISTS nodes,
// which can appear anywhere inside a boolean expression (e.g.
// FILTER(EXISTS{...} && ?x > 1)), not just as the whole FILTER.
func countExists(e *Expr) int {
	if e == nil {
		return 0
	}
	n := 0
	if e.Kind == ExprExists || e.Kind == ExprNotExists {
		n++
	}
	n += countExists(e.Left)
	n += countExists(e.Right)
	for _, a := range e.Args {
		n += countExists(a)
	}
	return n
}

func (g *GroupGraphPattern) addBind(b Bind) error {
	if g.BindCount >= maxBinds {
		return capacityErr("too-many-binds")
	}
	g.Binds[g.BindCount] = b
	g.BindCount++
	return nil
}

func (g *GroupGraphPattern) addMinus(m *GroupGraphPattern) error {
	if g.MinusCount >= maxMinus {
		return capacityErr("too-many-minus-groups")
	}
	g.Minus[g.MinusCount] = m
	g.MinusCount++
	return nil
}

func (g *GroupGraphPattern) addGraph(gc GraphClause) error {
	if g.GraphCount >= maxGraphClauses {
		return capacityErr("too-many-graph-clauses")
	}
	g.Graphs[g.GraphCount] = gc
	g.GraphCount++
	return nil
}

func (g *GroupGraphPattern) addSubquery(q *Query) error {
	if g.SubqueryCount >= maxSubqueries {
		return capacityErr("too-many-subqueries")
	}
	g.Subqueries[g.SubqueryCount] = q
	g.SubqueryCount++
	return nil
}

// ExprKind tags the operator/leaf shape of an expression node.
type ExprKind int

const (
	ExprTerm ExprKind = iota
	ExprBinary
	ExprUnary
	ExprCall
	ExprExists
	ExprNotExists
	ExprIn
	ExprNotIn
)

// Expr is an expression tree node. Op carries the operator token text
// ("+", "&&", "REGEX", ...) as the literal spelling; the evaluator
// (exec/expr.go) switches on it case-insensitively for function names.
type Expr struct {
	Kind ExprKind
	Op   string

	Term Term // ExprTerm leaf

	Left, Right *Expr   // ExprBinary, ExprUnary (Left only)
	Args        []*Expr // ExprCall, ExprIn/ExprNotIn (Right unused; Args = RHS list)

	Group *GroupGraphPattern // ExprExists / ExprNotExists
}

// AggKind names a SPARQL aggregate function.
type AggKind int

const (
	AggNone AggKind = iota
	AggCount
	AggSum
	AggAvg
	AggMin
	AggMax
)

// ProjectExpr is one SELECT-list entry: either a bare variable, an
// aggregate, or a computed expression with an AS alias.
type ProjectExpr struct {
	Var         Term
	Expr        *Expr
	Alias       Term
	IsAggregate bool
	Agg         AggKind
	AggDistinct bool
	AggArg      *Expr // nil AggArg + AggCount means COUNT(*)
}

// OrderTerm is one ORDER BY key.
type OrderTerm struct {
	Expr *Expr
	Desc bool
}

// QueryForm distinguishes SELECT/CONSTRUCT/DESCRIBE/ASK.
type QueryForm int

const (
	FormSelect QueryForm = iota
	FormConstruct
	FormDescribe
	FormAsk
)

// PrefixDecl is a parsed PREFIX declaration; stored as spans (not
// strings) like every other term, but collected in a small slice since
// prefix declarations are a handful per query, not a hot-path array.
type PrefixDecl struct {
	Prefix Span // without the trailing ':'
	IRI    Span // without the angle brackets
}

// Query is the top-level AST for a SELECT/CONSTRUCT/DESCRIBE/ASK form,
// or the nested form of a subselect (via GroupGraphPattern.Subqueries).
type Query struct {
	Base     Span
	Prefixes []PrefixDecl

	Form QueryForm

	Distinct   bool
	Reduced    bool
	ProjectAll bool
	Projection []ProjectExpr

	ConstructTemplate [maxSubselectPatterns]TriplePattern
	ConstructCount    int

	DescribeTerms []Term
	DescribeAll   bool

	From      []Term
	FromNamed []Term

	Where *GroupGraphPattern

	GroupBy  []Term
	Having   []*Expr
	OrderBy  []OrderTerm
	Limit    int64
	HasLimit bool
	Offset   int64
	HasOffset bool
}

func (q *Query) addConstructTriple(tp TriplePattern) error {
	if q.ConstructCount >= maxSubselectPatterns {
		return capacityErr("too-many-patterns")
	}
	q.ConstructTemplate[q.ConstructCount] = tp
	q.ConstructCount++
	return nil
}

// UpdateKind distinguishes the five update forms SPEC_FULL.md §4.10
// names.
type UpdateKind int

const (
	UpdateInsertData UpdateKind = iota
	UpdateDeleteData
	UpdateClear
	UpdateDrop
	UpdateModify // DELETE {tmpl} INSERT {tmpl} WHERE {g}
)

// ClearTarget distinguishes CLEAR/DROP's target per spec.md §4.10.
type ClearTarget int

const (
	ClearGraphIRI ClearTarget = iota
	ClearDefault
	ClearNamed
	ClearAll
)

// Update is one parsed update operation.
type Update struct {
	Kind     UpdateKind
	Prefixes []PrefixDecl

	// INSERT DATA / DELETE DATA: ground quads, optionally wrapped in a
	// GRAPH clause (GraphTerm.IsSet() when so).
	Data      []TriplePattern
	GraphTerm Term

	// CLEAR / DROP.
	Target      ClearTarget
	TargetGraph Term

	// DELETE {tmpl} INSERT {tmpl} WHERE {g}.
	DeleteTemplate []TriplePattern
	InsertTemplate []TriplePattern
	Where          *GroupGraphPattern
}
