package sparql

import (
	"strings"

	"github.com/larkspur/quadstore/qerr"
)

// Parser is a recursive-descent parser over the SPARQL 1.1 subset
// SPEC_FULL.md §4.4 names. It holds one token of lookahead; qerr.Parse
// errors carry the line/column of the offending token, mirroring the
// `newParseError(msg, line, col)` shape the teacher's query-language
// tests expect.
type Parser struct {
	src []byte
	lex *Lexer
	cur Token
}

// Parse parses a SELECT/CONSTRUCT/DESCRIBE/ASK query.
func Parse(src []byte) (*Query, error) {
	p := &Parser{src: src, lex: newLexer(src)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	q := &Query{}
	if err := p.parsePrologue(&q.Prefixes, &q.Base); err != nil {
		return nil, err
	}
	if err := p.parseQueryBody(q); err != nil {
		return nil, err
	}
	if p.cur.Kind != TokEOF {
		return nil, p.errorf("unexpected-token")
	}
	return q, nil
}

// ParseUpdate parses one of INSERT DATA / DELETE DATA / CLEAR / DROP /
// DELETE-INSERT-WHERE, per SPEC_FULL.md §4.10.
func ParseUpdate(src []byte) (*Update, error) {
	p := &Parser{src: src, lex: newLexer(src)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	var prefixes []PrefixDecl
	var base Span
	if err := p.parsePrologue(&prefixes, &base); err != nil {
		return nil, err
	}
	u, err := p.parseUpdateOp()
	if err != nil {
		return nil, err
	}
	u.Prefixes = prefixes
	if p.cur.Kind == TokSemicolon {
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if p.cur.Kind != TokEOF {
		return nil, p.errorf("unexpected-token")
	}
	return u, nil
}

func (p *Parser) advance() error {
	t, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.cur = t
	return nil
}

func (p *Parser) text(s Span) string { return s.Text(p.src) }

// isKeyword reports whether the current token is a keyword/identifier
// token spelling kw, case-insensitively (SPARQL keywords are
// case-insensitive; prefixed names are not, so this only ever compares
// against TokKeyword tokens, which is all bare identifier text).
func (p *Parser) isKeyword(kw string) bool {
	return p.cur.Kind == TokKeyword && strings.EqualFold(p.text(p.cur.Span), kw)
}

func (p *Parser) eatKeyword(kw string) (bool, error) {
	if p.isKeyword(kw) {
		if err := p.advance(); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

func (p *Parser) expectKeyword(kw string) error {
	ok, err := p.eatKeyword(kw)
	if err != nil {
		return err
	}
	if !ok {
		return p.errorf("unexpected-token")
	}
	return nil
}

func (p *Parser) expect(kind TokenKind) (Token, error) {
	if p.cur.Kind != kind {
		return Token{}, p.errorf("unexpected-token")
	}
	t := p.cur
	if err := p.advance(); err != nil {
		return Token{}, err
	}
	return t, nil
}

func (p *Parser) errorf(msg string) error {
	line, col := p.posOf(p.cur.Span.Start)
	return qerr.AtPos(msg, line, col)
}

func (p *Parser) posOf(offset uint32) (int, int) {
	line, col := 1, 1
	for i := uint32(0); i < offset && int(i) < len(p.src); i++ {
		if p.src[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}

// parsePrologue consumes BASE and PREFIX declarations.
func (p *Parser) parsePrologue(prefixes *[]PrefixDecl, base *Span) error {
	for {
		if ok, err := p.eatKeyword("BASE"); err != nil {
			return err
		} else if ok {
			iri, err := p.expect(TokIRIRef)
			if err != nil {
				return err
			}
			*base = trimAngle(iri.Span)
			continue
		}
		if ok, err := p.eatKeyword("PREFIX"); err != nil {
			return err
		} else if ok {
			ns, err := p.expect(TokPNameNS)
			if err != nil {
				// A bare "prefix:" lexes as TokPNameLN with zero-length local
				// part when followed directly by whitespace/IRI; accept that
				// shape too.
				ns, err = p.expect(TokPNameLN)
				if err != nil {
					return err
				}
			}
			iri, err := p.expect(TokIRIRef)
			if err != nil {
				return err
			}
			*prefixes = append(*prefixes, PrefixDecl{Prefix: trimColon(ns.Span), IRI: trimAngle(iri.Span)})
			continue
		}
		return nil
	}
}

func trimAngle(s Span) Span { return Span{Start: s.Start + 1, Len: s.Len - 2} }
func trimColon(s Span) Span {
	if s.Len > 0 {
		return Span{Start: s.Start, Len: s.Len - 1}
	}
	return s
}

func (p *Parser) parseQueryBody(q *Query) error {
	switch {
	case p.isKeyword("SELECT"):
		return p.parseSelect(q)
	case p.isKeyword("CONSTRUCT"):
		return p.parseConstruct(q)
	case p.isKeyword("DESCRIBE"):
		return p.parseDescribe(q)
	case p.isKeyword("ASK"):
		return p.parseAsk(q)
	default:
		return p.errorf("unexpected-token")
	}
}

func (p *Parser) parseSelect(q *Query) error {
	q.Form = FormSelect
	if err := p.advance(); err != nil { // SELECT
		return err
	}
	if ok, err := p.eatKeyword("DISTINCT"); err != nil {
		return err
	} else {
		q.Distinct = ok
	}
	if !q.Distinct {
		if ok, err := p.eatKeyword("REDUCED"); err != nil {
			return err
		} else {
			q.Reduced = ok
		}
	}
	if p.cur.Kind == TokStar {
		q.ProjectAll = true
		if err := p.advance(); err != nil {
			return err
		}
	} else {
		for isProjectionStart(p) {
			pe, err := p.parseProjectExpr()
			if err != nil {
				return err
			}
			q.Projection = append(q.Projection, pe)
		}
	}
	if err := p.parseDatasetClauses(q); err != nil {
		return err
	}
	where, err := p.parseWhereClause()
	if err != nil {
		return err
	}
	q.Where = where
	return p.parseSolutionModifiers(q)
}

func isProjectionStart(p *Parser) bool {
	return p.cur.Kind == TokVar || p.cur.Kind == TokLParen
}

func (p *Parser) parseProjectExpr() (ProjectExpr, error) {
	if p.cur.Kind == TokVar {
		v := p.cur
		if err := p.advance(); err != nil {
			return ProjectExpr{}, err
		}
		return ProjectExpr{Var: Term{Kind: TermVar, Span: v.Span}}, nil
	}
	// "(" expr|aggregate "AS" ?v ")"
	if _, err := p.expect(TokLParen); err != nil {
		return ProjectExpr{}, err
	}
	if agg, ok := p.peekAggregateKeyword(); ok {
		pe, err := p.parseAggregate(agg)
		if err != nil {
			return ProjectExpr{}, err
		}
		if err := p.expectKeyword("AS"); err != nil {
			return ProjectExpr{}, err
		}
		v, err := p.expect(TokVar)
		if err != nil {
			return ProjectExpr{}, err
		}
		pe.Alias = Term{Kind: TermVar, Span: v.Span}
		if _, err := p.expect(TokRParen); err != nil {
			return ProjectExpr{}, err
		}
		return pe, nil
	}
	expr, err := p.parseExpr()
	if err != nil {
		return ProjectExpr{}, err
	}
	if err := p.expectKeyword("AS"); err != nil {
		return ProjectExpr{}, err
	}
	v, err := p.expect(TokVar)
	if err != nil {
		return ProjectExpr{}, err
	}
	if _, err := p.expect(TokRParen); err != nil {
		return ProjectExpr{}, err
	}
	return ProjectExpr{Expr: expr, Alias: Term{Kind: TermVar, Span: v.Span}}, nil
}

func (p *Parser) peekAggregateKeyword() (AggKind, bool) {
	if p.cur.Kind != TokKeyword {
		return AggNone, false
	}
	switch strings.ToUpper(p.text(p.cur.Span)) {
	case "COUNT":
		return AggCount, true
	case "SUM":
		return AggSum, true
	case "AVG":
		return AggAvg, true
	case "MIN":
		return AggMin, true
	case "MAX":
		return AggMax, true
	}
	return AggNone, false
}

func (p *Parser) parseAggregate(kind AggKind) (ProjectExpr, error) {
	if err := p.advance(); err != nil { // the aggregate keyword
		return ProjectExpr{}, err
	}
	if _, err := p.expect(TokLParen); err != nil {
		return ProjectExpr{}, err
	}
	pe := ProjectExpr{IsAggregate: true, Agg: kind}
	if ok, err := p.eatKeyword("DISTINCT"); err != nil {
		return ProjectExpr{}, err
	} else {
		pe.AggDistinct = ok
	}
	if kind == AggCount && p.cur.Kind == TokStar {
		if err := p.advance(); err != nil {
			return ProjectExpr{}, err
		}
	} else {
		arg, err := p.parseExpr()
		if err != nil {
			return ProjectExpr{}, err
		}
		pe.AggArg = arg
	}
	if _, err := p.expect(TokRParen); err != nil {
		return ProjectExpr{}, err
	}
	return pe, nil
}

func (p *Parser) parseDatasetClauses(q *Query) error {
	for {
		if ok, err := p.eatKeyword("FROM"); err != nil {
			return err
		} else if ok {
			named, err := p.eatKeyword("NAMED")
			if err != nil {
				return err
			}
			iri, err := p.expect(TokIRIRef)
			if err != nil {
				return err
			}
			t := Term{Kind: TermIRI, Span: iri.Span}
			if named {
				q.FromNamed = append(q.FromNamed, t)
			} else {
				q.From = append(q.From, t)
			}
			continue
		}
		return nil
	}
}

func (p *Parser) parseWhereClause() (*GroupGraphPattern, error) {
	_, _ = p.eatKeyword("WHERE")
	if p.cur.Kind != TokLBrace {
		return nil, p.errorf("unexpected-token")
	}
	return p.parseGroupGraphPattern()
}

func (p *Parser) parseSolutionModifiers(q *Query) error {
	if ok, err := p.eatKeyword("GROUP"); err != nil {
		return err
	} else if ok {
		if err := p.expectKeyword("BY"); err != nil {
			return err
		}
		for p.cur.Kind == TokVar || p.cur.Kind == TokLParen {
			if p.cur.Kind == TokVar {
				v := p.cur
				if err := p.advance(); err != nil {
					return err
				}
				q.GroupBy = append(q.GroupBy, Term{Kind: TermVar, Span: v.Span})
				continue
			}
			if _, err := p.expect(TokLParen); err != nil {
				return err
			}
			e, err := p.parseExpr()
			if err != nil {
				return err
			}
			_ = e
			if _, err := p.expect(TokRParen); err != nil {
				return err
			}
		}
	}
	if ok, err := p.eatKeyword("HAVING"); err != nil {
		return err
	} else if ok {
		if _, err := p.expect(TokLParen); err != nil {
			return err
		}
		e, err := p.parseExpr()
		if err != nil {
			return err
		}
		q.Having = append(q.Having, e)
		if _, err := p.expect(TokRParen); err != nil {
			return err
		}
	}
	if ok, err := p.eatKeyword("ORDER"); err != nil {
		return err
	} else if ok {
		if err := p.expectKeyword("BY"); err != nil {
			return err
		}
		for {
			desc := false
			if ok, err := p.eatKeyword("DESC"); err != nil {
				return err
			} else if ok {
				desc = true
			} else if ok, err := p.eatKeyword("ASC"); err != nil {
				return err
			} else {
				_ = ok
			}
			var e *Expr
			var err error
			if p.cur.Kind == TokLParen {
				if _, err = p.expect(TokLParen); err != nil {
					return err
				}
				e, err = p.parseExpr()
				if err != nil {
					return err
				}
				if _, err = p.expect(TokRParen); err != nil {
					return err
				}
			} else {
				e, err = p.parseExpr()
				if err != nil {
					return err
				}
			}
			q.OrderBy = append(q.OrderBy, OrderTerm{Expr: e, Desc: desc})
			if p.cur.Kind != TokVar && p.cur.Kind != TokLParen {
				break
			}
		}
	}
	if ok, err := p.eatKeyword("LIMIT"); err != nil {
		return err
	} else if ok {
		n, err := p.expect(TokInteger)
		if err != nil {
			return err
		}
		q.Limit = parseIntSpan(p.text(n.Span))
		q.HasLimit = true
	}
	if ok, err := p.eatKeyword("OFFSET"); err != nil {
		return err
	} else if ok {
		n, err := p.expect(TokInteger)
		if err != nil {
			return err
		}
		q.Offset = parseIntSpan(p.text(n.Span))
		q.HasOffset = true
	}
	return nil
}

func parseIntSpan(s string) int64 {
	var n int64
	neg := false
	for i, c := range s {
		if i == 0 && (c == '+' || c == '-') {
			neg = c == '-'
			continue
		}
		n = n*10 + int64(c-'0')
	}
	if neg {
		n = -n
	}
	return n
}

func (p *Parser) parseConstruct(q *Query) error {
	q.Form = FormConstruct
	if err := p.advance(); err != nil {
		return err
	}
	if _, err := p.expect(TokLBrace); err != nil {
		return err
	}
	for p.cur.Kind != TokRBrace {
		if err := p.parseConstructTriples(q); err != nil {
			return err
		}
	}
	if _, err := p.expect(TokRBrace); err != nil {
		return err
	}
	if err := p.parseDatasetClauses(q); err != nil {
		return err
	}
	where, err := p.parseWhereClause()
	if err != nil {
		return err
	}
	q.Where = where
	return p.parseSolutionModifiers(q)
}

func (p *Parser) parseConstructTriples(q *Query) error {
	subj, err := p.parseVarOrTerm()
	if err != nil {
		return err
	}
	for {
		pred, err := p.parseVarOrTerm()
		if err != nil {
			return err
		}
		for {
			obj, err := p.parseVarOrTerm()
			if err != nil {
				return err
			}
			if err := q.addConstructTriple(TriplePattern{S: subj, Path: PropertyPath{Kind: PathSimple, IRI: pred}, O: obj}); err != nil {
				return err
			}
			if p.cur.Kind == TokComma {
				if err := p.advance(); err != nil {
					return err
				}
				continue
			}
			break
		}
		if p.cur.Kind == TokSemicolon {
			if err := p.advance(); err != nil {
				return err
			}
			if p.cur.Kind == TokDot || p.cur.Kind == TokRBrace {
				break
			}
			continue
		}
		break
	}
	if p.cur.Kind == TokDot {
		return p.advance()
	}
	return nil
}

func (p *Parser) parseDescribe(q *Query) error {
	q.Form = FormDescribe
	if err := p.advance(); err != nil {
		return err
	}
	if p.cur.Kind == TokStar {
		q.DescribeAll = true
		if err := p.advance(); err != nil {
			return err
		}
	} else {
		for p.cur.Kind == TokVar || p.cur.Kind == TokIRIRef || p.cur.Kind == TokPNameLN || p.cur.Kind == TokPNameNS {
			t, err := p.parseVarOrTerm()
			if err != nil {
				return err
			}
			q.DescribeTerms = append(q.DescribeTerms, t)
		}
	}
	if err := p.parseDatasetClauses(q); err != nil {
		return err
	}
	if p.isKeyword("WHERE") || p.cur.Kind == TokLBrace {
		where, err := p.parseWhereClause()
		if err != nil {
			return err
		}
		q.Where = where
	}
	return p.parseSolutionModifiers(q)
}

func (p *Parser) parseAsk(q *Query) error {
	q.Form = FormAsk
	if err := p.advance(); err != nil {
		return err
	}
	if err := p.parseDatasetClauses(q); err != nil {
		return err
	}
	where, err := p.parseWhereClause()
	if err != nil {
		return err
	}
	q.Where = where
	return nil
}

// parseGroupGraphPattern parses one `{ ... }` group.
func (p *Parser) parseGroupGraphPattern() (*GroupGraphPattern, error) {
	if _, err := p.expect(TokLBrace); err != nil {
		return nil, err
	}
	g := &GroupGraphPattern{}
	for p.cur.Kind != TokRBrace {
		switch {
		case p.isKeyword("OPTIONAL"):
			if err := p.advance(); err != nil {
				return nil, err
			}
			inner, err := p.parseGroupGraphPattern()
			if err != nil {
				return nil, err
			}
			g.Optional = append(g.Optional, inner)
		case p.isKeyword("MINUS"):
			if err := p.advance(); err != nil {
				return nil, err
			}
			inner, err := p.parseGroupGraphPattern()
			if err != nil {
				return nil, err
			}
			if err := g.addMinus(inner); err != nil {
				return nil, err
			}
		case p.isKeyword("FILTER"):
			if err := p.advance(); err != nil {
				return nil, err
			}
			e, err := p.parseFilterExpr()
			if err != nil {
				return nil, err
			}
			if err := g.addFilter(Filter{Expr: e}); err != nil {
				return nil, err
			}
		case p.isKeyword("BIND"):
			if err := p.advance(); err != nil {
				return nil, err
			}
			if _, err := p.expect(TokLParen); err != nil {
				return nil, err
			}
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectKeyword("AS"); err != nil {
				return nil, err
			}
			v, err := p.expect(TokVar)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TokRParen); err != nil {
				return nil, err
			}
			if err := g.addBind(Bind{Expr: e, Var: Term{Kind: TermVar, Span: v.Span}}); err != nil {
				return nil, err
			}
		case p.isKeyword("VALUES"):
			if err := p.advance(); err != nil {
				return nil, err
			}
			if err := p.parseValuesInto(g); err != nil {
				return nil, err
			}
		case p.isKeyword("GRAPH"):
			if err := p.advance(); err != nil {
				return nil, err
			}
			term, err := p.parseVarOrTerm()
			if err != nil {
				return nil, err
			}
			inner, err := p.parseGroupGraphPattern()
			if err != nil {
				return nil, err
			}
			if err := g.addGraph(GraphClause{Term: term, Group: inner}); err != nil {
				return nil, err
			}
		case p.isKeyword("SELECT"):
			sub := &Query{}
			if err := p.parseSelect(sub); err != nil {
				return nil, err
			}
			if err := g.addSubquery(sub); err != nil {
				return nil, err
			}
		case p.cur.Kind == TokLBrace:
			first, err := p.parseGroupGraphPattern()
			if err != nil {
				return nil, err
			}
			if ok, err := p.eatKeyword("UNION"); err != nil {
				return nil, err
			} else if ok {
				second, err := p.parseGroupGraphPattern()
				if err != nil {
					return nil, err
				}
				g.Union = append(g.Union, [2]*GroupGraphPattern{first, second})
			} else {
				g.Optional = append(g.Optional, first) // a bare nested group behaves like an always-taken OPTIONAL for join purposes
			}
		default:
			if err := p.parseTriplesBlock(g); err != nil {
				return nil, err
			}
		}
		if p.cur.Kind == TokDot {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if _, err := p.expect(TokRBrace); err != nil {
		return nil, err
	}
	return g, nil
}

// parseValuesInto handles the single-variable VALUES form SPEC_FULL.md
// §4.4 names, recording every row in one synthetic Bind whose expression
// is ExprCall{Op:"VALUES_ONE_OF", Args: one term per row}. The exec
// compiler turns that Bind into a multi-row valuesScan. Each row must be
// a variable or RDF term; the UNDEF keyword is not accepted.
func (p *Parser) parseValuesInto(g *GroupGraphPattern) error {
	v, err := p.expect(TokVar)
	if err != nil {
		return err
	}
	if _, err := p.expect(TokLBrace); err != nil {
		return err
	}
	var rows []*Expr
	for p.cur.Kind != TokRBrace {
		term, err := p.parseVarOrTerm()
		if err != nil {
			return err
		}
		rows = append(rows, &Expr{Kind: ExprTerm, Term: term})
	}
	if _, err := p.expect(TokRBrace); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	varTerm := Term{Kind: TermVar, Span: v.Span}
	if err := g.addBind(Bind{Expr: &Expr{Kind: ExprCall, Op: "VALUES_ONE_OF", Args: rows}, Var: varTerm}); err != nil {
		return err
	}
	return nil
}

func (p *Parser) parseFilterExpr() (*Expr, error) {
	if ok, err := p.eatKeyword("EXISTS"); err != nil {
		return nil, err
	} else if ok {
		grp, err := p.parseGroupGraphPattern()
		if err != nil {
			return nil, err
		}
		return &Expr{Kind: ExprExists, Group: grp}, nil
	}
	if ok, err := p.eatKeyword("NOT"); err != nil {
		return nil, err
	} else if ok {
		if err := p.expectKeyword("EXISTS"); err != nil {
			return nil, err
		}
		grp, err := p.parseGroupGraphPattern()
		if err != nil {
			return nil, err
		}
		return &Expr{Kind: ExprNotExists, Group: grp}, nil
	}
	if p.cur.Kind == TokLParen {
		if _, err := p.expect(TokLParen); err != nil {
			return nil, err
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokRParen); err != nil {
			return nil, err
		}
		return e, nil
	}
	return p.parseExpr()
}

// parseTriplesBlock parses one `subj pred obj (, obj)* (; pred obj...)*
// .` triples block, reused for each leading term in the group.
func (p *Parser) parseTriplesBlock(g *GroupGraphPattern) error {
	subj, err := p.parseVarOrTerm()
	if err != nil {
		return err
	}
	for {
		path, err := p.parsePropertyPath()
		if err != nil {
			return err
		}
		for {
			obj, err := p.parseVarOrTerm()
			if err != nil {
				return err
			}
			if err := g.addPattern(TriplePattern{S: subj, Path: *path, O: obj}); err != nil {
				return err
			}
			if p.cur.Kind == TokComma {
				if err := p.advance(); err != nil {
					return err
				}
				continue
			}
			break
		}
		if p.cur.Kind == TokSemicolon {
			if err := p.advance(); err != nil {
				return err
			}
			if p.cur.Kind == TokDot || p.cur.Kind == TokRBrace {
				break
			}
			continue
		}
		break
	}
	return nil
}

// parseVarOrTerm parses one RDF term reference: variable, IRI,
// prefixed name, literal (with optional @lang or ^^datatype), blank
// node label, anonymous blank node "[]", or the "a" rdf:type shortcut.
func (p *Parser) parseVarOrTerm() (Term, error) {
	switch p.cur.Kind {
	case TokVar:
		t := p.cur
		return Term{Kind: TermVar, Span: t.Span}, p.advance()
	case TokIRIRef:
		t := p.cur
		return Term{Kind: TermIRI, Span: t.Span}, p.advance()
	case TokPNameLN, TokPNameNS:
		t := p.cur
		return Term{Kind: TermPrefixedName, Span: t.Span}, p.advance()
	case TokBlankNode:
		t := p.cur
		return Term{Kind: TermBlankNode, Span: t.Span}, p.advance()
	case TokLBracket:
		start := p.cur.Span.Start
		if err := p.advance(); err != nil {
			return Term{}, err
		}
		if _, err := p.expect(TokRBracket); err != nil {
			return Term{}, err
		}
		return Term{Kind: TermBlankNode, Span: Span{Start: start, Len: 0}}, nil
	case TokString:
		return p.parseLiteral()
	case TokInteger, TokDecimal, TokDouble:
		t := p.cur
		return Term{Kind: TermNumeric, Span: t.Span}, p.advance()
	case TokKeyword:
		txt := p.text(p.cur.Span)
		if strings.EqualFold(txt, "a") {
			t := p.cur
			return Term{Kind: TermIRI, Span: t.Span}, p.advance() // resolved to rdf:type by the executor
		}
		if strings.EqualFold(txt, "true") || strings.EqualFold(txt, "false") {
			t := p.cur
			return Term{Kind: TermNumeric, Span: t.Span}, p.advance()
		}
		return Term{}, p.errorf("unexpected-token")
	default:
		return Term{}, p.errorf("unexpected-token")
	}
}

func (p *Parser) parseLiteral() (Term, error) {
	t := p.cur
	if err := p.advance(); err != nil {
		return Term{}, err
	}
	term := Term{Kind: TermLiteral, Span: t.Span}
	if p.cur.Kind == TokLangTag {
		term.Lang = Span{Start: p.cur.Span.Start + 1, Len: p.cur.Span.Len - 1}
		if err := p.advance(); err != nil {
			return Term{}, err
		}
	} else if p.cur.Kind == TokCaretCaret {
		if err := p.advance(); err != nil {
			return Term{}, err
		}
		dt, err := p.parseVarOrTerm()
		if err != nil {
			return Term{}, err
		}
		term.Datatype = dt.Span
	}
	return term, nil
}

// parsePropertyPath parses a full alternative|sequence|postfix path
// expression, per SPEC_FULL.md §4.4's `^p`, `p*`, `p+`, `p?`, `p1/p2`,
// `p1|p2`.
func (p *Parser) parsePropertyPath() (*PropertyPath, error) {
	return p.parsePathAlternative()
}

func (p *Parser) parsePathAlternative() (*PropertyPath, error) {
	left, err := p.parsePathSequence()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == TokPipe {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parsePathSequence()
		if err != nil {
			return nil, err
		}
		left = &PropertyPath{Kind: PathAlternative, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parsePathSequence() (*PropertyPath, error) {
	left, err := p.parsePathPostfix()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == TokSlash {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parsePathPostfix()
		if err != nil {
			return nil, err
		}
		left = &PropertyPath{Kind: PathSequence, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parsePathPostfix() (*PropertyPath, error) {
	inverse := false
	if p.cur.Kind == TokCaret {
		inverse = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	prim, err := p.parsePathPrimary()
	if err != nil {
		return nil, err
	}
	if inverse {
		prim = &PropertyPath{Kind: PathInverse, Inner: prim}
	}
	for {
		switch p.cur.Kind {
		case TokStar:
			prim = &PropertyPath{Kind: PathStar, Inner: prim}
		case TokPlus:
			prim = &PropertyPath{Kind: PathPlus, Inner: prim}
		case TokQuestion:
			prim = &PropertyPath{Kind: PathQuestion, Inner: prim}
		default:
			return prim, nil
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
}

func (p *Parser) parsePathPrimary() (*PropertyPath, error) {
	if p.cur.Kind == TokLParen {
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parsePathAlternative()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokRParen); err != nil {
			return nil, err
		}
		return inner, nil
	}
	term, err := p.parseVarOrTerm()
	if err != nil {
		return nil, err
	}
	return &PropertyPath{Kind: PathSimple, IRI: term}, nil
}
