package exec

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/larkspur/quadstore/plan"
	"github.com/larkspur/quadstore/qerr"
	"github.com/larkspur/quadstore/rdf"
	"github.com/larkspur/quadstore/sparql"
)

// Evaluator evaluates sparql.Expr trees against one solution row, per
// SPEC_FULL.md §4.7's three-valued semantics: a failed operation (type
// mismatch, unbound variable, bad regex) returns a qerr.Expression
// error rather than panicking; callers (filterScan, projection,
// ORDER BY) each decide how an error degrades (reject, leave unbound,
// sort last).
type Evaluator struct {
	Src      []byte
	Prefixes plan.PrefixMap

	// ExistsCheck runs a nested group pattern against the current row
	// and reports whether it has at least one solution; wired by the
	// compiler so EXISTS/NOT EXISTS can recurse into the scan tree
	// without this package importing its own compiler.
	ExistsCheck func(g *sparql.GroupGraphPattern, b *Bindings) (bool, error)
}

func unboundErr() error { return qerr.New(qerr.Expression, "unbound variable") }

func typeErr(msg string) error { return qerr.New(qerr.Expression, msg) }

func truthy(v rdf.Value) bool {
	switch v.Kind {
	case rdf.KindTypedBoolean:
		return v.Bool
	case rdf.KindTypedInteger, rdf.KindTypedDouble:
		return v.AsFloat() != 0
	case rdf.KindPlainLiteral, rdf.KindTypedString, rdf.KindLangLiteral:
		return v.Lexical != ""
	case rdf.KindUnbound:
		return false
	default:
		return true
	}
}

// Eval evaluates one expression node against b.
func (e *Evaluator) Eval(expr *sparql.Expr, b *Bindings) (rdf.Value, error) {
	switch expr.Kind {
	case sparql.ExprTerm:
		return e.evalTerm(expr.Term, b)
	case sparql.ExprBinary:
		return e.evalBinary(expr, b)
	case sparql.ExprUnary:
		return e.evalUnary(expr, b)
	case sparql.ExprCall:
		return e.evalCall(expr, b)
	case sparql.ExprExists, sparql.ExprNotExists:
		ok, err := e.ExistsCheck(expr.Group, b)
		if err != nil {
			return rdf.Value{}, err
		}
		if expr.Kind == sparql.ExprNotExists {
			ok = !ok
		}
		return rdf.Boolean(ok), nil
	case sparql.ExprIn, sparql.ExprNotIn:
		return e.evalIn(expr, b)
	default:
		return rdf.Value{}, typeErr("unknown expression kind")
	}
}

func (e *Evaluator) evalTerm(t sparql.Term, b *Bindings) (rdf.Value, error) {
	if t.Kind == sparql.TermVar {
		name := t.Span.Text(e.Src)[1:]
		v, ok := b.Get(name)
		if !ok {
			return rdf.Value{}, unboundErr()
		}
		return v, nil
	}
	return plan.ResolveValue(t, e.Src, e.Prefixes)
}

func (e *Evaluator) evalUnary(expr *sparql.Expr, b *Bindings) (rdf.Value, error) {
	v, err := e.Eval(expr.Left, b)
	if err != nil {
		return rdf.Value{}, err
	}
	switch expr.Op {
	case "!":
		return rdf.Boolean(!truthy(v)), nil
	case "-":
		if !v.IsNumeric() {
			return rdf.Value{}, typeErr("unary - on non-numeric")
		}
		if v.Kind == rdf.KindTypedInteger {
			return rdf.Integer(-v.Int), nil
		}
		return rdf.Double(-v.Float), nil
	default:
		return rdf.Value{}, typeErr("unknown unary operator " + expr.Op)
	}
}

func (e *Evaluator) evalBinary(expr *sparql.Expr, b *Bindings) (rdf.Value, error) {
	switch expr.Op {
	case "&&":
		l, lerr := e.Eval(expr.Left, b)
		if lerr == nil && !truthy(l) {
			return rdf.Boolean(false), nil
		}
		r, rerr := e.Eval(expr.Right, b)
		if lerr != nil || rerr != nil {
			return rdf.Value{}, unboundErr()
		}
		return rdf.Boolean(truthy(l) && truthy(r)), nil
	case "||":
		l, lerr := e.Eval(expr.Left, b)
		if lerr == nil && truthy(l) {
			return rdf.Boolean(true), nil
		}
		r, rerr := e.Eval(expr.Right, b)
		if lerr != nil || rerr != nil {
			return rdf.Value{}, unboundErr()
		}
		return rdf.Boolean(truthy(l) || truthy(r)), nil
	}

	l, err := e.Eval(expr.Left, b)
	if err != nil {
		return rdf.Value{}, err
	}
	r, err := e.Eval(expr.Right, b)
	if err != nil {
		return rdf.Value{}, err
	}

	switch expr.Op {
	case "=":
		return rdf.Boolean(l.Equal(r)), nil
	case "!=":
		return rdf.Boolean(!l.Equal(r)), nil
	case "<":
		return rdf.Boolean(l.Less(r)), nil
	case ">":
		return rdf.Boolean(r.Less(l)), nil
	case "<=":
		return rdf.Boolean(l.Less(r) || l.Equal(r)), nil
	case ">=":
		return rdf.Boolean(r.Less(l) || l.Equal(r)), nil
	case "+", "-", "*", "/":
		return arith(expr.Op, l, r)
	default:
		return rdf.Value{}, typeErr("unknown binary operator " + expr.Op)
	}
}

func arith(op string, l, r rdf.Value) (rdf.Value, error) {
	if !l.IsNumeric() || !r.IsNumeric() {
		return rdf.Value{}, typeErr("arithmetic on non-numeric operand")
	}
	if l.Kind == rdf.KindTypedInteger && r.Kind == rdf.KindTypedInteger {
		switch op {
		case "+":
			return rdf.Integer(l.Int + r.Int), nil
		case "-":
			return rdf.Integer(l.Int - r.Int), nil
		case "*":
			return rdf.Integer(l.Int * r.Int), nil
		case "/":
			if r.Int == 0 {
				return rdf.Value{}, typeErr("division by zero")
			}
			return rdf.Double(float64(l.Int) / float64(r.Int)), nil
		}
	}
	lf, rf := l.AsFloat(), r.AsFloat()
	switch op {
	case "+":
		return rdf.Double(lf + rf), nil
	case "-":
		return rdf.Double(lf - rf), nil
	case "*":
		return rdf.Double(lf * rf), nil
	case "/":
		if rf == 0 {
			return rdf.Value{}, typeErr("division by zero")
		}
		return rdf.Double(lf / rf), nil
	}
	return rdf.Value{}, typeErr("unreachable arithmetic operator")
}

func (e *Evaluator) evalIn(expr *sparql.Expr, b *Bindings) (rdf.Value, error) {
	l, err := e.Eval(expr.Left, b)
	if err != nil {
		return rdf.Value{}, err
	}
	found := false
	for _, a := range expr.Args {
		v, err := e.Eval(a, b)
		if err != nil {
			continue
		}
		if l.Equal(v) {
			found = true
			break
		}
	}
	if expr.Kind == sparql.ExprNotIn {
		found = !found
	}
	return rdf.Boolean(found), nil
}

func (e *Evaluator) evalArgs(expr *sparql.Expr, b *Bindings) ([]rdf.Value, error) {
	vals := make([]rdf.Value, len(expr.Args))
	for i, a := range expr.Args {
		v, err := e.Eval(a, b)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

// xsdNS is the canonical XML Schema datatype namespace. A cast call
// written as xsd:integer(...) etc. resolves through the query's declared
// PREFIX map like any other prefixed name; an undeclared xsd: prefix
// still resolves here since every SPARQL processor treats it as built in.
const xsdNS = "http://www.w3.org/2001/XMLSchema#"

var castTargets = map[string]bool{
	"integer": true, "int": true, "long": true, "short": true, "byte": true,
	"double": true, "float": true, "decimal": true,
	"boolean": true,
	"string":  true,
}

// castTarget reports whether rawOp (the call's un-uppercased Op, as
// parsePrimary's cast-call path stores it) names an xsd:integer(...)-style
// constructor cast, and if so the bare local name to cast to.
func (e *Evaluator) castTarget(rawOp string) (string, bool) {
	var iri string
	switch {
	case strings.HasPrefix(rawOp, "<") && strings.HasSuffix(rawOp, ">"):
		iri = rawOp[1 : len(rawOp)-1]
	case strings.Contains(rawOp, ":"):
		idx := strings.IndexByte(rawOp, ':')
		prefix, local := rawOp[:idx], rawOp[idx+1:]
		base, ok := e.Prefixes[prefix]
		if !ok {
			if prefix != "xsd" {
				return "", false
			}
			base = xsdNS
		}
		iri = base + local
	default:
		return "", false
	}
	if !strings.HasPrefix(iri, xsdNS) {
		return "", false
	}
	local := strings.TrimPrefix(iri, xsdNS)
	if !castTargets[local] {
		return "", false
	}
	return local, true
}

// castValue implements the xsd:integer(...)/xsd:double(...)/etc.
// constructor-style casts SPARQL 1.1 functions define in terms of
// XPath's constructor functions.
func castValue(target string, v rdf.Value) (rdf.Value, error) {
	switch target {
	case "integer", "int", "long", "short", "byte":
		switch v.Kind {
		case rdf.KindTypedInteger:
			return v, nil
		case rdf.KindTypedDouble:
			return rdf.Integer(int64(v.Float)), nil
		case rdf.KindTypedBoolean:
			if v.Bool {
				return rdf.Integer(1), nil
			}
			return rdf.Integer(0), nil
		case rdf.KindPlainLiteral, rdf.KindTypedString, rdf.KindLangLiteral:
			n, err := strconv.ParseInt(strings.TrimSpace(v.Lexical), 10, 64)
			if err != nil {
				return rdf.Value{}, typeErr("cannot cast to xsd:" + target + ": " + v.Lexical)
			}
			return rdf.Integer(n), nil
		}
		return rdf.Value{}, typeErr("cannot cast to xsd:" + target)
	case "double", "float", "decimal":
		switch v.Kind {
		case rdf.KindTypedDouble:
			return v, nil
		case rdf.KindTypedInteger:
			return rdf.Double(float64(v.Int)), nil
		case rdf.KindTypedBoolean:
			if v.Bool {
				return rdf.Double(1), nil
			}
			return rdf.Double(0), nil
		case rdf.KindPlainLiteral, rdf.KindTypedString, rdf.KindLangLiteral:
			f, err := strconv.ParseFloat(strings.TrimSpace(v.Lexical), 64)
			if err != nil {
				return rdf.Value{}, typeErr("cannot cast to xsd:" + target + ": " + v.Lexical)
			}
			return rdf.Double(f), nil
		}
		return rdf.Value{}, typeErr("cannot cast to xsd:" + target)
	case "boolean":
		switch v.Kind {
		case rdf.KindTypedBoolean:
			return v, nil
		case rdf.KindTypedInteger:
			return rdf.Boolean(v.Int != 0), nil
		case rdf.KindTypedDouble:
			return rdf.Boolean(v.Float != 0), nil
		case rdf.KindPlainLiteral, rdf.KindTypedString, rdf.KindLangLiteral:
			bv, err := strconv.ParseBool(strings.TrimSpace(v.Lexical))
			if err != nil {
				return rdf.Value{}, typeErr("cannot cast to xsd:boolean: " + v.Lexical)
			}
			return rdf.Boolean(bv), nil
		}
		return rdf.Value{}, typeErr("cannot cast to xsd:boolean")
	case "string":
		return rdf.TypedLiteral(argLexical(v), xsdNS+"string"), nil
	default:
		return rdf.Value{}, typeErr("unsupported cast target xsd:" + target)
	}
}

// langMatches implements SPARQL 1.1's basic language-range matching:
// "*" matches any non-empty language tag, otherwise the range matches the
// tag exactly or as a "-"-delimited prefix, both case-insensitively.
func langMatches(tag, rng string) bool {
	if rng == "*" {
		return tag != ""
	}
	if strings.EqualFold(tag, rng) {
		return true
	}
	return len(tag) > len(rng) && strings.EqualFold(tag[:len(rng)], rng) && tag[len(rng)] == '-'
}

func (e *Evaluator) evalCall(expr *sparql.Expr, b *Bindings) (rdf.Value, error) {
	if target, ok := e.castTarget(expr.Op); ok {
		args, err := e.evalArgs(expr, b)
		if err != nil {
			return rdf.Value{}, err
		}
		if len(args) != 1 {
			return rdf.Value{}, typeErr("cast function requires exactly 1 argument")
		}
		return castValue(target, args[0])
	}

	op := strings.ToUpper(expr.Op)

	switch op {
	case "BOUND":
		if len(expr.Args) != 1 || expr.Args[0].Kind != sparql.ExprTerm || expr.Args[0].Term.Kind != sparql.TermVar {
			return rdf.Value{}, typeErr("BOUND requires a variable argument")
		}
		name := expr.Args[0].Term.Span.Text(e.Src)[1:]
		_, ok := b.Get(name)
		return rdf.Boolean(ok), nil
	case "IF":
		if len(expr.Args) != 3 {
			return rdf.Value{}, typeErr("IF requires 3 arguments")
		}
		cond, err := e.Eval(expr.Args[0], b)
		if err != nil || !truthy(cond) {
			return e.Eval(expr.Args[2], b)
		}
		return e.Eval(expr.Args[1], b)
	case "COALESCE":
		for _, a := range expr.Args {
			if v, err := e.Eval(a, b); err == nil {
				return v, nil
			}
		}
		return rdf.Value{}, unboundErr()
	}

	args, err := e.evalArgs(expr, b)
	if err != nil {
		return rdf.Value{}, err
	}

	switch op {
	case "STR":
		return rdf.PlainLiteral(argLexical(args[0])), nil
	case "LANG":
		return rdf.PlainLiteral(args[0].Lang), nil
	case "LANGMATCHES":
		if len(args) != 2 {
			return rdf.Value{}, typeErr("LANGMATCHES requires 2 arguments")
		}
		return rdf.Boolean(langMatches(argLexical(args[0]), argLexical(args[1]))), nil
	case "DATATYPE":
		return rdf.IRI(args[0].Datatype), nil
	case "ISIRI", "ISURI":
		return rdf.Boolean(args[0].Kind == rdf.KindIRI), nil
	case "ISBLANK":
		return rdf.Boolean(args[0].Kind == rdf.KindBlankNode), nil
	case "ISLITERAL":
		k := args[0].Kind
		return rdf.Boolean(k != rdf.KindIRI && k != rdf.KindBlankNode && k != rdf.KindUnbound), nil
	case "ISNUMERIC":
		return rdf.Boolean(args[0].IsNumeric()), nil
	case "SAMETERM":
		if len(args) != 2 {
			return rdf.Value{}, typeErr("sameTerm requires 2 arguments")
		}
		return rdf.Boolean(args[0].Kind == args[1].Kind && args[0].Equal(args[1])), nil
	case "STRLEN":
		return rdf.Integer(int64(len([]rune(argLexical(args[0]))))), nil
	case "UCASE":
		return rdf.PlainLiteral(strings.ToUpper(argLexical(args[0]))), nil
	case "LCASE":
		return rdf.PlainLiteral(strings.ToLower(argLexical(args[0]))), nil
	case "CONCAT":
		var sb strings.Builder
		for _, a := range args {
			sb.WriteString(argLexical(a))
		}
		return rdf.PlainLiteral(sb.String()), nil
	case "CONTAINS":
		return rdf.Boolean(strings.Contains(argLexical(args[0]), argLexical(args[1]))), nil
	case "STRSTARTS":
		return rdf.Boolean(strings.HasPrefix(argLexical(args[0]), argLexical(args[1]))), nil
	case "STRENDS":
		return rdf.Boolean(strings.HasSuffix(argLexical(args[0]), argLexical(args[1]))), nil
	case "SUBSTR":
		return substr(args)
	case "REPLACE":
		if len(args) < 3 {
			return rdf.Value{}, typeErr("REPLACE requires 3 arguments")
		}
		re, rerr := regexp.Compile(argLexical(args[1]))
		if rerr != nil {
			return rdf.Value{}, typeErr("malformed REPLACE pattern")
		}
		return rdf.PlainLiteral(re.ReplaceAllString(argLexical(args[0]), argLexical(args[2]))), nil
	case "REGEX":
		if len(args) < 2 {
			return rdf.Value{}, typeErr("REGEX requires 2 arguments")
		}
		pattern := argLexical(args[1])
		if len(args) == 3 && strings.Contains(argLexical(args[2]), "i") {
			pattern = "(?i)" + pattern
		}
		re, rerr := regexp.Compile(pattern)
		if rerr != nil {
			return rdf.Value{}, typeErr("malformed REGEX pattern")
		}
		return rdf.Boolean(re.MatchString(argLexical(args[0]))), nil
	case "ABS":
		if !args[0].IsNumeric() {
			return rdf.Value{}, typeErr("ABS on non-numeric")
		}
		if args[0].Kind == rdf.KindTypedInteger {
			n := args[0].Int
			if n < 0 {
				n = -n
			}
			return rdf.Integer(n), nil
		}
		f := args[0].Float
		if f < 0 {
			f = -f
		}
		return rdf.Double(f), nil
	case "CEIL":
		return rdf.Integer(int64(ceilFloat(args[0].AsFloat()))), nil
	case "FLOOR":
		return rdf.Integer(int64(floorFloat(args[0].AsFloat()))), nil
	case "ROUND":
		return rdf.Integer(int64(floorFloat(args[0].AsFloat() + 0.5))), nil
	case "STRLANG":
		if len(args) != 2 {
			return rdf.Value{}, typeErr("STRLANG requires 2 arguments")
		}
		return rdf.LangLiteral(argLexical(args[0]), argLexical(args[1])), nil
	case "STRDT":
		if len(args) != 2 {
			return rdf.Value{}, typeErr("STRDT requires 2 arguments")
		}
		return rdf.TypedLiteral(argLexical(args[0]), argLexical(args[1])), nil
	case "UUID":
		return rdf.IRI("urn:uuid:" + uuid.NewString()), nil
	case "STRUUID":
		return rdf.PlainLiteral(uuid.NewString()), nil
	case "BNODE":
		if len(args) == 0 {
			return rdf.BlankNode(uuid.NewString()), nil
		}
		return rdf.BlankNode(argLexical(args[0])), nil
	default:
		return rdf.Value{}, typeErr("unknown function " + expr.Op)
	}
}

func argLexical(v rdf.Value) string { return v.Lexical }

func substr(args []rdf.Value) (rdf.Value, error) {
	if len(args) < 2 {
		return rdf.Value{}, typeErr("SUBSTR requires at least 2 arguments")
	}
	runes := []rune(argLexical(args[0]))
	start := int(args[1].AsFloat()) - 1
	if start < 0 {
		start = 0
	}
	if start > len(runes) {
		start = len(runes)
	}
	end := len(runes)
	if len(args) >= 3 {
		end = start + int(args[2].AsFloat())
		if end > len(runes) {
			end = len(runes)
		}
		if end < start {
			end = start
		}
	}
	return rdf.PlainLiteral(string(runes[start:end])), nil
}

func ceilFloat(f float64) float64 {
	i := float64(int64(f))
	if f > i {
		return i + 1
	}
	return i
}

func floorFloat(f float64) float64 {
	i := float64(int64(f))
	if f < i {
		return i - 1
	}
	return i
}
