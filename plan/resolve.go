package plan

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/larkspur/quadstore/qerr"
	"github.com/larkspur/quadstore/rdf"
	"github.com/larkspur/quadstore/sparql"
)

// rdfType is the `a` shortcut's expansion.
const rdfType = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"

// PrefixMap resolves a declared PREFIX name to its IRI (without angle
// brackets).
type PrefixMap map[string]string

// BuildPrefixMap collects a query or update's PREFIX declarations.
func BuildPrefixMap(src []byte, decls []sparql.PrefixDecl) PrefixMap {
	m := make(PrefixMap, len(decls)+1)
	for _, d := range decls {
		m[d.Prefix.Text(src)] = d.IRI.Text(src)
	}
	return m
}

// ResolveIRI expands a TermIRI/TermPrefixedName term to its full IRI
// string (never the `a` token or prefix colon itself).
func ResolveIRI(t sparql.Term, src []byte, prefixes PrefixMap) (string, error) {
	switch t.Kind {
	case sparql.TermIRI:
		text := t.Span.Text(src)
		if strings.EqualFold(text, "a") {
			return rdfType, nil
		}
		if len(text) >= 2 && text[0] == '<' {
			return text[1 : len(text)-1], nil
		}
		return text, nil
	case sparql.TermPrefixedName:
		text := t.Span.Text(src)
		idx := strings.IndexByte(text, ':')
		if idx < 0 {
			return "", qerr.Newf(qerr.Semantic, "malformed prefixed name %q", text)
		}
		prefix, local := text[:idx], text[idx+1:]
		base, ok := prefixes[prefix]
		if !ok {
			return "", qerr.Newf(qerr.Semantic, "undeclared prefix %q", prefix)
		}
		return base + local, nil
	default:
		return "", qerr.Newf(qerr.Semantic, "term is not an IRI or prefixed name")
	}
}

// ResolveValue converts any constant AST term (IRI, prefixed name,
// literal, blank node, numeric/boolean keyword) into its typed Value.
// Variables are rejected; callers branch on Term.Kind == TermVar before
// calling this.
func ResolveValue(t sparql.Term, src []byte, prefixes PrefixMap) (rdf.Value, error) {
	switch t.Kind {
	case sparql.TermIRI, sparql.TermPrefixedName:
		iri, err := ResolveIRI(t, src, prefixes)
		if err != nil {
			return rdf.Value{}, err
		}
		return rdf.IRI(iri), nil
	case sparql.TermBlankNode:
		text := t.Span.Text(src)
		label := strings.TrimPrefix(text, "_:")
		return rdf.BlankNode(label), nil
	case sparql.TermLiteral:
		return resolveLiteral(t, src)
	case sparql.TermNumeric:
		return resolveNumericOrBool(t.Span.Text(src))
	default:
		return rdf.Value{}, qerr.Newf(qerr.Semantic, "term is not a constant")
	}
}

func resolveLiteral(t sparql.Term, src []byte) (rdf.Value, error) {
	raw := t.Span.Text(src)
	lexical, err := unescapeSPARQL(stripQuotes(raw))
	if err != nil {
		return rdf.Value{}, qerr.Wrap(qerr.Semantic, err, "malformed string literal")
	}
	if t.Lang.Len > 0 {
		return rdf.LangLiteral(lexical, t.Lang.Text(src)), nil
	}
	if t.Datatype.Len > 0 {
		dt := t.Datatype.Text(src)
		if len(dt) >= 2 && dt[0] == '<' {
			dt = dt[1 : len(dt)-1]
		}
		// Round-trip through the atom codec so a numeric/boolean datatype
		// yields the same typed Value a stored atom decodes to.
		return rdf.DecodeTerm(rdf.EncodeTerm(rdf.TypedLiteral(lexical, dt)))
	}
	return rdf.PlainLiteral(lexical), nil
}

func resolveNumericOrBool(text string) (rdf.Value, error) {
	switch strings.ToLower(text) {
	case "true":
		return rdf.Boolean(true), nil
	case "false":
		return rdf.Boolean(false), nil
	}
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return rdf.Integer(n), nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return rdf.Value{}, qerr.Wrap(qerr.Semantic, err, "malformed numeric literal")
	}
	return rdf.Double(f), nil
}

// stripQuotes removes a single or triple leading/trailing quote
// delimiter (either ' or "), matching lexer.lexString's span.
func stripQuotes(s string) string {
	if len(s) >= 6 && s[0] == s[1] && s[1] == s[2] {
		return s[3 : len(s)-3]
	}
	if len(s) >= 2 {
		return s[1 : len(s)-1]
	}
	return s
}

// unescapeSPARQL decodes the backslash escapes SPARQL string literals
// permit: \t \n \r \b \f \" \' \\ \uXXXX \UXXXXXXXX.
func unescapeSPARQL(s string) (string, error) {
	if !strings.ContainsRune(s, '\\') {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	i := 0
	for i < len(s) {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			i++
			continue
		}
		if i+1 >= len(s) {
			return "", fmt.Errorf("trailing backslash")
		}
		switch s[i+1] {
		case 't':
			b.WriteByte('\t')
			i += 2
		case 'n':
			b.WriteByte('\n')
			i += 2
		case 'r':
			b.WriteByte('\r')
			i += 2
		case 'b':
			b.WriteByte('\b')
			i += 2
		case 'f':
			b.WriteByte('\f')
			i += 2
		case '"':
			b.WriteByte('"')
			i += 2
		case '\'':
			b.WriteByte('\'')
			i += 2
		case '\\':
			b.WriteByte('\\')
			i += 2
		case 'u':
			if i+6 > len(s) {
				return "", fmt.Errorf("short \\u escape")
			}
			r, err := strconv.ParseUint(s[i+2:i+6], 16, 32)
			if err != nil {
				return "", err
			}
			b.WriteRune(rune(r))
			i += 6
		case 'U':
			if i+10 > len(s) {
				return "", fmt.Errorf("short \\U escape")
			}
			r, err := strconv.ParseUint(s[i+2:i+10], 16, 32)
			if err != nil {
				return "", err
			}
			b.WriteRune(rune(r))
			i += 10
		default:
			return "", fmt.Errorf("unknown escape \\%c", s[i+1])
		}
	}
	return b.String(), nil
}
