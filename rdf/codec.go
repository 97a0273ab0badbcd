package rdf

import (
	"fmt"
	"strconv"
	"strings"
)

// EncodeTerm renders a Value to the canonical byte sequence stored as an
// atom: the same quoted/angle-bracketed spelling Value.String() produces,
// so every term kind distinguishable in the value lattice round-trips
// through atom interning without a side table.
func EncodeTerm(v Value) []byte { return []byte(v.String()) }

// DecodeTerm is EncodeTerm's inverse: given raw atom bytes, recover the
// typed Value. Used wherever a fetched atom must be reinterpreted as a
// term (solution materialization, CONSTRUCT, describe).
func DecodeTerm(b []byte) (Value, error) {
	s := string(b)
	switch {
	case strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">"):
		return IRI(s[1 : len(s)-1]), nil
	case strings.HasPrefix(s, "_:"):
		return BlankNode(s[2:]), nil
	case strings.HasPrefix(s, "\""):
		return decodeLiteral(s)
	default:
		return Value{}, fmt.Errorf("rdf: cannot decode term %q", s)
	}
}

func decodeLiteral(s string) (Value, error) {
	prefix, err := strconv.QuotedPrefix(s)
	if err != nil {
		return Value{}, fmt.Errorf("rdf: malformed quoted literal %q: %w", s, err)
	}
	lexical, err := strconv.Unquote(prefix)
	if err != nil {
		return Value{}, fmt.Errorf("rdf: malformed quoted literal %q: %w", s, err)
	}
	rest := s[len(prefix):]
	switch {
	case strings.HasPrefix(rest, "@"):
		return LangLiteral(lexical, rest[1:]), nil
	case strings.HasPrefix(rest, "^^<") && strings.HasSuffix(rest, ">"):
		datatype := rest[3 : len(rest)-1]
		return typedValue(lexical, datatype), nil
	default:
		return PlainLiteral(lexical), nil
	}
}

const (
	xsdInteger = "http://www.w3.org/2001/XMLSchema#integer"
	xsdDouble  = "http://www.w3.org/2001/XMLSchema#double"
	xsdBoolean = "http://www.w3.org/2001/XMLSchema#boolean"
)

func typedValue(lexical, datatype string) Value {
	switch datatype {
	case xsdInteger:
		if n, err := strconv.ParseInt(lexical, 10, 64); err == nil {
			return Integer(n)
		}
	case xsdDouble:
		if f, err := strconv.ParseFloat(lexical, 64); err == nil {
			return Double(f)
		}
	case xsdBoolean:
		if b, err := strconv.ParseBool(lexical); err == nil {
			return Boolean(b)
		}
	}
	return TypedLiteral(lexical, datatype)
}
