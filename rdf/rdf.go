// Package rdf defines the core data model shared by the store, parser,
// planner and executor: atom ids, quads, patterns, typed values and
// binding rows.
package rdf

import (
	"fmt"
	"strconv"
	"strings"
)

// AtomID is a dense, positive 32-bit id assigned by the atom store. Zero
// denotes "empty/absent" and is never assigned to a real atom.
type AtomID uint32

// NoAtom is the reserved empty/absent id.
const NoAtom AtomID = 0

// DefaultGraph is the reserved graph id for the unnamed default graph.
const DefaultGraph AtomID = 0

// Quad is a (subject, predicate, object, graph) tuple of atom ids.
// Graph == DefaultGraph denotes the default graph.
type Quad struct {
	S, P, O, G AtomID
}

// Slot is one component of a Pattern: either bound to a specific atom id
// or an unbound variable.
type Slot struct {
	Bound    bool
	Atom     AtomID
	Variable string // only meaningful when !Bound
}

// BoundSlot returns a slot bound to the given atom.
func BoundSlot(a AtomID) Slot { return Slot{Bound: true, Atom: a} }

// VarSlot returns an unbound slot named by a SPARQL variable.
func VarSlot(name string) Slot { return Slot{Variable: name} }

// IsWildcard reports whether the slot matches any atom (unbound, no
// variable name recorded — used internally for full scans).
func (s Slot) IsWildcard() bool { return !s.Bound && s.Variable == "" }

// Pattern is a quad with each component either a constant atom or a named
// variable. A variable name repeated across slots must resolve to the
// same atom id in any solution.
type Pattern struct {
	S, P, O, G Slot
	// HasGraph distinguishes "pattern inside GRAPH <x> / GRAPH ?g" from a
	// default-graph-only pattern (G is meaningless when false).
	HasGraph bool
}

// ValueKind is the typed-value lattice of §4 / §4.7.
type ValueKind int

const (
	KindUnbound ValueKind = iota
	KindIRI
	KindPlainLiteral
	KindLangLiteral
	KindTypedInteger
	KindTypedDouble
	KindTypedBoolean
	KindTypedDateTime
	KindTypedString
	KindBlankNode
)

// Value is a typed SPARQL term. Stored object values are always strings
// (the literal lexical form) plus optional Lang/Datatype, per spec.md §3;
// Int/Float/Bool carry a decoded numeric form for comparison/arithmetic.
type Value struct {
	Kind     ValueKind
	Lexical  string
	Lang     string
	Datatype string
	Int      int64
	Float    float64
	Bool     bool
}

func Unbound() Value { return Value{Kind: KindUnbound} }

func IRI(v string) Value { return Value{Kind: KindIRI, Lexical: v} }

func PlainLiteral(v string) Value { return Value{Kind: KindPlainLiteral, Lexical: v} }

func LangLiteral(v, lang string) Value {
	return Value{Kind: KindLangLiteral, Lexical: v, Lang: lang}
}

func TypedLiteral(v, datatype string) Value {
	return Value{Kind: KindTypedString, Lexical: v, Datatype: datatype}
}

func Integer(n int64) Value {
	return Value{Kind: KindTypedInteger, Lexical: strconv.FormatInt(n, 10), Int: n, Datatype: "http://www.w3.org/2001/XMLSchema#integer"}
}

func Double(f float64) Value {
	return Value{Kind: KindTypedDouble, Lexical: strconv.FormatFloat(f, 'g', -1, 64), Float: f, Datatype: "http://www.w3.org/2001/XMLSchema#double"}
}

func Boolean(b bool) Value {
	return Value{Kind: KindTypedBoolean, Lexical: strconv.FormatBool(b), Bool: b, Datatype: "http://www.w3.org/2001/XMLSchema#boolean"}
}

func BlankNode(id string) Value { return Value{Kind: KindBlankNode, Lexical: id} }

// IsNumeric reports whether the value participates in arithmetic/numeric
// comparison.
func (v Value) IsNumeric() bool {
	return v.Kind == KindTypedInteger || v.Kind == KindTypedDouble
}

// AsFloat returns the value's numeric reading, valid only when IsNumeric.
func (v Value) AsFloat() float64 {
	if v.Kind == KindTypedInteger {
		return float64(v.Int)
	}
	return v.Float
}

func (v Value) String() string {
	switch v.Kind {
	case KindUnbound:
		return ""
	case KindIRI:
		return "<" + v.Lexical + ">"
	case KindBlankNode:
		return "_:" + v.Lexical
	case KindLangLiteral:
		return fmt.Sprintf("%q@%s", v.Lexical, v.Lang)
	case KindPlainLiteral:
		return strconv.Quote(v.Lexical)
	default:
		if v.Datatype != "" {
			return fmt.Sprintf("%q^^<%s>", v.Lexical, v.Datatype)
		}
		return strconv.Quote(v.Lexical)
	}
}

// Equal implements value equality used by scan-level variable
// consistency checks (spec.md §4.6 "requires equality").
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		if v.IsNumeric() && o.IsNumeric() {
			return v.AsFloat() == o.AsFloat()
		}
		return false
	}
	switch v.Kind {
	case KindTypedInteger:
		return v.Int == o.Int
	case KindTypedDouble:
		return v.Float == o.Float
	case KindTypedBoolean:
		return v.Bool == o.Bool
	case KindLangLiteral:
		return v.Lexical == o.Lexical && strings.EqualFold(v.Lang, o.Lang)
	default:
		return v.Lexical == o.Lexical && v.Datatype == o.Datatype
	}
}

// Less implements SPARQL ORDER BY term ordering: IRIs < blank nodes <
// literals; numeric literals compare by value; strings by code point.
func (v Value) Less(o Value) bool {
	rank := func(val Value) int {
		switch val.Kind {
		case KindIRI:
			return 0
		case KindBlankNode:
			return 1
		default:
			return 2
		}
	}
	ra, rb := rank(v), rank(o)
	if ra != rb {
		return ra < rb
	}
	if v.IsNumeric() && o.IsNumeric() {
		return v.AsFloat() < o.AsFloat()
	}
	return v.Lexical < o.Lexical
}

// Binding is a mapping from SPARQL variable name to a typed value,
// produced by a single solution.
type Binding map[string]Value

func (b Binding) Clone() Binding {
	c := make(Binding, len(b))
	for k, v := range b {
		c[k] = v
	}
	return c
}
