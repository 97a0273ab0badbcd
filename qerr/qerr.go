// Package qerr defines the error-kind taxonomy shared across the store,
// parser, planner and executor.
package qerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an error without requiring callers to type-switch on
// concrete error types from every package in the module.
type Kind int

const (
	// Parse marks bad syntax in a SPARQL query/update or an RDF format.
	Parse Kind = iota
	// Capacity marks an index page, atom bucket, or AST array overflow.
	Capacity
	// Semantic marks an unknown prefix, unsupported query form, etc.
	Semantic
	// Expression marks a runtime type/arithmetic mismatch, suppressed
	// per SPARQL three-valued logic by the caller, not this package.
	Expression
	// Cancelled marks a tripped cancellation token.
	Cancelled
	// Corrupt marks a magic-mismatch or page-header sanity failure.
	Corrupt
	// IO marks a propagated file-system error.
	IO
)

func (k Kind) String() string {
	switch k {
	case Parse:
		return "parse"
	case Capacity:
		return "capacity"
	case Semantic:
		return "semantic"
	case Expression:
		return "expression"
	case Cancelled:
		return "cancelled"
	case Corrupt:
		return "corrupt-store"
	case IO:
		return "io"
	default:
		return "unknown"
	}
}

// Error is the concrete error type raised across the module. Parse errors
// carry a source position; all others leave Line/Col zero.
type Error struct {
	Kind Kind
	Msg  string
	Line int
	Col  int
	err  error
}

func (e *Error) Error() string {
	if e.Kind == Parse && (e.Line != 0 || e.Col != 0) {
		return fmt.Sprintf("%s: %s at %d:%d", e.Kind, e.Msg, e.Line, e.Col)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.err }

// New builds a kinded error with no source position and no wrapped cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying error, preserving it for errors.Is/As.
func Wrap(kind Kind, cause error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, err: errors.WithStack(cause)}
}

// AtPos builds a Parse-kind error carrying a 1-based line/column.
func AtPos(msg string, line, col int) *Error {
	return &Error{Kind: Parse, Msg: msg, Line: line, Col: col}
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
