package exec

import "github.com/larkspur/quadstore/sparql"

// filterScan evaluates a boolean expression against the current row.
// It contributes no new variables, so it gets exactly one shot per
// upstream binding: true admits the row once, false (or an expression
// error, per SPARQL's three-valued semantics) rejects it with no
// alternatives to offer.
type filterScan struct {
	expr *sparql.Expr
	eval *Evaluator
	done bool
}

func newFilterScan(e *Evaluator, expr *sparql.Expr) *filterScan {
	return &filterScan{expr: expr, eval: e}
}

func (s *filterScan) MoveNext(b *Bindings) (bool, error) {
	if s.done {
		s.done = false
		return false, nil
	}
	s.done = true
	v, err := s.eval.Eval(s.expr, b)
	if err != nil {
		s.done = false
		return false, nil
	}
	if !truthy(v) {
		s.done = false
		return false, nil
	}
	return true, nil
}

func (s *filterScan) Dispose() {}

// bindScan computes one expression and sets its result as a new
// variable, per SPARQL's BIND semantics: an expression error leaves the
// variable unbound rather than rejecting the row.
type bindScan struct {
	expr *sparql.Expr
	eval *Evaluator
	name string
	done bool
	set  bool
}

func newBindScan(e *Evaluator, b sparql.Bind, varName string) *bindScan {
	return &bindScan{expr: b.Expr, eval: e, name: varName}
}

func (s *bindScan) MoveNext(b *Bindings) (bool, error) {
	if s.done {
		s.done = false
		if s.set {
			b.Unset(s.name)
			s.set = false
		}
		return false, nil
	}
	s.done = true
	v, err := s.eval.Eval(s.expr, b)
	if err == nil {
		b.Set(s.name, v)
		s.set = true
	}
	return true, nil
}

func (s *bindScan) Dispose() {}
