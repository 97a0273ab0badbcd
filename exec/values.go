package exec

import "github.com/larkspur/quadstore/sparql"

// valuesScan replays the single-variable VALUES form (sparql.Bind
// carrying ExprCall{Op:"VALUES_ONE_OF"}) as a genuine multi-row scan: one
// row per VALUES entry; an entry that fails to evaluate leaves the
// variable unbound for its row. When an earlier level already bound the
// variable, only entries equal to that value produce a row.
type valuesScan struct {
	eval *Evaluator
	name string
	rows []*sparql.Expr
	idx  int
	set  bool
}

func newValuesScan(e *Evaluator, varName string, rows []*sparql.Expr) *valuesScan {
	return &valuesScan{eval: e, name: varName, rows: rows}
}

func (s *valuesScan) MoveNext(b *Bindings) (bool, error) {
	if s.set {
		b.Unset(s.name)
		s.set = false
	}
	for s.idx < len(s.rows) {
		expr := s.rows[s.idx]
		s.idx++
		v, err := s.eval.Eval(expr, b)
		if err != nil {
			return true, nil
		}
		if bound, ok := b.Get(s.name); ok {
			if bound.Equal(v) {
				return true, nil
			}
			continue
		}
		b.Set(s.name, v)
		s.set = true
		return true, nil
	}
	s.idx = 0
	return false, nil
}

func (s *valuesScan) Dispose() {}
