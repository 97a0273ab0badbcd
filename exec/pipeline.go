package exec

import (
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/larkspur/quadstore/rdf"
	"github.com/larkspur/quadstore/sparql"
)

// QueryResult is the final, pipeline-processed output of a SELECT/ASK
// query: Vars names the projected columns in display order, Rows holds
// one rdf.Binding per solution after grouping, DISTINCT/REDUCED
// dedup, ORDER BY, and OFFSET/LIMIT have all been applied.
type QueryResult struct {
	Vars []string
	Rows []rdf.Binding

	IsAsk bool
	Ask   bool
}

// ExecuteSelect runs a SELECT/ASK query's WHERE clause through a fresh
// Scan tree and applies the solution pipeline: grouping/aggregation,
// HAVING, projection, DISTINCT/REDUCED, ORDER BY, OFFSET/LIMIT.
func ExecuteSelect(c *Compiler, q *sparql.Query) (*QueryResult, error) {
	sc, err := c.CompileGroup(q.Where)
	if err != nil {
		return nil, err
	}
	defer sc.Dispose()

	b := NewBindings()
	var raw []rdf.Binding
	for {
		ok, err := sc.MoveNext(b)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		raw = append(raw, b.Snapshot())
		if q.Form == sparql.FormAsk {
			return &QueryResult{IsAsk: true, Ask: true}, nil
		}
	}
	if q.Form == sparql.FormAsk {
		return &QueryResult{IsAsk: true, Ask: false}, nil
	}

	eval := c.evaluator()

	needsGrouping := len(q.GroupBy) > 0
	if !needsGrouping {
		for _, p := range q.Projection {
			if p.IsAggregate {
				needsGrouping = true
				break
			}
		}
	}

	var rows []rdf.Binding
	var vars []string
	if needsGrouping {
		rows, vars, err = c.group(q, raw, eval)
	} else {
		rows, vars = c.projectAll(q, raw, eval)
	}
	if err != nil {
		return nil, err
	}

	if q.Distinct || q.Reduced {
		rows = dedup(rows, vars)
	}

	if len(q.OrderBy) > 0 {
		orderRows(rows, q.OrderBy, eval)
	}

	if q.HasOffset && q.Offset > 0 {
		off := int(q.Offset)
		if off >= len(rows) {
			rows = nil
		} else {
			rows = rows[off:]
		}
	}
	if q.HasLimit && q.Limit >= 0 && int(q.Limit) < len(rows) {
		rows = rows[:q.Limit]
	}

	return &QueryResult{Vars: vars, Rows: rows}, nil
}

// group buckets raw solutions by the GROUP BY key (xxhash of each key
// variable's canonical term spelling, unit-separator joined — an empty
// GROUP BY list means one implicit group over every row, per SPARQL's
// "aggregate with no GROUP BY" rule), computes every aggregate in the
// projection, applies HAVING, and returns the grouped+projected rows.
func (c *Compiler) group(q *sparql.Query, raw []rdf.Binding, eval *Evaluator) ([]rdf.Binding, []string, error) {
	type bucket struct {
		key  rdf.Binding
		rows []rdf.Binding
	}
	order := []uint64{}
	buckets := map[uint64]*bucket{}

	hashRow := func(row rdf.Binding) (uint64, rdf.Binding) {
		var sb strings.Builder
		key := rdf.Binding{}
		for _, t := range q.GroupBy {
			name := c.text(t)
			if v, ok := row[name]; ok {
				sb.WriteString(string(rdf.EncodeTerm(v)))
				key[name] = v
			}
			sb.WriteByte(0x1f)
		}
		return xxhash.Sum64String(sb.String()), key
	}

	if len(raw) == 0 && len(q.GroupBy) == 0 {
		raw = []rdf.Binding{{}}
	}

	for _, row := range raw {
		h, key := hashRow(row)
		bk, ok := buckets[h]
		if !ok {
			bk = &bucket{key: key}
			buckets[h] = bk
			order = append(order, h)
		}
		bk.rows = append(bk.rows, row)
	}

	var outRows []rdf.Binding
	var vars []string
	for i, h := range order {
		bk := buckets[h]
		out := rdf.Binding{}
		for k, v := range bk.key {
			out[k] = v
		}
		for _, p := range q.Projection {
			name := c.projectionName(p)
			if i == 0 {
				vars = append(vars, name)
			}
			if p.IsAggregate {
				v, err := aggregate(bk.rows, p, eval)
				if err != nil {
					return nil, nil, err
				}
				out[name] = v
			} else if p.Expr != nil {
				rep := &Bindings{vars: bk.rows[0]}
				v, err := eval.Eval(p.Expr, rep)
				if err == nil {
					out[name] = v
				}
			}
		}
		if len(q.Having) > 0 {
			admitted := true
			hb := &Bindings{vars: out}
			for _, h := range q.Having {
				v, err := eval.Eval(h, hb)
				if err != nil || !truthy(v) {
					admitted = false
					break
				}
			}
			if !admitted {
				continue
			}
		}
		outRows = append(outRows, out)
	}
	return outRows, vars, nil
}

// aggregate computes one aggregate projection over a group's rows.
func aggregate(rows []rdf.Binding, p sparql.ProjectExpr, eval *Evaluator) (rdf.Value, error) {
	if p.Agg == sparql.AggCount {
		if p.AggArg == nil {
			return rdf.Integer(int64(len(rows))), nil
		}
		seen := map[string]bool{}
		count := int64(0)
		for _, row := range rows {
			v, err := eval.Eval(p.AggArg, &Bindings{vars: row})
			if err != nil {
				continue
			}
			if p.AggDistinct {
				key := v.String()
				if seen[key] {
					continue
				}
				seen[key] = true
			}
			count++
		}
		return rdf.Integer(count), nil
	}

	var nums []float64
	var vals []rdf.Value
	seen := map[string]bool{}
	for _, row := range rows {
		if p.AggArg == nil {
			continue
		}
		v, err := eval.Eval(p.AggArg, &Bindings{vars: row})
		if err != nil {
			continue
		}
		if p.AggDistinct {
			key := v.String()
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		vals = append(vals, v)
		if v.IsNumeric() {
			nums = append(nums, v.AsFloat())
		}
	}

	switch p.Agg {
	case sparql.AggSum:
		var sum float64
		for _, n := range nums {
			sum += n
		}
		return rdf.Double(sum), nil
	case sparql.AggAvg:
		if len(nums) == 0 {
			return rdf.Double(0), nil
		}
		var sum float64
		for _, n := range nums {
			sum += n
		}
		return rdf.Double(sum / float64(len(nums))), nil
	case sparql.AggMin:
		if len(vals) == 0 {
			return rdf.Unbound(), nil
		}
		best := vals[0]
		for _, v := range vals[1:] {
			if v.Less(best) {
				best = v
			}
		}
		return best, nil
	case sparql.AggMax:
		if len(vals) == 0 {
			return rdf.Unbound(), nil
		}
		best := vals[0]
		for _, v := range vals[1:] {
			if best.Less(v) {
				best = v
			}
		}
		return best, nil
	default:
		return rdf.Unbound(), nil
	}
}

// projectAll applies a non-aggregating projection (SELECT * or a plain
// variable/expression list) to every raw solution row.
func (c *Compiler) projectAll(q *sparql.Query, raw []rdf.Binding, eval *Evaluator) ([]rdf.Binding, []string) {
	if q.ProjectAll {
		varSet := map[string]bool{}
		var vars []string
		for _, row := range raw {
			for k := range row {
				if !varSet[k] {
					varSet[k] = true
					vars = append(vars, k)
				}
			}
		}
		sort.Strings(vars)
		return raw, vars
	}

	var vars []string
	for _, p := range q.Projection {
		vars = append(vars, c.projectionName(p))
	}

	out := make([]rdf.Binding, 0, len(raw))
	for _, row := range raw {
		projected := rdf.Binding{}
		rb := &Bindings{vars: row}
		for _, p := range q.Projection {
			name := c.projectionName(p)
			if p.Expr != nil {
				if v, err := eval.Eval(p.Expr, rb); err == nil {
					projected[name] = v
				}
				continue
			}
			if v, ok := row[name]; ok {
				projected[name] = v
			}
		}
		out = append(out, projected)
	}
	return out, vars
}

func (c *Compiler) projectionName(p sparql.ProjectExpr) string {
	if p.Alias.Kind == sparql.TermVar {
		return c.text(p.Alias)
	}
	if p.Var.Kind == sparql.TermVar {
		return c.text(p.Var)
	}
	return ""
}

// dedup drops rows whose xxhash fingerprint (over every projected
// column's canonical term spelling) has already been seen, preserving
// first-occurrence order.
func dedup(rows []rdf.Binding, vars []string) []rdf.Binding {
	seen := map[uint64]bool{}
	out := make([]rdf.Binding, 0, len(rows))
	for _, row := range rows {
		var sb strings.Builder
		for _, v := range vars {
			if val, ok := row[v]; ok {
				sb.WriteString(val.String())
			}
			sb.WriteByte(0x1f)
		}
		h := xxhash.Sum64String(sb.String())
		if seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, row)
	}
	return out
}

// orderRows stable-sorts rows by ORDER BY's keys in order; a key whose
// expression errors on a given row (unbound reference) sorts that row
// last for that key, per SPARQL's "unbound sorts last" convention.
func orderRows(rows []rdf.Binding, terms []sparql.OrderTerm, eval *Evaluator) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, t := range terms {
			vi, erri := eval.Eval(t.Expr, &Bindings{vars: rows[i]})
			vj, errj := eval.Eval(t.Expr, &Bindings{vars: rows[j]})
			switch {
			case erri != nil && errj != nil:
				continue
			case erri != nil:
				return false
			case errj != nil:
				return true
			}
			if vi.Equal(vj) {
				continue
			}
			less := vi.Less(vj)
			if t.Desc {
				return !less
			}
			return less
		}
		return false
	})
}
