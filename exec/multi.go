package exec

import "context"

// defaultMaxScanLevels bounds a single multiPatternScan's child count at
// a fixed 16 levels (compileGroup checks it; it is not configurable): a query
// whose single group needs more levels than this is a capacity error,
// not a silent truncation.
const defaultMaxScanLevels = 16

// multiPatternScan nested-loop-joins an ordered slice of child Scans
// with backtracking: it advances the last level repeatedly, and when a
// level is exhausted, backs up to the previous one and asks it for its
// next alternative. Every child Scan is responsible for rolling back
// its own contribution to Bindings before returning false, so this
// engine needs no per-level undo bookkeeping of its own.
type multiPatternScan struct {
	ctx      context.Context
	children []Scan
	cur      int // next level to attempt; starts at 0
	started  bool
}

// newMultiPatternScan builds the engine over children, always preceded
// by an implicit seed level so a zero-child chain still yields exactly
// one (empty) solution.
func newMultiPatternScan(ctx context.Context, children []Scan) *multiPatternScan {
	all := make([]Scan, 0, len(children)+1)
	all = append(all, newSeedScan())
	all = append(all, children...)
	return &multiPatternScan{ctx: ctx, children: all}
}

func (m *multiPatternScan) MoveNext(b *Bindings) (bool, error) {
	if err := checkCancel(m.ctx); err != nil {
		return false, err
	}
	if !m.started {
		m.cur = 0
		m.started = true
	} else {
		m.cur = len(m.children) - 1
	}

	for {
		ok, err := m.children[m.cur].MoveNext(b)
		if err != nil {
			return false, err
		}
		if ok {
			if m.cur == len(m.children)-1 {
				return true, nil
			}
			m.cur++
			continue
		}
		if m.cur == 0 {
			return false, nil
		}
		m.cur--
	}
}

func (m *multiPatternScan) Dispose() {
	for _, c := range m.children {
		c.Dispose()
	}
}
