package exec

import "context"

// Scan is the closed iteration interface every concrete operator in this
// package implements, per SPEC_FULL.md §4.6: a Go interface dispatched
// by the runtime's ordinary method dispatch, not an open type hierarchy
// built on embedding.
//
// MoveNext attempts to extend the shared Bindings with the next
// solution this scan contributes; it returns false once this scan has
// no more alternatives for the bindings currently in scope upstream of
// it (its own contribution, if any, is rolled back before returning
// false so the caller sees the row exactly as it found it).
type Scan interface {
	MoveNext(b *Bindings) (bool, error)
	Dispose()
}

// seedScan yields exactly one solution — the bindings it was built
// with, unmodified — then nothing. It is the root of every scan chain:
// multiPatternScan always starts from one so chains compose uniformly
// whether or not there happen to be zero real patterns.
type seedScan struct {
	done bool
}

func newSeedScan() *seedScan { return &seedScan{} }

func (s *seedScan) MoveNext(b *Bindings) (bool, error) {
	if s.done {
		s.done = false
		return false, nil
	}
	s.done = true
	return true, nil
}

func (s *seedScan) Dispose() {}

// checkCancel is consulted by multiPatternScan at the top of every
// MoveNext call, per SPEC_FULL.md §5's cancellation rule: an explicit
// context threaded through scan construction, checked at the
// multi-pattern level rather than via a thread-local.
func checkCancel(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
