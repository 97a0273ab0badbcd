package store

import (
	"github.com/go-kit/log/level"

	"github.com/larkspur/quadstore/bptree"
	"github.com/larkspur/quadstore/rdf"
)

// Batch accumulates quads for a single atomic commit, mirroring
// friggdb's bufferedAppender accumulate-then-flush shape (spec.md §4.3
// "add_batched accumulates into a per-writer buffer until commit_batch
// applies them under a single exclusive lock; rollback_batch
// discards").
type Batch struct {
	store *Store
	quads []rdf.Quad
}

// NewBatch opens a new write batch against s.
func (s *Store) NewBatch() *Batch {
	return &Batch{store: s}
}

// Add interns subj/pred/obj/graph (interning is lock-free and safe
// outside the batch's eventual exclusive commit) and buffers the
// resulting quad.
func (b *Batch) Add(subj, pred, obj, graph []byte) (rdf.Quad, error) {
	s := b.store
	sid, err := s.atoms.Intern(subj)
	if err != nil {
		return rdf.Quad{}, err
	}
	pid, err := s.atoms.Intern(pred)
	if err != nil {
		return rdf.Quad{}, err
	}
	oid, err := s.atoms.Intern(obj)
	if err != nil {
		return rdf.Quad{}, err
	}
	gid, err := s.internGraph(graph)
	if err != nil {
		return rdf.Quad{}, err
	}
	q := rdf.Quad{S: sid, P: pid, O: oid, G: gid}
	b.quads = append(b.quads, q)
	return q, nil
}

// AddQuad buffers an already-resolved quad (e.g. inferred by the
// reasoner, or produced by the update executor's WHERE evaluation).
func (b *Batch) AddQuad(q rdf.Quad) {
	b.quads = append(b.quads, q)
}

// Commit applies every buffered quad to all three indexes under the
// store's exclusive lock, updates derived statistics, and clears the
// buffer. Either every quad's insert succeeds across all three indexes
// and every counter update is applied, or none of it is: a failure
// partway through compensates by deleting whatever this call already
// applied, so reader-visible state is unchanged and a retried Commit
// (the buffer is always cleared, success or failure) can't double-apply
// a quad that had already landed.
func (b *Batch) Commit() error {
	s := b.store
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(b.quads)
	applied := make([]rdf.Quad, 0, n)
	for _, q := range b.quads {
		existed, err := s.spo.Lookup(keyForQuad(q, orderSPO))
		if err != nil {
			rollbackQuads(s, applied)
			b.quads = nil
			return err
		}
		if err := applyQuadIndexes(s, q); err != nil {
			rollbackQuads(s, applied)
			b.quads = nil
			return err
		}
		if !existed {
			applied = append(applied, q)
		}
	}

	for _, q := range applied {
		s.quadCnt++
		if q.G != rdf.DefaultGraph {
			s.namedG[q.G] = struct{}{}
		}
		s.predHist[q.P]++
	}
	s.reportStats()
	s.met.commits.Inc()
	level.Debug(s.log).Log("msg", "batch committed", "quads", n)
	b.quads = nil
	return nil
}

func insertQuad(t *bptree.Tree, q rdf.Quad, ord order) error {
	return t.Insert(keyForQuad(q, ord))
}

// applyQuadIndexes inserts q into spo/pos/osp. If pos or osp fails after
// an earlier index already accepted the insert, it deletes from those
// earlier indexes before returning, so a single quad never ends up with
// an entry in only some of its three indexes (the package's own
// "every triple has an entry in every index" invariant).
func applyQuadIndexes(s *Store, q rdf.Quad) error {
	if err := insertQuad(s.spo, q, orderSPO); err != nil {
		return err
	}
	if err := insertQuad(s.pos, q, orderPOS); err != nil {
		_ = s.spo.Delete(keyForQuad(q, orderSPO))
		return err
	}
	if err := insertQuad(s.osp, q, orderOSP); err != nil {
		_ = s.spo.Delete(keyForQuad(q, orderSPO))
		_ = s.pos.Delete(keyForQuad(q, orderPOS))
		return err
	}
	return nil
}

// rollbackQuads deletes every index entry a failed Commit already
// applied for quads that did not previously exist in the store,
// restoring pre-Commit index state before the error reaches the caller.
func rollbackQuads(s *Store, quads []rdf.Quad) {
	for _, q := range quads {
		_ = s.spo.Delete(keyForQuad(q, orderSPO))
		_ = s.pos.Delete(keyForQuad(q, orderPOS))
		_ = s.osp.Delete(keyForQuad(q, orderOSP))
	}
}

// Rollback discards the buffer without touching the store.
func (b *Batch) Rollback() {
	b.store.met.rollbacks.Inc()
	b.quads = nil
}

// Remove deletes a single quad from all three indexes under the
// exclusive lock (tombstoning, per spec.md §3 "Lifecycles"); used by the
// update executor's DELETE DATA / DELETE-INSERT-WHERE.
func (s *Store) Remove(q rdf.Quad) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existed, err := s.spo.Lookup(keyForQuad(q, orderSPO))
	if err != nil {
		return err
	}
	if !existed {
		return nil // nothing stored, so no counter changes either
	}
	if err := s.spo.Delete(keyForQuad(q, orderSPO)); err != nil {
		return err
	}
	if err := s.pos.Delete(keyForQuad(q, orderPOS)); err != nil {
		return err
	}
	if err := s.osp.Delete(keyForQuad(q, orderOSP)); err != nil {
		return err
	}
	if s.quadCnt > 0 {
		s.quadCnt--
	}
	if s.predHist[q.P] > 0 {
		s.predHist[q.P]--
	}
	s.reportStats()
	return nil
}
