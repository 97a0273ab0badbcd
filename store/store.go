package store

import (
	"path/filepath"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/larkspur/quadstore/atom"
	"github.com/larkspur/quadstore/bptree"
	"github.com/larkspur/quadstore/quadlog"
	"github.com/larkspur/quadstore/rdf"
)

// Store is the multi-index quad-store facade of spec.md §4.3: three
// B+Trees (SPO, POS, OSP, each graph-leading per DESIGN.md's resolution)
// over one atom store, one reader-writer lock guarding the triple view,
// and the statistics the planner consumes. Mirrors friggdb.go's
// top-level facade shape: one object composing storage + metrics.
type Store struct {
	cfg Config
	log log.Logger
	met *metrics

	atoms *atom.Store

	mu       sync.RWMutex
	spo      *bptree.Tree
	pos      *bptree.Tree
	osp      *bptree.Tree
	quadCnt  uint64
	namedG   map[rdf.AtomID]struct{}
	predHist map[rdf.AtomID]uint64
}

// Open opens (creating if absent) the quad store rooted at dir, which
// holds atoms.data/atoms.index/atoms.offset (from the atom package) and
// spo.db/pos.db/osp.db (spec.md §6's fixed on-disk file names).
func Open(dir string, cfg Config) (*Store, error) {
	return OpenWithRegisterer(dir, cfg, prometheus.DefaultRegisterer)
}

// OpenWithRegisterer is Open with an explicit Prometheus registerer, so
// tests (and multi-instance embeddings) can avoid collector collisions
// by passing prometheus.NewRegistry().
func OpenWithRegisterer(dir string, cfg Config, reg prometheus.Registerer) (*Store, error) {
	cfg = cfg.withDefaults()

	atoms, err := atom.Open(dir, cfg.Atoms)
	if err != nil {
		return nil, err
	}
	spo, err := bptree.Open(filepath.Join(dir, "spo.db"))
	if err != nil {
		return nil, err
	}
	pos, err := bptree.Open(filepath.Join(dir, "pos.db"))
	if err != nil {
		return nil, err
	}
	osp, err := bptree.Open(filepath.Join(dir, "osp.db"))
	if err != nil {
		return nil, err
	}

	s := &Store{
		cfg:      cfg,
		log:      log.With(quadlog.Logger, "component", "store"),
		met:      newMetrics(reg, cfg.MetricsNamespace),
		atoms:    atoms,
		spo:      spo,
		pos:      pos,
		osp:      osp,
		namedG:   make(map[rdf.AtomID]struct{}),
		predHist: make(map[rdf.AtomID]uint64),
	}
	if err := s.rebuildDerivedState(); err != nil {
		return nil, err
	}
	s.reportStats()

	level.Info(s.log).Log("msg", "quad store opened", "dir", dir, "quads", s.quadCnt)
	return s, nil
}

// rebuildDerivedState recomputes the in-memory named-graph set and
// predicate histogram from the POS index at startup. These are
// approximate bookkeeping structures (spec.md §4.3 "approximate
// cardinality histograms"), not part of the durable format, so
// recomputing them on open rather than persisting them keeps the
// on-disk format to exactly the files spec.md §6 names.
func (s *Store) rebuildDerivedState() error {
	it, err := s.pos.Scan(bptree.Key4{}, 0)
	if err != nil {
		return err
	}
	var count uint64
	for {
		k, ok := it.Next()
		if !ok {
			break
		}
		count++
		if g := rdf.AtomID(k[0]); g != rdf.DefaultGraph {
			s.namedG[g] = struct{}{}
		}
		s.predHist[rdf.AtomID(k[1])]++
	}
	s.quadCnt = count
	return nil
}

func (s *Store) reportStats() {
	stats := s.atoms.Stats()
	s.met.atomCount.Set(float64(stats.AtomCount))
	s.met.totalBytes.Set(float64(stats.TotalBytes))
	s.met.quadCount.Set(float64(s.quadCnt))
	s.met.namedGraphs.Set(float64(len(s.namedG)))
}

// Close flushes and unmaps every backing file.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range []*bptree.Tree{s.spo, s.pos, s.osp} {
		if err := t.Close(); err != nil {
			return err
		}
	}
	return s.atoms.Close()
}

// Add interns s/p/o/g and inserts the resulting quad into all three
// indexes under the exclusive lock (spec.md §4.3 "add(s,p,o,g)").
// Equivalent to a single-quad Batch.
func (s *Store) Add(subj, pred, obj, graph []byte) (rdf.Quad, error) {
	b := s.NewBatch()
	q, err := b.Add(subj, pred, obj, graph)
	if err != nil {
		return rdf.Quad{}, err
	}
	if err := b.Commit(); err != nil {
		return rdf.Quad{}, err
	}
	return q, nil
}

// internGraph interns graph, treating a nil/empty slice as the default
// graph (atom id 0), per spec.md §4.3 "Graph dimension".
func (s *Store) internGraph(graph []byte) (rdf.AtomID, error) {
	if len(graph) == 0 {
		return rdf.DefaultGraph, nil
	}
	return s.atoms.Intern(graph)
}

// resolvePattern copies each already-bound atom id out of p (term
// interning is the caller's job, per spec.md §4.6 "Resolves each pattern
// term to either a bound atom... or unbound" — the executor interns
// constants up front via Atoms()) and determines the graph-scan mode.
func resolvePattern(p rdf.Pattern) resolvedPattern {
	var rp resolvedPattern
	if p.S.Bound {
		rp.s, rp.sBound = p.S.Atom, true
	}
	if p.P.Bound {
		rp.p, rp.pBound = p.P.Atom, true
	}
	if p.O.Bound {
		rp.o, rp.oBound = p.O.Atom, true
	}
	switch {
	case !p.HasGraph:
		rp.graph, rp.graphBound = rdf.DefaultGraph, true
	case p.G.Bound:
		rp.graph, rp.graphBound = p.G.Atom, true
	default:
		rp.anyGraph = true
	}
	return rp
}

// Lookup opens an iterator over every quad matching p, selecting the
// best index per spec.md §4.3's table and post-filtering on any bound
// component outside the chosen prefix.
func (s *Store) Lookup(p rdf.Pattern) (*Iterator, error) {
	s.met.scans.Inc()
	rp := resolvePattern(p)
	if (rp.sBound && rp.s == rdf.NoAtom) || (rp.pBound && rp.p == rdf.NoAtom) ||
		(rp.oBound && rp.o == rdf.NoAtom) || (rp.graphBound && rp.graph == rdf.NoAtom && rp.graph != rdf.DefaultGraph) {
		return &Iterator{empty: true}, nil
	}
	return s.scanIDs(rp)
}

// NamedGraphs returns every non-default graph id observed so far, per
// spec.md §4.3's named_graphs() escape hatch for explicit named-graph
// iteration.
func (s *Store) NamedGraphs() []rdf.AtomID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]rdf.AtomID, 0, len(s.namedG))
	for g := range s.namedG {
		out = append(out, g)
	}
	return out
}

// Stats reports the counters spec.md §4.3 requires for planner use.
type Stats struct {
	QuadCount   uint64
	AtomCount   uint64
	TotalBytes  uint64
	NamedGraphs int
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a := s.atoms.Stats()
	return Stats{
		QuadCount:   s.quadCnt,
		AtomCount:   a.AtomCount,
		TotalBytes:  a.TotalBytes,
		NamedGraphs: len(s.namedG),
	}
}

// PredicateHistogram returns the approximate per-predicate quad counts
// the planner uses to estimate index selectivity (spec.md §4.3).
func (s *Store) PredicateHistogram() map[rdf.AtomID]uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[rdf.AtomID]uint64, len(s.predHist))
	for k, v := range s.predHist {
		out[k] = v
	}
	return out
}

// Atoms exposes the underlying atom store for term interning/lookup by
// the sparql/exec layers.
func (s *Store) Atoms() *atom.Store { return s.atoms }
