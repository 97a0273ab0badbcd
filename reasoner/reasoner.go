package reasoner

import (
	"context"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"

	"github.com/larkspur/quadstore/quadlog"
	"github.com/larkspur/quadstore/rdf"
	"github.com/larkspur/quadstore/store"
)

// Rule is one bit of the configurable rule set spec.md §4.9 names.
type Rule uint32

const (
	RuleSubClassTransitive Rule = 1 << iota
	RuleSubClassInstance
	RuleSubPropertyTransitive
	RuleSubPropertyInstance
	RuleDomain
	RuleRange
	RuleTransitiveProperty
	RuleSymmetricProperty
	RuleInverseOf
	RuleSameAs
	RuleEquivalentClass
	RuleEquivalentProperty
)

// AllRules enables the full rule set.
const AllRules = RuleSubClassTransitive | RuleSubClassInstance |
	RuleSubPropertyTransitive | RuleSubPropertyInstance |
	RuleDomain | RuleRange | RuleTransitiveProperty | RuleSymmetricProperty |
	RuleInverseOf | RuleSameAs | RuleEquivalentClass | RuleEquivalentProperty

// Config controls one Runner.
type Config struct {
	Rules     Rule
	MaxPasses int
}

func (c Config) withDefaults() Config {
	if c.Rules == 0 {
		c.Rules = AllRules
	}
	if c.MaxPasses <= 0 {
		c.MaxPasses = 16
	}
	return c
}

// Runner drives fixed-point materialization against one store.
type Runner struct {
	store *store.Store
	cfg   Config
	log   log.Logger
}

// New builds a Runner over st.
func New(st *store.Store, cfg Config) *Runner {
	return &Runner{store: st, cfg: cfg.withDefaults(), log: log.With(quadlog.Logger, "component", "reasoner")}
}

type ruleFunc func(ctx context.Context, st *store.Store) ([]rdf.Quad, error)

func (r *Runner) enabledRules() []ruleFunc {
	var fns []ruleFunc
	add := func(bit Rule, fn ruleFunc) {
		if r.cfg.Rules&bit != 0 {
			fns = append(fns, fn)
		}
	}
	add(RuleSubClassTransitive, ruleSubClassTransitive)
	add(RuleSubClassInstance, ruleSubClassInstance)
	add(RuleSubPropertyTransitive, ruleSubPropertyTransitive)
	add(RuleSubPropertyInstance, ruleSubPropertyInstance)
	add(RuleDomain, ruleDomain)
	add(RuleRange, ruleRange)
	add(RuleTransitiveProperty, ruleTransitiveProperty)
	add(RuleSymmetricProperty, ruleSymmetricProperty)
	add(RuleInverseOf, ruleInverseOf)
	add(RuleSameAs, ruleSameAs)
	add(RuleEquivalentClass, ruleEquivalentClass)
	add(RuleEquivalentProperty, ruleEquivalentProperty)
	return fns
}

// Run iterates passes until no rule derives a new triple or MaxPasses is
// reached, whichever comes first. Within one pass every enabled rule
// scans the same store snapshot concurrently (errgroup) and buffers its
// candidate triples in memory; the pass then dedups and commits
// everything genuinely new in one batch before the next pass begins, so
// no rule ever observes another rule's mid-pass output until the next
// iteration — a deliberate simplification that trades one extra pass
// for never scanning while writing.
func (r *Runner) Run(ctx context.Context) (int, error) {
	total := 0
	rules := r.enabledRules()

	for pass := 0; pass < r.cfg.MaxPasses; pass++ {
		candidates := make([][]rdf.Quad, len(rules))
		g, gctx := errgroup.WithContext(ctx)
		for i, fn := range rules {
			i, fn := i, fn
			g.Go(func() error {
				quads, err := fn(gctx, r.store)
				if err != nil {
					return err
				}
				candidates[i] = quads
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return total, err
		}

		batch := r.store.NewBatch()
		newCount := 0
		seen := map[rdf.Quad]bool{}
		for _, quads := range candidates {
			for _, q := range quads {
				if seen[q] {
					continue
				}
				seen[q] = true
				exists, err := quadExists(r.store, q)
				if err != nil {
					return total, err
				}
				if exists {
					continue
				}
				batch.AddQuad(q)
				newCount++
			}
		}
		if newCount == 0 {
			level.Debug(r.log).Log("msg", "reasoner reached fixed point", "pass", pass)
			return total, nil
		}
		if err := batch.Commit(); err != nil {
			return total, err
		}
		total += newCount
		level.Info(r.log).Log("msg", "reasoner pass committed", "pass", pass, "inferred", newCount)
	}
	return total, nil
}

func quadExists(st *store.Store, q rdf.Quad) (bool, error) {
	it, err := st.Lookup(rdf.Pattern{
		S:        rdf.BoundSlot(q.S),
		P:        rdf.BoundSlot(q.P),
		O:        rdf.BoundSlot(q.O),
		G:        rdf.BoundSlot(q.G),
		HasGraph: true,
	})
	if err != nil {
		return false, err
	}
	defer it.Close()
	_, ok := it.Next()
	return ok, nil
}

func lookupAtom(st *store.Store, iri string) (rdf.AtomID, bool) {
	return st.Atoms().Lookup(rdf.EncodeTerm(rdf.IRI(iri)))
}

// scanAll collects every quad matching a pattern into a slice; rule
// bodies operate over small in-memory joins rather than streaming, since
// the vocabulary-level predicates (subClassOf, domain, sameAs, ...) are
// expected to be a small fraction of the store.
func scanAll(st *store.Store, p rdf.Pattern) ([]rdf.Quad, error) {
	it, err := st.Lookup(p)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var out []rdf.Quad
	for {
		q, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, q)
	}
	return out, nil
}
