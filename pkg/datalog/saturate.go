package datalog

import (
	"context"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SaturatorConfig controls the Concurrent Saturator's resource shape:
// worker count W and chunk size K.
type SaturatorConfig struct {
	Workers   int
	ChunkSize int
	Log       *zap.Logger
}

// DefaultSaturatorConfig mirrors the original ChunkedEvalManager's
// defaults: hardware-concurrency workers, a modest chunk size.
func DefaultSaturatorConfig() SaturatorConfig {
	return SaturatorConfig{Workers: 0, ChunkSize: 64, Log: zap.NewNop()}
}

// Saturator drives a stratum to its fixed point using a chunked,
// errgroup-backed work pool. Each stratum gets a fresh Saturator: the
// errgroup's Wait() only returns once every Go()'d function, including
// ones those functions themselves recursively scheduled, has returned,
// which gives the "pending == 0" termination signal the original
// ExecutorServiceCounter/ForkJoinPool pair provided, without a
// hand-rolled atomic counter.
type Saturator struct {
	cfg         SaturatorConfig
	Index       *Index
	Redundancy  *RedundancyTrie
	rulesByPred map[*PredicateSym][]*AnnotatedClause
}

// NewSaturator builds a Saturator over annotated for use within a single
// stratum. idx and redundancy are shared across strata (facts and
// fingerprints from lower strata remain visible and immutable to a
// higher one).
func NewSaturator(cfg SaturatorConfig, annotated []*AnnotatedClause, idx *Index, redundancy *RedundancyTrie) *Saturator {
	s := &Saturator{
		cfg:         cfg,
		Index:       idx,
		Redundancy:  redundancy,
		rulesByPred: make(map[*PredicateSym][]*AnnotatedClause),
	}
	for _, ac := range annotated {
		pred := ac.DeltaPred()
		if pred == nil {
			continue
		}
		s.rulesByPred[pred] = append(s.rulesByPred[pred], ac)
	}
	return s
}

// Run seeds the index with initial (plus one-shot) facts and saturates
// the stratum to its fixed point, returning only once every in-flight
// work item has completed.
//
// replay carries facts for predicates this stratum's rules watch as a
// delta trigger but that were fully derived in an earlier, already-closed
// stratum (a rule may depend positively on a lower-stratum IDB predicate
// alongside a same-or-higher-stratum one). Those facts are already
// present in Index/Redundancy, so they bypass the add-gate below and are
// submitted as work items directly: this is what lets the new stratum's
// rulesByPred, which did not exist when those facts were first derived,
// see them at least once.
func (s *Saturator) Run(ctx context.Context, oneShot []*AnnotatedClause, initial []*Atom, replay []*Atom) error {
	g, gctx := errgroup.WithContext(ctx)
	workers := s.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	g.SetLimit(workers)

	seed := make([]*Atom, 0, len(initial)+len(replay))
	for _, f := range initial {
		if s.Redundancy.AddFingerprint(f) && s.Index.Add(f) {
			seed = append(seed, f)
		}
	}
	seed = append(seed, replay...)

	// One-shot clauses (no positive IDB body atom) are evaluated against
	// whatever EDB facts this stratum just seeded, since their bodies may
	// reference EDB atoms directly rather than triggering off a delta. Their
	// heads join the seed so that rules watching them fire.
	for _, ac := range oneShot {
		EvalClause(ac, nil, s.Index, s.Redundancy, func(head *Atom) {
			if s.Index.Add(head) {
				seed = append(seed, head)
			}
		})
	}

	chunkSize := s.cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 1
	}
	for start := 0; start < len(seed); start += chunkSize {
		end := start + chunkSize
		if end > len(seed) {
			end = len(seed)
		}
		chunk := seed[start:end]
		g.Go(func() error {
			s.runChunk(g, gctx, chunk)
			return nil
		})
	}

	return g.Wait()
}

// runChunk evaluates every rule watching each fact in chunk, accumulating
// newly derived facts locally. Once chunkSize facts have accumulated they
// are handed to a free worker as a fresh work item (TryGo); while every
// worker is busy they stay in the local batch, which keeps growing. The
// residual batch at the end goes to a free worker if there is one and is
// otherwise evaluated inline, so a work item never blocks waiting for a
// worker slot. Wait() returns only once every scheduled function has
// returned, which gives it its "pending == 0" semantics.
func (s *Saturator) runChunk(g *errgroup.Group, ctx context.Context, chunk []*Atom) {
	chunkSize := s.cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 1
	}

	schedule := func(batch []*Atom) bool {
		return g.TryGo(func() error {
			s.runChunk(g, ctx, batch)
			return nil
		})
	}

	var acc []*Atom
	report := func(head *Atom) {
		if !s.Index.Add(head) {
			return
		}
		acc = append(acc, head)
		if len(acc) >= chunkSize && schedule(acc) {
			acc = nil
		}
	}

	for _, f := range chunk {
		for _, ac := range s.rulesByPred[f.Pred] {
			EvalClause(ac, f, s.Index, s.Redundancy, report)
		}
	}

	if len(acc) > 0 && !schedule(acc) {
		s.runChunk(g, ctx, acc)
	}
}
