package datalog

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Variant selects an evaluation strategy at Engine construction time: the
// serial and concurrent semi-naive variants differ only in W (1 vs many
// workers) and chunk size; the magic-set variant wraps the concurrent one
// behind a per-query program rewrite.
type Variant int

const (
	SeminaiveSerial Variant = iota
	SeminaiveConcurrent
	ChunkedConcurrent
	MagicSetOverConcurrent
)

func (v Variant) String() string {
	switch v {
	case SeminaiveSerial:
		return "seminaive-serial"
	case SeminaiveConcurrent:
		return "seminaive-concurrent"
	case ChunkedConcurrent:
		return "chunked-concurrent"
	case MagicSetOverConcurrent:
		return "magic-set-over-concurrent"
	default:
		return "unknown"
	}
}

// EngineConfig configures an Engine.
type EngineConfig struct {
	Variant   Variant
	Workers   int
	ChunkSize int
	Log       *zap.Logger
}

// DefaultEngineConfig returns a ready-to-use chunked-concurrent
// configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{Variant: ChunkedConcurrent, Workers: 0, ChunkSize: 64, Log: zap.NewNop()}
}

// Engine is the programmatic API surface: Init validates and stores a
// program; Query evaluates an atom against it, choosing the
// construction-time Variant's strategy.
type Engine struct {
	cfg  EngineConfig
	syms *SymbolTable
	prog *Program
	log  *zap.Logger
}

// NewEngine returns an Engine with an empty program; call Init before
// Query.
func NewEngine(cfg EngineConfig) *Engine {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{cfg: cfg, syms: NewSymbolTable(), log: log}
}

// Init validates clauses and, on success, makes them the engine's active
// program.
func (e *Engine) Init(clauses []*Clause, validatorCfg ValidatorConfig) error {
	prog, err := Validate(clauses, validatorCfg)
	if err != nil {
		e.log.Warn("program rejected", zap.Error(err))
		return err
	}
	prog.Syms = e.syms
	e.prog = prog
	e.log.Info("program initialized",
		zap.Int("facts", len(prog.Facts)),
		zap.Int("rules", len(prog.Rules)),
		zap.Int("strata", prog.NumStrata))
	return nil
}

// Query evaluates q against the active program: an EDB-predicate query is
// answered directly from stored facts; an IDB-predicate query drives
// saturation (optionally preceded by a magic-set rewrite) and filters the
// result against q.
func (e *Engine) Query(ctx context.Context, q *Atom) ([]*Atom, error) {
	if e.prog == nil {
		return nil, &EvaluationInvariantError{Message: "Query called before a successful Init"}
	}

	switch e.prog.Kind(q.Pred) {
	case KindEDB:
		return e.filterEDB(q), nil
	case KindIDB:
		return e.queryIDB(ctx, q)
	default:
		return nil, &ValidationError{Kind: UnknownPredicate, Message: fmt.Sprintf("predicate %s is not part of the program", q.Pred)}
	}
}

func (e *Engine) filterEDB(q *Atom) []*Atom {
	var out []*Atom
	for _, f := range e.prog.Facts {
		if f.Pred != q.Pred {
			continue
		}
		if s, ok := UnifyAtoms(q, f, NewSubstitution()); ok {
			out = append(out, ApplyAtom(f, s))
		}
	}
	return out
}

func (e *Engine) queryIDB(ctx context.Context, q *Atom) ([]*Atom, error) {
	if e.cfg.Variant == MagicSetOverConcurrent {
		return e.queryMagicSet(ctx, q)
	}

	idx, err := e.saturate(ctx, e.prog)
	if err != nil {
		return nil, err
	}
	return filterAgainstQuery(idx, q), nil
}

func (e *Engine) queryMagicSet(ctx context.Context, q *Atom) ([]*Atom, error) {
	result, err := Magic(e.syms, e.prog, q)
	if err != nil {
		return nil, err
	}
	idx, err := e.saturate(ctx, result.Program)
	if err != nil {
		return nil, err
	}
	var out []*Atom
	for _, f := range idx.All(result.QueryPred) {
		unadorned := &Atom{Pred: q.Pred, Terms: f.Terms}
		if s, ok := UnifyAtoms(q, unadorned, NewSubstitution()); ok {
			out = append(out, ApplyAtom(unadorned, s))
		}
	}
	return out, nil
}

// saturate runs every stratum of prog in increasing order over a shared
// Index/RedundancyTrie pair: stratum k+1 begins only after stratum k
// reaches fixed point, which is what makes negation over a lower
// stratum's predicate safe.
func (e *Engine) saturate(ctx context.Context, prog *Program) (*Index, error) {
	idx := NewIndex()
	redundancy := NewRedundancyTrie()

	workers := e.cfg.Workers
	chunkSize := e.cfg.ChunkSize
	switch e.cfg.Variant {
	case SeminaiveSerial:
		workers = 1
		chunkSize = 1
	case SeminaiveConcurrent:
		if chunkSize <= 0 {
			chunkSize = 1
		}
	}

	// Every annotated clause is bucketed by its OWN head predicate's
	// stratum, never its delta predicate's: stratify already computes the
	// head's stratum as the max over every dependency (same-or-lower for
	// positive edges, strictly lower for negative ones), so running a
	// clause any earlier than that would let it see an incomplete
	// negation. A delta predicate can still sit in a strictly lower,
	// already-closed stratum (e.g. mutual recursion plus an unrelated
	// negation pushes the head stratum up); see the replay step below.
	annotated := Annotate(prog)
	byStratum := make(map[int][]*AnnotatedClause)
	for _, ac := range annotated {
		byStratum[prog.Stratum[ac.Head.Pred]] = append(byStratum[prog.Stratum[ac.Head.Pred]], ac)
	}

	numStrata := prog.NumStrata
	if numStrata == 0 {
		numStrata = 1
	}

	// Facts seed the stratum of their own predicate: pure-EDB facts sit
	// at stratum 0 (stratify assigns EDB predicates there unconditionally)
	// while a fact for a mixed EDB/IDB predicate seeds alongside that
	// predicate's derived rules.
	factsByStratum := make(map[int][]*Atom)
	for _, f := range prog.Facts {
		factsByStratum[prog.Stratum[f.Pred]] = append(factsByStratum[prog.Stratum[f.Pred]], f)
	}

	for stratum := 0; stratum < numStrata; stratum++ {
		var oneShot []*AnnotatedClause
		var withDelta []*AnnotatedClause
		for _, ac := range byStratum[stratum] {
			if ac.DeltaIndex < 0 {
				oneShot = append(oneShot, ac)
			} else {
				withDelta = append(withDelta, ac)
			}
		}

		sat := NewSaturator(SaturatorConfig{Workers: workers, ChunkSize: chunkSize, Log: e.log}, withDelta, idx, redundancy)
		seedFacts := factsByStratum[stratum]

		// Replay already-materialized facts for any delta predicate this
		// stratum's rules watch that was closed out in an earlier stratum,
		// so those rules see them at least once (see Saturator.Run's doc).
		var replay []*Atom
		seenReplayPred := make(map[*PredicateSym]bool)
		for _, ac := range withDelta {
			pred := ac.DeltaPred()
			if pred == nil || seenReplayPred[pred] || prog.Stratum[pred] >= stratum {
				continue
			}
			seenReplayPred[pred] = true
			replay = append(replay, idx.All(pred)...)
		}

		if err := sat.Run(ctx, oneShot, seedFacts, replay); err != nil {
			return nil, err
		}
		e.log.Debug("stratum saturated", zap.Int("stratum", stratum))
	}

	return idx, nil
}

func filterAgainstQuery(idx *Index, q *Atom) []*Atom {
	var out []*Atom
	for _, f := range idx.All(q.Pred) {
		if s, ok := UnifyAtoms(q, f, NewSubstitution()); ok {
			out = append(out, ApplyAtom(f, s))
		}
	}
	return out
}
