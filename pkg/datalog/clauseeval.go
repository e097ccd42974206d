package datalog

// ReportFunc receives a newly derived, deduplicated ground head atom.
// Implementations must not block for long: the saturator calls it from
// worker goroutines, inline on the evaluator's own goroutine.
type ReportFunc func(head *Atom)

// EvalClause runs the Clause Evaluator: given an annotated
// clause and a candidate fact for its delta atom, enumerates all ground
// head atoms derivable from fact plus facts already in idx, reporting
// each newly-derived one (per redundancy) to report. One-shot clauses
// (DeltaIndex < 0) are evaluated by passing a nil fact; they ignore it
// and evaluate their whole body against idx directly.
func EvalClause(ac *AnnotatedClause, fact *Atom, idx *Index, redundancy *RedundancyTrie, report ReportFunc) {
	sub := NewSubstitution()

	if ac.DeltaIndex >= 0 {
		deltaAtom := ac.Body[ac.DeltaIndex].Premise.(*Atom)
		next, ok := UnifyAtoms(deltaAtom, fact, sub)
		if !ok {
			return
		}
		sub = next
	}

	evalBody(ac, 0, sub, idx, redundancy, report)
}

// evalBody walks ac.Body from position i under sub, branching on every
// positive-atom match, then (on success) reports the substituted head.
func evalBody(ac *AnnotatedClause, i int, sub Substitution, idx *Index, redundancy *RedundancyTrie, report ReportFunc) {
	if i >= len(ac.Body) {
		head := ApplyAtom(ac.Head, sub)
		if !head.IsGround() {
			panic(&EvaluationInvariantError{Message: "clause evaluator produced a non-ground head " + head.String()})
		}
		if redundancy.AddFingerprint(head) {
			report(head)
		}
		return
	}

	ap := ac.Body[i]
	if i == ac.DeltaIndex {
		// The delta atom was already consumed against fact before
		// evalBody started; its binding is already in sub.
		evalBody(ac, i+1, sub, idx, redundancy, report)
		return
	}

	switch p := ap.Premise.(type) {
	case *Atom:
		for _, ground := range idx.IndexInto(p, sub) {
			next, ok := UnifyAtoms(p, ground, sub)
			if !ok {
				continue
			}
			evalBody(ac, i+1, next, idx, redundancy, report)
		}

	case *NegatedAtom:
		pattern := ApplyAtom(p.Atom, sub)
		if !pattern.IsGround() {
			panic(&EvaluationInvariantError{Message: "negated atom not ground at evaluation time: " + pattern.String()})
		}
		if len(idx.IndexInto(pattern, sub)) == 0 {
			evalBody(ac, i+1, sub, idx, redundancy, report)
		}

	case *Unification:
		if next, ok := Unify(p.Left, p.Right, sub); ok {
			evalBody(ac, i+1, next, idx, redundancy, report)
		}

	case *Disunification:
		satisfied, grounded := CheckDisunification(p.Left, p.Right, sub)
		if !grounded {
			panic(&EvaluationInvariantError{Message: "disunification not ground at evaluation time: " + p.String()})
		}
		if satisfied {
			evalBody(ac, i+1, sub, idx, redundancy, report)
		}
	}
}
