package datalog

// BindingMark tags a positive body atom as the round's delta candidate or
// as an already-saturated ("old") fact to match against the indexer.
type BindingMark int

const (
	MarkOld BindingMark = iota
	MarkDelta
)

// AnnotatedPremise pairs a premise with its fixed execution position.
// Only *Atom premises carry a meaningful Mark; it is MarkOld for every
// other premise kind.
type AnnotatedPremise struct {
	Premise Premise
	Mark    BindingMark
}

// AnnotatedClause is one rewritten evaluation plan for a source clause:
// exactly one positive body atom (if any) is marked delta, positive atoms
// and unifications keep their source order, and each negation or
// disunification is placed immediately after the point where all of its
// variables are bound.
type AnnotatedClause struct {
	Head    *Atom
	Body    []AnnotatedPremise
	Source  *Clause
	// DeltaIndex is the index into Body of the delta atom, or -1 if this
	// clause has no positive IDB atom (a one-shot clause: every positive
	// atom is EDB, or the body is empty).
	DeltaIndex int
}

// DeltaPred returns the predicate the clause-evaluator must watch in
// order to trigger this annotated clause, or nil for a one-shot clause.
func (ac *AnnotatedClause) DeltaPred() *PredicateSym {
	if ac.DeltaIndex < 0 {
		return nil
	}
	return ac.Body[ac.DeltaIndex].Premise.(*Atom).Pred
}

// Annotate rewrites every rule in prog into one AnnotatedClause per
// positive IDB body atom: for each position i where the i'th positive
// atom is IDB, emit a clause marking that atom delta and every other
// positive IDB atom old (EDB atoms are never marked delta, since EDB
// facts never change within a stratum). A clause whose body has no
// positive IDB atom produces a single one-shot annotated clause.
func Annotate(prog *Program) []*AnnotatedClause {
	var out []*AnnotatedClause
	for _, c := range prog.Rules {
		out = append(out, annotateClause(c, prog)...)
	}
	return out
}

func annotateClause(c *Clause, prog *Program) []*AnnotatedClause {
	var idbPositions []int
	for i, prem := range c.Body {
		if a, ok := prem.(*Atom); ok && prog.IDB[a.Pred] {
			idbPositions = append(idbPositions, i)
		}
	}

	if len(idbPositions) == 0 {
		return []*AnnotatedClause{buildAnnotated(c, -1, -1)}
	}

	out := make([]*AnnotatedClause, 0, len(idbPositions))
	for rank, pos := range idbPositions {
		out = append(out, buildAnnotated(c, pos, rank))
	}
	return out
}

// buildAnnotated builds one annotated clause with deltaBodyPos marked
// delta (or no delta if deltaBodyPos < 0), and computes the fixed
// execution order: positive atoms and unifications execute in original
// relative order, since both can bind a previously-free variable and so
// neither waits on anything, while each negation or disunification is
// deferred until every one of its variables has been bound by an earlier
// placed premise, since neither can bind a variable itself: negation
// ground-resolves and checks absence; disunification requires both
// sides already ground.
func buildAnnotated(c *Clause, deltaBodyPos int, _ int) *AnnotatedClause {
	bound := make(map[*Variable]bool)
	var body []AnnotatedPremise
	var deferred []Premise
	newDeltaIndex := -1

	place := func(prem Premise, mark BindingMark) {
		if _, ok := prem.(*Atom); ok && mark == MarkDelta {
			newDeltaIndex = len(body)
		}
		body = append(body, AnnotatedPremise{Premise: prem, Mark: mark})
		// A unification between two still-free variables binds neither.
		if u, ok := prem.(*Unification); !ok || termReady(u.Left, bound) || termReady(u.Right, bound) {
			for _, v := range premiseVariables(prem) {
				bound[v] = true
			}
		}
		body = placeReady(body, &deferred, bound)
	}

	for i, prem := range c.Body {
		switch p := prem.(type) {
		case *Atom:
			mark := MarkOld
			if i == deltaBodyPos {
				mark = MarkDelta
			}
			place(p, mark)
		case *Unification:
			place(p, MarkOld)
		default:
			if premiseReady(prem, bound) {
				place(prem, MarkOld)
			} else {
				deferred = append(deferred, prem)
			}
		}
	}
	// Anything still pending never became ready from positives/unifications
	// alone (e.g. a disunification between two head-only variables in a
	// degenerate clause); append in original relative order rather than
	// drop it.
	for _, prem := range deferred {
		body = append(body, AnnotatedPremise{Premise: prem, Mark: MarkOld})
	}

	return &AnnotatedClause{
		Head:       c.Head,
		Body:       body,
		Source:     c,
		DeltaIndex: newDeltaIndex,
	}
}

// premiseVariables returns every variable term directly referenced by
// prem (both sides of a unification, all terms of an atom).
func premiseVariables(prem Premise) []*Variable {
	var vars []*Variable
	add := func(t Term) {
		if v, ok := t.(*Variable); ok {
			vars = append(vars, v)
		}
	}
	switch p := prem.(type) {
	case *Atom:
		for _, t := range p.Terms {
			add(t)
		}
	case *Unification:
		add(p.Left)
		add(p.Right)
	}
	return vars
}

// placeReady appends, in original order, every premise in *deferred whose
// variables are now fully covered by bound, removing them from deferred.
func placeReady(body []AnnotatedPremise, deferred *[]Premise, bound map[*Variable]bool) []AnnotatedPremise {
	remaining := (*deferred)[:0]
	for _, prem := range *deferred {
		if premiseReady(prem, bound) {
			body = append(body, AnnotatedPremise{Premise: prem, Mark: MarkOld})
		} else {
			remaining = append(remaining, prem)
		}
	}
	*deferred = remaining
	return body
}

func premiseReady(prem Premise, bound map[*Variable]bool) bool {
	switch p := prem.(type) {
	case *NegatedAtom:
		for _, t := range p.Atom.Terms {
			if v, ok := t.(*Variable); ok && !bound[v] {
				return false
			}
		}
		return true
	case *Unification:
		return termReady(p.Left, bound) && termReady(p.Right, bound)
	case *Disunification:
		return termReady(p.Left, bound) && termReady(p.Right, bound)
	default:
		return false
	}
}

func termReady(t Term, bound map[*Variable]bool) bool {
	v, ok := t.(*Variable)
	if !ok {
		return true
	}
	return bound[v]
}
