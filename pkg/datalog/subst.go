package datalog

// Substitution is a partial mapping from variables to terms. It is scoped
// to a single clause evaluation and is never shared across goroutines:
// callers must clone before branching into multiple alternatives, which
// Unify already does.
type Substitution map[*Variable]Term

// NewSubstitution returns an empty substitution.
func NewSubstitution() Substitution {
	return make(Substitution)
}

// clone returns a shallow copy, used whenever evaluation branches (e.g. a
// positive atom in the body matches more than one fact).
func (s Substitution) clone() Substitution {
	out := make(Substitution, len(s)+1)
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Walk follows the binding chain for t until it reaches a Constant or an
// unbound Variable.
func (s Substitution) Walk(t Term) Term {
	for {
		v, ok := t.(*Variable)
		if !ok {
			return t
		}
		bound, ok := s[v]
		if !ok {
			return v
		}
		t = bound
	}
}

// Apply substitutes every bound variable in t, returning a term with no
// remaining bound variables (it may still contain free ones).
func Apply(t Term, s Substitution) Term {
	return s.Walk(t)
}

// ApplyAtom substitutes every bound variable across an atom's terms. The
// result is ground iff every variable in atom was bound in s.
func ApplyAtom(atom *Atom, s Substitution) *Atom {
	terms := make([]Term, len(atom.Terms))
	for i, t := range atom.Terms {
		terms[i] = s.Walk(t)
	}
	return &Atom{Pred: atom.Pred, Terms: terms}
}

// Unify performs structural unification of two terms under an existing
// partial substitution, returning an extended substitution on success.
// Constants unify only with equal constants or unbound variables; a
// variable may bind to any term. The original substitution is left
// untouched: callers receive a fresh, possibly-extended one.
func Unify(a, b Term, s Substitution) (Substitution, bool) {
	return unify(a, b, s.clone())
}

// unify mutates sub in place; callers own sub exclusively.
func unify(a, b Term, sub Substitution) (Substitution, bool) {
	wa := sub.Walk(a)
	wb := sub.Walk(b)

	va, aIsVar := wa.(*Variable)
	vb, bIsVar := wb.(*Variable)

	switch {
	case aIsVar && bIsVar && va == vb:
		return sub, true
	case aIsVar:
		sub[va] = wb
		return sub, true
	case bIsVar:
		sub[vb] = wa
		return sub, true
	default:
		ca, aOK := wa.(*Constant)
		cb, bOK := wb.(*Constant)
		if aOK && bOK && ca == cb {
			return sub, true
		}
		return nil, false
	}
}

// UnifyAtoms unifies two atoms of equal predicate and arity term by term,
// threading a single substitution through all argument positions.
func UnifyAtoms(a, b *Atom, s Substitution) (Substitution, bool) {
	if a.Pred != b.Pred {
		return nil, false
	}
	cur := s.clone()
	for i := range a.Terms {
		next, ok := unify(a.Terms[i], b.Terms[i], cur)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// CheckDisunification evaluates `X != Y` under s: it succeeds iff both
// sides resolve to ground terms and those terms are distinct constants. A
// non-ground side is reported via the satisfied=false, grounded=false pair so
// callers can distinguish "disequality failed" from "not yet decidable",
// the latter being an evaluation-invariant violation in a validated
// program.
func CheckDisunification(x, y Term, s Substitution) (satisfied bool, grounded bool) {
	wx := s.Walk(x)
	wy := s.Walk(y)
	cx, xOK := wx.(*Constant)
	cy, yOK := wy.(*Constant)
	if !xOK || !yOK {
		return false, false
	}
	return cx != cy, true
}
