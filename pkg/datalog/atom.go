package datalog

import "strings"

// Atom is a positive atom: a predicate applied to a term vector. It also
// doubles as a "ground atom" once every term is a Constant, and as a
// "pattern" when used for indexer lookups: variables act as wildcards,
// constants as filters.
type Atom struct {
	Pred  *PredicateSym
	Terms []Term
}

func (a *Atom) String() string {
	parts := make([]string, len(a.Terms))
	for i, t := range a.Terms {
		parts[i] = t.String()
	}
	return a.Pred.Name + "(" + strings.Join(parts, ",") + ")"
}

// IsGround reports whether every term of the atom is a Constant.
func (a *Atom) IsGround() bool {
	for _, t := range a.Terms {
		if !IsGroundTerm(t) {
			return false
		}
	}
	return true
}

// Fingerprint returns the sequence of constant symbols a ground atom
// resolves to, used by the RedundancyTrie to deduplicate derivations.
// Calling it on a non-ground atom is a bug in the caller.
func (a *Atom) Fingerprint() []*Constant {
	out := make([]*Constant, len(a.Terms))
	for i, t := range a.Terms {
		c, ok := t.(*Constant)
		if !ok {
			panic("datalog: Fingerprint called on non-ground atom " + a.String())
		}
		out[i] = c
	}
	return out
}

// Variables returns the distinct variables appearing in the atom, in
// first-occurrence order.
func (a *Atom) Variables() []*Variable {
	var vars []*Variable
	seen := make(map[*Variable]bool)
	for _, t := range a.Terms {
		if v, ok := t.(*Variable); ok && !seen[v] {
			seen[v] = true
			vars = append(vars, v)
		}
	}
	return vars
}

// NegatedAtom wraps a positive atom that must NOT hold for the premise to
// succeed (stratified negation).
type NegatedAtom struct {
	Atom *Atom
}

func (n *NegatedAtom) String() string { return "not " + n.Atom.String() }

// Unification is the `X = Y` premise.
type Unification struct {
	Left, Right Term
}

func (u *Unification) String() string { return u.Left.String() + " = " + u.Right.String() }

// Disunification is the `X != Y` premise.
type Disunification struct {
	Left, Right Term
}

func (d *Disunification) String() string { return d.Left.String() + " != " + d.Right.String() }

// Premise is one of *Atom (positive), *NegatedAtom, *Unification, or
// *Disunification. It is a closed sum type: the switch in every consumer
// (validator, annotator, evaluator) is expected to be exhaustive over
// exactly these four variants.
type Premise interface {
	isPremise()
	String() string
}

func (*Atom) isPremise()           {}
func (*NegatedAtom) isPremise()    {}
func (*Unification) isPremise()    {}
func (*Disunification) isPremise() {}

// Clause is (head, body). Head is nil for a bare query `p(...)?`. A fact
// is a clause with an empty body.
type Clause struct {
	Head *Atom
	Body []Premise
}

func (c *Clause) String() string {
	if len(c.Body) == 0 {
		if c.Head == nil {
			return "?"
		}
		return c.Head.String() + "."
	}
	parts := make([]string, len(c.Body))
	for i, p := range c.Body {
		parts[i] = p.String()
	}
	head := "?"
	if c.Head != nil {
		head = c.Head.String()
	}
	return head + " :- " + strings.Join(parts, ", ") + "."
}

// IsFact reports whether the clause has an empty body.
func (c *Clause) IsFact() bool { return len(c.Body) == 0 }
