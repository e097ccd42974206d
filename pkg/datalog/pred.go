package datalog

import "strings"

// Kind classifies a predicate symbol as extensional (fact-only) or
// intensional (defined by at least one rule with a non-empty body).
type Kind int

const (
	KindUnknown Kind = iota
	KindEDB
	KindIDB
)

func (k Kind) String() string {
	switch k {
	case KindEDB:
		return "EDB"
	case KindIDB:
		return "IDB"
	default:
		return "unknown"
	}
}

// MangledPrefix is the sentinel reserved for names synthesized by the
// magic-set transformer (adorned predicates, input relations, supplementary
// relations). The Validator rejects any source predicate that begins with
// it, resolving the mangled-predicate name-collision question instead of
// merely documenting the risk.
const MangledPrefix = "%"

// PredicateSym is an interned (name, arity) pair. Equal symbols share
// identity; compare with ==.
type PredicateSym struct {
	id    int64
	Name  string
	Arity int
}

func (p *PredicateSym) String() string { return p.Name }

// IsMangled reports whether this symbol's name carries the magic-set
// transformer's reserved prefix.
func (p *PredicateSym) IsMangled() bool {
	return strings.HasPrefix(p.Name, MangledPrefix)
}

// Adornment is a per-argument bound/free pattern derived from a call site.
// true means "bound at call-site".
type Adornment []bool

func (a Adornment) String() string {
	var sb strings.Builder
	for _, bound := range a {
		if bound {
			sb.WriteByte('b')
		} else {
			sb.WriteByte('f')
		}
	}
	return sb.String()
}

// Equal reports whether two adornments agree position by position.
func (a Adornment) Equal(b Adornment) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// BoundCount returns the number of bound positions.
func (a Adornment) BoundCount() int {
	n := 0
	for _, bound := range a {
		if bound {
			n++
		}
	}
	return n
}

// AdornedPredicateSym pairs a predicate with a call-site adornment. Two
// adorned predicates are equal iff predicate and adornment agree (spec
// §3's "Adorned predicate" invariant).
type AdornedPredicateSym struct {
	Pred      *PredicateSym
	Adornment Adornment
}

// Key returns a value usable as a map key for AdornedPredicateSym, since
// Adornment is a slice and cannot be compared with ==.
func (a AdornedPredicateSym) Key() string {
	return a.Pred.Name + "/" + a.Adornment.String()
}

func (a AdornedPredicateSym) String() string {
	if len(a.Adornment) == 0 {
		return a.Pred.Name
	}
	return a.Pred.Name + "<" + a.Adornment.String() + ">"
}
