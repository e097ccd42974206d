package datalog

import "fmt"

// ValidatorConfig toggles optional language features.
type ValidatorConfig struct {
	// AllowUnification enables `X = Y` premises in rule bodies.
	AllowUnification bool
	// AllowDisunification enables `X != Y` premises in rule bodies.
	AllowDisunification bool
}

// DefaultValidatorConfig enables both explicit (dis)unification, matching
// the ConcurrentChunkedBottomUpEngine's
// withBinaryUnificationInRuleBody().withBinaryDisunificationInRuleBody()
// defaults.
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{AllowUnification: true, AllowDisunification: true}
}

// Program is a validated, stratified Datalog program: an EDB/IDB
// partition, the initial (fact) atoms, the rules, and a stratum number per
// IDB predicate.
type Program struct {
	Syms    *SymbolTable
	EDB     map[*PredicateSym]bool
	IDB     map[*PredicateSym]bool
	Facts   []*Atom
	Rules   []*Clause
	Stratum map[*PredicateSym]int
	// NumStrata is the number of distinct stratum numbers in use, 0 if
	// the program has no IDB predicates.
	NumStrata int
}

// Kind reports whether pred is EDB, IDB, or unknown to this program.
func (p *Program) Kind(pred *PredicateSym) Kind {
	if p.EDB[pred] {
		return KindEDB
	}
	if p.IDB[pred] {
		return KindIDB
	}
	return KindUnknown
}

// Validate validates a raw clause set against cfg, producing the
// EDB/IDB partition and a stratified Program, or the first
// ValidationError encountered.
func Validate(clauses []*Clause, cfg ValidatorConfig) (*Program, error) {
	prog := &Program{
		EDB:     make(map[*PredicateSym]bool),
		IDB:     make(map[*PredicateSym]bool),
		Stratum: make(map[*PredicateSym]int),
	}

	for _, c := range clauses {
		if c.Head == nil {
			continue // a bare query is not part of the program proper
		}
		if c.Head.Pred.IsMangled() {
			return nil, &ValidationError{Kind: DisallowedFeature, Clause: c,
				Message: fmt.Sprintf("predicate %q uses the reserved %q prefix", c.Head.Pred.Name, MangledPrefix)}
		}
		for _, t := range c.Head.Terms {
			if v, ok := t.(*Variable); ok && v.Anonymous() {
				return nil, &ValidationError{Kind: UnsafeVariable, Clause: c,
					Message: "head contains an anonymous variable"}
			}
		}
		for _, prem := range c.Body {
			switch pr := prem.(type) {
			case *Unification:
				if !cfg.AllowUnification {
					return nil, &ValidationError{Kind: DisallowedFeature, Clause: c, Message: "unification is disabled"}
				}
			case *Disunification:
				if !cfg.AllowDisunification {
					return nil, &ValidationError{Kind: DisallowedFeature, Clause: c, Message: "disunification is disabled"}
				}
			case *Atom:
				_ = pr
			case *NegatedAtom:
				_ = pr
			}
		}
	}

	if err := checkArityConsistency(clauses); err != nil {
		return nil, err
	}

	classifyPredicates(clauses, prog)

	for _, c := range clauses {
		if c.Head == nil {
			continue
		}
		if err := checkSafety(c, prog); err != nil {
			return nil, err
		}
		if err := checkUselessUnification(c); err != nil {
			return nil, err
		}
	}

	for _, c := range clauses {
		if c.Head == nil {
			continue
		}
		if c.IsFact() {
			if !c.Head.IsGround() {
				return nil, &ValidationError{Kind: UnsafeVariable, Clause: c, Message: "fact is not ground"}
			}
			prog.Facts = append(prog.Facts, c.Head)
		} else {
			prog.Rules = append(prog.Rules, c)
		}
	}

	if err := stratify(prog); err != nil {
		return nil, err
	}

	return prog, nil
}

// checkArityConsistency rejects a program that uses the same predicate name
// at two different arities. InternPredicate keys solely on (name, arity), so
// a clause set that does this silently produces two unrelated
// PredicateSyms sharing a name rather than one predicate misused; this scan
// is what actually catches the mistake the interning scheme cannot.
func checkArityConsistency(clauses []*Clause) error {
	arityOf := make(map[string]int)
	check := func(c *Clause, a *Atom) error {
		if want, ok := arityOf[a.Pred.Name]; ok {
			if want != a.Pred.Arity {
				return &ValidationError{Kind: ArityMismatch, Clause: c,
					Message: fmt.Sprintf("predicate %s used with arity %d and arity %d", a.Pred.Name, want, a.Pred.Arity)}
			}
			return nil
		}
		arityOf[a.Pred.Name] = a.Pred.Arity
		return nil
	}

	for _, c := range clauses {
		if c.Head != nil {
			if err := check(c, c.Head); err != nil {
				return err
			}
		}
		for _, prem := range c.Body {
			switch pr := prem.(type) {
			case *Atom:
				if err := check(c, pr); err != nil {
					return err
				}
			case *NegatedAtom:
				if err := check(c, pr.Atom); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// classifyPredicates assigns EDB/IDB: a predicate that is the head of at
// least one non-fact clause is IDB; a predicate appearing only as fact
// heads (or only in bodies) is EDB.
func classifyPredicates(clauses []*Clause, prog *Program) {
	for _, c := range clauses {
		if c.Head == nil {
			continue
		}
		if !c.IsFact() {
			prog.IDB[c.Head.Pred] = true
		}
	}
	for _, c := range clauses {
		if c.Head == nil {
			continue
		}
		if c.IsFact() && !prog.IDB[c.Head.Pred] {
			prog.EDB[c.Head.Pred] = true
		}
		for _, prem := range c.Body {
			if a, ok := prem.(*Atom); ok && !prog.IDB[a.Pred] {
				prog.EDB[a.Pred] = true
			}
			if n, ok := prem.(*NegatedAtom); ok && !prog.IDB[n.Atom.Pred] {
				prog.EDB[n.Atom.Pred] = true
			}
		}
	}
	// A predicate classified IDB never stays in EDB too (disjointness
	// invariant): IDB takes precedence since it was assigned first and
	// the second loop's guard (!prog.IDB[...]) already prevents the
	// overlap.
}

// checkSafety enforces range-restriction and negation/disunification
// safety. A variable is bound when it appears in a positive body atom, or
// in a unification whose other side is a constant or a bound variable
// (repeated until nothing changes). Every head variable and every variable
// of a negated atom or disunification must be bound; where in the body the
// binding premise sits does not matter, since the annotator defers
// negations and disunifications until their variables are bound.
func checkSafety(c *Clause, prog *Program) error {
	bound := make(map[*Variable]bool)
	for _, prem := range c.Body {
		if a, ok := prem.(*Atom); ok {
			for _, t := range a.Terms {
				if v, ok := t.(*Variable); ok {
					bound[v] = true
				}
			}
		}
	}
	for changed := true; changed; {
		changed = false
		for _, prem := range c.Body {
			if u, ok := prem.(*Unification); ok {
				lv, lIsVar := u.Left.(*Variable)
				rv, rIsVar := u.Right.(*Variable)
				if lIsVar && !bound[lv] && (!rIsVar || bound[rv]) {
					bound[lv], changed = true, true
				}
				if rIsVar && !bound[rv] && (!lIsVar || bound[lv]) {
					bound[rv], changed = true, true
				}
			}
		}
	}
	for _, t := range c.Head.Terms {
		if v, ok := t.(*Variable); ok && !bound[v] {
			return &ValidationError{Kind: UnsafeVariable, Clause: c,
				Message: fmt.Sprintf("head variable %s is not bound by a positive body atom or a unification", v)}
		}
	}

	for _, prem := range c.Body {
		switch pr := prem.(type) {
		case *NegatedAtom:
			for _, t := range pr.Atom.Terms {
				if v, ok := t.(*Variable); ok && !bound[v] {
					return &ValidationError{Kind: UnsafeVariable, Clause: c,
						Message: fmt.Sprintf("variable %s in negated atom is not bound by a positive body atom or a unification", v)}
				}
			}
		case *Disunification:
			for _, t := range []Term{pr.Left, pr.Right} {
				if v, ok := t.(*Variable); ok && !bound[v] {
					return &ValidationError{Kind: DisallowedFeature, Clause: c,
						Message: fmt.Sprintf("variable %s in disunification is not bound by a positive body atom or a unification", v)}
				}
			}
		}
	}
	return nil
}

// checkUselessUnification rejects `X = _`: binding a variable to an
// anonymous variable can never be useful and the validator treats it as
// an early error rather than silently accepting it.
func checkUselessUnification(c *Clause) error {
	for _, prem := range c.Body {
		u, ok := prem.(*Unification)
		if !ok {
			continue
		}
		if isAnonymous(u.Left) || isAnonymous(u.Right) {
			return &ValidationError{Kind: UselessUnification, Clause: c,
				Message: "unification against an anonymous variable is useless"}
		}
	}
	return nil
}

func isAnonymous(t Term) bool {
	v, ok := t.(*Variable)
	return ok && v.Anonymous()
}

// depEdge is an edge in the predicate dependency graph, arena-indexed:
// "from" node has a dependency on node "to", labelled negative for edges
// arising from negated atoms.
type depEdge struct {
	to       int
	negative bool
}

// stratify computes the predicate dependency graph's strongly connected
// components (Tarjan, arena-indexed) and assigns each component a stratum
// such that every negative edge goes strictly upward. Rejects with
// Unstratified if a negative edge falls inside a single component (a
// negative cycle).
func stratify(prog *Program) error {
	if len(prog.IDB) == 0 {
		return nil
	}

	arena := make([]*PredicateSym, 0, len(prog.IDB)+len(prog.EDB))
	index := make(map[*PredicateSym]int)
	addNode := func(p *PredicateSym) int {
		if i, ok := index[p]; ok {
			return i
		}
		i := len(arena)
		arena = append(arena, p)
		index[p] = i
		return i
	}
	for p := range prog.IDB {
		addNode(p)
	}
	for p := range prog.EDB {
		addNode(p)
	}

	adj := make([][]depEdge, len(arena))
	seen := make(map[[2]int]bool)
	for _, c := range prog.Rules {
		hi := addNode(c.Head.Pred)
		for _, prem := range c.Body {
			var to *PredicateSym
			negative := false
			switch pr := prem.(type) {
			case *Atom:
				to = pr.Pred
			case *NegatedAtom:
				to = pr.Atom.Pred
				negative = true
			default:
				continue
			}
			ti := addNode(to)
			key := [2]int{hi, ti}
			if negative {
				// A negative edge always needs recording, even if a
				// positive edge between the same pair already exists:
				// negativity of the overall pair must survive.
				adj[hi] = append(adj[hi], depEdge{to: ti, negative: true})
				seen[key] = true
				continue
			}
			if !seen[key] {
				adj[hi] = append(adj[hi], depEdge{to: ti, negative: false})
				seen[key] = true
			}
		}
	}

	sccOf, order := tarjanSCC(adj)

	// order lists component ids in completion order, which for Tarjan is
	// a valid reverse-topological order of the condensation DAG: every
	// component's dependencies finish before it does.
	stratumOf := make(map[int]int)
	for _, comp := range order {
		for from, edges := range adj {
			if sccOf[from] != comp {
				continue
			}
			for _, e := range edges {
				toComp := sccOf[e.to]
				if toComp == comp {
					if e.negative {
						return &ValidationError{Kind: Unstratified,
							Message: fmt.Sprintf("predicate %s negatively depends on itself through a cycle", arena[from])}
					}
					continue
				}
				s := stratumOf[toComp]
				if e.negative {
					s++
				}
				if s > stratumOf[comp] {
					stratumOf[comp] = s
				}
			}
		}
	}

	maxStratum := 0
	for p := range prog.IDB {
		s := stratumOf[sccOf[index[p]]]
		prog.Stratum[p] = s
		if s > maxStratum {
			maxStratum = s
		}
	}
	for p := range prog.EDB {
		prog.Stratum[p] = 0
	}
	prog.NumStrata = maxStratum + 1
	return nil
}

// tarjanSCC runs Tarjan's strongly-connected-components algorithm over an
// arena-indexed adjacency list. It returns the component id for each node
// and the list of component ids in completion order (a valid
// reverse-topological order of the condensation DAG: every component's
// out-edges point to components already present earlier in "order").
func tarjanSCC(adj [][]depEdge) (sccOf []int, order []int) {
	n := len(adj)
	idx := make([]int, n)
	lowlink := make([]int, n)
	onStack := make([]bool, n)
	sccOf = make([]int, n)
	for i := range idx {
		idx[i] = -1
	}

	var stack []int
	nextIndex := 0
	nextComp := 0

	var strongconnect func(v int)
	strongconnect = func(v int) {
		idx[v] = nextIndex
		lowlink[v] = nextIndex
		nextIndex++
		stack = append(stack, v)
		onStack[v] = true

		for _, e := range adj[v] {
			w := e.to
			if idx[w] == -1 {
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if idx[w] < lowlink[v] {
					lowlink[v] = idx[w]
				}
			}
		}

		if lowlink[v] == idx[v] {
			comp := nextComp
			nextComp++
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				sccOf[w] = comp
				if w == v {
					break
				}
			}
			order = append(order, comp)
		}
	}

	for v := 0; v < n; v++ {
		if idx[v] == -1 {
			strongconnect(v)
		}
	}
	return sccOf, order
}
