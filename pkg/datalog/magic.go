package datalog

import "fmt"

// genName mangles an adorned predicate symbol into a fresh PredicateSym
// of the same arity, reserving MangledPrefix so it can never collide with
// a source predicate.
func genName(syms *SymbolTable, ap AdornedPredicateSym) *PredicateSym {
	name := fmt.Sprintf("%s%s_%s", MangledPrefix, ap.Pred.Name, ap.Adornment.String())
	return syms.InternPredicate(name, ap.Pred.Arity)
}

// genInputName mangles the input relation for an adorned predicate. Its
// arity is the number of bound positions: an input relation only ever
// carries the head's bound arguments (the "magic seed").
func genInputName(syms *SymbolTable, ap AdornedPredicateSym) *PredicateSym {
	name := fmt.Sprintf("%sinput_%s_%s", MangledPrefix, ap.Pred.Name, ap.Adornment.String())
	return syms.InternPredicate(name, ap.Adornment.BoundCount())
}

// genSupName mangles the i'th supplementary relation of the ruleIdx'th
// rule defining ap, carrying len(vars) arguments.
func genSupName(syms *SymbolTable, ap AdornedPredicateSym, ruleIdx, supIdx int, arity int) *PredicateSym {
	name := fmt.Sprintf("%s%s_%s_r%d_sup%d", MangledPrefix, ap.Pred.Name, ap.Adornment.String(), ruleIdx, supIdx)
	return syms.InternPredicate(name, arity)
}

// magicBuilder holds the mutable state of one Magic-Set rewrite pass: a
// worklist of adorned predicates still to process, the predicates
// already queued, and the accumulated output clauses.
type magicBuilder struct {
	syms  *SymbolTable
	prog  *Program
	queue []AdornedPredicateSym
	seen  map[string]bool

	facts []*Atom
	rules []*Clause
}

// MagicResult is the rewritten program plus the adorned predicate symbol
// that answers the original query, so the caller can translate results
// back to the query's own (unadorned) predicate.
type MagicResult struct {
	Program   *Program
	QueryPred *PredicateSym
	SeedFact  *Atom
}

// Magic performs the Magic-Set Transformer pass against a validated,
// stratified prog for query atom q, producing a rewritten program the
// Saturator can evaluate directly, materializing only atoms relevant to
// q.
func Magic(syms *SymbolTable, prog *Program, q *Atom) (*MagicResult, error) {
	adornment := make(Adornment, len(q.Terms))
	args := make([]Term, 0, len(q.Terms))
	for i, t := range q.Terms {
		if c, ok := t.(*Constant); ok {
			adornment[i] = true
			args = append(args, c)
		}
	}
	queryAdorned := AdornedPredicateSym{Pred: q.Pred, Adornment: adornment}

	mb := &magicBuilder{
		syms: syms,
		prog: prog,
		seen: make(map[string]bool),
	}
	mb.push(queryAdorned)

	for len(mb.queue) > 0 {
		ap := mb.queue[0]
		mb.queue = mb.queue[1:]
		mb.adornPredicate(ap)
	}

	inputQ := genInputName(syms, queryAdorned)
	seed := &Atom{Pred: inputQ, Terms: args}
	mb.facts = append(mb.facts, seed)

	// Collect pure-EDB facts unchanged.
	for _, f := range prog.Facts {
		if prog.EDB[f.Pred] {
			mb.facts = append(mb.facts, f)
		}
	}

	outProg := &Program{
		Syms:    syms,
		EDB:     make(map[*PredicateSym]bool),
		IDB:     make(map[*PredicateSym]bool),
		Stratum: make(map[*PredicateSym]int),
		Facts:   mb.facts,
		Rules:   mb.rules,
	}
	for _, f := range mb.facts {
		outProg.EDB[f.Pred] = true
	}
	for _, r := range mb.rules {
		outProg.IDB[r.Head.Pred] = true
	}
	for p := range outProg.IDB {
		delete(outProg.EDB, p)
	}

	if err := stratify(outProg); err != nil {
		return nil, err
	}

	adornedQueryPred := genName(syms, queryAdorned)
	return &MagicResult{Program: outProg, QueryPred: adornedQueryPred, SeedFact: seed}, nil
}

func (mb *magicBuilder) push(ap AdornedPredicateSym) {
	if mb.seen[ap.Key()] {
		return
	}
	mb.seen[ap.Key()] = true
	mb.queue = append(mb.queue, ap)
}

// adornPredicate adorns every rule and every mixed-kind fact defining
// ap.Pred, emitting the rewritten clauses into mb.rules/mb.facts.
func (mb *magicBuilder) adornPredicate(ap AdornedPredicateSym) {
	ruleIdx := 0
	for _, c := range mb.prog.Rules {
		if c.Head.Pred != ap.Pred {
			continue
		}
		mb.adornRule(ap, c, ruleIdx)
		ruleIdx++
	}
	for _, f := range mb.prog.Facts {
		if f.Pred != ap.Pred || !mb.prog.IDB[f.Pred] {
			continue
		}
		// Body-less IDB "fact" interleaved with real rules for the same
		// predicate: filtered by the call pattern.
		inputPred := genInputName(mb.syms, ap)
		headPred := genName(mb.syms, ap)
		boundArgs := boundTerms(f.Terms, ap.Adornment)
		mb.rules = append(mb.rules, &Clause{
			Head: &Atom{Pred: headPred, Terms: f.Terms},
			Body: []Premise{&Atom{Pred: inputPred, Terms: boundArgs}},
		})
	}
}

// adornRule rewrites one rule body left-to-right under a sideways
// information passing strategy, folding the n+1 supplementary relations
// down to n-1 materialized ones by eliding sup0 (replaced by the input
// relation) and supn (folded directly into the adorned-head rule),
// matching the original engine's QSQ-template style.
func (mb *magicBuilder) adornRule(ap AdornedPredicateSym, c *Clause, ruleIdx int) {
	n := len(c.Body)
	bound := make(map[*Variable]bool)
	for i, bnd := range ap.Adornment {
		if bnd {
			if v, ok := c.Head.Terms[i].(*Variable); ok {
				bound[v] = true
			}
		}
	}

	// rewritten[i] is the (possibly adorned) premise to use in place of
	// c.Body[i]; pushTargets records, for each positive/negated IDB premise,
	// its body position and adorned predicate, for the propagation rule.
	rewritten := make([]Premise, n)
	var pushTargets []struct {
		idx int
		ap  AdornedPredicateSym
	}

	for i, prem := range c.Body {
		switch p := prem.(type) {
		case *Atom:
			if mb.prog.IDB[p.Pred] {
				atomAdorn := adornFromBound(p.Terms, bound)
				target := AdornedPredicateSym{Pred: p.Pred, Adornment: atomAdorn}
				mb.push(target)
				rewritten[i] = &Atom{Pred: genName(mb.syms, target), Terms: p.Terms}
				pushTargets = append(pushTargets, struct {
					idx int
					ap  AdornedPredicateSym
				}{i, target})
			} else {
				rewritten[i] = p
			}
			for _, t := range p.Terms {
				if v, ok := t.(*Variable); ok {
					bound[v] = true
				}
			}
		case *NegatedAtom:
			if mb.prog.IDB[p.Atom.Pred] {
				atomAdorn := adornFromBound(p.Atom.Terms, bound)
				target := AdornedPredicateSym{Pred: p.Atom.Pred, Adornment: atomAdorn}
				mb.push(target)
				rewritten[i] = &NegatedAtom{Atom: &Atom{Pred: genName(mb.syms, target), Terms: p.Atom.Terms}}
				pushTargets = append(pushTargets, struct {
					idx int
					ap  AdornedPredicateSym
				}{i, target})
			} else {
				rewritten[i] = p
			}
		case *Unification:
			rewritten[i] = p
			lv, lok := p.Left.(*Variable)
			rv, rok := p.Right.(*Variable)
			switch {
			case lok && bound[lv]:
				if rok {
					bound[rv] = true
				}
			case rok && bound[rv]:
				if lok {
					bound[lv] = true
				}
			case lok && !rok:
				bound[lv] = true
			case rok && !lok:
				bound[rv] = true
			}
		default:
			rewritten[i] = prem
		}
	}

	headVars := varSet(c.Head.Terms)

	neededFrom := make([]map[*Variable]bool, n+1)
	neededFrom[n] = headVars
	for i := n - 1; i >= 0; i-- {
		s := cloneVarSet(neededFrom[i+1])
		for v := range premiseVarSet(c.Body[i]) {
			s[v] = true
		}
		neededFrom[i] = s
	}

	boundAfter := make([]map[*Variable]bool, n+1)
	boundAfter[0] = cloneBoundMap(initialBound(c.Head.Terms, ap.Adornment))
	cur := cloneBoundMap(boundAfter[0])
	for i, prem := range c.Body {
		for v := range premiseBoundContribution(prem) {
			cur[v] = true
		}
		boundAfter[i+1] = cloneBoundMap(cur)
	}

	inputPred := genInputName(mb.syms, ap)
	headPred := genName(mb.syms, ap)

	varsAt := func(i int) []*Variable {
		var out []*Variable
		seenV := make(map[*Variable]bool)
		for _, t := range c.Head.Terms {
			if v, ok := t.(*Variable); ok && boundAfter[i][v] && neededFrom[i][v] && !seenV[v] {
				seenV[v] = true
				out = append(out, v)
			}
		}
		for j := 0; j < i; j++ {
			for _, v := range premiseVarsOrdered(c.Body[j]) {
				if boundAfter[i][v] && neededFrom[i][v] && !seenV[v] {
					seenV[v] = true
					out = append(out, v)
				}
			}
		}
		return out
	}

	prevPred := inputPred
	prevVars := boundTermsFromVars(c.Head.Terms, ap.Adornment)

	for i := 0; i < n; i++ {
		prevAtomTerms := make([]Term, len(prevVars))
		for j, v := range prevVars {
			prevAtomTerms[j] = v
		}
		prevAtom := &Atom{Pred: prevPred, Terms: prevAtomTerms}

		if i < n-1 {
			supVars := varsAt(i + 1)
			supPred := genSupName(mb.syms, ap, ruleIdx, i+1, len(supVars))
			headTerms := make([]Term, len(supVars))
			for j, v := range supVars {
				headTerms[j] = v
			}
			mb.rules = append(mb.rules, &Clause{
				Head: &Atom{Pred: supPred, Terms: headTerms},
				Body: []Premise{prevAtom, rewritten[i]},
			})
			prevPred = supPred
			prevVars = supVars
		} else {
			mb.rules = append(mb.rules, &Clause{
				Head: &Atom{Pred: headPred, Terms: c.Head.Terms},
				Body: []Premise{prevAtom, rewritten[i]},
			})
		}
	}

	for _, pt := range pushTargets {
		boundArgsSrc := c.Body[pt.idx]
		var termsSrc []Term
		switch a := boundArgsSrc.(type) {
		case *Atom:
			termsSrc = a.Terms
		case *NegatedAtom:
			termsSrc = a.Atom.Terms
		}
		boundArgs := boundTerms(termsSrc, pt.ap.Adornment)
		var prevAtomForPush *Atom
		if pt.idx == 0 {
			prevAtomForPush = &Atom{Pred: inputPred, Terms: prevTermsFromVars(boundTermsFromVars(c.Head.Terms, ap.Adornment))}
		} else {
			// State before body position pt.idx was materialized as the
			// output of processing position pt.idx-1, named with supIdx
			// == pt.idx (see the i<n-1 branch above, which names its
			// output sup relation i+1).
			vars := varsAt(pt.idx)
			terms := make([]Term, len(vars))
			for j, v := range vars {
				terms[j] = v
			}
			supPred := genSupName(mb.syms, ap, ruleIdx, pt.idx, len(vars))
			prevAtomForPush = &Atom{Pred: supPred, Terms: terms}
		}
		mb.rules = append(mb.rules, &Clause{
			Head: &Atom{Pred: genInputName(mb.syms, pt.ap), Terms: boundArgs},
			Body: []Premise{prevAtomForPush},
		})
	}
}

func boundTermsFromVars(terms []Term, adorn Adornment) []*Variable {
	var out []*Variable
	for i, bnd := range adorn {
		if bnd {
			if v, ok := terms[i].(*Variable); ok {
				out = append(out, v)
			}
		}
	}
	return out
}

func prevTermsFromVars(vars []*Variable) []Term {
	out := make([]Term, len(vars))
	for i, v := range vars {
		out[i] = v
	}
	return out
}

func initialBound(headTerms []Term, adorn Adornment) map[*Variable]bool {
	m := make(map[*Variable]bool)
	for i, bnd := range adorn {
		if bnd {
			if v, ok := headTerms[i].(*Variable); ok {
				m[v] = true
			}
		}
	}
	return m
}

func cloneBoundMap(m map[*Variable]bool) map[*Variable]bool {
	out := make(map[*Variable]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneVarSet(m map[*Variable]bool) map[*Variable]bool { return cloneBoundMap(m) }

func varSet(terms []Term) map[*Variable]bool {
	m := make(map[*Variable]bool)
	for _, t := range terms {
		if v, ok := t.(*Variable); ok {
			m[v] = true
		}
	}
	return m
}

func premiseVarSet(prem Premise) map[*Variable]bool {
	m := make(map[*Variable]bool)
	for _, v := range premiseVarsOrdered(prem) {
		m[v] = true
	}
	return m
}

func premiseVarsOrdered(prem Premise) []*Variable {
	var out []*Variable
	add := func(t Term) {
		if v, ok := t.(*Variable); ok {
			out = append(out, v)
		}
	}
	switch p := prem.(type) {
	case *Atom:
		for _, t := range p.Terms {
			add(t)
		}
	case *NegatedAtom:
		for _, t := range p.Atom.Terms {
			add(t)
		}
	case *Unification:
		add(p.Left)
		add(p.Right)
	case *Disunification:
		add(p.Left)
		add(p.Right)
	}
	return out
}

// premiseBoundContribution returns the variables that become bound after
// processing orig: positive atoms bind every one of their variables,
// unification binds whichever side was previously free, negation and
// disunification bind nothing (both require their variables already
// bound, per checkSafety).
func premiseBoundContribution(orig Premise) map[*Variable]bool {
	out := make(map[*Variable]bool)
	switch p := orig.(type) {
	case *Atom:
		for _, t := range p.Terms {
			if v, ok := t.(*Variable); ok {
				out[v] = true
			}
		}
	case *Unification:
		if v, ok := p.Left.(*Variable); ok {
			out[v] = true
		}
		if v, ok := p.Right.(*Variable); ok {
			out[v] = true
		}
	}
	return out
}

// adornFromBound computes a body atom's call-site adornment given the
// variables already bound at this point in the left-to-right walk.
func adornFromBound(terms []Term, bound map[*Variable]bool) Adornment {
	adorn := make(Adornment, len(terms))
	for i, t := range terms {
		switch v := t.(type) {
		case *Constant:
			adorn[i] = true
		case *Variable:
			adorn[i] = bound[v]
		}
	}
	return adorn
}

// boundTerms projects terms down to the positions marked bound by adorn,
// in position order; used both for input-relation argument lists and for
// the magic seed fact.
func boundTerms(terms []Term, adorn Adornment) []Term {
	var out []Term
	for i, bnd := range adorn {
		if bnd {
			out = append(out, terms[i])
		}
	}
	return out
}
