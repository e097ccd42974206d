package datalog

import "sync"

// Index is the Fact Indexer: concurrent storage of ground atoms, keyed by
// predicate, with lookup by pattern (an atom whose variables act as
// wildcards and whose constants act as filters).
//
// Internally it shards by predicate, and within a predicate keeps both
// the full set of ground atoms and a handful of secondary maps keyed by
// single bound-argument positions, mirroring the original
// ConcurrentFactIndexer's per-predicate sub-indices. A position is
// indexed lazily, the first time a pattern binds it; until then
// indexInto falls back to a full scan of the predicate's atom set.
type Index struct {
	mu    sync.RWMutex
	preds map[*PredicateSym]*predIndex
}

type predIndex struct {
	mu sync.RWMutex
	// all holds every distinct ground atom for this predicate, keyed by
	// its fingerprint string so Add can detect duplicates in O(1).
	all map[string]*Atom
	// byArg[i] maps a bound constant at position i to the set of atoms
	// agreeing with it there. Built lazily per position.
	byArg map[int]map[*Constant][]*Atom
}

// NewIndex returns an empty Fact Indexer.
func NewIndex() *Index {
	return &Index{preds: make(map[*PredicateSym]*predIndex)}
}

func fingerprintKey(fp []*Constant) string {
	// Constant ids are unique per SymbolTable, so formatting the ids as a
	// string is a valid, cheap fingerprint key.
	buf := make([]byte, 0, len(fp)*9)
	for _, c := range fp {
		buf = appendUintptrHex(buf, c)
		buf = append(buf, '|')
	}
	return string(buf)
}

func appendUintptrHex(buf []byte, c *Constant) []byte {
	// c.id is unique per symbol table and far smaller than a pointer;
	// use it directly rather than reflect/unsafe tricks.
	return appendInt64(buf, c.id)
}

func appendInt64(buf []byte, v int64) []byte {
	if v == 0 {
		return append(buf, '0')
	}
	var tmp [20]byte
	n := len(tmp)
	neg := v < 0
	if neg {
		v = -v
	}
	for v > 0 {
		n--
		tmp[n] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		n--
		tmp[n] = '-'
	}
	return append(buf, tmp[n:]...)
}

func (idx *Index) predIndexFor(pred *PredicateSym) *predIndex {
	idx.mu.RLock()
	pi, ok := idx.preds[pred]
	idx.mu.RUnlock()
	if ok {
		return pi
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if pi, ok = idx.preds[pred]; ok {
		return pi
	}
	pi = &predIndex{
		all:   make(map[string]*Atom),
		byArg: make(map[int]map[*Constant][]*Atom),
	}
	idx.preds[pred] = pi
	return pi
}

// Add inserts a ground fact idempotently. It returns whether the set
// changed, i.e. whether fact was previously absent.
func (idx *Index) Add(fact *Atom) bool {
	pi := idx.predIndexFor(fact.Pred)
	key := fingerprintKey(fact.Fingerprint())

	pi.mu.Lock()
	defer pi.mu.Unlock()
	if _, ok := pi.all[key]; ok {
		return false
	}
	pi.all[key] = fact
	for i, byVal := range pi.byArg {
		c := fact.Terms[i].(*Constant)
		byVal[c] = append(byVal[c], fact)
	}
	return true
}

// All returns every ground fact currently stored for pred, in unspecified
// order. Used as a fallback scan and by the saturator's strata wiring.
func (idx *Index) All(pred *PredicateSym) []*Atom {
	idx.mu.RLock()
	pi, ok := idx.preds[pred]
	idx.mu.RUnlock()
	if !ok {
		return nil
	}
	pi.mu.RLock()
	defer pi.mu.RUnlock()
	out := make([]*Atom, 0, len(pi.all))
	for _, a := range pi.all {
		out = append(out, a)
	}
	return out
}

// IndexInto returns every ground atom matching pattern under substitution
// s: positions holding a Constant, or a Variable already bound in s, are
// treated as filters; free variables are wildcards.
func (idx *Index) IndexInto(pattern *Atom, s Substitution) []*Atom {
	idx.mu.RLock()
	pi, ok := idx.preds[pattern.Pred]
	idx.mu.RUnlock()
	if !ok {
		return nil
	}

	boundPos := -1
	var boundConst *Constant
	for i, t := range pattern.Terms {
		w := s.Walk(t)
		if c, ok := w.(*Constant); ok {
			boundPos = i
			boundConst = c
			break
		}
	}

	var candidates []*Atom
	if boundPos >= 0 {
		candidates = idx.candidatesByArg(pi, boundPos, boundConst)
	} else {
		pi.mu.RLock()
		candidates = make([]*Atom, 0, len(pi.all))
		for _, a := range pi.all {
			candidates = append(candidates, a)
		}
		pi.mu.RUnlock()
	}

	out := make([]*Atom, 0, len(candidates))
	for _, a := range candidates {
		if matchesPattern(pattern, a, s) {
			out = append(out, a)
		}
	}
	return out
}

// candidatesByArg returns every fact agreeing with value at position pos,
// building the secondary index for that position on first use.
func (idx *Index) candidatesByArg(pi *predIndex, pos int, value *Constant) []*Atom {
	pi.mu.RLock()
	byVal, ok := pi.byArg[pos]
	pi.mu.RUnlock()
	if ok {
		byVal2 := byVal
		pi.mu.RLock()
		out := append([]*Atom(nil), byVal2[value]...)
		pi.mu.RUnlock()
		return out
	}

	pi.mu.Lock()
	if byVal, ok = pi.byArg[pos]; !ok {
		byVal = make(map[*Constant][]*Atom)
		for _, a := range pi.all {
			c := a.Terms[pos].(*Constant)
			byVal[c] = append(byVal[c], a)
		}
		pi.byArg[pos] = byVal
	}
	out := append([]*Atom(nil), byVal[value]...)
	pi.mu.Unlock()
	return out
}

// matchesPattern reports whether ground atom a satisfies pattern under s:
// every pattern term, walked through s, must equal the corresponding
// constant in a.
func matchesPattern(pattern, a *Atom, s Substitution) bool {
	for i, t := range pattern.Terms {
		w := s.Walk(t)
		switch wt := w.(type) {
		case *Constant:
			if wt != a.Terms[i].(*Constant) {
				return false
			}
		case *Variable:
			// free at the pattern level: always matches.
		}
	}
	return true
}
