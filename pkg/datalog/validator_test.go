package datalog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitrdm/godatalog/internal/dlread"
	"github.com/gitrdm/godatalog/pkg/datalog"
)

func parseClauses(t *testing.T, src string) []*datalog.Clause {
	t.Helper()
	syms := datalog.NewSymbolTable()
	doc, err := dlread.NewReader(syms).Read(src)
	require.NoError(t, err)
	return doc.Clauses
}

func TestStratifyRejectsNegativeCycle(t *testing.T) {
	clauses := parseClauses(t, `
p(X):-not q(X),edge(X,X).
q(X):-not p(X),edge(X,X).
edge(a,a).
`)
	_, err := datalog.Validate(clauses, datalog.DefaultValidatorConfig())
	require.Error(t, err)

	var verr *datalog.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, datalog.Unstratified, verr.Kind)
}

func TestStratifyAssignsIncreasingStrata(t *testing.T) {
	clauses := parseClauses(t, `
edge(a,b).
tc(X,Y):-edge(X,Y).
tc(X,Y):-edge(X,Z),tc(Z,Y).
excluded(X,Y):-edge(X,Y),not tc(Y,X).
`)
	prog, err := datalog.Validate(clauses, datalog.DefaultValidatorConfig())
	require.NoError(t, err)

	edgeSym := findPred(prog, "edge", 2)
	tcSym := findPred(prog, "tc", 2)
	excludedSym := findPred(prog, "excluded", 2)

	assert.Equal(t, 0, prog.Stratum[edgeSym])
	assert.Less(t, prog.Stratum[tcSym], prog.Stratum[excludedSym])
}

func findPred(prog *datalog.Program, name string, arity int) *datalog.PredicateSym {
	for p := range prog.EDB {
		if p.Name == name && p.Arity == arity {
			return p
		}
	}
	for p := range prog.IDB {
		if p.Name == name && p.Arity == arity {
			return p
		}
	}
	return nil
}

func TestValidateRejectsUnsafeHeadVariable(t *testing.T) {
	clauses := parseClauses(t, "p(X,Y):-q(X).\n")
	_, err := datalog.Validate(clauses, datalog.DefaultValidatorConfig())
	require.Error(t, err)

	var verr *datalog.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, datalog.UnsafeVariable, verr.Kind)
}

func TestValidateRejectsArityMismatch(t *testing.T) {
	clauses := parseClauses(t, "p(a,b). p(c).\n")
	_, err := datalog.Validate(clauses, datalog.DefaultValidatorConfig())
	require.Error(t, err)

	var verr *datalog.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, datalog.ArityMismatch, verr.Kind)
}

func TestValidateRejectsUselessUnification(t *testing.T) {
	clauses := parseClauses(t, "p(b):-X=_.\n")
	_, err := datalog.Validate(clauses, datalog.DefaultValidatorConfig())
	require.Error(t, err)

	var verr *datalog.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, datalog.UselessUnification, verr.Kind)
}

func TestValidateRejectsMangledPredicateInSource(t *testing.T) {
	syms := datalog.NewSymbolTable()
	mangled := syms.InternPredicate(datalog.MangledPrefix+"q", 1)
	x := syms.Fresh("X")
	clause := &datalog.Clause{Head: &datalog.Atom{Pred: mangled, Terms: []datalog.Term{x}}}

	_, err := datalog.Validate([]*datalog.Clause{clause}, datalog.DefaultValidatorConfig())
	require.Error(t, err)

	var verr *datalog.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, datalog.DisallowedFeature, verr.Kind)
}
