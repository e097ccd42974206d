package datalog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitrdm/godatalog/internal/dlread"
	"github.com/gitrdm/godatalog/pkg/datalog"
)

func TestAnnotateProducesOneClausePerIDBPositive(t *testing.T) {
	clauses := parseClauses(t, `
edge(a,b).
tc(X,Y):-edge(X,Y).
tc(X,Y):-edge(X,Z),tc(Z,Y).
`)
	prog, err := datalog.Validate(clauses, datalog.DefaultValidatorConfig())
	require.NoError(t, err)

	annotated := datalog.Annotate(prog)

	var sawEdgeDelta, sawTcDelta int
	for _, ac := range annotated {
		if ac.Head.Pred.Name != "tc" {
			continue
		}
		if ac.DeltaIndex < 0 {
			continue
		}
		switch ac.DeltaPred().Name {
		case "edge":
			sawEdgeDelta++
		case "tc":
			sawTcDelta++
		}
	}
	// edge is EDB: annotate never marks an EDB atom delta, so the first
	// rule (tc(X,Y):-edge(X,Y)) produces no delta-bearing annotated
	// clause for it at all.
	assert.Equal(t, 0, sawEdgeDelta)
	assert.Equal(t, 1, sawTcDelta)
}

func TestAnnotateDefersNegationUntilBound(t *testing.T) {
	clauses := parseClauses(t, `
edge(a,b).
tc(X,Y):-edge(X,Y).
tc(X,Y):-edge(X,Z),tc(Z,Y).
excluded(X,Y):-edge(X,Y),not tc(Y,X).
`)
	prog, err := datalog.Validate(clauses, datalog.DefaultValidatorConfig())
	require.NoError(t, err)

	annotated := datalog.Annotate(prog)
	for _, ac := range annotated {
		if ac.Head.Pred.Name != "excluded" {
			continue
		}
		require.Len(t, ac.Body, 2)
		_, isAtom := ac.Body[0].Premise.(*datalog.Atom)
		assert.True(t, isAtom, "positive atom must come before the negation it binds")
		_, isNeg := ac.Body[1].Premise.(*datalog.NegatedAtom)
		assert.True(t, isNeg)
	}
}

func TestAnnotateOneShotClauseHasNoDelta(t *testing.T) {
	clauses := parseClauses(t, "p:-a=b.\n")
	prog, err := datalog.Validate(clauses, datalog.DefaultValidatorConfig())
	require.NoError(t, err)

	annotated := datalog.Annotate(prog)
	require.Len(t, annotated, 1)
	assert.Equal(t, -1, annotated[0].DeltaIndex)
}

func TestAnnotateReaderRoundTripsAtomOrdering(t *testing.T) {
	syms := datalog.NewSymbolTable()
	doc, err := dlread.NewReader(syms).Read("p(X):-q(X,Y),r(Y).\n")
	require.NoError(t, err)
	require.Len(t, doc.Clauses, 1)
	assert.Equal(t, "p(X) :- q(X,Y), r(Y).", doc.Clauses[0].String())
}
