package datalog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitrdm/godatalog/pkg/datalog"
)

func TestIndexAddIsIdempotent(t *testing.T) {
	syms := datalog.NewSymbolTable()
	pred := syms.InternPredicate("edge", 2)
	a, b := syms.Intern("a"), syms.Intern("b")
	fact := &datalog.Atom{Pred: pred, Terms: []datalog.Term{a, b}}

	idx := datalog.NewIndex()
	assert.True(t, idx.Add(fact))
	assert.False(t, idx.Add(fact))
	assert.Len(t, idx.All(pred), 1)
}

func TestIndexIntoFiltersByBoundPosition(t *testing.T) {
	syms := datalog.NewSymbolTable()
	pred := syms.InternPredicate("edge", 2)
	a, b, c := syms.Intern("a"), syms.Intern("b"), syms.Intern("c")

	idx := datalog.NewIndex()
	require.True(t, idx.Add(&datalog.Atom{Pred: pred, Terms: []datalog.Term{a, b}}))
	require.True(t, idx.Add(&datalog.Atom{Pred: pred, Terms: []datalog.Term{a, c}}))
	require.True(t, idx.Add(&datalog.Atom{Pred: pred, Terms: []datalog.Term{b, c}}))

	x := syms.Fresh("X")
	pattern := &datalog.Atom{Pred: pred, Terms: []datalog.Term{a, x}}
	got := idx.IndexInto(pattern, datalog.NewSubstitution())
	assert.Len(t, got, 2)
}

func TestIndexIntoRespectsSubstitutionBoundVariable(t *testing.T) {
	syms := datalog.NewSymbolTable()
	pred := syms.InternPredicate("edge", 2)
	a, b := syms.Intern("a"), syms.Intern("b")

	idx := datalog.NewIndex()
	require.True(t, idx.Add(&datalog.Atom{Pred: pred, Terms: []datalog.Term{a, b}}))

	x := syms.Fresh("X")
	sub, ok := datalog.Unify(x, b, datalog.NewSubstitution())
	require.True(t, ok)

	pattern := &datalog.Atom{Pred: pred, Terms: []datalog.Term{a, x}}
	got := idx.IndexInto(pattern, sub)
	require.Len(t, got, 1)
	assert.Equal(t, "edge(a,b)", got[0].String())
}
