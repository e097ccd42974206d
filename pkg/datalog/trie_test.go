package datalog_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gitrdm/godatalog/pkg/datalog"
)

func TestRedundancyTrieAddIsOneShot(t *testing.T) {
	syms := datalog.NewSymbolTable()
	a, b := syms.Intern("a"), syms.Intern("b")
	fp := []*datalog.Constant{a, b}
	pred := syms.InternPredicate("edge", 2)

	trie := datalog.NewRedundancyTrie()
	assert.True(t, trie.Add(pred, fp))
	assert.False(t, trie.Add(pred, fp))
	assert.False(t, trie.Add(pred, []*datalog.Constant{a, b}))
}

// Two different predicates sharing the same argument tuple must not alias
// to the same derivation.
func TestRedundancyTrieDiscriminatesByPredicate(t *testing.T) {
	syms := datalog.NewSymbolTable()
	a, b := syms.Intern("a"), syms.Intern("b")
	fp := []*datalog.Constant{a, b}
	edge := syms.InternPredicate("edge", 2)
	tc := syms.InternPredicate("tc", 2)

	trie := datalog.NewRedundancyTrie()
	assert.True(t, trie.Add(edge, fp))
	assert.True(t, trie.Add(tc, fp))
}

func TestRedundancyTrieConcurrentAddHasExactlyOneWinner(t *testing.T) {
	syms := datalog.NewSymbolTable()
	c := syms.Intern("c")
	fp := []*datalog.Constant{c}
	pred := syms.InternPredicate("p", 1)

	trie := datalog.NewRedundancyTrie()
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0

	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if trie.Add(pred, fp) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}
