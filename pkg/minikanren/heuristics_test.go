package minikanren

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInstallHeuristic_DoubleInstallIsNoop(t *testing.T) {
	require := require.New(t)

	ctx := NewContext(Config{})
	ctx = InstallHeuristic(ctx, HeurConjCardinality{})
	before := pipelineHooksFacet.Get(ctx, HookAndHeuristic).Slice()

	ctx = InstallHeuristic(ctx, HeurConjCardinality{})
	after := pipelineHooksFacet.Get(ctx, HookAndHeuristic).Slice()

	require.Len(before, 1)
	require.Len(after, 1)
}

func TestHeurConjCardinality_SortsAscendingBySize(t *testing.T) {
	require := require.New(t)

	big, err := FreshRel("big", [][]any{{1}, {2}, {3}, {4}})
	require.NoError(err)
	small, err := FreshRel("small", [][]any{{1}, {2}})
	require.NoError(err)

	ctx := NewContext(Config{})
	ctx, v := FreshNamed(ctx, "v", nil)
	h := HeurConjCardinality{}

	_, reordered := h.run(ctx, ConjPayload{Connective: "and", Goals: []Goal{big.Goal(v), small.Goal(v)}})
	gs := reordered.(ConjPayload).Goals
	require.Equal(small.Goal(v).(*factsGoal).table, gs[0].(*factsGoal).table)
}

// TestHeurConjCardinality_AddsZeroCardinalityConstraintOnEmptyJointProduct
// covers spec.md §4.9: when two CtxSized goals sharing a variable have a
// zero joint cardinality product, the heuristic must add a
// zeroCardinality constraint on that variable so the conjunction fails on
// its very first attempt to bind it.
func TestHeurConjCardinality_AddsZeroCardinalityConstraintOnEmptyJointProduct(t *testing.T) {
	require := require.New(t)

	narrow, err := FreshRel("narrow", [][]any{{1}, {2}})
	require.NoError(err)
	other, err := FreshRel("other", [][]any{{1}, {2}})
	require.NoError(err)

	ctx := NewContext(Config{})
	ctx, v := FreshNamed(ctx, "v", nil)
	// v is ground to a value neither relation contains, so narrow's
	// CtxSize collapses to zero and the joint product is zero too.
	ctx = Unify(ctx, v, 99)
	h := HeurConjCardinality{}

	_, reordered := h.run(ctx, ConjPayload{Connective: "and", Goals: []Goal{narrow.Goal(v), other.Goal(v)}})
	payload := reordered.(ConjPayload)
	require.Len(payload.Constraints, 1)
	zc, ok := payload.Constraints[0].Constraint.(zeroCardinality)
	require.True(ok)
	require.Equal(v, zc.Var)
	require.Equal([]*Variable{v}, payload.Constraints[0].Vars)
}

func TestHeurConjChainVars_KeepsEveryGoal(t *testing.T) {
	require := require.New(t)

	rel, err := FreshRel("edge", [][]any{{1, 2}, {2, 3}})
	require.NoError(err)
	unrelated, err := FreshRel("solo", [][]any{{9}})
	require.NoError(err)

	ctx := NewContext(Config{})
	ctx, a := FreshNamed(ctx, "a", nil)
	ctx, b := FreshNamed(ctx, "b", nil)
	ctx, c := FreshNamed(ctx, "c", nil)
	h := HeurConjChainVars{}

	goals := []Goal{unrelated.Goal(c), rel.Goal(a, b)}
	_, reordered := h.run(ctx, ConjPayload{Connective: "and", Goals: goals})
	gs := reordered.(ConjPayload).Goals
	require.Len(gs, 2)
}

func TestCardinalityProduct_UsedByChainHeuristicIndirectly(t *testing.T) {
	require := require.New(t)
	require.Equal(6, CardinalityProduct([]int{2, 3}, 1000))
}

func TestHeurFactsOrdRnd_PreservesElementSet(t *testing.T) {
	require := require.New(t)

	ctx := NewContext(Config{})
	ctx = InstallHeuristic(ctx, HeurFactsOrdRnd{})
	h := HeurFactsOrdRnd{}

	_, shuffled := h.run(ctx, []int{0, 1, 2, 3, 4})
	got := shuffled.([]int)
	require.ElementsMatch([]int{0, 1, 2, 3, 4}, got)
}
