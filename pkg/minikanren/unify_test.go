package minikanren

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnify_GroundValues(t *testing.T) {
	require := require.New(t)

	ctx := NewContext(Config{})
	ctx2 := Unify(ctx, 1, 1)
	require.False(IsFailed(ctx2))

	ctx3 := Unify(ctx, 1, 2)
	require.True(IsFailed(ctx3))
}

func TestUnify_WildcardMatchesAnything(t *testing.T) {
	require := require.New(t)

	ctx := NewContext(Config{})
	ctx2 := Unify(ctx, Wildcard, 42)
	require.False(IsFailed(ctx2))
}

func TestUnify_BindsVariable(t *testing.T) {
	require := require.New(t)

	ctx := NewContext(Config{})
	ctx, x := FreshNamed(ctx, "x", nil)
	ctx = Unify(ctx, x, "hello")
	require.False(IsFailed(ctx))

	_, val := Walk(ctx, x)
	require.Equal("hello", val)
}

func TestUnify_TransitivityThroughChain(t *testing.T) {
	require := require.New(t)

	ctx := NewContext(Config{})
	ctx, x := FreshNamed(ctx, "x", nil)
	ctx, y := FreshNamed(ctx, "y", nil)

	ctx = Unify(ctx, x, y)
	ctx = Unify(ctx, y, 99)
	require.False(IsFailed(ctx))

	_, val := Walk(ctx, x)
	require.Equal(99, val)
}

func TestUnify_IterablesElementwise(t *testing.T) {
	require := require.New(t)

	ctx := NewContext(Config{})
	ctx = installIterablesUnification(ctx)
	ctx, x := FreshNamed(ctx, "x", nil)

	ctx = Unify(ctx, []any{1, x, 3}, []any{1, 2, 3})
	require.False(IsFailed(ctx))

	_, val := Walk(ctx, x)
	require.Equal(2, val)
}

// TestUnify_IterablesEllipsisTail covers spec.md §8 scenario 5:
// unify([1,2,3], [1, v, ...]) must bind v=2 and succeed — the trailing
// Ellipsis absorbs whatever elements of the other operand remain past the
// matched prefix, without binding anything to them.
func TestUnify_IterablesEllipsisTail(t *testing.T) {
	require := require.New(t)

	ctx := NewContext(Config{})
	ctx = installIterablesUnification(ctx)
	ctx, v := FreshNamed(ctx, "v", nil)

	ctx = Unify(ctx, []any{1, 2, 3}, []any{1, v, Ellipsis})
	require.False(IsFailed(ctx))

	_, val := Walk(ctx, v)
	require.Equal(2, val)
}

// TestUnify_IterablesEllipsisMatchesEmptyRemainder covers the degenerate
// case where the trailing Ellipsis absorbs zero elements.
func TestUnify_IterablesEllipsisMatchesEmptyRemainder(t *testing.T) {
	require := require.New(t)

	ctx := NewContext(Config{})
	ctx = installIterablesUnification(ctx)
	ctx, v := FreshNamed(ctx, "v", nil)

	ctx = Unify(ctx, []any{1, 2}, []any{1, v, Ellipsis})
	require.False(IsFailed(ctx))

	_, val := Walk(ctx, v)
	require.Equal(2, val)
}

// TestUnify_ElementAfterEllipsisIsFatal covers the unsupported shape
// original_source/.../Unification.py explicitly rejects: anything following
// the trailing Ellipsis marker.
func TestUnify_ElementAfterEllipsisIsFatal(t *testing.T) {
	require := require.New(t)

	ctx := NewContext(Config{})
	ctx = installIterablesUnification(ctx)
	ctx, v := FreshNamed(ctx, "v", nil)

	require.Panics(func() {
		Unify(ctx, []any{1, 2, 3, 4}, []any{1, Ellipsis, v})
	})
}

func TestUnify_IterablesLengthMismatchFails(t *testing.T) {
	require := require.New(t)

	ctx := NewContext(Config{})
	ctx = installIterablesUnification(ctx)
	ctx2 := Unify(ctx, []any{1, 2}, []any{1, 2, 3})
	require.True(IsFailed(ctx2))
}
