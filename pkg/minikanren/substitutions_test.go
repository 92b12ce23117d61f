package minikanren

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWalk_FollowsChainToGroundTerm(t *testing.T) {
	require := require.New(t)

	ctx := NewContext(Config{})
	ctx, x := FreshNamed(ctx, "x", nil)
	ctx, y := FreshNamed(ctx, "y", nil)
	ctx, z := FreshNamed(ctx, "z", nil)

	ctx = Sub(ctx, x, y)
	ctx = Sub(ctx, y, z)
	ctx = Sub(ctx, z, 42)

	_, val := Walk(ctx, x)
	require.Equal(42, val)
}

func TestWalk_IsIdempotent(t *testing.T) {
	require := require.New(t)

	ctx := NewContext(Config{})
	ctx, x := FreshNamed(ctx, "x", nil)
	ctx = Sub(ctx, x, 7)

	ctx1, v1 := Walk(ctx, x)
	_, v2 := Walk(ctx1, x)
	require.Equal(v1, v2)
}

func TestWalk_CondensesLongChains(t *testing.T) {
	require := require.New(t)

	ctx := NewContext(Config{})
	ctx, a := FreshNamed(ctx, "a", nil)
	ctx, b := FreshNamed(ctx, "b", nil)
	ctx, c := FreshNamed(ctx, "c", nil)

	ctx = Sub(ctx, a, b)
	ctx = Sub(ctx, b, c)
	ctx = Sub(ctx, c, "done")

	ctx, val := Walk(ctx, a)
	require.Equal("done", val)

	// After condensation, a and b should point directly at the terminal
	// value rather than through each other.
	av, _ := lookupSub(ctx, a)
	require.Equal("done", av)
	bv, _ := lookupSub(ctx, b)
	require.Equal("done", bv)
}

func TestUnify_SelfUnificationIsNoop(t *testing.T) {
	require := require.New(t)

	ctx := NewContext(Config{})
	ctx = installMetrics(ctx)
	ctx, x := FreshNamed(ctx, "x", nil)
	ctx = Sub(ctx, x, "v")

	before := SubstitutionCount(ctx)
	ctx2 := Unify(ctx, x, x)
	require.False(IsFailed(ctx2))
	require.Equal(before, SubstitutionCount(ctx2))
}

func TestWalkReify_AppliesReifierOnlyWhenGround(t *testing.T) {
	require := require.New(t)

	double := func(v any) any { return v.(int) * 2 }
	ctx := NewContext(Config{})
	ctx, x := FreshNamed(ctx, "x", double)
	ctx, y := FreshNamed(ctx, "y", double)
	ctx = Sub(ctx, x, 21)

	_, vx := WalkReify(ctx, x)
	require.Equal(42, vx)

	_, vy := WalkReify(ctx, y)
	require.Equal(y, vy)
}
