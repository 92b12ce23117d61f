package minikanren

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunEvent_NewestFirst(t *testing.T) {
	require := require.New(t)

	ctx := NewContext(Config{})
	var order []string
	ctx = HookEvent(ctx, CustomHookID("order"), func(c Context, data any) Context {
		order = append(order, "first")
		return c
	}, false)
	ctx = HookEvent(ctx, CustomHookID("order"), func(c Context, data any) Context {
		order = append(order, "second")
		return c
	}, false)

	RunEvent(ctx, CustomHookID("order"), nil)
	require.Equal([]string{"second", "first"}, order)
}

func TestRunPipeline_ThreadsDataThroughCallbacks(t *testing.T) {
	require := require.New(t)

	ctx := NewContext(Config{})
	ctx = HookPipeline(ctx, CustomHookID("sum"), func(c Context, data any) (Context, any) {
		return c, data.(int) + 1
	}, false)
	ctx = HookPipeline(ctx, CustomHookID("sum"), func(c Context, data any) (Context, any) {
		return c, data.(int) * 10
	}, false)

	_, result := RunPipeline(ctx, CustomHookID("sum"), 1)
	// newest-first: the *10 callback (registered last) runs before +1.
	require.Equal(11, result)
}

func TestShortCircuit_StopsRemainingCallbacks(t *testing.T) {
	require := require.New(t)

	ctx := NewContext(Config{})
	ran := false
	ctx = HookEvent(ctx, CustomHookID("sc"), func(c Context, data any) Context {
		ran = true
		return c
	}, false)
	ctx = HookEvent(ctx, CustomHookID("sc"), func(c Context, data any) Context {
		ShortCircuit(&c, nil)
		return c
	}, false)

	RunEvent(ctx, CustomHookID("sc"), nil)
	require.False(ran, "callback registered before the short-circuiting one must not run")
}

func TestRunPipeline_IncompatibleShortCircuitReplacementIsFatal(t *testing.T) {
	require := require.New(t)

	ctx := NewContext(Config{})
	ctx = HookPipeline(ctx, CustomHookID("bad"), func(c Context, data any) (Context, any) {
		ShortCircuit(nil, "not an int")
		return c, data
	}, false)

	require.Panics(func() {
		RunPipeline(ctx, CustomHookID("bad"), 1)
	})
}

func TestRunBroadcast_DeepestPrefixFirst(t *testing.T) {
	require := require.New(t)

	ctx := NewContext(Config{})
	var order []string
	ctx = HookBroadcast(ctx, "A", func(c Context, key BroadcastKey, data any) Context {
		order = append(order, "A")
		return c
	}, false)
	ctx = HookBroadcast(ctx, "A.B", func(c Context, key BroadcastKey, data any) Context {
		order = append(order, "A.B")
		return c
	}, false)

	RunBroadcast(ctx, BroadcastKey{"A", "B"}, nil)
	require.Equal([]string{"A.B", "A"}, order)
}

func TestRunEvent_SkipsEffectfulHooksUnderHypothetical(t *testing.T) {
	require := require.New(t)

	ctx := NewContext(Config{})
	ran := false
	ctx = HookEvent(ctx, CustomHookID("effect"), func(c Context, data any) Context {
		ran = true
		return c
	}, true)

	hyp := Hypothetically(ctx)
	RunEvent(hyp, CustomHookID("effect"), nil)
	require.False(ran)

	RunEvent(ctx, CustomHookID("effect"), nil)
	require.True(ran)
}
