package minikanren

import (
	"bytes"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
)

func TestNewContext_EmptyIsNotFailed(t *testing.T) {
	require := require.New(t)

	ctx := NewContext(Config{})
	require.False(IsFailed(ctx))
	require.True(IsFailed(Failed))
}

func TestFacetOps_SetGetRoundtrip(t *testing.T) {
	require := require.New(t)

	f := newFacet[string, int]("test.counter", 0, func(k string) []byte { return []byte(k) })
	ctx := NewContext(Config{})

	require.Equal(0, f.Get(ctx, "a"))

	ctx = f.Set(ctx, "a", 1)
	require.Equal(1, f.Get(ctx, "a"))
	require.Equal(0, f.Get(ctx, "b"))

	ctx = f.Update(ctx, map[string]int{"b": 2, "c": 3})
	require.Equal(1, f.Get(ctx, "a"))
	require.Equal(2, f.Get(ctx, "b"))
	require.Equal(3, f.Get(ctx, "c"))

	ctx = f.Delete(ctx, "a")
	require.Equal(0, f.Get(ctx, "a"))
}

func TestFacetOps_SetReturnsNewContextSharingParent(t *testing.T) {
	require := require.New(t)

	f := newFacet[string, int]("test.counter", 0, func(k string) []byte { return []byte(k) })
	ctx0 := NewContext(Config{})
	ctx1 := f.Set(ctx0, "a", 1)

	// ctx0 must be untouched: Context is immutable (spec.md §3).
	require.Equal(0, f.Get(ctx0, "a"))
	require.Equal(1, f.Get(ctx1, "a"))
}

func TestFacetOps_KeysListsStringFacetContentsSorted(t *testing.T) {
	require := require.New(t)

	f := newStringFacet[bool]("test.installed", false)
	ctx := NewContext(Config{})
	ctx = f.Set(ctx, "zeta", true)
	ctx = f.Set(ctx, "alpha", true)

	require.Equal([]string{"alpha", "zeta"}, f.Keys(ctx))
}

func TestFacetOps_KeysIsNilForNonStringFacets(t *testing.T) {
	require := require.New(t)

	f := newFacet[int, bool]("test.by_int", false, func(k int) []byte { return keyOf(k) })
	ctx := f.Set(NewContext(Config{}), 1, true)

	require.Nil(f.Keys(ctx))
}

func TestInstalledHeuristics_ListsInstalledNamesSorted(t *testing.T) {
	require := require.New(t)

	ctx := NewContext(Config{})
	ctx = InstallHeuristic(ctx, HeurFactsOrdRnd{})
	ctx = InstallHeuristic(ctx, HeurConjCardinality{})

	require.Equal([]string{"conj.cardinality", "facts.rnd_order"}, InstalledHeuristics(ctx))
}

func TestDebugMode_FiresFacetBroadcast(t *testing.T) {
	require := require.New(t)

	f := newFacet[string, int]("test.counter", 0, func(k string) []byte { return []byte(k) })
	ctx := NewContext(Config{Debug: true})

	var seenOps []string
	ctx = HookBroadcast(ctx, "Facet", func(c Context, key BroadcastKey, data any) Context {
		seenOps = append(seenOps, key[len(key)-1])
		return c
	}, false)

	ctx = f.Set(ctx, "a", 1)
	require.Contains(seenOps, "set")
}

func TestConfig_LoggerReceivesTraceDiagnostics(t *testing.T) {
	require := require.New(t)

	var buf bytes.Buffer
	logger := hclog.New(&hclog.LoggerOptions{Level: hclog.Trace, Output: &buf})

	s := NewSolver(Config{Logger: logger})
	xs := s.Fresh(nil, 1, 0)
	s.Query(Eq(xs[0], "answer"), xs[0])
	_, ok := s.Next()
	require.True(ok)

	out := buf.String()
	require.Contains(out, "solver: query")
	require.Contains(out, "unify: sub")
}
