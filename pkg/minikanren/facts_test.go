package minikanren

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func parentRows() [][]any {
	return [][]any{
		{"abe", "bart"},
		{"abe", "lisa"},
		{"homer", "bart"},
		{"homer", "lisa"},
		{"marge", "bart"},
	}
}

func TestFreshRel_RejectsEmptyRows(t *testing.T) {
	require := require.New(t)

	_, err := FreshRel("parent", nil)
	require.Error(err)
}

func TestNewFactTable_RejectsArityMismatch(t *testing.T) {
	require := require.New(t)

	_, err := NewFactTable("parent", 2, [][]any{{"a", "b"}, {"c"}})
	require.Error(err)
}

// TestNewFactTable_ArityMismatchIsAFatalError covers spec.md §7 item 5:
// an arity mismatch is a goal-construction error, surfaced as *FatalError
// so a caller can tell it apart from an ordinary Go error and from a
// Failed context.
func TestNewFactTable_ArityMismatchIsAFatalError(t *testing.T) {
	require := require.New(t)

	_, err := NewFactTable("parent", 2, [][]any{{"a", "b"}, {"c"}})
	var fe *FatalError
	require.ErrorAs(err, &fe)
	require.ErrorContains(fe, "row 1 has arity 1, want 2")
}

func TestFactsGoal_FiltersToExactValueSet(t *testing.T) {
	require := require.New(t)

	rel, err := FreshRel("parent", parentRows())
	require.NoError(err)

	ctx := NewContext(Config{})
	ctx = InstallConstraints(ctx)
	ctx, child := FreshNamed(ctx, "child", nil)

	stream := rel.Goal("homer", child).Run(ctx)
	got := map[any]bool{}
	for {
		c, ok := stream.Next()
		if !ok {
			break
		}
		_, v := WalkReify(c, child)
		got[v] = true
	}
	require.Equal(map[any]bool{"bart": true, "lisa": true}, got)
}

func TestFactsGoal_GroundBothColumnsExactMatch(t *testing.T) {
	require := require.New(t)

	rel, err := FreshRel("parent", parentRows())
	require.NoError(err)

	ctx := NewContext(Config{})
	ctx = InstallConstraints(ctx)

	stream := rel.Goal("marge", "bart").Run(ctx)
	_, ok := stream.Next()
	require.True(ok)
	_, ok = stream.Next()
	require.False(ok)
}

func TestFactsGoal_UnknownGroundValueFails(t *testing.T) {
	require := require.New(t)

	rel, err := FreshRel("parent", parentRows())
	require.NoError(err)

	ctx := NewContext(Config{})
	ctx = InstallConstraints(ctx)

	stream := rel.Goal("nobody", "bart").Run(ctx)
	_, ok := stream.Next()
	require.False(ok)
}

func TestFactsGoal_RespectsNotinOnFreeColumn(t *testing.T) {
	require := require.New(t)

	rel, err := FreshRel("parent", parentRows())
	require.NoError(err)

	ctx := NewContext(Config{})
	ctx = InstallConstraints(ctx)
	ctx, par := FreshNamed(ctx, "par", nil)
	ctx = MakeNotin(ctx, []any{"abe", "marge"}, par)

	stream := rel.Goal(par, "bart").Run(ctx)
	got := map[any]bool{}
	for {
		c, ok := stream.Next()
		if !ok {
			break
		}
		_, v := WalkReify(c, par)
		got[v] = true
	}
	require.Equal(map[any]bool{"homer": true}, got)
}

func TestFactsGoal_LeadingGroundPrefixUsesRadixIndex(t *testing.T) {
	require := require.New(t)

	rel, err := FreshRel("parent", parentRows())
	require.NoError(err)

	table := rel.table
	var rows []int
	table.index.Root().WalkPrefix(rowKey([]uint32{table.valueToCode["homer"]}), func(_ []byte, rs []int) bool {
		rows = append(rows, rs...)
		return false
	})
	require.Len(rows, 2, "both of homer's rows should share the one-column prefix key")

	ctx := NewContext(Config{})
	ctx = InstallConstraints(ctx)
	ctx, child := FreshNamed(ctx, "child", nil)

	stream := rel.Goal("homer", child).Run(ctx)
	var got []any
	for {
		c, ok := stream.Next()
		if !ok {
			break
		}
		_, v := WalkReify(c, child)
		got = append(got, v)
	}
	require.ElementsMatch([]any{"bart", "lisa"}, got)
}

func TestFactsGoal_CtxSizeMatchesActualSolutions(t *testing.T) {
	require := require.New(t)

	rel, err := FreshRel("parent", parentRows())
	require.NoError(err)

	ctx := NewContext(Config{})
	ctx = InstallConstraints(ctx)
	ctx, child := FreshNamed(ctx, "child", nil)

	g := rel.Goal("homer", child).(*factsGoal)
	require.Equal(2, g.CtxSize(ctx))
}

func TestFactsGoal_DistributionReportsPerValueCounts(t *testing.T) {
	require := require.New(t)

	rel, err := FreshRel("parent", parentRows())
	require.NoError(err)

	ctx := NewContext(Config{})
	ctx, par := FreshNamed(ctx, "par", nil)
	ctx, child := FreshNamed(ctx, "child", nil)

	g := rel.Goal(par, child).(*factsGoal)
	dist := g.Distribution(ctx, child)
	want := ValueDistribution{"bart": 3, "lisa": 2}
	if diff := cmp.Diff(want, dist); diff != "" {
		t.Errorf("child distribution mismatch (-want +got):\n%s", diff)
	}
}
