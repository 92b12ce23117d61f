package minikanren

// metricsFacet holds simple named counters a Solver accumulates as it
// searches (spec.md §6, SPEC_FULL.md AMBIENT STACK). It is deliberately
// just an int-valued facet rather than a dedicated type: every counter
// this engine needs so far is a monotonically increasing count, and a new
// one is a new key, not a new facet.
var metricsFacet = newFacet[string, int](
	"metrics", 0, func(k string) []byte { return keyOf(k) })

const metricSubstitutions = "substitutions"

// installMetrics registers the substitution-step counter every Solver
// wires in by default: one increment per HookSub pipeline run, giving a
// caller a cheap proxy for how much search a query actually did.
func installMetrics(ctx Context) Context {
	return HookPipeline(ctx, HookSub, countSubstitution, false)
}

func countSubstitution(ctx Context, data any) (Context, any) {
	ctx = metricsFacet.Set(ctx, metricSubstitutions, metricsFacet.Get(ctx, metricSubstitutions)+1)
	return ctx, data
}

// SubstitutionCount returns how many bindings have been recorded in ctx's
// lineage so far.
func SubstitutionCount(ctx Context) int {
	return metricsFacet.Get(ctx, metricSubstitutions)
}
