package minikanren

// hypotheticalFacet carries a single boolean flag marking a context as
// speculative (spec.md §4.11). Lookahead passes — FactsGoal's Notin
// expansion chief among them — construct a hypothetical context, probe it,
// and throw the result away; they must never trip a real-world side
// effect (logging a solution, incrementing a solver's visible metrics)
// along the way, so every Run* hook dispatcher consults this flag and
// skips callbacks registered as effectful.
var hypotheticalFacet = newFacet[string, bool](
	"hypothetical", false, func(k string) []byte { return keyOf(k) })

const hypotheticalKey = "active"

// Hypothetically returns a copy of ctx marked as speculative. The original
// source models this as an "Indirections" facet that rebinds run to a
// run_pure variant for the duration of a `with` block; Go has no
// block-scoped rebinding of free functions, so this engine folds the same
// behavior into a single flag every Run* dispatcher checks directly
// (documented in DESIGN.md as a deliberate, idiomatic substitution for
// that indirection mechanism).
func Hypothetically(ctx Context) Context {
	return hypotheticalFacet.Set(ctx, hypotheticalKey, true)
}

// IsHypothetical reports whether ctx is marked speculative.
func IsHypothetical(ctx Context) bool {
	return hypotheticalFacet.Get(ctx, hypotheticalKey)
}
