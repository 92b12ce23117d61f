package minikanren

import "github.com/hashicorp/go-set/v3"

// Goal is the engine's unit of relational computation: given a context, it
// produces a Stream of extended contexts, one per solution (spec.md §4.7).
// Most Goals also implement one or more of the capability interfaces below;
// And/Or/the heuristics all type-switch on these rather than relying on
// duck-typing the way the source this engine is modeled on does (spec.md
// §9 design note).
type Goal interface {
	Run(ctx Context) Stream
}

// GoalFunc adapts a plain closure to Goal.
type GoalFunc func(ctx Context) Stream

func (f GoalFunc) Run(ctx Context) Stream { return f(ctx) }

// Vared is implemented by goals that can report every free logic variable
// they mention, used by the conjunction heuristics to compute entanglement
// (spec.md §6).
type Vared interface {
	Vars() *set.Set[*Variable]
}

// CtxSized is implemented by goals that can report a contextual upper
// bound on their own solution count without running — fact-table goals
// derive this from filtered row counts, other goals may decline by
// returning a negative bound (spec.md §6).
type CtxSized interface {
	CtxSize(ctx Context) int
}

// Named is implemented by goals carrying a human-readable label, surfaced
// in debug broadcasts and heuristics diagnostics.
type Named interface {
	GoalName() string
}

// Progressable is implemented by goals that can report a fractional
// completion estimate mid-stream, for long-running fact-table scans.
type Progressable interface {
	Progress() float64
}

// ValueDistribution reports, for a single variable, how many rows of a
// goal's current candidate set take each value — the raw signal the
// entanglement and cardinality heuristics rank subgoals by.
type ValueDistribution map[any]int

// GoalCtxSizedVared composes Vared and CtxSized with per-variable value
// distributions (spec.md §6's "GoalCtxSizedVared" composite capability) —
// only FactsGoal and goals built from it implement this in practice.
type GoalCtxSizedVared interface {
	Vared
	CtxSized
	Distribution(ctx Context, v *Variable) ValueDistribution
}

// Succeed is the Goal that always yields ctx unchanged, exactly once.
var Succeed Goal = GoalFunc(func(ctx Context) Stream { return singleStream(ctx) })

// Fail is the Goal that never yields a solution.
var Fail Goal = GoalFunc(func(ctx Context) Stream { return emptyStream })

// Eq is the Goal form of Unify: it succeeds at most once, with a's and b's
// unified bindings folded into ctx (spec.md §4.5, §4.7).
func Eq(a, b any) Goal {
	return GoalFunc(func(ctx Context) Stream {
		ctx2 := Unify(ctx, a, b)
		if IsFailed(ctx2) {
			return emptyStream
		}
		return singleStream(ctx2)
	})
}

// varsOf collects the non-wildcard *Variable values among terms into a set
// (HeurConjChainVars calls it with no terms to start an empty set). Eq's
// goal does not implement Vared and does not use it.
func varsOf(terms ...any) *set.Set[*Variable] {
	out := set.New[*Variable](len(terms))
	for _, t := range terms {
		if v, ok := t.(*Variable); ok && !IsWildcard(v) {
			out.Insert(v)
		}
	}
	return out
}
