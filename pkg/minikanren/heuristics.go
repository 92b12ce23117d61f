package minikanren

import (
	"fmt"
	"math/rand/v2"
	"sort"
)

// ConjHeuristic is a search-order optimization a caller opts into by
// calling InstallHeuristic (spec.md §6). Every concrete heuristic hangs
// off either HookAndHeuristic (to reorder a conjunction's goals before it
// runs) or HookFacts (to reorder a single relation's row traversal).
type ConjHeuristic interface {
	Name() string
	Install(ctx Context) Context
}

var installationsFacet = newStringFacet[bool]("heuristics.installed", false)

// InstalledHeuristics returns the names of every heuristic installed in
// ctx's lineage, sorted for deterministic debug output.
func InstalledHeuristics(ctx Context) []string {
	return installationsFacet.Keys(ctx)
}

// InstallHeuristic installs h exactly once per context lineage: a second
// call with a heuristic of the same Name is a no-op, so callers can
// install defensively without risking a doubled pipeline callback
// (spec.md §4.9 "double install is a no-op").
func InstallHeuristic(ctx Context, h ConjHeuristic) Context {
	if installationsFacet.Get(ctx, h.Name()) {
		return ctx
	}
	ctx = installationsFacet.Set(ctx, h.Name(), true)
	return h.Install(ctx)
}

func sizeOf(ctx Context, g Goal) int {
	cs, ok := g.(CtxSized)
	if !ok {
		return 1 << 30
	}
	n := cs.CtxSize(ctx)
	if n < 0 {
		return 1 << 30
	}
	return n
}

// zeroCardinality is the constraint HeurConjCardinality installs on a
// variable once it has proven, ahead of running anything, that the
// product of the contextual sizes of the CtxSized goals sharing that
// variable is zero: no combination of their rows could ever agree on a
// value for it. It fails every future binding of that variable outright,
// so the conjunction fails fast on its very first attempt to bind the
// variable instead of letting each of those goals run its own doomed
// scan (spec.md §4.9 "HeurConjCardinality").
type zeroCardinality struct{ Var *Variable }

func (z zeroCardinality) String() string { return fmt.Sprintf("ZeroCardinality(%v)", z.Var) }

func (z zeroCardinality) Check(ctx Context, v *Variable, val any) bool { return false }

// HeurConjCardinality reorders a conjunction's goals ascending by their
// contextual solution-count upper bound (spec.md §6): a goal with a small,
// already-narrow candidate set runs first, so goals sharing one of its
// variables inherit a tighter context before they run at all. Goals that
// don't implement CtxSized sort last, in their original relative order.
// It also adds, per shared variable, a cardinality-product constraint
// over the CtxSized goals mentioning it (spec.md §4.9): when that
// product is zero, the connective cannot possibly have a solution and
// zeroCardinality makes it fail on the first bind instead of after a
// full scan of each contributing goal.
type HeurConjCardinality struct{}

func (HeurConjCardinality) Name() string { return "conj.cardinality" }

func (h HeurConjCardinality) Install(ctx Context) Context {
	return HookPipeline(ctx, HookAndHeuristic, h.run, false)
}

func (HeurConjCardinality) run(ctx Context, data any) (Context, any) {
	payload, ok := data.(ConjPayload)
	if !ok {
		return ctx, data
	}
	ordered := append([]Goal(nil), payload.Goals...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return sizeOf(ctx, ordered[i]) < sizeOf(ctx, ordered[j])
	})

	byVar := map[*Variable][]int{}
	for _, g := range ordered {
		vg, vok := g.(Vared)
		cg, cok := g.(CtxSized)
		if !vok || !cok {
			continue
		}
		n := cg.CtxSize(ctx)
		for _, v := range vg.Vars().Slice() {
			byVar[v] = append(byVar[v], n)
		}
	}
	extra := append([]ConjConstraint(nil), payload.Constraints...)
	for v, sizes := range byVar {
		if len(sizes) < 2 {
			continue
		}
		if CardinalityProduct(sizes, 1<<30) == 0 {
			extra = append(extra, ConjConstraint{Constraint: zeroCardinality{Var: v}, Vars: []*Variable{v}})
		}
	}

	ctx.Logger().Named("heuristics").Trace("conj.cardinality reorder", "goals", len(ordered))
	return ctx, ConjPayload{Connective: payload.Connective, Constraints: extra, Goals: ordered}
}

// HeurConjChainVars reorders a conjunction by entanglement (spec.md §6):
// starting from the smallest goal, it repeatedly picks whichever remaining
// goal shares the most variables with everything already placed, breaking
// ties by contextual size. The effect is a chain where each goal's free
// variables are as likely as possible to already be partly ground by the
// time it runs.
type HeurConjChainVars struct{}

func (HeurConjChainVars) Name() string { return "conj.chain_vars" }

func (h HeurConjChainVars) Install(ctx Context) Context {
	return HookPipeline(ctx, HookAndHeuristic, h.run, false)
}

func (HeurConjChainVars) run(ctx Context, data any) (Context, any) {
	payload, ok := data.(ConjPayload)
	if !ok || len(payload.Goals) < 2 {
		return ctx, data
	}
	remaining := append([]Goal(nil), payload.Goals...)

	seedIdx := 0
	for i := 1; i < len(remaining); i++ {
		if sizeOf(ctx, remaining[i]) < sizeOf(ctx, remaining[seedIdx]) {
			seedIdx = i
		}
	}
	ordered := make([]Goal, 0, len(payload.Goals))
	placed := varsOf()
	placeGoal := func(g Goal) {
		ordered = append(ordered, g)
		if v, ok := g.(Vared); ok {
			for _, vv := range v.Vars().Slice() {
				placed.Insert(vv)
			}
		}
	}
	placeGoal(remaining[seedIdx])
	remaining = append(remaining[:seedIdx], remaining[seedIdx+1:]...)

	for len(remaining) > 0 {
		bestIdx, bestScore, bestSize := 0, -1, 0
		for i, g := range remaining {
			score := 0
			if v, ok := g.(Vared); ok {
				for _, vv := range v.Vars().Slice() {
					if placed.Contains(vv) {
						score++
					}
				}
			}
			sz := sizeOf(ctx, g)
			if score > bestScore || (score == bestScore && sz < bestSize) {
				bestIdx, bestScore, bestSize = i, score, sz
			}
		}
		placeGoal(remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	ctx.Logger().Named("heuristics").Trace("conj.chain_vars reorder", "goals", len(ordered))
	return ctx, ConjPayload{Connective: payload.Connective, Constraints: payload.Constraints, Goals: ordered}
}

// HeurConjRelevance injects a synthetic single-column relation ahead of a
// conjunction's own goals, for every variable shared by two or more
// GoalCtxSizedVared goals whose per-goal value distributions don't fully
// overlap (spec.md §6 "relevance goal injection"). The synthetic relation
// is the intersection of those distributions' keys — a hypothetical
// projection of what the shared variable could possibly end up bound to —
// so the real goals that mention it get a head start pruning rows that
// could never survive both of them anyway. It changes search order and
// speed only: the solution set is identical with or without it.
type HeurConjRelevance struct{}

func (HeurConjRelevance) Name() string { return "conj.relevance" }

func (h HeurConjRelevance) Install(ctx Context) Context {
	return HookPipeline(ctx, HookAndHeuristic, h.run, false)
}

func (HeurConjRelevance) run(ctx Context, data any) (Context, any) {
	payload, ok := data.(ConjPayload)
	if !ok || len(payload.Goals) < 2 {
		return ctx, data
	}
	goals := payload.Goals
	byVar := map[*Variable][]GoalCtxSizedVared{}
	for _, g := range goals {
		gv, ok := g.(GoalCtxSizedVared)
		if !ok {
			continue
		}
		for _, v := range gv.Vars().Slice() {
			byVar[v] = append(byVar[v], gv)
		}
	}

	var extra []Goal
	for v, gs := range byVar {
		if len(gs) < 2 {
			continue
		}
		var common map[any]bool
		ok := true
		for i, g := range gs {
			dist := g.Distribution(ctx, v)
			if dist == nil {
				ok = false
				break
			}
			if i == 0 {
				common = make(map[any]bool, len(dist))
				for val := range dist {
					common[val] = true
				}
				continue
			}
			for val := range common {
				if _, present := dist[val]; !present {
					delete(common, val)
				}
			}
		}
		if !ok || len(common) == 0 {
			continue
		}
		fullest := 0
		for _, g := range gs {
			if n := len(g.Distribution(ctx, v)); n > fullest {
				fullest = n
			}
		}
		if len(common) >= fullest {
			continue
		}
		rows := make([][]any, 0, len(common))
		for val := range common {
			rows = append(rows, []any{val})
		}
		rel, err := FreshRel("relevance", rows)
		if err != nil {
			continue
		}
		extra = append(extra, rel.Goal(v))
	}
	if len(extra) == 0 {
		return ctx, data
	}
	return ctx, ConjPayload{
		Connective:  payload.Connective,
		Constraints: payload.Constraints,
		Goals:       append(extra, goals...),
	}
}

// HeurFactsOrdRnd randomizes a single relation's row-traversal order
// instead of the table's insertion order (spec.md §6). This is the one
// heuristic with no invariant-preserving reason to prefer a particular
// order, so it is the natural home for the engine's one stdlib-only
// ambient dependency: math/rand/v2's package-level Shuffle, which no
// pack library specializes in better than the standard library already
// does (documented in SPEC_FULL.md's AMBIENT STACK section).
type HeurFactsOrdRnd struct{}

func (HeurFactsOrdRnd) Name() string { return "facts.rnd_order" }

func (h HeurFactsOrdRnd) Install(ctx Context) Context {
	return HookPipeline(ctx, HookFacts, h.run, false)
}

func (HeurFactsOrdRnd) run(ctx Context, data any) (Context, any) {
	order, ok := data.([]int)
	if !ok {
		return ctx, data
	}
	shuffled := append([]int(nil), order...)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return ctx, shuffled
}
