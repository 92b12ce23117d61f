package minikanren

import (
	"fmt"

	"github.com/hashicorp/go-set/v3"
)

// ConjConstraint pairs a constraint a heuristic wants installed with the
// variables it should be attached to — the "augmented constraint tuple"
// half of the (connective, constraints, goals) triple a conjunction
// heuristic works over (spec.md §4.7, §4.9).
type ConjConstraint struct {
	Constraint Constraint
	Vars       []*Variable
}

// ConjPayload is the HookAndHeuristic/HookOrHeuristic pipeline payload
// (spec.md §6 "And.hook_heuristic, Or.hook_heuristic — pipeline of
// (connective, constraints, goals)"). Connective distinguishes the two so
// a heuristic that only makes sense for one of them (HeurConjCardinality
// reordering a disjunction would be meaningless, since Or's branches
// don't share bindings the way And's do) can check before acting.
type ConjPayload struct {
	Connective  string
	Constraints []ConjConstraint
	Goals       []Goal
}

// andGoal is what And returns once it has more than one sub-goal: unlike
// a bare GoalFunc it implements Vared and CtxSized itself, so a nested
// And inside a larger conjunction is still visible to the search-order
// heuristics instead of falling into their "neither" bucket (spec.md
// §4.7 "free variables: union of subgoal free variables" / "size
// estimate: product of contextual sizes", §6).
type andGoal struct {
	goals []Goal
}

// And composes goals as a strict, depth-first monadic bind (spec.md §4.7,
// §4.8): the first goal's solutions drive the second's, and so on,
// left-to-right. A single goal is returned unchanged; zero goals is a
// usage error, not an empty-Goal convenience, since a caller that meant
// "always succeed" should write Succeed explicitly.
func And(goals ...Goal) Goal {
	if len(goals) == 0 {
		panic(&FatalError{Err: fmt.Errorf("minikanren: And requires at least one goal")})
	}
	if len(goals) == 1 {
		return goals[0]
	}
	return &andGoal{goals: append([]Goal(nil), goals...)}
}

// Run fires the conjunction-heuristic pipeline with the (connective,
// constraints, goals) triple, installs whatever constraints the
// heuristics added onto the context, and only then builds the composed
// stream over the (possibly reordered, possibly lengthened — see
// HeurConjRelevance) goal list (spec.md §4.7).
func (a *andGoal) Run(ctx Context) Stream {
	ctx2, val := RunPipeline(ctx, HookAndHeuristic, ConjPayload{
		Connective: "and",
		Goals:      append([]Goal(nil), a.goals...),
	})
	gs := a.goals
	if payload, ok := val.(ConjPayload); ok {
		if len(payload.Goals) > 0 {
			gs = payload.Goals
		}
		for _, c := range payload.Constraints {
			ctx2 = Constrain(ctx2, c.Constraint, c.Vars...)
		}
	}
	return bindSeq(ctx2, gs)
}

func (a *andGoal) Vars() *set.Set[*Variable] {
	out := set.New[*Variable](len(a.goals))
	for _, g := range a.goals {
		if v, ok := g.(Vared); ok {
			for _, vv := range v.Vars().Slice() {
				out.Insert(vv)
			}
		}
	}
	return out
}

// CtxSize is the product of every sub-goal's contextual size, declining
// (returning -1) unless all of them are CtxSized (spec.md §4.7).
func (a *andGoal) CtxSize(ctx Context) int {
	sizes := make([]int, 0, len(a.goals))
	for _, g := range a.goals {
		cs, ok := g.(CtxSized)
		if !ok {
			return -1
		}
		n := cs.CtxSize(ctx)
		if n < 0 {
			return -1
		}
		sizes = append(sizes, n)
	}
	return CardinalityProduct(sizes, 1<<30)
}

// bindSeq threads ctx through goals left to right, lazily: it only ever
// holds one pending outer stream and one pending inner stream at a time,
// regardless of how many goals remain (spec.md §9 design note on And's
// iterator shape).
func bindSeq(ctx Context, goals []Goal) Stream {
	if len(goals) == 0 {
		return singleStream(ctx)
	}
	outer := goals[0].Run(ctx)
	rest := goals[1:]
	var inner Stream
	return StreamFunc(func() (Context, bool) {
		for {
			if inner != nil {
				if c, ok := inner.Next(); ok {
					return c, true
				}
				inner = nil
			}
			c1, ok := outer.Next()
			if !ok {
				return Failed, false
			}
			inner = bindSeq(c1, rest)
		}
	})
}

// Or composes goals as a fair round-robin interleaving (spec.md §4.7,
// §4.8): every sub-goal's stream gets a turn before any gets a second
// one, which is what keeps a disjunction complete even when one of its
// disjuncts alone would produce an infinite stream. A single goal is
// returned unchanged; zero goals is a usage error, mirroring And.
//
// HookOrHeuristic is fired but has no installed default: the source this
// engine is modeled on leaves its equivalent hook unimplemented, and
// nothing in this engine's search-order heuristics needs to reorder
// disjuncts (unlike conjuncts, disjuncts don't share bindings that make
// one ordering cheaper than another to explore). The hook exists purely
// so an external extension can observe, veto, or reorder disjuncts without
// this package ever doing so itself (spec.md §9 open question, resolved).
func Or(goals ...Goal) Goal {
	if len(goals) == 0 {
		panic(&FatalError{Err: fmt.Errorf("minikanren: Or requires at least one goal")})
	}
	if len(goals) == 1 {
		return goals[0]
	}
	return &orGoal{goals: append([]Goal(nil), goals...)}
}

// orGoal is what Or returns once it has more than one sub-goal — the
// disjunctive counterpart to andGoal, implementing Vared and CtxSized
// (sum of contextual sizes) so a nested Or is visible to the heuristics
// the same way a nested And is (spec.md §4.7 "size: sum of CtxSized
// subgoal sizes", §6).
type orGoal struct {
	goals []Goal
}

func (o *orGoal) Run(ctx Context) Stream {
	ctx2, val := RunPipeline(ctx, HookOrHeuristic, ConjPayload{
		Connective: "or",
		Goals:      append([]Goal(nil), o.goals...),
	})
	gs := o.goals
	if payload, ok := val.(ConjPayload); ok {
		if len(payload.Goals) > 0 {
			gs = payload.Goals
		}
		for _, c := range payload.Constraints {
			ctx2 = Constrain(ctx2, c.Constraint, c.Vars...)
		}
	}
	streams := make([]Stream, len(gs))
	for i, g := range gs {
		streams[i] = g.Run(ctx2)
	}
	return &fairStream{streams: streams}
}

func (o *orGoal) Vars() *set.Set[*Variable] {
	out := set.New[*Variable](len(o.goals))
	for _, g := range o.goals {
		if v, ok := g.(Vared); ok {
			for _, vv := range v.Vars().Slice() {
				out.Insert(vv)
			}
		}
	}
	return out
}

// CtxSize is the sum of every sub-goal's contextual size, declining
// (returning -1) unless all of them are CtxSized.
func (o *orGoal) CtxSize(ctx Context) int {
	sum := 0
	for _, g := range o.goals {
		cs, ok := g.(CtxSized)
		if !ok {
			return -1
		}
		n := cs.CtxSize(ctx)
		if n < 0 {
			return -1
		}
		sum += n
	}
	return sum
}

// fairStream round-robins across a fixed set of sub-streams, dropping each
// once it reports exhausted, until all are exhausted.
type fairStream struct {
	streams []Stream
	next    int
}

func (s *fairStream) Next() (Context, bool) {
	n := len(s.streams)
	for tries := 0; tries < n; tries++ {
		i := s.next
		s.next = (i + 1) % n
		if s.streams[i] == nil {
			continue
		}
		c, ok := s.streams[i].Next()
		if ok {
			return c, true
		}
		s.streams[i] = nil
	}
	return Failed, false
}
