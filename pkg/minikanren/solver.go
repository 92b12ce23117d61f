package minikanren

import "fmt"

// Solver owns a single root Context lineage and walks a Goal's stream one
// solution at a time, reifying a fixed set of query variables out of each
// (spec.md §4.10). A Solver is sequential: it is not safe to call Next
// from more than one goroutine, and nothing in this package tries to make
// it so (spec.md §1 Non-goals, "no concurrency across solvers").
type Solver struct {
	ctx       Context
	vars      []*Variable
	stream    Stream
	latest    Context
	hasLatest bool
}

// NewSolver builds a Solver with its own fresh root Context, the
// Constraints substitution hook, the Iterables unification extension, and
// the substitution-count metric already installed (spec.md §4.6, §4.9,
// SPEC_FULL.md AMBIENT STACK). Callers allocate query variables with
// Solver.Fresh before building the Goal they pass to Query, so the
// variables a Goal closes over and the context it eventually runs against
// share the same lineage.
func NewSolver(cfg Config) *Solver {
	ctx := NewContext(cfg)
	ctx = InstallConstraints(ctx)
	ctx = installMetrics(ctx)
	ctx = installIterablesUnification(ctx)
	return &Solver{ctx: ctx}
}

// Fresh allocates count new variables against the Solver's own context
// lineage, a convenience over calling the package-level Fresh directly and
// threading the returned Context back in by hand.
func (s *Solver) Fresh(reifier Reifier, count int, assump Assumption) []*Variable {
	ctx, vars := Fresh(s.ctx, reifier, count, assump)
	s.ctx = ctx
	return vars
}

// Context returns the Solver's current root context, e.g. for a caller
// that wants to install its own constraints or heuristics before Query.
func (s *Solver) Context() Context { return s.ctx }

// SetContext replaces the Solver's root context, letting a caller layer
// InstallHeuristic calls (or anything else that only needs a Context) on
// top of what NewSolver already installed.
func (s *Solver) SetContext(ctx Context) { s.ctx = ctx }

// Query starts goal against the Solver's current context, reifying vars
// out of every yielded solution. Calling Query again discards whatever
// stream was in flight and starts over from the Solver's present context,
// which still carries every binding accumulated by prior Fresh calls.
func (s *Solver) Query(goal Goal, vars ...*Variable) {
	s.vars = vars
	s.ctx.Logger().Named("solver").Trace("query", "vars", len(vars))
	s.stream = goal.Run(s.ctx)
	s.hasLatest = false
}

// Next pulls the next solution, reified in vars order, or returns false
// once the query is exhausted.
func (s *Solver) Next() ([]any, bool) {
	if s.stream == nil {
		panic(&FatalError{Err: fmt.Errorf("minikanren: Solver.Next called before Query")})
	}
	ctx, ok := s.stream.Next()
	if !ok {
		return nil, false
	}
	s.latest = ctx
	s.hasLatest = true
	return s.reify(ctx, s.vars), true
}

func (s *Solver) reify(ctx Context, vars []*Variable) []any {
	out := make([]any, len(vars))
	for i, v := range vars {
		_, out[i] = WalkReify(ctx, v)
	}
	return out
}

// LatestSolution re-reifies the most recent solution Next returned,
// against a possibly different projection of variables (spec.md §4.10
// design note "re-reification with different projections"). It returns
// false if Next has never successfully yielded a solution. An empty vars
// list re-reifies the Solver's original Query projection.
func (s *Solver) LatestSolution(vars ...*Variable) ([]any, bool) {
	if !s.hasLatest {
		return nil, false
	}
	if len(vars) == 0 {
		vars = s.vars
	}
	return s.reify(s.latest, vars), true
}

// SubstitutionCount reports how many bindings have been recorded against
// the most recent context the Solver has touched.
func (s *Solver) SubstitutionCount() int {
	if s.hasLatest {
		return SubstitutionCount(s.latest)
	}
	return SubstitutionCount(s.ctx)
}

// Take eagerly pulls up to n solutions from the in-flight query (or every
// remaining solution if n < 0) and returns a Stream over those materialized
// contexts (spec.md §4.10). The returned Stream is single-pass: once drained
// it stays exhausted, and the pulled solutions are no longer available from
// the Solver's own Next.
func (s *Solver) Take(n int) Stream {
	if s.stream == nil {
		panic(&FatalError{Err: fmt.Errorf("minikanren: Solver.Take called before Query")})
	}
	var ctxs []Context
	for n < 0 || len(ctxs) < n {
		ctx, ok := s.stream.Next()
		if !ok {
			break
		}
		s.latest = ctx
		s.hasLatest = true
		ctxs = append(ctxs, ctx)
	}
	return sliceStream(ctxs)
}
