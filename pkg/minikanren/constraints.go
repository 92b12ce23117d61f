package minikanren

import (
	"fmt"

	"github.com/hashicorp/go-set/v3"
)

// Constraint is a hookable check installed against one or more variables
// (spec.md §4.6). Check is consulted by the substitution pipeline hook
// every time one of its variables is about to be bound; returning false
// fails the whole unification.
type Constraint interface {
	fmt.Stringer
	// Check reports whether binding v to val (already walked) is
	// consistent with this constraint.
	Check(ctx Context, v *Variable, val any) bool
}

// constraintsFacet maps a variable to the set of constraints currently
// registered against it (spec.md §4.6).
var constraintsFacet = newFacet[*Variable, []Constraint](
	"constraints", nil, func(k *Variable) []byte { return keyOf(k) })

var constraintsInstalledFacet = newFacet[string, bool](
	"constraints.installed", false, func(k string) []byte { return keyOf(k) })

// InstallConstraints wires the Constraints subsystem's substitution-pipeline
// hook into ctx, idempotently (spec.md §4.6, §4.9 "double install is a
// no-op"). NewSolver calls this once; callers assembling a bare
// Context for tests may call it directly.
func InstallConstraints(ctx Context) Context {
	if constraintsInstalledFacet.Get(ctx, "constraints") {
		return ctx
	}
	ctx = constraintsInstalledFacet.Set(ctx, "constraints", true)
	return HookPipeline(ctx, HookSub, constraintsSubHook, false)
}

// Constrain attaches c to every variable it cares about, keyed by vars.
func Constrain(ctx Context, c Constraint, vars ...*Variable) Context {
	updates := make(map[*Variable][]Constraint, len(vars))
	for _, v := range vars {
		updates[v] = append(append([]Constraint(nil), constraintsFacet.Get(ctx, v)...), c)
	}
	return constraintsFacet.Update(ctx, updates)
}

// constraintsSubHook is the HookSub pipeline callback that enforces every
// constraint registered against the variable being bound, and propagates
// constraint sets across variable-to-variable bindings so a chain of Neq
// relations still holds after the chain condenses (spec.md §4.6, §4.4).
func constraintsSubHook(ctx Context, data any) (Context, any) {
	pair, ok := data.([2]any)
	if !ok {
		return ctx, data
	}
	v, _ := pair[0].(*Variable)
	val := pair[1]
	if v == nil {
		return ctx, data
	}

	cs := constraintsFacet.Get(ctx, v)
	for _, c := range cs {
		if !c.Check(ctx, v, val) {
			ctx.Logger().Named("constraints").Trace("unsat", "constraint", c, "var", v, "val", val)
			ctx = RunEvent(ctx, HookConstraintUnsat, [3]any{c, v, val})
			return Failed, data
		}
	}

	if bv, isVar := val.(*Variable); isVar && len(cs) > 0 {
		merged := append(append([]Constraint(nil), constraintsFacet.Get(ctx, bv)...), cs...)
		ctx = constraintsFacet.Set(ctx, bv, merged)
	}

	return ctx, data
}

// Neq requires a and b to never unify to the same value (spec.md §5 "Neq").
// It is checked lazily: binding either side merely walks and compares the
// other; it only fails once both sides are ground and equal.
type Neq struct {
	Other any
}

func (n Neq) String() string { return fmt.Sprintf("Neq(%v)", n.Other) }

func (n Neq) Check(ctx Context, v *Variable, val any) bool {
	ctx, other := Walk(ctx, n.Other)
	if _, stillVar := other.(*Variable); stillVar {
		return true
	}
	if _, valVar := val.(*Variable); valVar {
		return true
	}
	return !comparable(other, val)
}

// MakeNeq installs a Neq(a, b) constraint on both a and b's variables
// (ground terms on either side simply never trip the check).
func MakeNeq(ctx Context, a, b any) Context {
	ctx2 := ctx
	if av, ok := a.(*Variable); ok {
		ctx2 = Constrain(ctx2, Neq{Other: b}, av)
	}
	if bv, ok := b.(*Variable); ok {
		ctx2 = Constrain(ctx2, Neq{Other: a}, bv)
	}
	return ctx2
}

// Notin excludes a forbidden set of values from a subject, which may be a
// single variable or a tuple of variables checked together as one
// combined value (spec.md §4.6). A forbidden entry is split at install
// time: one already ground (after a walk) goes straight into the fast
// Literals/TupleLiterals path; one that still mentions an unbound
// variable is kept in ForbiddenVars/ForbiddenTuples instead and re-walked
// on every Check, since it may only become ground in a later, descendant
// context — dropping it at install time (as this engine used to) would
// silently forget an exclusion the caller asked for.
//
// A variable never carries more than one Notin with the same Subject:
// MakeNotin and Expand both merge into whichever one is already
// registered (spec.md §9's resolved open question), rather than stacking
// near-duplicates that all have to be rechecked separately.
type Notin struct {
	Subject         []*Variable
	Literals        *set.Set[any]
	TupleLiterals   [][]any
	ForbiddenVars   []*Variable
	ForbiddenTuples [][]any
}

func (n Notin) String() string {
	if len(n.Subject) > 1 {
		return fmt.Sprintf("Notin(tuple=%v)", n.TupleLiterals)
	}
	return fmt.Sprintf("Notin(%v)", n.Literals.Slice())
}

// Check reports whether binding v (one of Subject) to val keeps the whole
// Subject out of the forbidden set, walking every other Subject variable
// and every still-pending forbidden reference fresh each call.
func (n Notin) Check(ctx Context, v *Variable, val any) bool {
	if len(n.Subject) <= 1 {
		return n.checkScalar(ctx, val)
	}
	return n.checkTuple(ctx, v, val)
}

func (n Notin) checkScalar(ctx Context, val any) bool {
	if _, stillVar := val.(*Variable); stillVar {
		return true
	}
	if n.Literals.Contains(val) {
		return false
	}
	for _, fv := range n.ForbiddenVars {
		_, w := Walk(ctx, fv)
		if _, stillVar := w.(*Variable); stillVar {
			continue
		}
		if comparable(w, val) {
			return false
		}
	}
	return true
}

func (n Notin) checkTuple(ctx Context, v *Variable, val any) bool {
	tuple := make([]any, len(n.Subject))
	for i, sv := range n.Subject {
		if sv == v {
			tuple[i] = val
			continue
		}
		_, tuple[i] = Walk(ctx, sv)
	}
	for _, x := range tuple {
		if _, stillVar := x.(*Variable); stillVar {
			return true
		}
	}
	for _, lit := range n.TupleLiterals {
		if tupleMatches(tuple, lit) {
			return false
		}
	}
	for _, forbidden := range n.ForbiddenTuples {
		walked := make([]any, len(forbidden))
		full := true
		for i, x := range forbidden {
			if fv, stillVar := x.(*Variable); stillVar {
				_, w := Walk(ctx, fv)
				if _, stillUnbound := w.(*Variable); stillUnbound {
					full = false
					break
				}
				walked[i] = w
			} else {
				walked[i] = x
			}
		}
		if full && tupleMatches(tuple, walked) {
			return false
		}
	}
	return true
}

func tupleMatches(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !comparable(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Expand returns a Notin with more values folded in — a ground value goes
// into the literal path, one that still walks to a variable is kept and
// re-walked on future checks (spec.md §4.6, §4.9 step 4: a fact-table
// goal's unification lookahead expands a column variable's Notin by
// whatever values it just proved can never produce a consistent row).
// Identity-preserved: if more contributes nothing actually new, n itself
// is returned rather than a freshly-allocated equal copy.
func (n Notin) Expand(ctx Context, more []any) (Context, Notin) {
	if len(more) == 0 {
		return ctx, n
	}
	arity := len(n.Subject)
	if arity == 0 {
		arity = 1
	}
	ctx, lits, tupleLits, forbiddenVars, forbiddenTuples := splitNotinEntries(ctx, more, arity)
	var newLits []any
	for _, l := range lits {
		if !n.Literals.Contains(l) {
			newLits = append(newLits, l)
		}
	}
	if len(newLits) == 0 && len(tupleLits) == 0 && len(forbiddenVars) == 0 && len(forbiddenTuples) == 0 {
		return ctx, n
	}
	merged := Notin{
		Subject:         n.Subject,
		Literals:        set.From[any](append(append([]any(nil), n.Literals.Slice()...), newLits...)),
		TupleLiterals:   append(append([][]any(nil), n.TupleLiterals...), tupleLits...),
		ForbiddenVars:   append(append([]*Variable(nil), n.ForbiddenVars...), forbiddenVars...),
		ForbiddenTuples: append(append([][]any(nil), n.ForbiddenTuples...), forbiddenTuples...),
	}
	return ctx, merged
}

// Contract returns a Notin with the given ground literals removed from its
// exclusion set, identity-preserved if none of them were actually present.
func (n Notin) Contract(fewer []any) Notin {
	if len(fewer) == 0 {
		return n
	}
	drop := set.From[any](fewer)
	existing := n.Literals.Slice()
	kept := make([]any, 0, len(existing))
	changed := false
	for _, x := range existing {
		if drop.Contains(x) {
			changed = true
			continue
		}
		kept = append(kept, x)
	}
	if !changed {
		return n
	}
	return Notin{
		Subject:         n.Subject,
		Literals:        set.From[any](kept),
		TupleLiterals:   n.TupleLiterals,
		ForbiddenVars:   n.ForbiddenVars,
		ForbiddenTuples: n.ForbiddenTuples,
	}
}

// splitNotinEntries walks each of excluded against ctx and sorts it into
// the ground (literal) or still-unbound (forbidden reference) bucket,
// dispatching on whether Subject is a single variable (arity 1, entries
// are scalars or *Variable) or a tuple (arity > 1, entries are
// len(Subject)-element []any tuples, each position independently ground
// or *Variable).
func splitNotinEntries(ctx Context, excluded []any, arity int) (Context, []any, [][]any, []*Variable, [][]any) {
	var lits []any
	var tupleLits [][]any
	var forbiddenVars []*Variable
	var forbiddenTuples [][]any
	for _, e := range excluded {
		if arity <= 1 {
			var w any
			ctx, w = Walk(ctx, e)
			if fv, stillVar := w.(*Variable); stillVar {
				forbiddenVars = append(forbiddenVars, fv)
			} else {
				lits = append(lits, w)
			}
			continue
		}
		tuple, ok := e.([]any)
		if !ok || len(tuple) != arity {
			panic(&FatalError{Err: fmt.Errorf(
				"minikanren: Notin: tuple-subject exclusion must be a %d-element tuple, got %v", arity, e)})
		}
		walked := make([]any, arity)
		ground := true
		for i, x := range tuple {
			ctx, walked[i] = Walk(ctx, x)
			if _, stillVar := walked[i].(*Variable); stillVar {
				ground = false
			}
		}
		if ground {
			tupleLits = append(tupleLits, walked)
		} else {
			forbiddenTuples = append(forbiddenTuples, walked)
		}
	}
	return ctx, lits, tupleLits, forbiddenVars, forbiddenTuples
}

// findNotin returns the Notin already registered on v with exactly this
// Subject, if any — used to merge rather than duplicate.
func findNotin(ctx Context, v *Variable, subject []*Variable) (Notin, bool) {
	for _, c := range constraintsFacet.Get(ctx, v) {
		if n, ok := c.(Notin); ok && sameSubject(n.Subject, subject) {
			return n, true
		}
	}
	return Notin{}, false
}

func sameSubject(a, b []*Variable) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// installNotin writes n onto v's constraint list, replacing any existing
// entry with the same Subject in place instead of appending a duplicate.
func installNotin(ctx Context, v *Variable, n Notin) Context {
	cs := constraintsFacet.Get(ctx, v)
	out := append([]Constraint(nil), cs...)
	for i, c := range out {
		if existing, ok := c.(Notin); ok && sameSubject(existing.Subject, n.Subject) {
			out[i] = n
			return constraintsFacet.Set(ctx, v, out)
		}
	}
	out = append(out, n)
	return constraintsFacet.Set(ctx, v, out)
}

// MakeNotin installs Notin(excluded) on subject (a single variable, or a
// tuple of variables checked together), merging into any Notin already
// registered on the same Subject rather than stacking a second one
// (spec.md §4.6, §9).
func MakeNotin(ctx Context, excluded []any, subject ...*Variable) Context {
	if len(subject) == 0 {
		panic(&FatalError{Err: fmt.Errorf("minikanren: MakeNotin requires at least one subject variable")})
	}
	ctx, lits, tupleLits, forbiddenVars, forbiddenTuples := splitNotinEntries(ctx, excluded, len(subject))
	fresh := Notin{
		Subject:         append([]*Variable(nil), subject...),
		Literals:        set.From[any](lits),
		TupleLiterals:   tupleLits,
		ForbiddenVars:   forbiddenVars,
		ForbiddenTuples: forbiddenTuples,
	}
	for _, v := range subject {
		if existing, ok := findNotin(ctx, v, fresh.Subject); ok {
			_, merged := existing.Expand(ctx, excluded)
			ctx = installNotin(ctx, v, merged)
		} else {
			ctx = installNotin(ctx, v, fresh)
		}
	}
	return ctx
}

// MakeDistinct requires every variable in vars to take a pairwise-distinct
// value (spec.md §5 "Distinct"); it is implemented as an O(n^2) fan-out of
// Neq pairs, matching the cardinality the spec's own description implies
// ("behaves like Neq for every pair").
func MakeDistinct(ctx Context, vars ...*Variable) Context {
	for i := 0; i < len(vars); i++ {
		for j := i + 1; j < len(vars); j++ {
			ctx = MakeNeq(ctx, vars[i], vars[j])
		}
	}
	return ctx
}

// CardinalityProduct returns the product of the supplied per-variable
// domain sizes, saturating at the given cap instead of overflowing — used
// by the conjunction-reordering heuristics to rank shared-variable
// subgoals without risking an int64 overflow on wide fact tables
// (spec.md §6 "cardinality-product helper").
func CardinalityProduct(sizes []int, cap int) int {
	product := 1
	for _, s := range sizes {
		if s <= 0 {
			return 0
		}
		product *= s
		if product >= cap {
			return cap
		}
	}
	return product
}
