package minikanren

// substitutionsFacet maps a logic variable to the value or variable it is
// bound to (spec.md §3 "Substitution").
var substitutionsFacet = newFacet[*Variable, any](
	"substitutions", nil, func(k *Variable) []byte { return keyOf(k) })

// condensibleArgs is the payload passed to the walk_condensible pipeline
// hook: the variable walk started from, the terminal value it reached, and
// every variable visited along the way.
type condensibleArgs struct {
	Origin   *Variable
	Terminal any
	Visited  []*Variable
}

// condenseArgs is the payload passed to the post-condense notification
// hook, letting constraints re-check the newly-unified variable set.
type condenseArgs struct {
	Terminal any
	Visited  []*Variable
}

func init() {
	// no package-level default registration here: defaults are installed
	// per-Context by NewContext, so two independently constructed root
	// contexts never share condensation policy by surprise.
}

// installDefaultCondensation registers the default path-compression policy
// (spec.md §4.4): every visited variable is updated to point directly at
// the terminal value, then the post-condense hook fires so constraints get
// a chance to re-check the newly-unified set. This is always installed by
// NewContext; additional policies may be layered on top via
// HookWalkCondensible (they run newer-first, ahead of this default).
func installDefaultCondensation(ctx Context) Context {
	return HookPipeline(ctx, HookWalkCondensible, defaultCondense, false)
}

func defaultCondense(ctx Context, data any) (Context, any) {
	args := data.(condensibleArgs)
	if len(args.Visited) > 0 {
		updates := make(map[*Variable]any, len(args.Visited))
		for _, v := range args.Visited {
			updates[v] = args.Terminal
		}
		ctx = substitutionsFacet.Update(ctx, updates)
	}
	ctx, _ = RunPipeline(ctx, HookWalkCondense, condenseArgs{args.Terminal, args.Visited})
	return ctx, data
}

// lookupSub returns the raw binding of v, distinguishing "bound to nil"
// from "unbound" via the second return.
func lookupSub(ctx Context, v *Variable) (any, bool) {
	return substitutionsFacet.GetWhole(ctx).Get(substitutionsFacet.keyOf(v))
}

// Walk follows x's substitution chain to a terminal value (spec.md §4.4).
// If x isn't a *Variable it is already terminal. Walk never revisits a
// variable (the substitution invariant guarantees no cycles after a full
// walk), and fires the condensible pipeline hook once a chain of two or
// more hops resolves, giving path-compression policies a chance to run.
func Walk(ctx Context, x any) (Context, any) {
	v, ok := x.(*Variable)
	if !ok || IsWildcard(v) {
		return ctx, x
	}
	visited := make([]*Variable, 0, 4)
	seen := make(map[*Variable]bool, 4)
	cur := v
	var terminal any = v
	for {
		val, bound := lookupSub(ctx, cur)
		if !bound {
			terminal = cur
			break
		}
		visited = append(visited, cur)
		seen[cur] = true
		nv, isVar := val.(*Variable)
		if !isVar {
			terminal = val
			break
		}
		if seen[nv] {
			// Substitution invariant violated upstream; stop rather than
			// loop forever.
			terminal = nv
			break
		}
		cur = nv
	}
	if len(visited) >= 2 {
		ctx, _ = RunPipeline(ctx, HookWalkCondensible, condensibleArgs{
			Origin: v, Terminal: terminal, Visited: visited,
		})
	}
	return ctx, terminal
}

// WalkReify walks v and, if the terminal value is ground (not a variable),
// applies v's reifier to it (spec.md §4.4).
func WalkReify(ctx Context, v *Variable) (Context, any) {
	ctx, val := Walk(ctx, v)
	if _, stillVar := val.(*Variable); stillVar {
		return ctx, val
	}
	return ctx, v.Reify(val)
}

// Sub records var -> val in the Substitutions facet and runs the
// substitution pipeline hook (spec.md §4.4, §4.6), which is where
// InstallConstraints hangs its propagation-and-recheck logic. The
// returned context is Failed if a hooked constraint rejected the binding.
func Sub(ctx Context, v *Variable, val any) Context {
	ctx = substitutionsFacet.Set(ctx, v, val)
	ctx.Logger().Named("unify").Trace("sub", "var", v, "val", val)
	ctx, _ = RunPipeline(ctx, HookSub, [2]any{v, val})
	return ctx
}
