package minikanren

import "fmt"

// unifyArgs is the payload passed to the hook_unify pipeline extension
// point: the two walked operands still unresolved after the built-in
// wildcard/equality/variable-binding cases (spec.md §4.5).
type unifyArgs struct {
	A, B any
}

// Unify attempts to make a and b equal under ctx's current substitution,
// returning an extended context on success or the Failed sentinel on
// failure (spec.md §4.5). It never panics on a failed unification — only
// a fatal error raised by a hooked callback (a constraint, or the Iterables
// extension rejecting a malformed Ellipsis operand) propagates as a
// panic/FatalError.
func Unify(ctx Context, a, b any) Context {
	ctx, a = Walk(ctx, a)
	ctx, b = Walk(ctx, b)

	av, aIsVar := a.(*Variable)
	bv, bIsVar := b.(*Variable)

	switch {
	case aIsVar && IsWildcard(av):
		return ctx
	case bIsVar && IsWildcard(bv):
		return ctx
	case aIsVar && bIsVar && av == bv:
		return ctx
	case aIsVar:
		return Sub(ctx, av, b)
	case bIsVar:
		return Sub(ctx, bv, a)
	}

	if a == nil && b == nil {
		return ctx
	}
	if comparable(a, b) {
		return ctx
	}

	ctx2, val := RunPipeline(ctx, HookUnify, unifyArgs{a, b})
	if ok, isBool := val.(bool); isBool && ok {
		return ctx2
	}
	return Failed
}

// comparable reports == equality between two unwalked, non-variable terms
// without panicking when the dynamic types are uncomparable (e.g. slices),
// leaving those to the hook_unify extension chain (the Iterables
// extension below, or a caller-supplied one).
func comparable(a, b any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}

// installIterablesUnification registers the default hook_unify extension
// for element-wise sequence unification (spec.md §4.5 design note): two
// []any operands of equal length unify element-wise; a trailing Ellipsis
// sentinel in either operand matches whatever suffix of the other remains
// past the unified prefix, without binding that suffix to anything.
func installIterablesUnification(ctx Context) Context {
	return HookPipeline(ctx, HookUnify, unifyIterables, false)
}

// Ellipsis is the sentinel marking a variadic tail position inside an
// operand passed to Unify (spec.md §4.5).
var Ellipsis = &struct{ name string }{"..."}

func unifyIterables(ctx Context, data any) (Context, any) {
	args, ok := data.(unifyArgs)
	if !ok {
		return ctx, data
	}
	as, aOK := args.A.([]any)
	bs, bOK := args.B.([]any)
	if !aOK || !bOK {
		return ctx, data
	}

	aTail, aHasTail := splitEllipsis(as)
	bTail, bHasTail := splitEllipsis(bs)

	switch {
	case !aHasTail && !bHasTail:
		if len(as) != len(bs) {
			return ctx, false
		}
		for i := range as {
			ctx = Unify(ctx, as[i], bs[i])
			if IsFailed(ctx) {
				return ctx, false
			}
		}
		return ctx, true
	case aHasTail && !bHasTail:
		return unifyEllipsisPair(ctx, as, aTail, bs)
	case bHasTail && !aHasTail:
		return unifyEllipsisPair(ctx, bs, bTail, as)
	default:
		panic(&FatalError{Err: fmt.Errorf("minikanren: unify: both operands use a variadic tail")})
	}
}

func splitEllipsis(xs []any) (int, bool) {
	for i, x := range xs {
		if x == Ellipsis {
			return i, true
		}
	}
	return -1, false
}

// unifyEllipsisPair unifies head[:tailPos] element-wise against the
// matching prefix of other; Ellipsis must be head's final element and
// simply absorbs whatever remains of other, unbound (spec.md §4.5,
// §8 scenario 5: unify([1,2,3], [1, v, ...]) binds v=2 and succeeds without
// binding anything to the trailing 3). An element following Ellipsis isn't
// supported — original_source/.../Unification.py raises NotImplementedError
// for that shape rather than give it any semantics, so this does too.
func unifyEllipsisPair(ctx Context, head []any, tailPos int, other []any) (Context, any) {
	if tailPos != len(head)-1 {
		panic(&FatalError{Err: fmt.Errorf("minikanren: unify: ellipsis must be the final element")})
	}
	if len(other) < tailPos {
		return ctx, false
	}
	for i := 0; i < tailPos; i++ {
		ctx = Unify(ctx, head[i], other[i])
		if IsFailed(ctx) {
			return ctx, false
		}
	}
	return ctx, true
}
