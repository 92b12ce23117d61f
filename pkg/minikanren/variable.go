package minikanren

import (
	"fmt"
	"reflect"
	"sync/atomic"
)

// Reifier is the pure function a variable's stored primitive is passed
// through at solution time (spec.md §3 "Variable", e.g. int→chr).
type Reifier func(any) any

// Identity is the default reifier: it returns its argument unchanged.
func Identity(v any) any { return v }

// Assumption is a fixed bag of boolean algebraic tags optionally attached
// to a variable at fresh time (spec.md §6). They are metadata only — this
// engine does not build a finite-domain propagator on top of them
// (spec.md §1 Out-of-scope: "FD solver"; see SPEC_FULL.md SUPPLEMENTED
// FEATURES).
type Assumption uint8

const (
	AssumeInteger Assumption = 1 << iota
	AssumeFinite
	AssumePositive
	AssumeNonNegative
)

// Has reports whether a carries tag.
func (a Assumption) Has(tag Assumption) bool { return a&tag != 0 }

var varCounter atomic.Int64

// Variable is a symbolic identity compared by identity, never by value
// (spec.md §3). Two distinct *Variable values are always distinct logic
// variables even if they happen to share a name.
type Variable struct {
	id          int64
	name        string
	reifier     Reifier
	assumptions Assumption
}

// Wildcard unifies with anything without recording a binding (spec.md §3).
var Wildcard = &Variable{id: -1, name: "_", reifier: Identity}

// IsWildcard reports whether v is the designated wildcard variable.
func IsWildcard(v *Variable) bool { return v == Wildcard }

func newVariable(name string, reifier Reifier, assump Assumption) *Variable {
	if reifier == nil {
		reifier = Identity
	}
	id := varCounter.Add(1)
	if name == "" {
		name = fmt.Sprintf("_%d", id)
	}
	return &Variable{id: id, name: name, reifier: reifier, assumptions: assump}
}

// String implements fmt.Stringer for diagnostics and debug broadcasts.
func (v *Variable) String() string {
	if v == nil {
		return "<nil var>"
	}
	return fmt.Sprintf("_%s_%d", v.name, v.id)
}

// ID returns the variable's unique identity stamp.
func (v *Variable) ID() int64 { return v.id }

// Reify applies the variable's reifier to a ground terminal value.
func (v *Variable) Reify(val any) any { return v.reifier(val) }

// varsReifiersFacet records every fresh variable's reifier, for
// introspection and for the fresh-event broadcast (spec.md §4.4).
var varsReifiersFacet = newFacet[*Variable, Reifier](
	"vars.reifiers", nil, func(k *Variable) []byte { return keyOf(k) })

// Fresh allocates count new logic variables sharing reifier and assumptions,
// records them in the VarsReifiers facet, and fires the "fresh" event
// (spec.md §4.4, §6). count defaults to 1 when <= 0.
func Fresh(ctx Context, reifier Reifier, count int, assump Assumption) (Context, []*Variable) {
	if count <= 0 {
		count = 1
	}
	vars := make([]*Variable, count)
	updates := make(map[*Variable]Reifier, count)
	for i := range vars {
		v := newVariable("", reifier, assump)
		vars[i] = v
		updates[v] = v.reifier
	}
	ctx = varsReifiersFacet.Update(ctx, updates)
	ctx = RunEvent(ctx, HookFresh, vars)
	return ctx, vars
}

// FreshNamed is Fresh for a single named variable, convenient for tests and
// documentation examples.
func FreshNamed(ctx Context, name string, reifier Reifier) (Context, *Variable) {
	v := newVariable(name, reifier, 0)
	ctx = varsReifiersFacet.Set(ctx, v, v.reifier)
	ctx = RunEvent(ctx, HookFresh, []*Variable{v})
	return ctx, v
}

// namedVarRegistryFacet backs Contextualize's name→variable memo: a
// relation built up across several separate Goal-construction calls that
// all want "the variable named x" needs them to resolve to the identical
// *Variable, not merely to distinct variables that happen to print the
// same name.
var namedVarRegistryFacet = newFacet[string, *Variable](
	"vars.named", nil, func(k string) []byte { return keyOf(k) })

// Contextualize returns the single *Variable registered under name in
// ctx's lineage, allocating it via FreshNamed the first time name is seen.
// A later call under the same name with a different, non-nil reifier is a
// goal-composition error (spec.md §7 item 3): a variable's reifier is
// fixed at its first allocation, and a conflicting second reifier almost
// always means two unrelated pieces of goal-construction code collided on
// the same name by accident rather than deliberately sharing a variable.
func Contextualize(ctx Context, name string, reifier Reifier) (Context, *Variable) {
	if existing := namedVarRegistryFacet.Get(ctx, name); existing != nil {
		if reifier != nil && !sameReifier(existing.reifier, reifier) {
			panic(&FatalError{Err: reifierConflictError(name)})
		}
		return ctx, existing
	}
	ctx, v := FreshNamed(ctx, name, reifier)
	ctx = namedVarRegistryFacet.Set(ctx, name, v)
	return ctx, v
}

// sameReifier compares two reifiers by their underlying function pointer.
// Reifier values are never expected to be built from distinct closures
// over the same logic, so pointer identity is the right notion of
// "the same reifier" here, not structural/behavioral equality.
func sameReifier(a, b Reifier) bool {
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}
