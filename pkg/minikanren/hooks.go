package minikanren

import (
	"fmt"
	"reflect"
	"strings"
)

// HookID names a well-known extension point (spec.md §6 "Hook keys"). The
// source this engine is modeled on keys hooks by function/class identity;
// in Go we use a closed set of string constants plus CustomHookID as the
// escape hatch for external extensions (spec.md §9 design note on
// hook-key identity).
type HookID string

// BroadcastKey is a hierarchical key for broadcast hooks: Run fires every
// callback registered at every prefix of the key, deepest prefix first
// (spec.md §4.3).
type BroadcastKey []string

// Well-known hook identifiers, part of the engine's external interface
// (spec.md §6).
const (
	HookSub             HookID = "substitutions.sub"
	HookWalkCondensible HookID = "substitutions.walk_condensible"
	HookWalkCondense    HookID = "substitutions.walk_condense"
	HookUnify           HookID = "unification.unify"
	HookPropagate       HookID = "constraints.propagate"
	HookConstraintUnsat HookID = "constraints.unsatisfied"
	HookAndHeuristic    HookID = "and.heuristic"
	HookOrHeuristic     HookID = "or.heuristic"
	HookFacts           HookID = "facts.hook_facts"
	HookFactCheckPassed HookID = "facts.hook_factcheck_passed"
	HookFactCheckFailed HookID = "facts.hook_factcheck_failed"
	HookFresh           HookID = "vars.hook_fresh"
)

// CustomHookID builds a HookID for extensions outside the well-known set.
func CustomHookID(name string) HookID { return HookID("custom:" + name) }

// EventCB is the event-hook callback shape: it may rewrite the context but
// not the event data.
type EventCB func(ctx Context, data any) Context

// PipelineCB is the pipeline-hook callback shape: it may rewrite both the
// context and the in-flight data.
type PipelineCB func(ctx Context, data any) (Context, any)

// BroadcastCB is the broadcast-hook callback shape: it receives the full
// key it was invoked for (not just the prefix it is registered at).
type BroadcastCB func(ctx Context, key BroadcastKey, data any) Context

// hookEntry pairs a callback with its effectfulness, per the design note
// that effectfulness belongs on the registration rather than a side
// channel (spec.md §9).
type hookEntry[CB any] struct {
	cb        CB
	effectful bool
}

var eventHooksFacet = newFacet[HookID, *Cel[hookEntry[EventCB]]](
	"hooks.events", nil, func(k HookID) []byte { return keyOf(k) })

var pipelineHooksFacet = newFacet[HookID, *Cel[hookEntry[PipelineCB]]](
	"hooks.pipelines", nil, func(k HookID) []byte { return keyOf(k) })

var broadcastHooksFacet = newFacet[string, *Cel[hookEntry[BroadcastCB]]](
	"hooks.broadcasts", nil, func(k string) []byte { return keyOf(k) })

// shortCircuit is the internal panic payload a hook callback raises via
// ShortCircuit to abort the remaining callbacks of the current Run.
type shortCircuit struct {
	ctx *Context
	val any
}

// ShortCircuit aborts the remaining callbacks in the current hook Run. ctx,
// if non-nil, replaces the in-flight context; val, if non-nil, replaces the
// in-flight pipeline value (ignored by event/broadcast runs). A pipeline
// replacement value whose dynamic type doesn't match the in-flight value's
// is a fatal error, not a silent skip (spec.md §9 open question, resolved).
func ShortCircuit(ctx *Context, val any) {
	panic(shortCircuit{ctx: ctx, val: val})
}

func recoverShortCircuit(r any) (shortCircuit, bool) {
	sc, ok := r.(shortCircuit)
	return sc, ok
}

// HookEvent registers cb at id, newest-first (spec.md §4.3).
func HookEvent(ctx Context, id HookID, cb EventCB, effectful bool) Context {
	cur := eventHooksFacet.Get(ctx, id)
	return eventHooksFacet.Set(ctx, id, Cons(hookEntry[EventCB]{cb, effectful}, cur))
}

// HookPipeline registers cb at id, newest-first.
func HookPipeline(ctx Context, id HookID, cb PipelineCB, effectful bool) Context {
	cur := pipelineHooksFacet.Get(ctx, id)
	return pipelineHooksFacet.Set(ctx, id, Cons(hookEntry[PipelineCB]{cb, effectful}, cur))
}

// HookBroadcast registers cb at the given key prefix, newest-first.
func HookBroadcast(ctx Context, prefix string, cb BroadcastCB, effectful bool) Context {
	cur := broadcastHooksFacet.Get(ctx, prefix)
	return broadcastHooksFacet.Set(ctx, prefix, Cons(hookEntry[BroadcastCB]{cb, effectful}, cur))
}

// RunEvent folds every callback hooked at id over ctx, newest-first,
// skipping effectful callbacks when ctx is hypothetical (spec.md §4.3,
// §4.11).
func RunEvent(ctx Context, id HookID, data any) (result Context) {
	result = ctx
	defer func() {
		if r := recover(); r == nil {
			return
		} else if sc, ok := recoverShortCircuit(r); ok {
			if sc.ctx != nil {
				result = *sc.ctx
			}
		} else {
			panic(r)
		}
	}()
	hyp := IsHypothetical(result)
	cbs := eventHooksFacet.Get(result, id)
	cbs.Each(func(e hookEntry[EventCB]) bool {
		if hyp && e.effectful {
			return true
		}
		result = e.cb(result, data)
		return true
	})
	return result
}

// RunPipeline threads data through every callback hooked at id, newest-
// first, each free to transform both ctx and data.
func RunPipeline(ctx Context, id HookID, data any) (resultCtx Context, resultVal any) {
	resultCtx, resultVal = ctx, data
	defer func() {
		if r := recover(); r == nil {
			return
		} else if sc, ok := recoverShortCircuit(r); ok {
			if sc.val != nil {
				if !compatibleReplacement(sc.val, resultVal) {
					panic(&FatalError{Err: fmt.Errorf(
						"minikanren: pipeline %s short-circuit replacement %T incompatible with in-flight value %T",
						id, sc.val, resultVal)})
				}
				resultVal = sc.val
			}
			if sc.ctx != nil {
				resultCtx = *sc.ctx
			}
		} else {
			panic(r)
		}
	}()
	hyp := IsHypothetical(resultCtx)
	cbs := pipelineHooksFacet.Get(resultCtx, id)
	cbs.Each(func(e hookEntry[PipelineCB]) bool {
		if hyp && e.effectful {
			return true
		}
		resultCtx, resultVal = e.cb(resultCtx, resultVal)
		return true
	})
	return resultCtx, resultVal
}

// RunBroadcast invokes, for every prefix of key from longest to shortest,
// every callback registered at that prefix, newest-first (spec.md §4.3).
func RunBroadcast(ctx Context, key BroadcastKey, data any) (result Context) {
	result = ctx
	defer func() {
		if r := recover(); r == nil {
			return
		} else if sc, ok := recoverShortCircuit(r); ok {
			if sc.ctx != nil {
				result = *sc.ctx
			}
		} else {
			panic(r)
		}
	}()
	hyp := IsHypothetical(result)
	for i := len(key); i > 0; i-- {
		prefix := strings.Join([]string(key[:i]), ".")
		cbs := broadcastHooksFacet.Get(result, prefix)
		cbs.Each(func(e hookEntry[BroadcastCB]) bool {
			if hyp && e.effectful {
				return true
			}
			result = e.cb(result, key, data)
			return true
		})
	}
	return result
}

// compatibleReplacement reports whether a pipeline short-circuit
// replacement value's dynamic type matches the value it is replacing.
func compatibleReplacement(replacement, inFlight any) bool {
	if inFlight == nil {
		return true
	}
	return reflect.TypeOf(replacement) == reflect.TypeOf(inFlight)
}
