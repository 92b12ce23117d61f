package minikanren

import (
	"strings"

	"github.com/hashicorp/go-hclog"
)

// FacetID names a facet's namespace inside a Context. Facets are static
// descriptors (spec.md §3 "Context"); their instances only come into being
// in a particular Context the first time something is written to them.
type FacetID string

// Context is the immutable mapping from facet identifier to that facet's
// own immutable key/value map (spec.md §3). Every operation that "mutates"
// a Context actually returns a new one sharing structure with its parent;
// the zero Context is the Failed sentinel, and a usable empty one comes from
// NewContext.
type Context struct {
	facets PMap
	debug  bool
	logger hclog.Logger
}

// Config bundles the process-wide knobs the spec calls out as better
// modeled as constructor configuration than as global mutable state
// (spec.md §9): the DEBUG flag and a logger. A nil Logger gets a quiet
// default so callers never need a nil check.
type Config struct {
	// Debug gates the hierarchical broadcasts fired on every facet
	// mutation (spec.md §4.2). Release builds should leave this false.
	Debug bool
	// Logger receives Trace-level diagnostics from the solver and its
	// subsystems when non-nil. Sub-loggers are derived per subsystem via
	// Named ("context", "unify", "constraints", "heuristics", "solver").
	Logger hclog.Logger
}

// NewContext builds the empty root Context a program starts from, with the
// default walk-condensation policy already installed (substitutions.go).
func NewContext(cfg Config) Context {
	logger := cfg.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	ctx := Context{facets: NewPMap(), debug: cfg.Debug, logger: logger}
	return installDefaultCondensation(ctx)
}

// Debug reports whether this context was constructed with debug
// instrumentation enabled.
func (c Context) Debug() bool { return c.debug }

// Logger returns the context's configured logger, never nil.
func (c Context) Logger() hclog.Logger { return c.logger }

// Failed is the distinguished sentinel context returned by unification and
// constraint failures (spec.md §7). Callers must compare by identity
// (IsFailed), never by treating an empty context as failure. Every Context
// built via NewContext carries a non-nil facets tree, so the sentinel's
// zero-value (nil) tree is never mistaken for a real, merely-empty context.
var Failed = Context{}

// IsFailed reports whether ctx is the Failed sentinel.
func IsFailed(ctx Context) bool {
	return ctx.facets.tree == nil
}

// facetOps is the generic operation set every facet is built from
// (spec.md §4.2): get_whole/get/set/set_whole/update/mutate, plus the
// debug-mode hierarchical broadcasts that fire on every mutation. K is the
// facet's key type, V its value type.
type facetOps[K any, V any] struct {
	id      FacetID
	deflt   V
	keyOf   func(K) []byte
	rawKeys bool // true if K is already a key usable for reverse-lookup diagnostics
}

func newFacet[K any, V any](id FacetID, deflt V, keyOf func(K) []byte) facetOps[K, V] {
	return facetOps[K, V]{id: id, deflt: deflt, keyOf: keyOf}
}

// newStringFacet is newFacet specialized to facets whose keys are plain
// strings encoded with the package's own "s:" prefix convention (keyOf, pmap.go),
// which makes them reversible — unlike a facet keyed on *Variable identity
// or a tuple, there's no information lost decoding the raw PMap key back
// into K. That reversibility is what lets Keys list a string-keyed facet's
// contents for debug tooling without a side index.
func newStringFacet[V any](id FacetID, deflt V) facetOps[string, V] {
	f := newFacet[string, V](id, deflt, func(k string) []byte { return keyOf(k) })
	f.rawKeys = true
	return f
}

// Keys lists every key currently present in this facet, sorted for
// deterministic debug output (spec.md §4.2 debug-mode instrumentation).
// It only works for facets built with newStringFacet; any other facet
// returns nil, since keyOf's encoding for *Variable, int, or tuple keys
// can't generally be inverted back into K.
func (f facetOps[K, V]) Keys(ctx Context) []string {
	if !f.rawKeys {
		return nil
	}
	var raw []string
	f.GetWhole(ctx).ForEach(func(key []byte, _ any) bool {
		raw = append(raw, strings.TrimPrefix(string(key), "s:"))
		return true
	})
	return sortedStringKeys(raw)
}

// GetWhole returns the facet's entire map, or its empty default.
func (f facetOps[K, V]) GetWhole(ctx Context) PMap {
	raw, ok := ctx.facets.Get(keyOf(f.id))
	if !ok {
		return NewPMap()
	}
	return raw.(PMap)
}

// Get returns the value at key, or the facet's declared default.
func (f facetOps[K, V]) Get(ctx Context, key K) V {
	whole := f.GetWhole(ctx)
	raw, ok := whole.Get(f.keyOf(key))
	if !ok {
		return f.deflt
	}
	return raw.(V)
}

// SetWhole replaces the facet's entire map.
func (f facetOps[K, V]) SetWhole(ctx Context, whole PMap) Context {
	ctx2 := ctx
	ctx2.facets = ctx.facets.Set(keyOf(f.id), whole)
	if ctx.debug {
		ctx2 = debugBroadcast(ctx2, f.id, "set_whole", whole)
	}
	return ctx2
}

// Set writes a single key/value pair into the facet.
func (f facetOps[K, V]) Set(ctx Context, key K, val V) Context {
	whole := f.GetWhole(ctx).Set(f.keyOf(key), val)
	ctx2 := ctx
	ctx2.facets = ctx.facets.Set(keyOf(f.id), whole)
	if ctx.debug {
		ctx2 = debugBroadcast(ctx2, f.id, "set", [2]any{key, val})
	}
	return ctx2
}

// Delete removes a key from the facet, if present.
func (f facetOps[K, V]) Delete(ctx Context, key K) Context {
	whole := f.GetWhole(ctx).Delete(f.keyOf(key))
	ctx2 := ctx
	ctx2.facets = ctx.facets.Set(keyOf(f.id), whole)
	if ctx.debug {
		ctx2 = debugBroadcast(ctx2, f.id, "delete", key)
	}
	return ctx2
}

// Update merges a batch of key/value pairs using the facet's transient
// builder, so N updates cost one round of structural sharing instead of N.
func (f facetOps[K, V]) Update(ctx Context, updates map[K]V) Context {
	whole := f.GetWhole(ctx)
	txn := whole.Txn()
	for k, v := range updates {
		txn.Set(f.keyOf(k), v)
	}
	ctx2 := f.SetWhole(ctx, txn.Commit())
	if ctx.debug {
		ctx2 = debugBroadcast(ctx2, f.id, "update", updates)
	}
	return ctx2
}

// Mutate exposes the facet's raw Txn to a caller-supplied mutator function,
// for batched writes that don't fit the update(kv-pairs) shape.
func (f facetOps[K, V]) Mutate(ctx Context, mutator func(*Txn)) Context {
	whole := f.GetWhole(ctx)
	txn := whole.Txn()
	mutator(txn)
	ctx2 := f.SetWhole(ctx, txn.Commit())
	if ctx.debug {
		ctx2 = debugBroadcast(ctx2, f.id, "mutate", nil)
	}
	return ctx2
}

// debugBroadcast fires the (Facet, op) and (facetID, op) hierarchical
// broadcasts that spec.md §4.2 requires in debug mode. Release mode never
// calls this; behavior is otherwise identical between the two modes.
func debugBroadcast(ctx Context, id FacetID, op string, data any) Context {
	ctx.Logger().Named("context").Trace("facet mutation", "facet", id, "op", op)
	ctx = RunBroadcast(ctx, BroadcastKey{"Facet", op}, data)
	ctx = RunBroadcast(ctx, BroadcastKey{string(id), op}, data)
	return ctx
}
