package minikanren

import (
	"fmt"
	"sort"
	"strings"

	iradix "github.com/hashicorp/go-immutable-radix/v2"
)

// PMap is the structurally-shared persistent map every Context and every
// Facet instance is built from (spec.md §4.1). Lookup and update are
// O(log32 n); Set never mutates the receiver, so two goroutines (or two
// speculative forks of the same context) can hold different PMaps that
// share the bulk of their internal nodes.
//
// Keys are raw bytes. Callers that need arbitrary comparable keys (logic
// variables, hook identifiers, tuples) go through keyOf below to get a
// stable byte encoding before touching a PMap.
type PMap struct {
	tree *iradix.Tree[any]
}

// NewPMap returns the empty persistent map.
func NewPMap() PMap {
	return PMap{tree: iradix.New[any]()}
}

func (m PMap) treeOrEmpty() *iradix.Tree[any] {
	if m.tree == nil {
		return iradix.New[any]()
	}
	return m.tree
}

// Get returns the value stored under key, if any.
func (m PMap) Get(key []byte) (any, bool) {
	if m.tree == nil {
		return nil, false
	}
	return m.tree.Get(key)
}

// Set returns a new PMap with key bound to val, sharing structure with m.
func (m PMap) Set(key []byte, val any) PMap {
	t, _, _ := m.treeOrEmpty().Insert(key, val)
	return PMap{tree: t}
}

// Delete returns a new PMap with key removed, or m itself if key was absent
// (so callers can cheaply detect a no-op and avoid allocating a new Context).
func (m PMap) Delete(key []byte) PMap {
	if m.tree == nil {
		return m
	}
	t, _, ok := m.tree.Delete(key)
	if !ok {
		return m
	}
	return PMap{tree: t}
}

// Len returns the number of entries.
func (m PMap) Len() int {
	if m.tree == nil {
		return 0
	}
	return m.tree.Len()
}

// ForEach walks every entry in key order, stopping early if fn returns false.
func (m PMap) ForEach(fn func(key []byte, val any) bool) {
	if m.tree == nil {
		return
	}
	m.tree.Root().Walk(func(k []byte, v any) bool {
		return !fn(k, v)
	})
}

// Txn is a batched-mutation builder over a PMap (the "transient builder"
// of spec.md §4.1): a sequence of Set/Delete calls on a Txn performs one
// round of structural sharing instead of one per call, then Commit
// finalizes a new immutable PMap.
type Txn struct {
	txn *iradix.Txn[any]
}

// Txn begins a batched mutation of m.
func (m PMap) Txn() *Txn {
	return &Txn{txn: m.treeOrEmpty().Txn()}
}

// Set stages a binding inside the transaction.
func (t *Txn) Set(key []byte, val any) { t.txn.Insert(key, val) }

// Delete stages a removal inside the transaction.
func (t *Txn) Delete(key []byte) { t.txn.Delete(key) }

// Commit finalizes the transaction into a new persistent PMap.
func (t *Txn) Commit() PMap { return PMap{tree: t.txn.Commit()} }

// Cel is an immutable singly-linked cons cell, used for hook chains (see
// hooks.go) and any other place that wants O(1) prepend with structural
// sharing. Iteration order is newest-first: the most recently consed head
// runs first.
type Cel[T any] struct {
	head T
	tail *Cel[T]
}

// Cons prepends head onto tail, returning a new list. tail may be nil.
func Cons[T any](head T, tail *Cel[T]) *Cel[T] {
	return &Cel[T]{head: head, tail: tail}
}

// Each walks the list newest-first, stopping early if fn returns false.
func (c *Cel[T]) Each(fn func(T) bool) {
	for cur := c; cur != nil; cur = cur.tail {
		if !fn(cur.head) {
			return
		}
	}
}

// Slice materializes the list newest-first into a slice.
func (c *Cel[T]) Slice() []T {
	var out []T
	c.Each(func(v T) bool { out = append(out, v); return true })
	return out
}

// keyOf derives a stable byte encoding for the handful of key shapes the
// engine's facets actually use: hookID/FacetID strings, *Variable identity,
// integers, and tuples (joined hierarchical broadcast keys). It intentionally
// does not attempt to support arbitrary Go values — the spec's "any
// hashable identifier or tuple" is realized here as this closed set of key
// shapes, per the design note about hook-key identity (spec.md §9).
func keyOf(key any) []byte {
	switch k := key.(type) {
	case string:
		return []byte("s:" + k)
	case FacetID:
		return []byte("f:" + string(k))
	case HookID:
		return []byte("h:" + string(k))
	case *Variable:
		return []byte(fmt.Sprintf("v:%d", k.id))
	case int:
		return []byte(fmt.Sprintf("i:%d", k))
	case uint32:
		return []byte(fmt.Sprintf("u:%d", k))
	case []string:
		return []byte("t:" + strings.Join(k, "\x00"))
	case BroadcastKey:
		return []byte("t:" + strings.Join([]string(k), "\x00"))
	default:
		return []byte(fmt.Sprintf("?:%v", k))
	}
}

// sortedStringKeys returns ks sorted for deterministic iteration, used by
// debug/repr paths that must not depend on PMap's internal byte ordering
// matching insertion order.
func sortedStringKeys(ks []string) []string {
	out := append([]string(nil), ks...)
	sort.Strings(out)
	return out
}
