package minikanren

import (
	"encoding/binary"
	"fmt"

	iradix "github.com/hashicorp/go-immutable-radix/v2"
	"github.com/hashicorp/go-set/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// ctxSizeKey identifies a (relation, context-lineage) pair for
// ctxSizeCache. PMap is comparable (its only field is a pointer into the
// shared persistent tree), so two Contexts descended from the same facet
// writes hit the same cache entry without any extra bookkeeping.
type ctxSizeKey struct {
	table  *FactTable
	facets PMap
}

// ctxSizeCache memoizes factsGoal.CtxSize, which the conjunction
// heuristics call repeatedly against the same context while comparing
// sibling goals (spec.md §6; SPEC_FULL.md AMBIENT STACK). Capacity is
// generous but bounded: a long-running solver walks through many distinct
// contexts over a search and should not retain all of them forever.
var ctxSizeCache = mustNewCtxSizeCache()

func mustNewCtxSizeCache() *lru.Cache[ctxSizeKey, int] {
	c, err := lru.New[ctxSizeKey, int](4096)
	if err != nil {
		panic(&FatalError{Err: err})
	}
	return c
}

// FactTable is a relation's extension: a 2-D array of small unsigned
// integer codes plus, per column, a value→row-count distribution
// (spec.md §4.9). Every distinct value that ever appears in the table is
// interned once into codeToValue/valueToCode; rows then only ever store
// the uint32 codes, which is what lets a wide relation's row mask be
// computed with plain integer comparisons instead of reflect.DeepEqual.
type FactTable struct {
	name        string
	arity       int
	rows        [][]uint32
	codeToValue []any
	valueToCode map[any]uint32
	colDist     []map[uint32]int

	// index maps a row's full sequence of column codes, encoded big-endian
	// and concatenated, to the indices of the rows with exactly those codes;
	// WalkPrefix over a leading-column key finds every row sharing it. A query
	// whose bound columns form a contiguous run starting at column 0
	// (the common case for a fact table addressed "most-selective column
	// first") walks this radix tree instead of scanning every row, the
	// same prefix-scan shape Nomad's state store uses go-immutable-radix
	// for (SPEC_FULL.md DOMAIN STACK).
	index *iradix.Tree[[]int]
}

// rowKey encodes a row's (prefix of) column codes as a byte string ordered
// so that WalkPrefix over index finds exactly the rows sharing that prefix.
func rowKey(codes []uint32) []byte {
	buf := make([]byte, 4*len(codes))
	for i, c := range codes {
		binary.BigEndian.PutUint32(buf[i*4:], c)
	}
	return buf
}

// NewFactTable validates rows against arity and interns their values.
// A relation with zero rows or any row of the wrong arity is a fatal
// construction error (spec.md §4.9, §7 item 5) — a query against an
// always-empty relation is almost certainly a mistake the caller should
// hear about immediately, not a quietly-always-failing Goal.
func NewFactTable(name string, arity int, rows [][]any) (*FactTable, error) {
	if arity <= 0 {
		return nil, &FatalError{Err: fmt.Errorf("relation %q: arity must be positive, got %d", name, arity)}
	}
	if len(rows) == 0 {
		return nil, &FatalError{Err: fmt.Errorf("relation %q: fact table must have at least one row", name)}
	}
	bad := map[int]int{}
	for i, r := range rows {
		if len(r) != arity {
			bad[i] = len(r)
		}
	}
	if len(bad) > 0 {
		return nil, newArityError(name, arity, bad)
	}

	t := &FactTable{
		name:        name,
		arity:       arity,
		valueToCode: make(map[any]uint32),
		colDist:     make([]map[uint32]int, arity),
		rows:        make([][]uint32, len(rows)),
	}
	for c := range t.colDist {
		t.colDist[c] = make(map[uint32]int)
	}
	for i, r := range rows {
		encoded := make([]uint32, arity)
		for c, v := range r {
			code := t.intern(v)
			encoded[c] = code
			t.colDist[c][code]++
		}
		t.rows[i] = encoded
	}

	idx := iradix.New[[]int]().Txn()
	for i, row := range t.rows {
		key := rowKey(row)
		existing, _ := idx.Get(key)
		idx.Insert(key, append(existing, i))
	}
	t.index = idx.Commit()

	return t, nil
}

func (t *FactTable) intern(v any) uint32 {
	if code, ok := t.valueToCode[v]; ok {
		return code
	}
	code := uint32(len(t.codeToValue))
	t.codeToValue = append(t.codeToValue, v)
	t.valueToCode[v] = code
	return code
}

func (t *FactTable) decode(code uint32) any { return t.codeToValue[code] }

// rowOrder filters mask down to live row indices, then runs the hook_facts
// pipeline hook so a row-permutation extension (HeurFactsOrdRnd, or a
// caller's own ordering policy) gets first say over traversal order
// (spec.md §4.9, §6).
func (t *FactTable) rowOrder(ctx Context, mask []bool) (Context, []int) {
	base := make([]int, 0, len(mask))
	for i, ok := range mask {
		if ok {
			base = append(base, i)
		}
	}
	ctx, val := RunPipeline(ctx, HookFacts, base)
	if reordered, ok := val.([]int); ok && len(reordered) == len(base) {
		return ctx, reordered
	}
	return ctx, base
}

// Relation is a named, arity-fixed fact table paired with the Goal
// constructor queries are built through (spec.md §4.9 "FreshRel").
type Relation struct {
	table *FactTable
}

// FreshRel builds a Relation from literal rows. All rows must share len
// rows[0]'s length.
func FreshRel(name string, rows [][]any) (*Relation, error) {
	if len(rows) == 0 {
		return nil, &FatalError{Err: fmt.Errorf("relation %q: fact table must have at least one row", name)}
	}
	table, err := NewFactTable(name, len(rows[0]), rows)
	if err != nil {
		return nil, err
	}
	return &Relation{table: table}, nil
}

// Goal builds a FactsGoal querying r with terms, one per column. terms may
// mix ground values, *Variable, and Wildcard.
func (r *Relation) Goal(terms ...any) Goal {
	if len(terms) != r.table.arity {
		panic(&FatalError{Err: fmt.Errorf(
			"relation %q: called with %d terms, want %d", r.table.name, len(terms), r.table.arity)})
	}
	return &factsGoal{table: r.table, terms: append([]any(nil), terms...)}
}

// factsGoal is the Goal FreshRel produces: it filters table's rows against
// ctx's current bindings and constraints, then unifies each surviving row
// against terms in turn (spec.md §4.9). It implements GoalCtxSizedVared so
// the conjunction heuristics can rank it against sibling goals without
// running it.
type factsGoal struct {
	table *FactTable
	terms []any
}

func walkTerms(ctx Context, terms []any) (Context, []any) {
	out := make([]any, len(terms))
	for i, t := range terms {
		ctx, out[i] = Walk(ctx, t)
	}
	return ctx, out
}

// Run implements Goal. Free columns (still a *Variable after walking) are
// filtered only by whatever Notin constraints are already registered on
// that variable; bound columns are filtered to their exact code. When the
// bound columns form a contiguous run starting at column 0, that run is
// resolved via table's radix index instead of a linear scan (see rowKey);
// any remaining ground columns past that run still fall back to a linear
// pass over the already-narrowed mask. Outside a hypothetical context,
// surviving rows also get a one-step unification lookahead against a
// speculative child context, so a row doomed to fail a downstream
// Neq/Distinct never gets yielded only to be immediately rejected by the
// caller's own Eq/And chain (spec.md §4.9, §4.11).
func (g *factsGoal) Run(ctx Context) Stream {
	ctx, walked := walkTerms(ctx, g.terms)

	prefixCodes := make([]uint32, 0, len(walked))
	for _, term := range walked {
		if _, isVar := term.(*Variable); isVar {
			break
		}
		code, known := g.table.valueToCode[term]
		if !known {
			return emptyStream
		}
		prefixCodes = append(prefixCodes, code)
	}
	prefixLen := len(prefixCodes)

	mask := make([]bool, len(g.table.rows))
	if prefixLen == 0 {
		for i := range mask {
			mask[i] = true
		}
	} else {
		g.table.index.Root().WalkPrefix(rowKey(prefixCodes), func(_ []byte, rows []int) bool {
			for _, i := range rows {
				mask[i] = true
			}
			return false
		})
	}

	for col, term := range walked {
		if col < prefixLen {
			continue
		}
		if _, isVar := term.(*Variable); isVar {
			continue
		}
		code, known := g.table.valueToCode[term]
		if !known {
			return emptyStream
		}
		for i, row := range g.table.rows {
			if mask[i] && row[col] != code {
				mask[i] = false
			}
		}
	}

	for col, term := range walked {
		v, isVar := term.(*Variable)
		if !isVar || IsWildcard(v) {
			continue
		}
		for _, c := range constraintsFacet.Get(ctx, v) {
			notin, ok := c.(Notin)
			if !ok || len(notin.Subject) > 1 {
				continue
			}
			for i, row := range g.table.rows {
				if mask[i] && !notin.Check(ctx, v, g.table.decode(row[col])) {
					mask[i] = false
				}
			}
		}
	}

	if !IsHypothetical(ctx) {
		ctx = g.pruneViaLookahead(ctx, walked, mask)
	}

	ctx, order := g.table.rowOrder(ctx, mask)
	if len(order) == 0 {
		ctx = RunBroadcast(ctx, BroadcastKey{"Facts", "hook_factcheck_failed"}, g.table.name)
		return emptyStream
	}
	ctx = RunBroadcast(ctx, BroadcastKey{"Facts", "hook_factcheck_passed"}, g.table.name)

	i := 0
	return StreamFunc(func() (Context, bool) {
		for i < len(order) {
			rowIdx := order[i]
			i++
			if c2, ok := g.unifyRow(ctx, walked, rowIdx); ok {
				return c2, true
			}
		}
		return Failed, false
	})
}

// colValKey identifies one (column, row-code) pair while tallying how a
// free column's candidate values fare under pruneViaLookahead's
// unification lookahead.
type colValKey struct {
	col  int
	code uint32
}

// pruneViaLookahead speculatively unifies every surviving row against a
// hypothetical child context, masking out any that fail — the same
// per-row check the goal has always done, so a row doomed by a
// downstream Neq/Distinct never gets yielded only to be rejected by the
// caller's own chain a step later (spec.md §4.9, §4.11). It additionally
// implements spec.md §4.9 step 4: for a free column, a value is only
// ever provably excludable from that variable's whole domain (not just
// from this table) when *every* surviving row carrying it failed the
// lookahead — a value that fails in one row but survives in another
// (e.g. a self-join row ruled out by Distinct while a different row with
// the same column value isn't) must not be forgotten here, since this
// goal is about to yield that other row as a real solution. Values that
// clear that bar get folded into the column variable's Notin via Expand,
// so a sibling goal sharing the variable inherits the exclusion too.
func (g *factsGoal) pruneViaLookahead(ctx Context, walked []any, mask []bool) Context {
	hyp := Hypothetically(ctx)
	total := map[colValKey]int{}
	for i, ok := range mask {
		if !ok {
			continue
		}
		row := g.table.rows[i]
		for col, term := range walked {
			if v, isVar := term.(*Variable); isVar && !IsWildcard(v) {
				total[colValKey{col, row[col]}]++
			}
		}
	}

	failed := map[colValKey]int{}
	for i, ok := range mask {
		if !ok {
			continue
		}
		if _, rowOK := g.unifyRow(hyp, walked, i); rowOK {
			continue
		}
		mask[i] = false
		row := g.table.rows[i]
		for col, term := range walked {
			if v, isVar := term.(*Variable); isVar && !IsWildcard(v) {
				failed[colValKey{col, row[col]}]++
			}
		}
	}

	excludable := map[int][]any{}
	for k, n := range failed {
		if n == total[k] {
			excludable[k.col] = append(excludable[k.col], g.table.decode(k.code))
		}
	}
	for col, values := range excludable {
		v := walked[col].(*Variable)
		var notin Notin
		if existing, ok := findNotin(ctx, v, []*Variable{v}); ok {
			ctx, notin = existing.Expand(ctx, values)
		} else {
			ctx = MakeNotin(ctx, values, v)
			notin, _ = findNotin(ctx, v, []*Variable{v})
		}
		ctx = installNotin(ctx, v, notin)
	}
	return ctx
}

func (g *factsGoal) unifyRow(ctx Context, walked []any, rowIdx int) (Context, bool) {
	row := g.table.rows[rowIdx]
	for col, term := range walked {
		ctx = Unify(ctx, term, g.table.decode(row[col]))
		if IsFailed(ctx) {
			return Failed, false
		}
	}
	return ctx, true
}

func (g *factsGoal) Vars() *set.Set[*Variable] {
	out := set.New[*Variable](len(g.terms))
	for _, t := range g.terms {
		if v, ok := t.(*Variable); ok && !IsWildcard(v) {
			out.Insert(v)
		}
	}
	return out
}

// CtxSize reports how many of the table's rows are still reachable given
// ctx's current ground bindings, without running the goal (spec.md §6).
func (g *factsGoal) CtxSize(ctx Context) int {
	key := ctxSizeKey{table: g.table, facets: ctx.facets}
	if n, ok := ctxSizeCache.Get(key); ok {
		return n
	}

	_, walked := walkTerms(ctx, g.terms)
	count := 0
	for _, row := range g.table.rows {
		ok := true
		for col, term := range walked {
			if _, isVar := term.(*Variable); isVar {
				continue
			}
			code, known := g.table.valueToCode[term]
			if !known || row[col] != code {
				ok = false
				break
			}
		}
		if ok {
			count++
		}
	}
	ctxSizeCache.Add(key, count)
	return count
}

// Distribution reports v's per-value row counts in this goal's table, or
// nil if v isn't one of this goal's terms.
func (g *factsGoal) Distribution(ctx Context, v *Variable) ValueDistribution {
	col := -1
	for i, t := range g.terms {
		if tv, ok := t.(*Variable); ok && tv == v {
			col = i
			break
		}
	}
	if col == -1 {
		return nil
	}
	dist := make(ValueDistribution, len(g.table.colDist[col]))
	for code, n := range g.table.colDist[col] {
		dist[g.table.decode(code)] = n
	}
	return dist
}

func (g *factsGoal) GoalName() string { return g.table.name }
