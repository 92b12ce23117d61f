// Package minikanren implements a relational programming engine of the
// miniKanren family: logic variables, relations, and goals composed with
// conjunction and disjunction are evaluated against an immutable, threaded
// context to enumerate every substitution that satisfies the conjoined
// goals.
//
// The engine is built from four co-designed subsystems:
//
//   - an immutable context of typed "facets" (persistent-map backed,
//     supporting O(log n) functional update and hypothetical forks);
//   - unification and substitution over a union-find-like store, with
//     hookable extensions (Neq, Distinct, Notin, cardinality) that run on
//     every binding;
//   - a goal algebra over lazy, pull-based context streams, where
//     conjunction is a monadic bind and disjunction is fair interleaving;
//   - search-order heuristics that reorder conjuncts of tabulated
//     relations using per-variable value distributions, a shared-variable
//     entanglement graph, and pairwise join cardinality estimates.
//
// A single Solver is sequential and lazy: there is no concurrency across
// solver instances, and goals captured at construction are idempotent with
// respect to the fact-table snapshot they were built against.
package minikanren
