package cob

import (
	"fmt"
	"sort"

	"github.com/nodeforge/heartwood/storage"
)

// Graph is a closed, acyclic, single-root DAG of change entries (spec.md
// §4.E). Nodes are held in an arena keyed by oid; children are indexed
// separately so evaluation can walk forward without direct object cycles
// (spec.md "Cyclic ownership" design note).
type Graph struct {
	Root     storage.Oid
	entries  map[storage.Oid]Entry
	children map[storage.Oid][]storage.Oid
}

// Entries returns the graph's entries in ascending oid order. Evaluate
// does not use this order; it folds in topological order, using ascending
// oid only to break ties.
func (g *Graph) Entries() []Entry {
	ids := make([]storage.Oid, 0, len(g.entries))
	for id := range g.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	out := make([]Entry, len(ids))
	for i, id := range ids {
		out[i] = g.entries[id]
	}
	return out
}

// Load walks backward from object's current tips, resolving each entry,
// verifying I5 (id commits to content) and its author's signature, and
// discards (prunes) any entry whose parents never resolve to a known entry
// after closure. The result is a closed acyclic graph with exactly one root.
func Load(store Storage, typename TypeName, object ObjectID) (*Graph, error) {
	tips, err := store.Tips(typename, object)
	if err != nil {
		return nil, fmt.Errorf("cob: load tips: %w", err)
	}
	entries := make(map[storage.Oid]Entry)
	var frontier []storage.Oid
	for _, t := range tips {
		frontier = append(frontier, t.Oid)
	}
	seen := make(map[storage.Oid]bool)
	var unresolved []storage.Oid
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		if seen[id] {
			continue
		}
		seen[id] = true
		entry, err := store.Entry(typename, object, id)
		if err != nil {
			// An entry that fails to resolve is pruned, along with
			// everything that only reaches the graph through it.
			unresolved = append(unresolved, id)
			continue
		}
		if err := entry.Verify(); err != nil {
			unresolved = append(unresolved, id)
			continue
		}
		entries[id] = entry
		for _, p := range entry.Parents {
			if !seen[p] {
				frontier = append(frontier, p)
			}
		}
	}
	entries = pruneUnreachable(entries, unresolved)

	children := make(map[storage.Oid][]storage.Oid)
	var roots []storage.Oid
	for id, e := range entries {
		if len(e.Parents) == 0 {
			roots = append(roots, id)
		}
		for _, p := range e.Parents {
			children[p] = append(children[p], id)
		}
	}
	if len(roots) != 1 {
		return nil, fmt.Errorf("cob: graph for %s/%s has %d roots, want 1", typename, object, len(roots))
	}
	return &Graph{Root: roots[0], entries: entries, children: children}, nil
}

// pruneUnreachable removes from entries any entry that (transitively)
// depends on one of the oids in unresolved, since its parents can never be
// fully closed.
func pruneUnreachable(entries map[storage.Oid]Entry, unresolved []storage.Oid) map[storage.Oid]Entry {
	if len(unresolved) == 0 {
		return entries
	}
	missing := make(map[storage.Oid]bool, len(unresolved))
	for _, id := range unresolved {
		missing[id] = true
	}
	changed := true
	for changed {
		changed = false
		for id, e := range entries {
			if missing[id] {
				continue
			}
			for _, p := range e.Parents {
				if missing[p] {
					missing[id] = true
					changed = true
					break
				}
			}
		}
	}
	out := make(map[storage.Oid]Entry, len(entries))
	for id, e := range entries {
		if !missing[id] {
			out[id] = e
		}
	}
	return out
}

// topologicalOrder returns the graph's entries in a deterministic order:
// parents strictly before children, ties (entries whose dependencies are
// all already placed) broken by ascending oid (spec.md §4.E "stable
// tie-break").
func (g *Graph) topologicalOrder() []Entry {
	indegree := make(map[storage.Oid]int, len(g.entries))
	for id, e := range g.entries {
		indegree[id] = len(e.Parents)
	}
	var ready []storage.Oid
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	var order []Entry
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i].String() < ready[j].String() })
		id := ready[0]
		ready = ready[1:]
		order = append(order, g.entries[id])
		for _, c := range g.children[id] {
			indegree[c]--
			if indegree[c] == 0 {
				ready = append(ready, c)
			}
		}
	}
	return order
}

// Reducer folds one entry into an accumulated object value. Implementations
// are supplied per-typename; the graph guarantees topology and determinism
// (I6), the reducer only needs to be a pure function of (state, entry).
type Reducer[T any] func(state T, entry Entry) T

// Evaluate folds the graph's entries in deterministic topological order
// into an object value, starting from zero. Evaluation is a pure function
// of the graph: two graphs with the same entry set always evaluate to the
// same value (I6), which is what gives two peers with different subsets of
// a growing history the convergence property in spec.md §4.E.
func Evaluate[T any](g *Graph, zero T, reduce Reducer[T]) T {
	state := zero
	for _, entry := range g.topologicalOrder() {
		state = reduce(state, entry)
	}
	return state
}
