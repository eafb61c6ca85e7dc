// Package graph builds the dependency DAG of a plan's work items and answers
// the two scheduling questions the orchestrator asks of it: what is a safe
// total execution order, and which items are ready given what has completed.
package graph

import (
	"container/heap"
	"fmt"
	"sort"
	"strings"

	"github.com/felixgeelhaar/orchestra/internal/errors"
)

// DependencyLookup returns the declared dependencies of a work item.
// It is implemented by the plan descriptor.
type DependencyLookup interface {
	Dependencies(id string) ([]string, error)
}

// LookupFunc adapts a function to DependencyLookup.
type LookupFunc func(id string) ([]string, error)

// Dependencies implements DependencyLookup.
func (f LookupFunc) Dependencies(id string) ([]string, error) {
	return f(id)
}

// CycleError is returned when the graph cannot be totally ordered.
// Remaining holds every identifier Kahn's algorithm could not emit, sorted;
// it contains each cycle plus anything downstream of one.
type CycleError struct {
	Remaining []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected among work items: %s", strings.Join(e.Remaining, ", "))
}

// ErrorCode implements errors.Coded
func (e *CycleError) ErrorCode() errors.ErrorCode {
	return errors.ErrCodeGraphCycle
}

// MissingDependencyError is returned when a work item depends on an
// identifier that is not part of the graph.
type MissingDependencyError struct {
	ItemID     string
	Dependency string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("work item %s depends on unknown work item %s", e.ItemID, e.Dependency)
}

// ErrorCode implements errors.Coded
func (e *MissingDependencyError) ErrorCode() errors.ErrorCode {
	return errors.ErrCodeGraphMissingDependency
}

type node struct {
	id         string
	deps       []string
	dependents []string
}

// Graph is an immutable dependency graph. It is safe for concurrent reads.
type Graph struct {
	nodes map[string]*node
	ids   []string
}

// Build constructs a graph from ids, asking lookup for each id's dependencies.
// Every dependency must itself be one of ids.
func Build(ids []string, lookup DependencyLookup) (*Graph, error) {
	g := &Graph{
		nodes: make(map[string]*node, len(ids)),
		ids:   make([]string, 0, len(ids)),
	}

	for _, id := range ids {
		if _, exists := g.nodes[id]; exists {
			return nil, errors.New(errors.ErrCodeGraphDuplicateItem, fmt.Sprintf("duplicate work item %s", id))
		}
		g.nodes[id] = &node{id: id}
		g.ids = append(g.ids, id)
	}
	sort.Strings(g.ids)

	for _, id := range ids {
		deps, err := lookup.Dependencies(id)
		if err != nil {
			return nil, fmt.Errorf("lookup dependencies of %s: %w", id, err)
		}

		n := g.nodes[id]
		seen := make(map[string]bool, len(deps))
		for _, dep := range deps {
			if seen[dep] {
				continue
			}
			seen[dep] = true

			depNode, ok := g.nodes[dep]
			if !ok {
				return nil, &MissingDependencyError{ItemID: id, Dependency: dep}
			}
			n.deps = append(n.deps, dep)
			depNode.dependents = append(depNode.dependents, id)
		}
		sort.Strings(n.deps)
	}

	for _, n := range g.nodes {
		sort.Strings(n.dependents)
	}

	return g, nil
}

// Len returns the number of work items.
func (g *Graph) Len() int {
	return len(g.ids)
}

// IDs returns every identifier in ascending order.
func (g *Graph) IDs() []string {
	out := make([]string, len(g.ids))
	copy(out, g.ids)
	return out
}

// Has reports whether id is a node of the graph.
func (g *Graph) Has(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Dependencies returns the direct dependencies of id, sorted.
func (g *Graph) Dependencies(id string) []string {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	return append([]string(nil), n.deps...)
}

// Dependents returns the items that directly depend on id, sorted.
func (g *Graph) Dependents(id string) []string {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	return append([]string(nil), n.dependents...)
}

// ExecutionOrder returns a topological order computed with Kahn's algorithm.
// Among items whose dependencies are all emitted, the lexicographically
// smallest id goes first, so the order is deterministic.
func (g *Graph) ExecutionOrder() ([]string, error) {
	remaining := make(map[string]int, len(g.nodes))
	queue := &idHeap{}

	for _, id := range g.ids {
		remaining[id] = len(g.nodes[id].deps)
		if remaining[id] == 0 {
			heap.Push(queue, id)
		}
	}

	order := make([]string, 0, len(g.ids))
	for queue.Len() > 0 {
		id := heap.Pop(queue).(string)
		order = append(order, id)

		for _, dependent := range g.nodes[id].dependents {
			remaining[dependent]--
			if remaining[dependent] == 0 {
				heap.Push(queue, dependent)
			}
		}
	}

	if len(order) < len(g.ids) {
		var stuck []string
		for _, id := range g.ids {
			if remaining[id] > 0 {
				stuck = append(stuck, id)
			}
		}
		return nil, &CycleError{Remaining: stuck}
	}

	return order, nil
}

// HasCycle reports whether the graph contains a cycle.
func (g *Graph) HasCycle() bool {
	_, err := g.ExecutionOrder()
	return err != nil
}

// Ready returns, ascending, every item not in completed whose dependencies
// are all in completed.
func (g *Graph) Ready(completed map[string]bool) []string {
	var ready []string
	for _, id := range g.ids {
		if completed[id] {
			continue
		}
		if g.satisfied(id, completed) {
			ready = append(ready, id)
		}
	}
	return ready
}

func (g *Graph) satisfied(id string, completed map[string]bool) bool {
	for _, dep := range g.nodes[id].deps {
		if !completed[dep] {
			return false
		}
	}
	return true
}

// Blocked returns, ascending, every item that can never become ready because
// one of its transitive dependencies is in failed.
func (g *Graph) Blocked(failed map[string]bool) []string {
	blocked := make(map[string]bool)
	var visit func(id string)
	visit = func(id string) {
		for _, dependent := range g.nodes[id].dependents {
			if !blocked[dependent] {
				blocked[dependent] = true
				visit(dependent)
			}
		}
	}
	for id := range failed {
		if g.Has(id) {
			visit(id)
		}
	}

	out := make([]string, 0, len(blocked))
	for id := range blocked {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// idHeap is a min-heap of identifiers.
type idHeap []string

func (h idHeap) Len() int           { return len(h) }
func (h idHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h idHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *idHeap) Push(x any) {
	*h = append(*h, x.(string))
}

func (h *idHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
