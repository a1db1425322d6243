package dag

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vk/kernforge/internal/artifact"
)

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{
		nodes:  make(map[string]*vertex),
		owners: make(map[string]string),
	}
}

// AddNode adds n to the graph. It fails when a node with the same ID is
// already present or when one of n's outputs is owned by another node.
func (g *Graph) AddNode(n *artifact.Node) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	id := n.ID()
	if _, ok := g.nodes[id]; ok {
		return fmt.Errorf("duplicate node: %s", id)
	}

	for _, out := range n.Outputs {
		key := filepath.Clean(out)
		if owner, ok := g.owners[key]; ok {
			return fmt.Errorf("output %s declared by both %s and %s", out, owner, id)
		}
	}
	for _, out := range n.Outputs {
		g.owners[filepath.Clean(out)] = id
	}

	g.nodes[id] = &vertex{
		node:       n,
		deps:       make(map[string]*vertex),
		dependents: make(map[string]*vertex),
	}
	return nil
}

// AddEdge creates a directed edge from the `fromID` node to the `toID` node.
// This signifies that `toID` has a dependency on `fromID`. An error is returned
// if either node does not exist or if the edge would create a self-reference.
func (g *Graph) AddEdge(fromID, toID string) error {
	if fromID == toID {
		return fmt.Errorf("self-referential edge not allowed: %s -> %s", fromID, fromID)
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	from, ok := g.nodes[fromID]
	if !ok {
		return fmt.Errorf("source node not found: %s", fromID)
	}

	to, ok := g.nodes[toID]
	if !ok {
		return fmt.Errorf("destination node not found: %s", toID)
	}

	to.deps[fromID] = from
	from.dependents[toID] = to

	return nil
}

// Link adds an edge for every dependency address each node declares.
func (g *Graph) Link() error {
	for _, n := range g.Nodes() {
		for _, dep := range n.Deps {
			if err := g.AddEdge(dep.String(), n.ID()); err != nil {
				return fmt.Errorf("linking %s: %w", n.ID(), err)
			}
		}
	}
	return nil
}

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (*artifact.Node, bool) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	v, ok := g.nodes[id]
	if !ok {
		return nil, false
	}
	return v.node, true
}

// Nodes returns every node, sorted by ID.
func (g *Graph) Nodes() []*artifact.Node {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	out := make([]*artifact.Node, 0, len(g.nodes))
	for _, id := range g.sortedIDs() {
		out = append(out, g.nodes[id].node)
	}
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.nodes)
}

// Dependencies returns the sorted IDs of the nodes the given node depends on.
func (g *Graph) Dependencies(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	v, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return sortedKeys(v.deps), nil
}

// Dependents returns the sorted IDs of the nodes that depend on the given node.
func (g *Graph) Dependents(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	v, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return sortedKeys(v.dependents), nil
}

// DetectCycles checks the graph for any cycles. It returns a non-nil error
// naming the nodes on the first cycle found. Traversal order is sorted, so
// the reported cycle is stable across runs.
func (g *Graph) DetectCycles() error {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	// permanent: fully visited and not part of a cycle.
	// temporary: on the current recursion stack.
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)
	var stack []string

	var visit func(v *vertex) error
	visit = func(v *vertex) error {
		id := v.node.ID()
		if permanent[id] {
			return nil
		}
		if temporary[id] {
			start := 0
			for i, s := range stack {
				if s == id {
					start = i
					break
				}
			}
			path := append(append([]string{}, stack[start:]...), id)
			return fmt.Errorf("cycle detected involving node '%s': %s", id, strings.Join(path, " -> "))
		}

		temporary[id] = true
		stack = append(stack, id)

		for _, depID := range sortedKeys(v.dependents) {
			if err := visit(v.dependents[depID]); err != nil {
				return err
			}
		}

		stack = stack[:len(stack)-1]
		delete(temporary, id)
		permanent[id] = true
		return nil
	}

	for _, id := range g.sortedIDs() {
		if err := visit(g.nodes[id]); err != nil {
			return err
		}
	}
	return nil
}

// Closure returns the sorted IDs of the given targets and every node they
// transitively depend on.
func (g *Graph) Closure(targets ...string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	seen := make(map[string]bool)
	var walk func(v *vertex)
	walk = func(v *vertex) {
		id := v.node.ID()
		if seen[id] {
			return
		}
		seen[id] = true
		for _, dep := range v.deps {
			walk(dep)
		}
	}

	for _, t := range targets {
		v, ok := g.nodes[t]
		if !ok {
			return nil, fmt.Errorf("node not found: %s", t)
		}
		walk(v)
	}

	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// TopoOrder orders ids so that every node comes after all of its
// dependencies that are also in ids. Ties are broken by ID. The graph must be
// acyclic.
func (g *Graph) TopoOrder(ids []string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	in := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := g.nodes[id]; !ok {
			return nil, fmt.Errorf("node not found: %s", id)
		}
		in[id] = true
	}

	pending := make(map[string]int, len(in))
	var ready []string
	for id := range in {
		count := 0
		for depID := range g.nodes[id].deps {
			if in[depID] {
				count++
			}
		}
		pending[id] = count
		if count == 0 {
			ready = append(ready, id)
		}
	}

	out := make([]string, 0, len(in))
	for len(ready) > 0 {
		sort.Strings(ready)
		id := ready[0]
		ready = ready[1:]
		out = append(out, id)
		for depID := range g.nodes[id].dependents {
			if !in[depID] {
				continue
			}
			pending[depID]--
			if pending[depID] == 0 {
				ready = append(ready, depID)
			}
		}
	}

	if len(out) != len(in) {
		return nil, fmt.Errorf("cycle detected among %d nodes", len(in)-len(out))
	}
	return out, nil
}

// sortedIDs returns every node ID in sorted order. Callers hold the lock.
func (g *Graph) sortedIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedKeys(m map[string]*vertex) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
