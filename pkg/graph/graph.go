// Package graph implements the in-memory dependency graph used for cycle
// detection, topological ordering, and dependency closure queries. Graphs
// are built on demand from asset dependency lists and discarded after the
// query; nothing here is persistent or concurrency-safe.
package graph

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/modelpark/registry/pkg/asset"
	"github.com/modelpark/registry/pkg/registry"
)

// cycleProbeDepthLimit caps WouldCreateCycle traversal so a pathological
// graph cannot pin a registration request.
const cycleProbeDepthLimit = 100

// Graph is a directed dependency graph over asset IDs. An edge from A to B
// means A depends on B. Only ID references become edges; loose
// name@version references are ignored until resolved.
type Graph struct {
	order []asset.ID
	nodes mapset.Set[asset.ID]
	edges map[asset.ID][]asset.ID
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes: mapset.NewThreadUnsafeSet[asset.ID](),
		edges: make(map[asset.ID][]asset.ID),
	}
}

// AddNode registers a node without edges. Adding twice is a no-op.
func (g *Graph) AddNode(id asset.ID) {
	if g.nodes.Add(id) {
		g.order = append(g.order, id)
	}
}

// AddEdge records that from depends on to. Both endpoints become nodes.
func (g *Graph) AddEdge(from, to asset.ID) {
	g.AddNode(from)
	g.AddNode(to)
	for _, existing := range g.edges[from] {
		if existing == to {
			return
		}
	}
	g.edges[from] = append(g.edges[from], to)
}

// AddAsset adds an asset's node and one edge per resolvable dependency
// reference.
func (g *Graph) AddAsset(a *asset.Asset) {
	g.AddNode(a.ID)
	for _, ref := range a.Dependencies {
		if depID, ok := ref.ByID(); ok {
			g.AddEdge(a.ID, depID)
		}
	}
}

// AddDependencies records edges from an asset to each resolvable reference
// without requiring the full asset.
func (g *Graph) AddDependencies(id asset.ID, refs []asset.Reference) {
	g.AddNode(id)
	for _, ref := range refs {
		if depID, ok := ref.ByID(); ok {
			g.AddEdge(id, depID)
		}
	}
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.order)
}

// Contains reports whether the node is in the graph.
func (g *Graph) Contains(id asset.ID) bool {
	return g.nodes.Contains(id)
}

// Dependencies returns a node's direct outgoing edges in insertion order.
func (g *Graph) Dependencies(id asset.ID) []asset.ID {
	return append([]asset.ID(nil), g.edges[id]...)
}

// dfsFrame is one entry on the iterative DFS stack: a node and the index of
// the next child to visit.
type dfsFrame struct {
	node asset.ID
	next int
}

// DetectCycles walks the whole graph and returns a CircularDependency error
// describing the first cycle found, or nil when the graph is acyclic. The
// reported cycle lists the nodes in edge order, closed by repeating the
// entry node.
func (g *Graph) DetectCycles() error {
	visited := mapset.NewThreadUnsafeSet[asset.ID]()
	onStack := mapset.NewThreadUnsafeSet[asset.ID]()

	for _, start := range g.order {
		if visited.Contains(start) {
			continue
		}
		if cycle := g.findCycleFrom(start, visited, onStack); cycle != nil {
			return registry.CircularDependency(cycle)
		}
	}
	return nil
}

// findCycleFrom runs an iterative DFS from start, marking visited nodes, and
// returns the first cycle encountered or nil.
func (g *Graph) findCycleFrom(start asset.ID, visited, onStack mapset.Set[asset.ID]) []asset.ID {
	stack := []dfsFrame{{node: start}}
	path := []asset.ID{start}
	visited.Add(start)
	onStack.Add(start)

	for len(stack) > 0 {
		frame := &stack[len(stack)-1]
		children := g.edges[frame.node]

		if frame.next >= len(children) {
			onStack.Remove(frame.node)
			stack = stack[:len(stack)-1]
			path = path[:len(path)-1]
			continue
		}

		child := children[frame.next]
		frame.next++

		if onStack.Contains(child) {
			// Slice the current path from the cycle entry and close it.
			for i, node := range path {
				if node == child {
					cycle := append([]asset.ID(nil), path[i:]...)
					return append(cycle, child)
				}
			}
			// child is on the stack, so it is always on the path.
			return []asset.ID{child, child}
		}

		if !visited.Contains(child) {
			visited.Add(child)
			onStack.Add(child)
			stack = append(stack, dfsFrame{node: child})
			path = append(path, child)
		}
	}
	return nil
}

// TopologicalSort returns every node ordered so that each node's
// dependencies appear before the node itself. It fails with a
// CircularDependency error when the graph has a cycle.
func (g *Graph) TopologicalSort() ([]asset.ID, error) {
	if err := g.DetectCycles(); err != nil {
		return nil, err
	}

	visited := mapset.NewThreadUnsafeSet[asset.ID]()
	sorted := make([]asset.ID, 0, len(g.order))

	// Post-order DFS appends a node only after all of its dependencies,
	// which yields the dependencies-first order directly.
	for _, start := range g.order {
		if visited.Contains(start) {
			continue
		}
		visited.Add(start)
		stack := []dfsFrame{{node: start}}
		for len(stack) > 0 {
			frame := &stack[len(stack)-1]
			children := g.edges[frame.node]
			if frame.next >= len(children) {
				sorted = append(sorted, frame.node)
				stack = stack[:len(stack)-1]
				continue
			}
			child := children[frame.next]
			frame.next++
			if !visited.Contains(child) {
				visited.Add(child)
				stack = append(stack, dfsFrame{node: child})
			}
		}
	}
	return sorted, nil
}

// TransitiveDependencies returns the full dependency closure of a node,
// excluding the node itself, in discovery order.
func (g *Graph) TransitiveDependencies(id asset.ID) []asset.ID {
	seen := mapset.NewThreadUnsafeSet[asset.ID]()
	var result []asset.ID

	work := append([]asset.ID(nil), g.edges[id]...)
	for len(work) > 0 {
		current := work[0]
		work = work[1:]
		if !seen.Add(current) {
			continue
		}
		result = append(result, current)
		work = append(work, g.edges[current]...)
	}
	return result
}

// DirectDependents returns the nodes with a direct edge to the given node.
// Transitive dependents are deliberately excluded.
func (g *Graph) DirectDependents(id asset.ID) []asset.ID {
	var result []asset.ID
	for _, node := range g.order {
		for _, dep := range g.edges[node] {
			if dep == id {
				result = append(result, node)
				break
			}
		}
	}
	return result
}

// WouldCreateCycle reports whether adding an edge from -> to would close a
// cycle, i.e. whether from is already reachable starting at to. A self edge
// always counts. Traversal gives up past a fixed depth and reports false.
func (g *Graph) WouldCreateCycle(from, to asset.ID) bool {
	if from == to {
		return true
	}

	type probe struct {
		node  asset.ID
		depth int
	}
	seen := mapset.NewThreadUnsafeSet[asset.ID]()
	work := []probe{{node: to}}

	for len(work) > 0 {
		current := work[len(work)-1]
		work = work[:len(work)-1]
		if current.node == from {
			return true
		}
		if current.depth >= cycleProbeDepthLimit {
			continue
		}
		if !seen.Add(current.node) {
			continue
		}
		for _, next := range g.edges[current.node] {
			work = append(work, probe{node: next, depth: current.depth + 1})
		}
	}
	return false
}
