package engine

import "slices"

// Graph is an undirected adjacency list over location ids.
// It is not safe for concurrent use; Store guards it.
type Graph struct {
	adj map[string][]string
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{adj: make(map[string][]string)}
}

// AddNode registers a location id with no edges.
func (g *Graph) AddNode(id string) {
	if _, ok := g.adj[id]; !ok {
		g.adj[id] = nil
	}
}

// HasNode reports whether id is registered.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.adj[id]
	return ok
}

// Connect adds the edge a<->b. Self loops are ignored.
func (g *Graph) Connect(a, b string) {
	if a == b {
		return
	}
	g.AddNode(a)
	g.AddNode(b)
	if !slices.Contains(g.adj[a], b) {
		g.adj[a] = append(g.adj[a], b)
	}
	if !slices.Contains(g.adj[b], a) {
		g.adj[b] = append(g.adj[b], a)
	}
}

// Connected reports whether an edge joins a and b.
func (g *Graph) Connected(a, b string) bool {
	return slices.Contains(g.adj[a], b)
}

// Neighbors returns the ids adjacent to id, in insertion order.
func (g *Graph) Neighbors(id string) []string {
	return slices.Clone(g.adj[id])
}
