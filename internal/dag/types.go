package dag

import (
	"sync"

	"github.com/vk/kernforge/internal/artifact"
)

// Graph is a collection of artifact nodes and their dependencies.
// All operations on the graph are concurrency-safe.
type Graph struct {
	// mutex protects the maps during concurrent access.
	mutex sync.RWMutex
	// nodes stores all vertices in the graph, keyed by node ID.
	nodes map[string]*vertex
	// owners maps each declared output path to the node that owns it.
	owners map[string]string
}

// vertex wraps an artifact node with its adjacency sets.
type vertex struct {
	node *artifact.Node
	// deps holds the vertices this one depends on (predecessors).
	deps map[string]*vertex
	// dependents holds the vertices that depend on this one (successors).
	dependents map[string]*vertex
}
