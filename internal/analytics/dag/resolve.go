package dag

import (
	"github.com/tm1ddleton/analytics/internal/analytics/key"
	"github.com/tm1ddleton/analytics/internal/analytics/registry"
)

// Resolver drives §4.A's resolve(key) → node_id: interning plus recursive
// dependency wiring against a fixed registry. It holds no state of its own
// beyond the Graph and Registry it was built with — all mutable state lives
// in the Graph.
type Resolver struct {
	Graph    *Graph
	Registry *registry.Registry
}

// NewResolver pairs a graph with the registry used to auto-wire its edges.
func NewResolver(g *Graph, r *registry.Registry) *Resolver {
	return &Resolver{Graph: g, Registry: r}
}

// Resolve interns k. If k has not been seen before, it asks the registry
// for k's parent keys, recursively resolves each one, and links the
// resulting edges before returning the new id. An unknown analytic type or
// a cycle among dependency functions aborts the whole resolution.
func (res *Resolver) Resolve(k key.NodeKey) (NodeID, error) {
	id, created := res.Graph.Resolve(k)
	if !created {
		return id, nil
	}

	def, err := res.Registry.Get(k.Analytic)
	if err != nil {
		return id, err
	}

	parentKeys, err := def.Dependencies(k)
	if err != nil {
		return id, err
	}

	for _, pk := range parentKeys {
		parentID, err := res.Resolve(pk)
		if err != nil {
			return id, err
		}
		if err := res.Graph.AddEdge(parentID, id); err != nil {
			return id, err
		}
	}

	return id, nil
}
