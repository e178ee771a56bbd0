// ABOUTME: Relationship graph - queries over the directed labeled bead edges
// ABOUTME: A read-only projection of the store, rebuilt on demand
package graph

import (
	"fmt"
	"sort"

	"github.com/loomworks/beadloom/internal/models"
	"github.com/loomworks/beadloom/internal/storage/sqlite"
)

// Graph exposes relationship queries over the bead store
type Graph struct {
	store *sqlite.Storage
}

// New creates a Graph over the given store
func New(store *sqlite.Storage) *Graph {
	return &Graph{store: store}
}

// AddRelationship adds a directed edge. Self-loops, dangling ids, and
// duplicate (source, target, type) edges are rejected by the store; the bool
// reports whether a new edge was written.
func (g *Graph) AddRelationship(sourceID, targetID string, relType models.RelationType, strength float64) (bool, error) {
	return g.store.AddRelationship(sourceID, targetID, relType, strength)
}

// Related returns the beads connected to id by outgoing edges, optionally
// filtered by relationship type, ordered by target id.
func (g *Graph) Related(id string, relType models.RelationType) ([]*models.Bead, error) {
	if ok, err := g.store.BeadExists(id); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("related: %w", &sqlite.NotFoundError{ID: id})
	}

	edges, err := g.store.Relationships().Outgoing(id, relType)
	if err != nil {
		return nil, err
	}

	var beads []*models.Bead
	for _, e := range edges {
		bead, err := g.store.GetBead(e.TargetID)
		if err != nil {
			return nil, fmt.Errorf("related target %s: %w", e.TargetID, err)
		}
		beads = append(beads, bead)
	}
	return beads, nil
}

// Snapshot is an adjacency view of the whole relationship graph, for
// export and visualization collaborators.
type Snapshot struct {
	Nodes []string                 `json:"nodes"`
	Adj   map[string][]sqlite.Edge `json:"adjacency"`
}

// Snapshot builds the current adjacency snapshot from the store
func (g *Graph) Snapshot() (*Snapshot, error) {
	edges, err := g.store.Relationships().All()
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Adj: map[string][]sqlite.Edge{}}
	nodes := map[string]bool{}
	for _, e := range edges {
		snap.Adj[e.SourceID] = append(snap.Adj[e.SourceID], e)
		nodes[e.SourceID] = true
		nodes[e.TargetID] = true
	}
	for id := range nodes {
		snap.Nodes = append(snap.Nodes, id)
	}
	sort.Strings(snap.Nodes)
	return snap, nil
}

// Contradictions returns every pair of beads linked by a contradicts edge
func (g *Graph) Contradictions() ([]sqlite.Edge, error) {
	edges, err := g.store.Relationships().All()
	if err != nil {
		return nil, err
	}
	var out []sqlite.Edge
	for _, e := range edges {
		if e.Type == models.RelContradicts {
			out = append(out, e)
		}
	}
	return out, nil
}
