package graph

import (
	"fmt"
	"sort"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/models"
)

// Snapshot is an immutable point-in-time view of the graph.
type Snapshot struct {
	Version    uint64         `json:"version"`
	Nodes      []Node         `json:"nodes"` // insertion order
	Edges      []Edge         `json:"edges"` // by source insertion order, then first occurrence
	Dangling   []DanglingLink `json:"dangling"`
	Collisions int            `json:"collisions"`

	index map[string]int // node id -> position in Nodes
	adj   [][]int        // undirected neighbours, ascending node position
}

type pair struct{ s, t int }

// build resolves every note's links against the current node set.
func build(res resolver, collisions int, version uint64) *Snapshot {
	s := &Snapshot{
		Version:    version,
		Nodes:      make([]Node, 0, res.notes.Size()),
		Edges:      []Edge{},
		Dangling:   []DanglingLink{},
		Collisions: collisions,
		index:      make(map[string]int, res.notes.Size()),
	}

	notes := make([]models.Note, 0, res.notes.Size())
	it := res.notes.Iterator()
	for it.Next() {
		n := it.Value().(models.Note)
		s.index[n.ID] = len(s.Nodes)
		s.Nodes = append(s.Nodes, Node{
			ID:        n.ID,
			Label:     n.Label(),
			Name:      n.Name,
			Folder:    n.Folder,
			Path:      n.Path,
			Tags:      n.Tags,
			WordCount: n.WordCount,
			CreatedAt: n.CreatedAt,
			UpdatedAt: n.UpdatedAt,
		})
		notes = append(notes, n)
	}

	edgeAt := make(map[pair]int)
	for si, n := range notes {
		dangling := make(map[string]int)
		for _, raw := range n.Links {
			target := res.resolve(n.Folder, raw)
			if target == "" {
				if i, ok := dangling[raw]; ok {
					s.Dangling[i].Count++
					continue
				}
				dangling[raw] = len(s.Dangling)
				s.Dangling = append(s.Dangling, DanglingLink{Source: n.ID, Target: raw, Count: 1})
				continue
			}
			ti := s.index[target]
			if ti == si {
				continue
			}
			key := pair{si, ti}
			if i, ok := edgeAt[key]; ok {
				s.Edges[i].Weight++
				continue
			}
			edgeAt[key] = len(s.Edges)
			s.Edges = append(s.Edges, Edge{Source: n.ID, Target: target, Weight: 1})
		}
	}

	s.adj = make([][]int, len(s.Nodes))
	linked := make(map[pair]struct{}, len(s.Edges))
	for _, e := range s.Edges {
		a, b := s.index[e.Source], s.index[e.Target]
		s.Nodes[a].Degree++
		s.Nodes[b].Degree++
		if a > b {
			a, b = b, a
		}
		if _, ok := linked[pair{a, b}]; ok {
			continue
		}
		linked[pair{a, b}] = struct{}{}
		s.adj[a] = append(s.adj[a], b)
		s.adj[b] = append(s.adj[b], a)
	}
	for _, ns := range s.adj {
		sort.Ints(ns)
	}
	return s
}

// Len returns the number of nodes.
func (s *Snapshot) Len() int { return len(s.Nodes) }

// Node returns the node with the given id.
func (s *Snapshot) Node(id string) (Node, error) {
	i, ok := s.index[id]
	if !ok {
		return Node{}, fmt.Errorf("note %s: %w", id, apperr.ErrNotFound)
	}
	return s.Nodes[i], nil
}

// Position returns the insertion position of a node.
func (s *Snapshot) Position(id string) (int, bool) {
	i, ok := s.index[id]
	return i, ok
}

// Adjacency returns the undirected neighbour positions of the node at
// position i, ascending. The slice must not be modified.
func (s *Snapshot) Adjacency(i int) []int {
	return s.adj[i]
}

// Neighbors returns the ids of notes linked to or from id, in insertion order.
func (s *Snapshot) Neighbors(id string) ([]string, error) {
	i, ok := s.index[id]
	if !ok {
		return nil, fmt.Errorf("note %s: %w", id, apperr.ErrNotFound)
	}
	out := make([]string, len(s.adj[i]))
	for k, j := range s.adj[i] {
		out[k] = s.Nodes[j].ID
	}
	return out, nil
}

// Backlinks returns the ids of notes that link to id, in edge order.
func (s *Snapshot) Backlinks(id string) []string {
	out := []string{}
	for _, e := range s.Edges {
		if e.Target == id {
			out = append(out, e.Source)
		}
	}
	return out
}

// Outlinks returns the resolved targets of id, in edge order.
func (s *Snapshot) Outlinks(id string) []string {
	out := []string{}
	for _, e := range s.Edges {
		if e.Source == id {
			out = append(out, e.Target)
		}
	}
	return out
}

// Orphans returns the ids of nodes with no incident edges.
func (s *Snapshot) Orphans() []string {
	out := []string{}
	for _, n := range s.Nodes {
		if n.Degree == 0 {
			out = append(out, n.ID)
		}
	}
	return out
}

// Stats computes the full-graph counters.
func (s *Snapshot) Stats() Stats {
	st := Stats{
		TotalNotes:    len(s.Nodes),
		TotalLinks:    len(s.Edges),
		DanglingLinks: len(s.Dangling),
		Collisions:    s.Collisions,
	}
	for _, n := range s.Nodes {
		if n.Degree == 0 {
			st.OrphanCount++
		}
		if n.Degree > st.MaxConnections {
			st.MaxConnections = n.Degree
		}
	}
	if st.TotalNotes > 0 {
		st.AvgConnections = float64(2*st.TotalLinks) / float64(st.TotalNotes)
	}
	return st
}
