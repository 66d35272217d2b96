package graph

import (
	"fmt"
	"sort"

	"github.com/emirpasic/gods/queues/linkedlistqueue"

	"github.com/starford/notegraph/internal/apperr"
)

// LocalGraph returns every node within depth undirected hops of rootID and
// all edges among them. Nodes are ordered by hop distance, then insertion
// order. A non-positive depth yields the root alone.
func (s *Snapshot) LocalGraph(rootID string, depth int) (*LocalGraph, error) {
	root, ok := s.index[rootID]
	if !ok {
		return nil, fmt.Errorf("note %s: %w", rootID, apperr.ErrNotFound)
	}
	if depth < 0 {
		depth = 0
	}

	visitedDepth := map[int]int{root: 0}
	queue := linkedlistqueue.New()
	queue.Enqueue(root)
	for !queue.Empty() {
		v, _ := queue.Dequeue()
		cur := v.(int)
		d := visitedDepth[cur]
		if d >= depth {
			continue
		}
		for _, next := range s.adj[cur] {
			if _, seen := visitedDepth[next]; seen {
				continue
			}
			visitedDepth[next] = d + 1
			queue.Enqueue(next)
		}
	}

	order := make([]int, 0, len(visitedDepth))
	for i := range visitedDepth {
		order = append(order, i)
	}
	sort.Slice(order, func(a, b int) bool {
		da, db := visitedDepth[order[a]], visitedDepth[order[b]]
		if da != db {
			return da < db
		}
		return order[a] < order[b]
	})

	lg := &LocalGraph{
		Root:  rootID,
		Depth: depth,
		Nodes: make([]LocalNode, 0, len(order)),
		Edges: []Edge{},
	}
	for _, i := range order {
		lg.Nodes = append(lg.Nodes, LocalNode{Node: s.Nodes[i], Depth: visitedDepth[i]})
	}
	for _, e := range s.Edges {
		_, inS := visitedDepth[s.index[e.Source]]
		_, inT := visitedDepth[s.index[e.Target]]
		if inS && inT {
			lg.Edges = append(lg.Edges, e)
		}
	}
	return lg, nil
}
