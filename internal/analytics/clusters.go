package analytics

import (
	"context"
	"fmt"
	"sort"

	"github.com/starford/notegraph/internal/graph"
)

// Cluster is a group of densely interconnected notes.
type Cluster struct {
	ID            string   `json:"id"`
	Label         string   `json:"label"`
	Nodes         []string `json:"nodes"`
	NodeCount     int      `json:"node_count"`
	InternalEdges int      `json:"internal_edges"` // linked member pairs
	Density       float64  `json:"density"`
}

// clusters returns the clusters of snap and, per node position, the index
// of its cluster in the returned slice.
func (e *Engine) clusters(ctx context.Context, snap *graph.Snapshot, g *ugraph) ([]Cluster, []int, error) {
	comm, err := detectCommunities(ctx, g, e.opts.Resolution, e.opts.MaxIterations)
	if err != nil {
		return nil, nil, err
	}

	// Group members by community in node order; the group order is the
	// order of each group's first member.
	groupOf := make(map[int]int)
	var groups [][]int
	for i, c := range comm {
		gi, ok := groupOf[c]
		if !ok {
			gi = len(groups)
			groupOf[c] = gi
			groups = append(groups, nil)
		}
		groups[gi] = append(groups[gi], i)
	}
	sort.SliceStable(groups, func(a, b int) bool { return len(groups[a]) > len(groups[b]) })

	membership := make([]int, g.n)
	out := make([]Cluster, len(groups))
	for ci, members := range groups {
		for _, i := range members {
			membership[i] = ci
		}
	}
	for ci, members := range groups {
		c := Cluster{
			ID:        fmt.Sprintf("cluster-%d", ci+1),
			Nodes:     make([]string, len(members)),
			NodeCount: len(members),
		}
		for k, i := range members {
			c.Nodes[k] = snap.Nodes[i].ID
			for _, nb := range g.adj[i] {
				if nb > i && membership[nb] == ci {
					c.InternalEdges++
				}
			}
		}
		if n := len(members); n > 1 {
			c.Density = round(float64(c.InternalEdges)/float64(n*(n-1)/2), 4)
		}
		c.Label = clusterLabel(snap, members)
		out[ci] = c
	}
	return out, membership, nil
}

// clusterLabel is the most common tag among members, or the label of the
// best-connected member when no member is tagged.
func clusterLabel(snap *graph.Snapshot, members []int) string {
	counts := make(map[string]int)
	for _, i := range members {
		for _, t := range snap.Nodes[i].Tags {
			counts[t]++
		}
	}
	best, bestCount := "", 0
	for t, c := range counts {
		if c > bestCount || (c == bestCount && t < best) {
			best, bestCount = t, c
		}
	}
	if best != "" {
		return best
	}
	top := members[0]
	for _, i := range members[1:] {
		if snap.Nodes[i].Degree > snap.Nodes[top].Degree {
			top = i
		}
	}
	return snap.Nodes[top].Label
}

// detectCommunities assigns every node a community id using modularity
// local moves followed by a refinement that splits each community into its
// connected components, repeated until no node moves. Nodes are visited in
// insertion order so the result is deterministic.
func detectCommunities(ctx context.Context, g *ugraph, resolution float64, maxIterations int) ([]int, error) {
	comm := make([]int, g.n)
	tot := make([]float64, g.n)
	for i := range comm {
		comm[i] = i
		tot[i] = g.k[i]
	}
	if g.m == 0 {
		return comm, nil
	}
	twoM := 2 * g.m

	for iter := 0; iter < maxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		moved := false
		for i := 0; i < g.n; i++ {
			ci := comm[i]
			ki := g.k[i]
			tot[ci] -= ki

			weightTo := make(map[int]float64, len(g.adj[i]))
			var candidates []int
			for j, nb := range g.adj[i] {
				c := comm[nb]
				if _, ok := weightTo[c]; !ok {
					candidates = append(candidates, c)
				}
				weightTo[c] += g.w[i][j]
			}

			best := ci
			bestGain := weightTo[ci] - resolution*ki*tot[ci]/twoM
			for _, c := range candidates {
				if c == ci {
					continue
				}
				if gain := weightTo[c] - resolution*ki*tot[c]/twoM; gain > bestGain+1e-12 {
					best, bestGain = c, gain
				}
			}
			tot[best] += ki
			if best != ci {
				comm[i] = best
				moved = true
			}
		}
		if !moved {
			break
		}

		comm = refine(g, comm)
		for i := range tot {
			tot[i] = 0
		}
		for i, c := range comm {
			tot[c] += g.k[i]
		}
	}
	return comm, nil
}

// refine splits communities into connected components. Each component is
// renamed after its lowest node position.
func refine(g *ugraph, comm []int) []int {
	label := make([]int, g.n)
	for i := range label {
		label[i] = -1
	}
	stack := make([]int, 0, g.n)
	for start := 0; start < g.n; start++ {
		if label[start] >= 0 {
			continue
		}
		label[start] = start
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			v := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, nb := range g.adj[v] {
				if label[nb] < 0 && comm[nb] == comm[start] {
					label[nb] = start
					stack = append(stack, nb)
				}
			}
		}
	}
	return label
}
