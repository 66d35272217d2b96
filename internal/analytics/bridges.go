package analytics

import (
	"context"
	"sort"

	"github.com/starford/notegraph/internal/graph"
)

// BridgeNote is an articulation point whose removal separates notes of
// different clusters.
type BridgeNote struct {
	ID               string      `json:"id"`
	Label            string      `json:"label"`
	ConnectsClusters []string    `json:"connects_clusters"`
	ClusterPairs     [][2]string `json:"cluster_pairs"`
	Degree           int         `json:"degree"`
	BridgeStrength   float64     `json:"bridge_strength"` // cluster pairs per incident edge
}

// Phases of the iterative DFS frame.
const (
	phaseEnter = iota
	phaseEdges
	phaseAfterChild
)

type dfsFrame struct {
	node     int
	parent   int
	edge     int
	phase    int
	child    int
	children int
}

// articulationPoints finds cut vertices with Tarjan's low-link DFS, driven
// by an explicit stack. Results are ascending node positions.
func articulationPoints(ctx context.Context, g *ugraph) ([]int, error) {
	disc := make([]int, g.n)
	low := make([]int, g.n)
	for i := range disc {
		disc[i] = -1
	}
	isCut := make([]bool, g.n)
	timer := 0

	for root := 0; root < g.n; root++ {
		if disc[root] >= 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stack := []*dfsFrame{{node: root, parent: -1}}
		for len(stack) > 0 {
			f := stack[len(stack)-1]
			switch f.phase {
			case phaseEnter:
				disc[f.node] = timer
				low[f.node] = timer
				timer++
				f.phase = phaseEdges

			case phaseEdges:
				if f.edge >= len(g.adj[f.node]) {
					if f.parent < 0 && f.children > 1 {
						isCut[f.node] = true
					}
					stack = stack[:len(stack)-1]
					if len(stack) > 0 {
						parent := stack[len(stack)-1]
						parent.child = f.node
						parent.phase = phaseAfterChild
					}
					continue
				}
				next := g.adj[f.node][f.edge]
				f.edge++
				switch {
				case next == f.parent:
				case disc[next] < 0:
					f.children++
					stack = append(stack, &dfsFrame{node: next, parent: f.node})
				default:
					low[f.node] = min(low[f.node], disc[next])
				}

			case phaseAfterChild:
				low[f.node] = min(low[f.node], low[f.child])
				if f.parent >= 0 && low[f.child] >= disc[f.node] {
					isCut[f.node] = true
				}
				f.phase = phaseEdges
			}
		}
	}

	var out []int
	for i, cut := range isCut {
		if cut {
			out = append(out, i)
		}
	}
	return out, nil
}

// bridgeNotes keeps the articulation points whose removal leaves notes of
// two distinct clusters in different components. Every such unordered
// cluster pair counts once.
func bridgeNotes(ctx context.Context, snap *graph.Snapshot, g *ugraph, clusters []Cluster, membership []int) ([]BridgeNote, error) {
	cuts, err := articulationPoints(ctx, g)
	if err != nil {
		return nil, err
	}

	out := []BridgeNote{}
	for _, v := range cuts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		components := clustersPerComponent(g, v, membership)

		type cpair struct{ a, b int }
		pairs := make(map[cpair]struct{})
		for i := range components {
			for j := i + 1; j < len(components); j++ {
				for _, a := range components[i] {
					for _, b := range components[j] {
						if a == b {
							continue
						}
						if a > b {
							a, b = b, a
						}
						pairs[cpair{a, b}] = struct{}{}
					}
				}
			}
		}
		if len(pairs) == 0 {
			continue
		}

		sorted := make([]cpair, 0, len(pairs))
		involved := make(map[int]struct{})
		for p := range pairs {
			sorted = append(sorted, p)
			involved[p.a] = struct{}{}
			involved[p.b] = struct{}{}
		}
		sort.Slice(sorted, func(i, j int) bool {
			if sorted[i].a != sorted[j].a {
				return sorted[i].a < sorted[j].a
			}
			return sorted[i].b < sorted[j].b
		})
		ids := make([]int, 0, len(involved))
		for c := range involved {
			ids = append(ids, c)
		}
		sort.Ints(ids)

		node := snap.Nodes[v]
		b := BridgeNote{
			ID:               node.ID,
			Label:            node.Label,
			ConnectsClusters: make([]string, len(ids)),
			ClusterPairs:     make([][2]string, len(sorted)),
			Degree:           node.Degree,
		}
		for i, c := range ids {
			b.ConnectsClusters[i] = clusters[c].ID
		}
		for i, p := range sorted {
			b.ClusterPairs[i] = [2]string{clusters[p.a].ID, clusters[p.b].ID}
		}
		if node.Degree > 0 {
			b.BridgeStrength = round(float64(len(sorted))/float64(node.Degree), 4)
		}
		out = append(out, b)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].BridgeStrength > out[j].BridgeStrength })
	return out, nil
}

// clustersPerComponent removes v and returns, for each component that held
// one of its neighbours, the sorted distinct clusters of that component.
func clustersPerComponent(g *ugraph, v int, membership []int) [][]int {
	seen := make(map[int]bool, g.n)
	seen[v] = true
	var out [][]int
	for _, start := range g.adj[v] {
		if seen[start] {
			continue
		}
		set := make(map[int]struct{})
		seen[start] = true
		stack := []int{start}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			set[membership[cur]] = struct{}{}
			for _, nb := range g.adj[cur] {
				if !seen[nb] {
					seen[nb] = true
					stack = append(stack, nb)
				}
			}
		}
		ids := make([]int, 0, len(set))
		for c := range set {
			ids = append(ids, c)
		}
		sort.Ints(ids)
		out = append(out, ids)
	}
	return out
}
