package graph

import (
	"fmt"
	"math/rand"
	"path"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/models"
)

func note(id string, links ...string) models.Note {
	folder, name := path.Split(id)
	return models.Note{
		ID:     id,
		Name:   name,
		Folder: strings.TrimSuffix(folder, "/"),
		Path:   id + ".md",
		Tags:   []string{},
		Links:  links,
	}
}

func nodeIDs(ns []LocalNode) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = n.ID
	}
	return out
}

func chain() *Builder {
	b := NewBuilder()
	b.AddNote(note("A", "B"))
	b.AddNote(note("B", "C"))
	b.AddNote(note("C"))
	return b
}

func TestLocalGraph_Chain(t *testing.T) {
	b := chain()

	lg, err := b.LocalGraph("A", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, nodeIDs(lg.Nodes))
	assert.Equal(t, []Edge{{Source: "A", Target: "B", Weight: 1}}, lg.Edges)

	lg, err = b.LocalGraph("A", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, nodeIDs(lg.Nodes))
	assert.Len(t, lg.Edges, 2)
	assert.Equal(t, 2, lg.Nodes[2].Depth)

	assert.Equal(t, 0, b.Snapshot().Stats().OrphanCount)
}

func TestLocalGraph_DepthZero(t *testing.T) {
	b := chain()
	for _, root := range []string{"A", "B", "C"} {
		lg, err := b.LocalGraph(root, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{root}, nodeIDs(lg.Nodes))
		assert.Empty(t, lg.Edges)
	}
	lg, err := b.LocalGraph("B", -3)
	require.NoError(t, err)
	assert.Len(t, lg.Nodes, 1)
}

func TestLocalGraph_MissingRoot(t *testing.T) {
	_, err := chain().LocalGraph("Nope", 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestLocalGraph_UndirectedAndInducedEdges(t *testing.T) {
	b := NewBuilder()
	b.AddNote(note("hub"))
	b.AddNote(note("x", "hub", "y"))
	b.AddNote(note("y", "hub"))
	b.AddNote(note("far", "x"))

	lg, err := b.LocalGraph("hub", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"hub", "x", "y"}, nodeIDs(lg.Nodes))
	// x->y is not a BFS tree edge but both ends are included.
	assert.Len(t, lg.Edges, 3)
}

func TestLocalGraph_SameDepthInsertionOrder(t *testing.T) {
	b := NewBuilder()
	b.AddNote(note("z"))
	b.AddNote(note("a"))
	b.AddNote(note("root", "a", "z"))

	lg, err := b.LocalGraph("root", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"root", "z", "a"}, nodeIDs(lg.Nodes))
}

func TestDanglingGhost(t *testing.T) {
	b := NewBuilder()
	res := b.AddNote(note("A", "Ghost"))
	assert.Equal(t, 0, res.Resolved)
	assert.Equal(t, 1, res.Dangling)

	s := b.Snapshot()
	assert.Len(t, s.Nodes, 1)
	assert.Empty(t, s.Edges)
	assert.Equal(t, []DanglingLink{{Source: "A", Target: "Ghost", Count: 1}}, s.Dangling)
	assert.Equal(t, 1, s.Stats().DanglingLinks)
	_, err := s.Node("Ghost")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	// Adding the missing note resolves the link.
	b.AddNote(note("Ghost"))
	s = b.Snapshot()
	assert.Empty(t, s.Dangling)
	assert.Equal(t, []Edge{{Source: "A", Target: "Ghost", Weight: 1}}, s.Edges)
}

func TestRemoveNote(t *testing.T) {
	b := chain()
	require.NoError(t, b.RemoveNote("B"))

	s := b.Snapshot()
	for _, e := range s.Edges {
		assert.NotEqual(t, "B", e.Source)
		assert.NotEqual(t, "B", e.Target)
	}
	assert.Equal(t, []DanglingLink{{Source: "A", Target: "B", Count: 1}}, s.Dangling)
	assert.False(t, b.Has("B"))
	assert.Equal(t, 2, b.Len())

	_, err := s.Node("B")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = b.LocalGraph("B", 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, b.RemoveNote("B"), apperr.ErrNotFound)
}

func TestParallelLinksAreWeighted(t *testing.T) {
	b := NewBuilder()
	b.AddNote(note("B"))
	res := b.AddNote(note("A", "B", "B", "B"))
	assert.Equal(t, 1, res.Resolved)

	s := b.Snapshot()
	require.Len(t, s.Edges, 1)
	assert.Equal(t, 3, s.Edges[0].Weight)
	st := s.Stats()
	assert.Equal(t, 1, st.TotalLinks)
	assert.Equal(t, 1, st.MaxConnections)
}

func TestSelfLinksDropped(t *testing.T) {
	b := NewBuilder()
	res := b.AddNote(note("A", "A", "A"))
	assert.Equal(t, AddResult{ID: "A"}, res)
	s := b.Snapshot()
	assert.Empty(t, s.Edges)
	assert.Empty(t, s.Dangling)
	assert.Equal(t, 1, s.Stats().OrphanCount)
}

func TestReverseEdgesCountTwice(t *testing.T) {
	b := NewBuilder()
	b.AddNote(note("A", "B"))
	b.AddNote(note("B", "A"))
	st := b.Snapshot().Stats()
	assert.Equal(t, 2, st.TotalLinks)
	assert.Equal(t, 2, st.MaxConnections)
	n, err := b.Snapshot().Neighbors("A")
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, n)
}

func TestResolution(t *testing.T) {
	b := NewBuilder()
	b.AddNote(note("Plan"))
	b.AddNote(note("projects/Plan"))
	b.AddNote(note("projects/Roadmap", "Plan"))
	b.AddNote(note("Index", "Plan", "projects/Plan", "roadmap", "Deep"))
	b.AddNote(note("archive/2023/Deep"))
	b.AddNote(note("x/Dup"))
	b.AddNote(note("y/Dup"))
	b.AddNote(note("Other", "Dup", "2023/Deep"))

	s := b.Snapshot()
	assert.Equal(t, []string{"projects/Plan"}, s.Outlinks("projects/Roadmap"), "same folder wins")
	assert.Equal(t, []string{"Plan", "projects/Plan", "projects/Roadmap", "archive/2023/Deep"}, s.Outlinks("Index"))
	assert.Equal(t, []string{"archive/2023/Deep"}, s.Outlinks("Other"), "folder suffix disambiguates")
	assert.Contains(t, s.Dangling, DanglingLink{Source: "Other", Target: "Dup", Count: 1}, "ambiguous name dangles")
}

func TestReplaceKeepsPosition(t *testing.T) {
	b := chain()
	b.AddNote(note("A", "C"))
	s := b.Snapshot()
	assert.Equal(t, "A", s.Nodes[0].ID)
	assert.Equal(t, []string{"C"}, s.Outlinks("A"))
	assert.Equal(t, 3, s.Len())
}

func TestCollision(t *testing.T) {
	b := NewBuilder()
	first := note("Note")
	second := note("Note")
	second.Path = "Note.MD"

	assert.False(t, b.AddNote(first).Collision)
	assert.True(t, b.AddNote(second).Collision)
	assert.Equal(t, 1, b.Snapshot().Stats().Collisions)
	assert.Equal(t, 1, b.Len())

	require.NoError(t, b.RemoveNote("Note"))
	assert.Equal(t, 0, b.Snapshot().Stats().Collisions)
}

func TestMoveNote(t *testing.T) {
	b := chain()
	moved := note("A", "B")
	moved.Path = "A.MD"

	res := b.MoveNote(moved)
	assert.False(t, res.Collision)
	s := b.Snapshot()
	assert.Zero(t, s.Stats().Collisions)
	assert.Equal(t, "A", s.Nodes[0].ID, "moved note keeps its position")
	n, err := s.Node("A")
	require.NoError(t, err)
	assert.Equal(t, "A.MD", n.Path)
}

func TestMoveNote_ClearsCollision(t *testing.T) {
	b := NewBuilder()
	second := note("Note")
	second.Path = "Note.MD"
	b.AddNote(note("Note"))
	require.True(t, b.AddNote(second).Collision)

	b.MoveNote(second)
	assert.Zero(t, b.Snapshot().Stats().Collisions)
}

func TestReplaceAll(t *testing.T) {
	b := chain()
	b.ReplaceAll([]models.Note{note("X", "Y"), note("Y")})
	s := b.Snapshot()
	assert.Equal(t, 2, s.Len())
	assert.False(t, b.Has("A"))
	assert.Equal(t, []Edge{{Source: "X", Target: "Y", Weight: 1}}, s.Edges)
}

func TestSnapshotCachedPerVersion(t *testing.T) {
	b := chain()
	s1 := b.Snapshot()
	assert.Same(t, s1, b.Snapshot())

	b.AddNote(note("D", "A"))
	s2 := b.Snapshot()
	assert.NotSame(t, s1, s2)
	assert.Equal(t, 3, s1.Len(), "old snapshot is immutable")
	assert.Equal(t, 4, s2.Len())
}

func TestAddNote_DerivesID(t *testing.T) {
	b := NewBuilder()
	res := b.AddNote(models.Note{Name: "Plan.md", Folder: "/projects/"})
	assert.Equal(t, "projects/Plan", res.ID)
	assert.True(t, b.Has("projects/Plan"))
}

func TestEmptyGraphStats(t *testing.T) {
	st := NewBuilder().Snapshot().Stats()
	assert.Equal(t, Stats{}, st)
}

func randomBuilder(seed int64, n int) *Builder {
	r := rand.New(rand.NewSource(seed))
	b := NewBuilder()
	for i := 0; i < n; i++ {
		var links []string
		for k := r.Intn(4); k > 0; k-- {
			links = append(links, fmt.Sprintf("n%d", r.Intn(n+3))) // some targets dangle
		}
		b.AddNote(note(fmt.Sprintf("n%d", i), links...))
	}
	return b
}

func TestProperty_HandshakeAndOrphans(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		s := randomBuilder(seed, 30).Snapshot()
		st := s.Stats()

		sum, orphans := 0, 0
		for _, n := range s.Nodes {
			sum += n.Degree
			if n.Degree == 0 {
				orphans++
			}
		}
		assert.Equal(t, 2*st.TotalLinks, sum, "seed %d", seed)
		assert.Equal(t, orphans, st.OrphanCount, "seed %d", seed)
		assert.Len(t, s.Orphans(), orphans)
		assert.InDelta(t, float64(2*st.TotalLinks), st.AvgConnections*float64(st.TotalNotes), 1e-9, "seed %d", seed)

		for _, e := range s.Edges {
			_, err := s.Node(e.Source)
			assert.NoError(t, err)
			_, err = s.Node(e.Target)
			assert.NoError(t, err)
		}
	}
}

// distances computes hop distances independently of LocalGraph.
func distances(s *Snapshot, root string) map[string]int {
	adj := map[string][]string{}
	for _, e := range s.Edges {
		adj[e.Source] = append(adj[e.Source], e.Target)
		adj[e.Target] = append(adj[e.Target], e.Source)
	}
	dist := map[string]int{root: 0}
	frontier := []string{root}
	for len(frontier) > 0 {
		var next []string
		for _, v := range frontier {
			for _, w := range adj[v] {
				if _, ok := dist[w]; !ok {
					dist[w] = dist[v] + 1
					next = append(next, w)
				}
			}
		}
		frontier = next
	}
	return dist
}

func TestProperty_LocalGraphWithinDepth(t *testing.T) {
	for seed := int64(1); seed <= 10; seed++ {
		s := randomBuilder(seed, 25).Snapshot()
		for _, root := range []string{"n0", "n7", "n13"} {
			dist := distances(s, root)
			for depth := 0; depth <= 4; depth++ {
				lg, err := s.LocalGraph(root, depth)
				require.NoError(t, err)

				got := map[string]bool{}
				for _, n := range lg.Nodes {
					got[n.ID] = true
					assert.Equal(t, dist[n.ID], n.Depth)
					assert.LessOrEqual(t, n.Depth, depth)
				}
				for id, d := range dist {
					assert.Equal(t, d <= depth, got[id], "seed %d root %s depth %d node %s", seed, root, depth, id)
				}
				for _, e := range lg.Edges {
					assert.True(t, got[e.Source] && got[e.Target])
				}
			}
		}
	}
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	b := NewBuilder()
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				b.AddNote(note(fmt.Sprintf("w%d-%d", w, i), fmt.Sprintf("w%d-%d", w, i-1)))
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				s := b.Snapshot()
				st := s.Stats()
				assert.InDelta(t, float64(2*st.TotalLinks), st.AvgConnections*float64(st.TotalNotes), 1e-9)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 200, b.Len())
	assert.Equal(t, 4*49, b.Snapshot().Stats().TotalLinks)
}
