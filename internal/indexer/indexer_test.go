package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/graph"
	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/storage"
	"github.com/starford/notegraph/internal/testutil"
)

// countingSource counts reads and can cancel a context on the first one.
type countingSource struct {
	storage.Provider
	reads  atomic.Int64
	cancel context.CancelFunc
}

func (c *countingSource) Read(p string) (*models.Document, error) {
	if c.reads.Add(1) == 1 && c.cancel != nil {
		c.cancel()
	}
	return c.Provider.Read(p)
}

// flakyStore fails every write while down is set.
type flakyStore struct {
	index.Store
	down atomic.Bool
}

func (f *flakyStore) Upsert(ctx context.Context, r index.Record) error {
	if f.down.Load() {
		return fmt.Errorf("%w: disk full", apperr.ErrStorageUnavailable)
	}
	return f.Store.Upsert(ctx, r)
}

func (f *flakyStore) Delete(ctx context.Context, id string) error {
	if f.down.Load() {
		return fmt.Errorf("%w: disk full", apperr.ErrStorageUnavailable)
	}
	return f.Store.Delete(ctx, id)
}

func chainVault(t *testing.T) *storage.Memory {
	t.Helper()
	mem := storage.NewMemory()
	require.NoError(t, mem.Write("A.md", []byte("# A\nsee [[B]]")))
	require.NoError(t, mem.Write("B.md", []byte("# B\nsee [[C]]")))
	require.NoError(t, mem.Write("C.md", []byte("# C\nleaf")))
	return mem
}

func newService(src storage.Provider, store index.Store, opts ...Option) *Service {
	opts = append([]Option{WithLogger(testutil.Logger()), WithWorkers(2)}, opts...)
	return New(src, store, graph.NewBuilder(), opts...)
}

func TestInitialize_Chain(t *testing.T) {
	testutil.Stores(t, func(t *testing.T, newStore func(*testing.T) index.Store) {
		ctx := context.Background()
		svc := newService(chainVault(t), newStore(t))

		res, err := svc.Initialize(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, res.NotesIndexed)
		assert.Equal(t, 2, res.LinksIndexed)
		assert.Zero(t, res.Failures)
		assert.NotEmpty(t, res.RunID)

		counts, err := svc.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, index.Counts{Notes: 3, Links: 2}, counts)

		snap, err := svc.Graph(ctx)
		require.NoError(t, err)
		st := snap.Stats()
		assert.Equal(t, 3, st.TotalNotes)
		assert.Equal(t, 2, st.TotalLinks)
		assert.Zero(t, st.OrphanCount)
	})
}

func TestSync_NoChanges(t *testing.T) {
	testutil.Stores(t, func(t *testing.T, newStore func(*testing.T) index.Store) {
		ctx := context.Background()
		src := &countingSource{Provider: chainVault(t)}
		svc := newService(src, newStore(t))
		_, err := svc.Initialize(ctx)
		require.NoError(t, err)
		readsAfterInit := src.reads.Load()

		res, err := svc.Sync(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, res.Added)
		assert.Equal(t, 0, res.Updated)
		assert.Equal(t, 0, res.Removed)
		assert.Equal(t, 3, res.Unchanged)
		assert.Empty(t, res.Changes)
		assert.Equal(t, readsAfterInit, src.reads.Load(), "unchanged documents must not be re-read")
	})
}

func TestSync_AddUpdateDelete(t *testing.T) {
	testutil.Stores(t, func(t *testing.T, newStore func(*testing.T) index.Store) {
		ctx := context.Background()
		mem := chainVault(t)
		svc := newService(mem, newStore(t))
		_, err := svc.Initialize(ctx)
		require.NoError(t, err)

		require.NoError(t, mem.Write("D.md", []byte("links [[A]]")))
		require.NoError(t, mem.Write("B.md", []byte("# B\nnow [[C]] and [[A]]")))
		require.NoError(t, mem.Delete("C.md"))

		res, err := svc.Sync(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Added)
		assert.Equal(t, 1, res.Updated)
		assert.Equal(t, 1, res.Removed)
		assert.Equal(t, 1, res.Unchanged)
		assert.Equal(t, []Change{
			{Kind: ChangeUpdated, ID: "B", Path: "B.md"},
			{Kind: ChangeCreated, ID: "D", Path: "D.md"},
			{Kind: ChangeDeleted, ID: "C", Path: "C.md"},
		}, res.Changes)

		counts, err := svc.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, index.Counts{Notes: 3, Links: 4}, counts)

		snap, err := svc.Graph(ctx)
		require.NoError(t, err)
		_, err = snap.Node("C")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		assert.Equal(t, 1, snap.Stats().DanglingLinks, "B still links to the deleted C")
		assert.ElementsMatch(t, []string{"B", "D"}, snap.Backlinks("A"))
	})
}

func TestSync_TouchWithoutContentChange(t *testing.T) {
	ctx := context.Background()
	mem := chainVault(t)
	store := testutil.TestDB(t)
	svc := newService(mem, store)
	_, err := svc.Initialize(ctx)
	require.NoError(t, err)
	before, err := svc.Note(ctx, "A")
	require.NoError(t, err)

	require.NoError(t, mem.Touch("A.md"))
	res, err := svc.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Unchanged)
	assert.Empty(t, res.Changes)

	after, err := svc.Note(ctx, "A")
	require.NoError(t, err)
	assert.NotEqual(t, before.Fingerprint, after.Fingerprint)
	assert.Equal(t, before.Checksum, after.Checksum)
	assert.True(t, before.UpdatedAt.Equal(after.UpdatedAt))

	// The refreshed fingerprint skips the read next time.
	src := &countingSource{Provider: mem}
	svc2 := newService(src, store)
	res, err = svc2.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Unchanged)
	assert.Zero(t, src.reads.Load())
}

func TestSync_FromEmptyIndex(t *testing.T) {
	svc := newService(chainVault(t), testutil.TestBadger(t))
	res, err := svc.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Added)
	assert.Len(t, res.Changes, 3)
}

func TestReadFailures(t *testing.T) {
	ctx := context.Background()
	mem := chainVault(t)
	mem.FailRead("B.md", errors.New("permission denied"))
	svc := newService(mem, testutil.TestDB(t))

	res, err := svc.Initialize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.NotesIndexed)
	assert.Equal(t, 1, res.Failures)

	snap, err := svc.Graph(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Stats().DanglingLinks)

	// A failed read during sync keeps the previous record.
	mem.FailRead("B.md", nil)
	_, err = svc.Sync(ctx)
	require.NoError(t, err)
	mem.FailRead("A.md", errors.New("io error"))
	require.NoError(t, mem.Touch("A.md"))

	sres, err := svc.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sres.Failures)
	assert.Zero(t, sres.Removed)
	_, err = svc.Note(ctx, "A")
	assert.NoError(t, err)
}

func TestInitialize_RootUnavailable(t *testing.T) {
	dir, fs := testutil.TestVault(t)
	require.NoError(t, os.RemoveAll(dir))
	svc := newService(fs, testutil.TestDB(t))

	_, err := svc.Initialize(context.Background())
	assert.ErrorIs(t, err, apperr.ErrRootUnavailable)
	_, err = svc.Sync(context.Background())
	assert.ErrorIs(t, err, apperr.ErrRootUnavailable)
}

func TestInitialize_PrunesVanishedRecords(t *testing.T) {
	ctx := context.Background()
	mem := chainVault(t)
	store := testutil.TestDB(t)
	svc := newService(mem, store)
	_, err := svc.Initialize(ctx)
	require.NoError(t, err)

	require.NoError(t, mem.Delete("A.md"))
	res, err := svc.Initialize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.NotesIndexed)

	counts, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Notes)
}

func TestRestart_HydratesWithoutReading(t *testing.T) {
	testutil.Stores(t, func(t *testing.T, newStore func(*testing.T) index.Store) {
		ctx := context.Background()
		mem := chainVault(t)
		store := newStore(t)
		_, err := newService(mem, store).Initialize(ctx)
		require.NoError(t, err)

		src := &countingSource{Provider: mem}
		restarted := newService(src, store)
		snap, err := restarted.Graph(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, snap.Len())
		assert.Equal(t, 2, snap.Stats().TotalLinks)
		assert.Zero(t, src.reads.Load())

		local, err := restarted.LocalGraph(ctx, "A", 1)
		require.NoError(t, err)
		assert.Len(t, local.Nodes, 2)
	})
}

func TestIDCollision(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	require.NoError(t, mem.Write("a.md", []byte("lower")))
	require.NoError(t, mem.Write("a.MD", []byte("upper")))
	svc := newService(mem, testutil.TestDB(t))

	res, err := svc.Initialize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.NotesIndexed)
	assert.Equal(t, 1, res.Collisions)

	rec, err := svc.Note(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a.MD", rec.Path, "first path in order wins")

	sres, err := svc.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sres.Collisions)
	assert.Equal(t, 1, sres.Unchanged)
	assert.Zero(t, sres.Removed)
}

func TestInitialize_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := &countingSource{Provider: chainVault(t), cancel: cancel}
	svc := newService(src, testutil.TestDB(t), WithWorkers(1))

	res, err := svc.Initialize(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.GreaterOrEqual(t, res.NotesIndexed, 1)
	assert.Less(t, res.NotesIndexed, 3)

	bg := context.Background()
	counts, err := svc.Stats(bg)
	require.NoError(t, err)
	assert.Equal(t, res.NotesIndexed, counts.Notes, "started documents are committed")

	snap, err := svc.Graph(bg)
	require.NoError(t, err)
	assert.Equal(t, res.NotesIndexed, snap.Len())
}

func TestSync_Cancelled(t *testing.T) {
	bg := context.Background()
	mem := chainVault(t)
	store := testutil.TestDB(t)
	svc := newService(mem, store, WithWorkers(1))
	_, err := svc.Initialize(bg)
	require.NoError(t, err)

	require.NoError(t, mem.Delete("C.md"))
	require.NoError(t, mem.Write("D.md", []byte("d")))
	require.NoError(t, mem.Write("E.md", []byte("e")))
	require.NoError(t, mem.Write("F.md", []byte("f")))

	ctx, cancel := context.WithCancel(bg)
	defer cancel()
	svc.source = &countingSource{Provider: mem, cancel: cancel}

	res, err := svc.Sync(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, res.Added, 3)
	assert.Zero(t, res.Removed, "nothing is removed by a cancelled sync")
	_, err = svc.Note(bg, "C")
	assert.NoError(t, err)
}

func TestStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	mem := chainVault(t)
	store := &flakyStore{Store: testutil.TestDB(t)}
	svc := newService(mem, store)
	_, err := svc.Initialize(ctx)
	require.NoError(t, err)

	require.NoError(t, mem.Write("D.md", []byte("[[A]]")))
	store.down.Store(true)
	_, err = svc.Sync(ctx)
	require.ErrorIs(t, err, apperr.ErrStorageUnavailable)

	store.down.Store(false)
	snap, err := svc.Graph(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Len(), "graph matches the committed index")

	res, err := svc.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
}

func TestFrontmatterCreated(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	require.NoError(t, mem.Write("Dated.md", []byte("---\ncreated: 2023-05-01\n---\nbody")))
	require.NoError(t, mem.Write("Plain.md", []byte("body")))
	svc := newService(mem, testutil.TestDB(t))
	_, err := svc.Initialize(ctx)
	require.NoError(t, err)

	dated, err := svc.Note(ctx, "Dated")
	require.NoError(t, err)
	assert.True(t, dated.CreatedAt.Equal(time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)), "got %v", dated.CreatedAt)

	plain, err := svc.Note(ctx, "Plain")
	require.NoError(t, err)
	assert.True(t, plain.CreatedAt.Equal(plain.UpdatedAt))
}

func TestSync_EditKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	dir, vault := testutil.TestVault(t)
	file := filepath.Join(dir, "Note.md")
	created := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	edited := time.Date(2024, 3, 5, 17, 30, 0, 0, time.UTC)

	testutil.WriteFile(t, dir, "Note.md", "first draft")
	require.NoError(t, os.Chtimes(file, created, created))
	svc := newService(vault, testutil.TestDB(t))
	_, err := svc.Initialize(ctx)
	require.NoError(t, err)

	testutil.WriteFile(t, dir, "Note.md", "second draft, a little longer")
	require.NoError(t, os.Chtimes(file, edited, edited))
	res, err := svc.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	rec, err := svc.Note(ctx, "Note")
	require.NoError(t, err)
	assert.True(t, rec.CreatedAt.Equal(created), "created = %v", rec.CreatedAt)
	assert.True(t, rec.UpdatedAt.Equal(edited), "updated = %v", rec.UpdatedAt)

	snap, err := svc.Graph(ctx)
	require.NoError(t, err)
	node, err := snap.Node("Note")
	require.NoError(t, err)
	assert.True(t, node.CreatedAt.Equal(created), "graph created = %v", node.CreatedAt)

	_, err = svc.Initialize(ctx)
	require.NoError(t, err)
	rec, err = svc.Note(ctx, "Note")
	require.NoError(t, err)
	assert.True(t, rec.CreatedAt.Equal(created), "created after rebuild = %v", rec.CreatedAt)
}

func TestSync_ExtensionCaseRename(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	require.NoError(t, mem.Write("a.md", []byte("# A")))
	require.NoError(t, mem.Write("b.md", []byte("[[a]]")))
	svc := newService(mem, testutil.TestDB(t))
	_, err := svc.Initialize(ctx)
	require.NoError(t, err)

	require.NoError(t, mem.Delete("a.md"))
	require.NoError(t, mem.Write("a.MD", []byte("# A renamed")))
	res, err := svc.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Change{{Kind: ChangeUpdated, ID: "a", Path: "a.MD"}}, res.Changes)
	assert.Zero(t, res.Collisions)
	assert.Zero(t, res.Removed)

	snap, err := svc.Graph(ctx)
	require.NoError(t, err)
	assert.Zero(t, snap.Stats().Collisions)
	assert.Equal(t, "a", snap.Nodes[0].ID)
	assert.Equal(t, "a.MD", snap.Nodes[0].Path)
	assert.Equal(t, []string{"b"}, snap.Backlinks("a"))
}

func TestAnalyticsAndDangling(t *testing.T) {
	ctx := context.Background()
	mem := chainVault(t)
	require.NoError(t, mem.Write("Lost.md", []byte("[[Ghost]]")))
	svc := newService(mem, testutil.TestBadger(t))
	_, err := svc.Initialize(ctx)
	require.NoError(t, err)

	rep, err := svc.Analytics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, rep.Stats.TotalNotes)
	assert.Equal(t, 1, rep.Stats.DanglingLinks)
	assert.Equal(t, []string{"Lost"}, rep.Orphans)
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	mem := chainVault(t)
	svc := newService(mem, testutil.TestDB(t), WithMetrics(m))

	_, err := svc.Initialize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.RunsTotal.WithLabelValues(opInitialize, "success")))
	assert.Equal(t, 3.0, promtest.ToFloat64(m.DocumentsTotal.WithLabelValues(opInitialize, outcomeIndexed)))
	assert.Equal(t, 3.0, promtest.ToFloat64(m.GraphNotes))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.GraphLinks))

	require.NoError(t, mem.Delete("C.md"))
	_, err = svc.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.DocumentsTotal.WithLabelValues(opSync, outcomeRemoved)))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.GraphNotes))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.GraphDangling))
}

func TestWatch_FileEvents(t *testing.T) {
	dir, fs := testutil.TestVault(t)
	testutil.WriteFile(t, dir, "A.md", "# A\n[[new]]")
	svc := newService(fs, testutil.TestDB(t))
	_, err := svc.Initialize(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var (
		mu      sync.Mutex
		changes []Change
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.Watch(ctx, dir, 50*time.Millisecond, func(r *SyncResult) {
			mu.Lock()
			changes = append(changes, r.Changes...)
			mu.Unlock()
		})
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	time.Sleep(100 * time.Millisecond)

	seen := func(want Change) func() bool {
		return func() bool {
			mu.Lock()
			defer mu.Unlock()
			for _, c := range changes {
				if c == want {
					return true
				}
			}
			return false
		}
	}

	require.NoError(t, fs.Write("new.md", []byte("# New")))
	testutil.Eventually(t, 5*time.Second, 50*time.Millisecond,
		seen(Change{Kind: ChangeCreated, ID: "new", Path: "new.md"}), "new file not synced by watcher")

	require.NoError(t, fs.Write("sub/deep.md", []byte("# Deep")))
	testutil.Eventually(t, 5*time.Second, 50*time.Millisecond,
		seen(Change{Kind: ChangeCreated, ID: "sub/deep", Path: "sub/deep.md"}), "file in new directory not synced")

	require.NoError(t, fs.Delete("new.md"))
	testutil.Eventually(t, 5*time.Second, 50*time.Millisecond,
		seen(Change{Kind: ChangeDeleted, ID: "new", Path: "new.md"}), "removed file not synced")
}
