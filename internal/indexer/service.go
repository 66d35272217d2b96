// Package indexer keeps the persisted index and the in-memory graph in step
// with the document source: full crawls, incremental fingerprint-based
// syncs, statistics and read access to the graph.
package indexer

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/starford/notegraph/internal/analytics"
	"github.com/starford/notegraph/internal/graph"
	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/parser"
	"github.com/starford/notegraph/internal/storage"
)

// ChangeKind classifies a per-note change applied by a sync.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// Change is one note added, updated or removed by a sync.
type Change struct {
	Kind ChangeKind `json:"kind"`
	ID   string     `json:"id"`
	Path string     `json:"path"`
}

// InitResult summarises a full crawl.
type InitResult struct {
	RunID        string        `json:"run_id"`
	NotesIndexed int           `json:"notes_indexed"`
	LinksIndexed int           `json:"links_indexed"` // raw link occurrences of the indexed notes
	Failures     int           `json:"failures"`
	Collisions   int           `json:"collisions"`
	Duration     time.Duration `json:"duration"`
}

// SyncResult summarises an incremental sync.
type SyncResult struct {
	RunID      string        `json:"run_id"`
	Added      int           `json:"added"`
	Updated    int           `json:"updated"`
	Removed    int           `json:"removed"`
	Unchanged  int           `json:"unchanged"`
	Failures   int           `json:"failures"`
	Collisions int           `json:"collisions"`
	Changes    []Change      `json:"changes"`
	Duration   time.Duration `json:"duration"`
}

// Service is the single writer of the persisted index.
type Service struct {
	source  storage.Provider
	store   index.Store
	builder *graph.Builder

	logger  *slog.Logger
	workers int
	parser  *parser.Parser
	ext     string
	engine  *analytics.Engine
	metrics *Metrics
	now     func() time.Time

	mu       sync.Mutex // serialises Initialize, Sync and hydration
	hydrated atomic.Bool
}

// New returns a Service over source and store that maintains builder.
func New(source storage.Provider, store index.Store, builder *graph.Builder, opts ...Option) *Service {
	s := defaults()
	s.source = source
	s.store = store
	s.builder = builder
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stats returns the counts of the last durably committed index state.
func (s *Service) Stats(ctx context.Context) (index.Counts, error) {
	return s.store.Counts(ctx)
}

// Graph returns the current graph snapshot.
func (s *Service) Graph(ctx context.Context) (*graph.Snapshot, error) {
	if err := s.ensureHydrated(ctx); err != nil {
		return nil, err
	}
	return s.builder.Snapshot(), nil
}

// LocalGraph returns the subgraph within depth hops of id.
func (s *Service) LocalGraph(ctx context.Context, id string, depth int) (*graph.LocalGraph, error) {
	snap, err := s.Graph(ctx)
	if err != nil {
		return nil, err
	}
	return snap.LocalGraph(id, depth)
}

// Analytics analyses the current graph snapshot.
func (s *Service) Analytics(ctx context.Context) (*analytics.Report, error) {
	snap, err := s.Graph(ctx)
	if err != nil {
		return nil, err
	}
	return s.engine.Analyze(ctx, snap)
}

// Note returns the persisted record of a note.
func (s *Service) Note(ctx context.Context, id string) (*index.Record, error) {
	return s.store.Get(ctx, id)
}

// ensureHydrated loads the graph from the persisted index the first time
// it is read in this process.
func (s *Service) ensureHydrated(ctx context.Context) error {
	if s.hydrated.Load() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hydrated.Load() {
		return nil
	}
	return s.hydrate(ctx)
}

// hydrate rebuilds the graph from persisted records without re-reading
// documents. Callers hold s.mu.
func (s *Service) hydrate(ctx context.Context) error {
	records, err := s.store.All(ctx)
	if err != nil {
		return err
	}
	notes := make([]models.Note, len(records))
	for i, r := range records {
		notes[i] = r.Note()
	}
	s.builder.ReplaceAll(notes)
	s.hydrated.Store(true)
	s.metrics.observeGraph(s.builder.Snapshot().Stats())
	s.logger.Debug("graph hydrated from index", slog.Int("notes", len(notes)))
	return nil
}

func sortNotes(notes []models.Note) {
	sort.Slice(notes, func(i, j int) bool { return notes[i].Path < notes[j].Path })
}
