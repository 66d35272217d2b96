package api

import (
	"time"

	"github.com/starford/notegraph/internal/analytics"
	"github.com/starford/notegraph/internal/graph"
	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/indexer"
)

// StatsResponse carries the persisted index counts.
type StatsResponse struct {
	Notes int `json:"notes" example:"120" validate:"required"`
	Links int `json:"links" example:"340" validate:"required"`
}

// InitResponse summarises a full rebuild.
type InitResponse struct {
	RunID        string  `json:"run_id" validate:"required"`
	NotesIndexed int     `json:"notes_indexed" example:"120"`
	LinksIndexed int     `json:"links_indexed" example:"340"`
	Failures     int     `json:"failures"`
	Collisions   int     `json:"collisions"`
	DurationMS   float64 `json:"duration_ms"`
}

func newInitResponse(r *indexer.InitResult) InitResponse {
	return InitResponse{
		RunID:        r.RunID,
		NotesIndexed: r.NotesIndexed,
		LinksIndexed: r.LinksIndexed,
		Failures:     r.Failures,
		Collisions:   r.Collisions,
		DurationMS:   millis(r.Duration),
	}
}

// SyncResponse summarises an incremental sync.
type SyncResponse struct {
	RunID      string           `json:"run_id" validate:"required"`
	Added      int              `json:"added"`
	Updated    int              `json:"updated"`
	Removed    int              `json:"removed"`
	Unchanged  int              `json:"unchanged"`
	Failures   int              `json:"failures"`
	Collisions int              `json:"collisions"`
	Changes    []indexer.Change `json:"changes"`
	DurationMS float64          `json:"duration_ms"`
}

func newSyncResponse(r *indexer.SyncResult) SyncResponse {
	changes := r.Changes
	if changes == nil {
		changes = []indexer.Change{}
	}
	return SyncResponse{
		RunID:      r.RunID,
		Added:      r.Added,
		Updated:    r.Updated,
		Removed:    r.Removed,
		Unchanged:  r.Unchanged,
		Failures:   r.Failures,
		Collisions: r.Collisions,
		Changes:    changes,
		DurationMS: millis(r.Duration),
	}
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// GraphResponse is the full graph snapshot.
type GraphResponse struct {
	Version  uint64               `json:"version"`
	Nodes    []graph.Node         `json:"nodes" validate:"required"`
	Edges    []graph.Edge         `json:"edges" validate:"required"`
	Dangling []graph.DanglingLink `json:"dangling" validate:"required"`
	Stats    graph.Stats          `json:"stats"`
}

func newGraphResponse(s *graph.Snapshot) GraphResponse {
	return GraphResponse{
		Version:  s.Version,
		Nodes:    s.Nodes,
		Edges:    s.Edges,
		Dangling: s.Dangling,
		Stats:    s.Stats(),
	}
}

// NoteResponse is an indexed note with its resolved neighbourhood.
type NoteResponse struct {
	ID          string         `json:"id" example:"projects/Plan" validate:"required"`
	Name        string         `json:"name" example:"Plan"`
	Path        string         `json:"path" example:"projects/Plan.md"`
	Folder      string         `json:"folder,omitempty" example:"projects"`
	Title       string         `json:"title"`
	Tags        []string       `json:"tags"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Links       []string       `json:"links"`
	WordCount   int            `json:"word_count"`
	ReadingTime int            `json:"reading_time"`
	Checksum    string         `json:"checksum"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Degree      int            `json:"degree"`
	Outlinks    []string       `json:"outlinks"`
	Backlinks   []string       `json:"backlinks"`
}

func newNoteResponse(rec *index.Record, snap *graph.Snapshot) NoteResponse {
	links := rec.Links
	if links == nil {
		links = []string{}
	}
	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}
	resp := NoteResponse{
		ID:          rec.ID,
		Name:        rec.Name,
		Path:        rec.Path,
		Folder:      rec.Folder,
		Title:       rec.Title,
		Tags:        tags,
		Metadata:    rec.Metadata,
		Links:       links,
		WordCount:   rec.WordCount,
		ReadingTime: rec.ReadingTime,
		Checksum:    rec.Checksum,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
		Outlinks:    snap.Outlinks(rec.ID),
		Backlinks:   snap.Backlinks(rec.ID),
	}
	if n, err := snap.Node(rec.ID); err == nil {
		resp.Degree = n.Degree
	}
	return resp
}

// AnalyticsResponse is the analytics report.
type AnalyticsResponse struct {
	Stats            graph.Stats             `json:"stats"`
	HealthMetrics    analytics.Health        `json:"health_metrics"`
	Clusters         []analytics.Cluster     `json:"clusters"`
	CoverageGaps     []analytics.CoverageGap `json:"coverage_gaps"`
	TemporalAnalysis analytics.Temporal      `json:"temporal_analysis"`
	BridgeNotes      []analytics.BridgeNote  `json:"bridge_notes"`
	Orphans          []string                `json:"orphans"`
}

func newAnalyticsResponse(r *analytics.Report) AnalyticsResponse {
	return AnalyticsResponse{
		Stats:            r.Stats,
		HealthMetrics:    r.Health,
		Clusters:         r.Clusters,
		CoverageGaps:     r.CoverageGaps,
		TemporalAnalysis: r.Temporal,
		BridgeNotes:      r.BridgeNotes,
		Orphans:          r.Orphans,
	}
}
