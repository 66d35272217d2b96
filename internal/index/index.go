package index

import (
	"context"
	"time"

	"github.com/starford/notegraph/internal/models"
)

// Record is the persisted form of a note: everything the graph needs to be
// rebuilt without re-reading the document, plus change-detection values.
type Record struct {
	ID          string         `json:"id"`
	Path        string         `json:"path"`
	Name        string         `json:"name"`
	Folder      string         `json:"folder,omitempty"`
	Title       string         `json:"title,omitempty"`
	Tags        []string       `json:"tags"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Links       []string       `json:"links,omitempty"`
	WordCount   int            `json:"word_count"`
	ReadingTime int            `json:"reading_time"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Fingerprint string         `json:"fingerprint"`
	Checksum    string         `json:"checksum"`
	SyncedAt    time.Time      `json:"synced_at"`
}

// NewRecord builds a Record from a parsed note.
func NewRecord(n models.Note, fingerprint, checksum string, syncedAt time.Time) Record {
	return Record{
		ID:          n.ID,
		Path:        n.Path,
		Name:        n.Name,
		Folder:      n.Folder,
		Title:       n.Title,
		Tags:        n.Tags,
		Metadata:    n.Metadata,
		Links:       n.Links,
		WordCount:   n.WordCount,
		ReadingTime: n.ReadingTime,
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
		Fingerprint: fingerprint,
		Checksum:    checksum,
		SyncedAt:    syncedAt,
	}
}

// Note converts the record back into a note. Content is not persisted.
func (r Record) Note() models.Note {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	return models.Note{
		ID:          r.ID,
		Name:        r.Name,
		Path:        r.Path,
		Folder:      r.Folder,
		Title:       r.Title,
		Tags:        tags,
		Metadata:    r.Metadata,
		Links:       r.Links,
		WordCount:   r.WordCount,
		ReadingTime: r.ReadingTime,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// Counts summarises the persisted index.
type Counts struct {
	Notes int `json:"notes"`
	Links int `json:"links"` // raw link occurrences, resolved or not
}

// Store persists note records. Consumers should depend on this interface
// rather than a concrete backend.
type Store interface {
	Upsert(ctx context.Context, r Record) error
	// Delete removes the record with the given id. Deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error
	// Get returns the record with the given id or apperr.ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)
	All(ctx context.Context) ([]Record, error)
	Counts(ctx context.Context) (Counts, error)
	Close() error
}

// Verify the backends satisfy Store at compile time.
var (
	_ Store = (*DB)(nil)
	_ Store = (*Badger)(nil)
)
