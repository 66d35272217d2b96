package graph

import (
	"fmt"
	"path"
	"sync"

	"github.com/emirpasic/gods/maps/linkedhashmap"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/parser"
)

// Builder owns the in-memory graph. Writers serialise on a mutex; readers
// work on immutable snapshots that are rebuilt at most once per mutation.
type Builder struct {
	mu         sync.RWMutex
	res        resolver
	collisions map[string]string // id -> path displaced by the latest collision
	version    uint64
	snap       *Snapshot
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	b := &Builder{}
	b.reset()
	return b
}

func (b *Builder) reset() {
	b.res = resolver{
		notes: linkedhashmap.New(),
		names: make(map[string][]string),
	}
	b.collisions = make(map[string]string)
}

// AddNote inserts or replaces a note. A replaced note keeps its original
// insertion position. Replacing a note read from a different path is
// reported as an id collision.
func (b *Builder) AddNote(note models.Note) AddResult {
	return b.add(note, false)
}

// MoveNote replaces the note holding note.ID with note, which was read from
// a new path (e.g. "a.md" renamed to "a.MD"). The note keeps its insertion
// position, no collision is reported and an earlier one for the id is cleared.
func (b *Builder) MoveNote(note models.Note) AddResult {
	return b.add(note, true)
}

func (b *Builder) add(note models.Note, move bool) AddResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, collided := b.put(note, move)
	b.version++

	res := AddResult{ID: n.ID, Collision: collided}
	seen := make(map[string]struct{}, len(n.Links))
	for _, raw := range n.Links {
		target := b.res.resolve(n.Folder, raw)
		key := target
		if target == "" {
			key = "\x00" + raw
		}
		if target == n.ID {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if target == "" {
			res.Dangling++
		} else {
			res.Resolved++
		}
	}
	return res
}

// RemoveNote deletes a note. Links from other notes that pointed at it
// become dangling.
func (b *Builder) RemoveNote(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	v, ok := b.res.notes.Get(id)
	if !ok {
		return fmt.Errorf("note %s: %w", id, apperr.ErrNotFound)
	}
	b.res.notes.Remove(id)
	b.res.unindex(v.(models.Note))
	delete(b.collisions, id)
	b.version++
	return nil
}

// ReplaceAll rebuilds the graph from notes, in the given order.
func (b *Builder) ReplaceAll(notes []models.Note) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.reset()
	for _, n := range notes {
		b.put(n, false)
	}
	b.version++
}

// Has reports whether a note with the given id exists.
func (b *Builder) Has(id string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.res.has(id)
}

// Len returns the number of notes.
func (b *Builder) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.res.notes.Size()
}

// Snapshot returns the current point-in-time graph. The result is shared
// between callers and must not be modified.
func (b *Builder) Snapshot() *Snapshot {
	b.mu.RLock()
	if s := b.snap; s != nil && s.Version == b.version {
		b.mu.RUnlock()
		return s
	}
	b.mu.RUnlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.snap == nil || b.snap.Version != b.version {
		b.snap = build(b.res, len(b.collisions), b.version)
	}
	return b.snap
}

// LocalGraph is a shorthand for Snapshot().LocalGraph.
func (b *Builder) LocalGraph(rootID string, depth int) (*LocalGraph, error) {
	return b.Snapshot().LocalGraph(rootID, depth)
}

// put stores a normalised copy of n and reports an id collision. A move
// replaces the holder of the id without one. Callers hold the write lock.
func (b *Builder) put(n models.Note, move bool) (models.Note, bool) {
	n = normalize(n)
	collided := false
	if move {
		delete(b.collisions, n.ID)
	}
	if v, ok := b.res.notes.Get(n.ID); ok {
		prev := v.(models.Note)
		if !move && prev.Path != "" && n.Path != "" && prev.Path != n.Path {
			b.collisions[n.ID] = prev.Path
			collided = true
		}
		b.res.unindex(prev)
	}
	b.res.notes.Put(n.ID, n)
	b.res.index(n)
	return n, collided
}

// normalize fills a missing id or name and copies the slices the graph keeps.
func normalize(n models.Note) models.Note {
	if n.ID == "" {
		n.ID = parser.GenerateNoteID(n.Name, n.Folder)
	}
	if n.Name == "" {
		n.Name = path.Base(n.ID)
	}
	n.Content = ""
	n.Tags = append([]string{}, n.Tags...)
	n.Links = append([]string(nil), n.Links...)
	return n
}
