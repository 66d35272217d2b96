package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/starford/notegraph/internal/models"
)

// Memory is an in-memory Provider. Every mutation advances a logical clock
// by one minute so modification times are deterministic and always differ.
type Memory struct {
	mu    sync.RWMutex
	docs  map[string]*memDoc
	fails map[string]error
	clock time.Time
	ext   string
}

type memDoc struct {
	content  []byte
	created  time.Time
	modified time.Time
}

// MemoryEpoch is the first timestamp handed out by a new Memory provider.
var MemoryEpoch = time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)

// NewMemory returns an empty in-memory provider.
func NewMemory() *Memory {
	return &Memory{
		docs:  make(map[string]*memDoc),
		fails: make(map[string]error),
		clock: MemoryEpoch,
		ext:   DefaultExtension,
	}
}

func (m *Memory) tick() time.Time {
	m.clock = m.clock.Add(time.Minute)
	return m.clock
}

func cleanKey(p string) string {
	return strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(p, `\`, "/")), "/")
}

// Write creates or replaces a document.
func (m *Memory) Write(p string, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.tick()
	key := cleanKey(p)
	if d, ok := m.docs[key]; ok {
		d.content = append([]byte(nil), content...)
		d.modified = now
		return nil
	}
	m.docs[key] = &memDoc{content: append([]byte(nil), content...), created: now, modified: now}
	return nil
}

// WriteAt creates or replaces a document with explicit timestamps.
func (m *Memory) WriteAt(p string, content []byte, created, modified time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[cleanKey(p)] = &memDoc{content: append([]byte(nil), content...), created: created, modified: modified}
}

// Touch advances the modification time of a document without changing its content.
func (m *Memory) Touch(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[cleanKey(p)]
	if !ok {
		return fmt.Errorf("storage: touch %s: %w", p, os.ErrNotExist)
	}
	d.modified = m.tick()
	return nil
}

// Delete removes a document.
func (m *Memory) Delete(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := cleanKey(p)
	if _, ok := m.docs[key]; !ok {
		return fmt.Errorf("storage: delete %s: %w", p, os.ErrNotExist)
	}
	delete(m.docs, key)
	return nil
}

// FailRead makes every Read of p return err until cleared with a nil err.
func (m *Memory) FailRead(p string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.fails, cleanKey(p))
		return
	}
	m.fails[cleanKey(p)] = err
}

// List returns every document under dir, sorted by path.
func (m *Memory) List(ctx context.Context, dir string) ([]models.DocumentInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	prefix := cleanKey(dir)
	if prefix != "" {
		prefix += "/"
	}
	out := make([]models.DocumentInfo, 0, len(m.docs))
	for key, d := range m.docs {
		if !strings.HasPrefix(key, prefix) || !strings.HasSuffix(strings.ToLower(key), m.ext) {
			continue
		}
		out = append(out, models.DocumentInfo{Path: key, Size: int64(len(d.content)), ModTime: d.modified})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Read returns a copy of the document at p.
func (m *Memory) Read(p string) (*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key := cleanKey(p)
	if err, ok := m.fails[key]; ok {
		return nil, fmt.Errorf("storage: read %s: %w", p, err)
	}
	d, ok := m.docs[key]
	if !ok {
		return nil, fmt.Errorf("storage: read %s: %w", p, os.ErrNotExist)
	}
	return &models.Document{
		DocumentInfo: models.DocumentInfo{Path: key, Size: int64(len(d.content)), ModTime: d.modified},
		Content:      append([]byte(nil), d.content...),
		CreatedAt:    d.created,
	}, nil
}
