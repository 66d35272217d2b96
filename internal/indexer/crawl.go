package indexer

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/checksum"
	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/parser"
)

// loaded is the outcome of reading and parsing one document.
type loaded struct {
	info        models.DocumentInfo
	note        models.Note
	fingerprint string
	checksum    string
	err         error
}

// claims is the id assignment of one enumeration pass.
type claims struct {
	docs       []models.DocumentInfo // one winner per id, path order
	ids        map[string]string     // winner path -> id
	claimed    map[string]struct{}   // ids held by a listed document
	failed     []string              // paths that could not be enumerated
	collisions int
}

// claim assigns note ids to listed documents. When several paths map to
// the same id the first in path order wins and the rest count as collisions.
func (s *Service) claim(docs []models.DocumentInfo, log *slog.Logger) claims {
	c := claims{
		ids:     make(map[string]string, len(docs)),
		claimed: make(map[string]struct{}, len(docs)),
	}
	owner := make(map[string]string, len(docs))
	for _, d := range docs {
		if d.Err != nil {
			c.failed = append(c.failed, d.Path)
			log.Warn("enumerate failed", slog.String("path", d.Path), slog.String("error", d.Err.Error()))
			continue
		}
		id := s.idFor(d.Path)
		if prev, dup := owner[id]; dup {
			c.collisions++
			log.Warn("duplicate note id",
				slog.String("id", id),
				slog.String("path", d.Path),
				slog.String("kept", prev),
				slog.String("error", apperr.ErrIntegrity.Error()))
			continue
		}
		owner[id] = d.Path
		c.ids[d.Path] = id
		c.claimed[id] = struct{}{}
		c.docs = append(c.docs, d)
	}
	return c
}

// covers reports whether p lies at or under a path that failed enumeration.
func (c claims) covers(p string) bool {
	for _, f := range c.failed {
		if p == f || strings.HasPrefix(p, f+"/") {
			return true
		}
	}
	return false
}

func (s *Service) idFor(path string) string {
	name, folder := parser.SplitPath(path, s.ext)
	return parser.GenerateNoteID(name, folder)
}

// crawl reads and parses docs on a bounded worker pool and hands every
// result to apply on a single goroutine. Once ctx is done no new document
// is started; documents already started still reach apply. It reports
// whether work was skipped because of cancellation.
func (s *Service) crawl(ctx context.Context, docs []models.DocumentInfo, apply func(loaded)) bool {
	results := make(chan loaded)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for l := range results {
			apply(l)
		}
	}()

	var g errgroup.Group
	g.SetLimit(s.workers)
	cancelled := false
	for _, d := range docs {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		g.Go(func() error {
			results <- s.load(d)
			return nil
		})
	}
	_ = g.Wait()
	close(results)
	<-done
	return cancelled
}

func (s *Service) load(info models.DocumentInfo) loaded {
	doc, err := s.source.Read(info.Path)
	if err != nil {
		return loaded{info: info, err: err}
	}
	return loaded{
		info:        info,
		note:        s.noteFrom(doc),
		fingerprint: checksum.Fingerprint(doc.Size, doc.ModTime),
		checksum:    checksum.Sum(doc.Content),
	}
}

// noteFrom parses a document into a note. Malformed frontmatter is logged
// and the rest of the document is still used.
func (s *Service) noteFrom(doc *models.Document) models.Note {
	name, folder := parser.SplitPath(doc.Path, s.ext)
	res := s.parser.Parse(doc.Content)
	if res.Err != nil {
		s.logger.Warn("parse", slog.String("path", doc.Path), slog.String("error", res.Err.Error()))
	}

	created := doc.CreatedAt
	if t, ok := frontmatterTime(res.Frontmatter["created"]); ok {
		created = t
	}
	return models.Note{
		ID:          parser.GenerateNoteID(name, folder),
		Name:        name,
		Path:        doc.Path,
		Folder:      folder,
		Title:       res.Title,
		Content:     string(doc.Content),
		Tags:        res.Tags,
		Metadata:    res.Frontmatter,
		Links:       res.Links,
		WordCount:   res.WordCount,
		ReadingTime: res.ReadingTime,
		CreatedAt:   created,
		UpdatedAt:   doc.ModTime,
	}
}

// keepCreated carries the creation time of the note's earlier record over
// to n unless frontmatter sets one. Sources only report modification times,
// so re-reading a document must not move its creation date.
func keepCreated(n *models.Note, prev index.Record, ok bool) {
	if !ok || prev.CreatedAt.IsZero() {
		return
	}
	if _, set := frontmatterTime(n.Metadata["created"]); set {
		return
	}
	n.CreatedAt = prev.CreatedAt
}

var createdLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02"}

func frontmatterTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range createdLayouts {
			if parsed, err := time.Parse(layout, strings.TrimSpace(t)); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}
