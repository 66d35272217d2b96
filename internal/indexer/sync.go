package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/checksum"
	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/models"
)

const opSync = "sync"

// Sync brings the index and the graph up to date with the document source.
//
// Documents whose fingerprint matches their record are skipped without
// being read. A changed fingerprint with identical content only refreshes
// the record. New and changed documents are parsed and applied; records
// whose document disappeared are removed. Records under paths that failed
// enumeration, or whose document failed to read, are left alone.
//
// On cancellation no new document is started, documents already started
// are applied, nothing is removed and ctx.Err() is returned with the
// partial result.
func (s *Service) Sync(ctx context.Context) (res *SyncResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.now()
	res = &SyncResult{RunID: uuid.NewString(), Changes: []Change{}}
	log := s.logger.With(slog.String("op", opSync), slog.String("run_id", res.RunID))
	defer func() {
		res.Duration = s.now().Sub(start)
		s.metrics.observeRun(opSync, start, err)
	}()

	if !s.hydrated.Load() {
		if err := s.hydrate(ctx); err != nil {
			return res, fmt.Errorf("sync: %w", err)
		}
	}

	records, err := s.store.All(ctx)
	if err != nil {
		return res, fmt.Errorf("sync: %w", err)
	}
	byID := make(map[string]index.Record, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	docs, err := s.source.List(ctx, "")
	if err != nil {
		return res, fmt.Errorf("sync: %w", err)
	}
	c := s.claim(docs, log)
	res.Failures = len(c.failed)
	res.Collisions = c.collisions

	var stale []models.DocumentInfo
	for _, d := range c.docs {
		r, ok := byID[c.ids[d.Path]]
		if ok && r.Path == d.Path && r.Fingerprint == checksum.Fingerprint(d.Size, d.ModTime) {
			res.Unchanged++
			continue
		}
		stale = append(stale, d)
	}

	wctx := context.WithoutCancel(ctx)
	syncedAt := s.now().UTC()
	type pending struct {
		note  models.Note
		kind  ChangeKind
		moved bool // same id, new path
	}
	var (
		applied  []pending
		storeErr error
	)
	cancelled := s.crawl(ctx, stale, func(l loaded) {
		if l.err != nil {
			res.Failures++
			log.Warn("read failed", slog.String("path", l.info.Path), slog.String("error", l.err.Error()))
			return
		}
		if storeErr != nil {
			return
		}
		prev, existed := byID[l.note.ID]
		if existed && prev.Path == l.note.Path && prev.Checksum == l.checksum {
			prev.Fingerprint = l.fingerprint
			prev.SyncedAt = syncedAt
			if err := s.store.Upsert(wctx, prev); err != nil {
				storeErr = err
				return
			}
			res.Unchanged++
			return
		}
		keepCreated(&l.note, prev, existed)
		if err := s.store.Upsert(wctx, index.NewRecord(l.note, l.fingerprint, l.checksum, syncedAt)); err != nil {
			storeErr = err
			return
		}
		kind := ChangeCreated
		if existed {
			kind = ChangeUpdated
		}
		applied = append(applied, pending{note: l.note, kind: kind, moved: existed && prev.Path != l.note.Path})
	})

	// Graph updates follow path order so insertion order is reproducible.
	sort.Slice(applied, func(i, j int) bool { return applied[i].note.Path < applied[j].note.Path })
	for _, p := range applied {
		add := s.builder.AddNote
		if p.moved {
			add = s.builder.MoveNote
		}
		r := add(p.note)
		if r.Collision {
			log.Warn("note id collision", slog.String("id", r.ID), slog.String("path", p.note.Path))
		}
		if p.kind == ChangeCreated {
			res.Added++
		} else {
			res.Updated++
		}
		res.Changes = append(res.Changes, Change{Kind: p.kind, ID: p.note.ID, Path: p.note.Path})
	}

	if storeErr != nil {
		s.hydrated.Store(false)
		s.recordSync(res)
		return res, fmt.Errorf("sync: %w", storeErr)
	}

	if !cancelled {
		if err := s.removeVanished(wctx, records, c, res, log); err != nil {
			s.hydrated.Store(false)
			s.recordSync(res)
			return res, fmt.Errorf("sync: %w", err)
		}
	}

	s.recordSync(res)
	st := s.builder.Snapshot().Stats()
	s.metrics.observeGraph(st)
	log.Info("sync complete",
		slog.Int("added", res.Added),
		slog.Int("updated", res.Updated),
		slog.Int("removed", res.Removed),
		slog.Int("unchanged", res.Unchanged),
		slog.Int("failures", res.Failures),
		slog.Int("dangling", st.DanglingLinks),
		slog.Bool("cancelled", cancelled))
	if cancelled {
		return res, ctx.Err()
	}
	return res, nil
}

// removeVanished deletes records whose document no longer exists.
func (s *Service) removeVanished(ctx context.Context, records []index.Record, c claims, res *SyncResult, log *slog.Logger) error {
	for _, r := range records {
		if _, ok := c.claimed[r.ID]; ok || c.covers(r.Path) {
			continue
		}
		if err := s.store.Delete(ctx, r.ID); err != nil {
			return err
		}
		if err := s.builder.RemoveNote(r.ID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		res.Removed++
		res.Changes = append(res.Changes, Change{Kind: ChangeDeleted, ID: r.ID, Path: r.Path})
		log.Debug("removed", slog.String("id", r.ID), slog.String("path", r.Path))
	}
	return nil
}

func (s *Service) recordSync(res *SyncResult) {
	s.metrics.documents(opSync, outcomeIndexed, res.Added+res.Updated)
	s.metrics.documents(opSync, outcomeUnchanged, res.Unchanged)
	s.metrics.documents(opSync, outcomeRemoved, res.Removed)
	s.metrics.documents(opSync, outcomeFailed, res.Failures)
	s.metrics.documents(opSync, outcomeCollision, res.Collisions)
}
