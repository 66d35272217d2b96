package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/models"
)

const opInitialize = "initialize"

// Initialize crawls every document, persists a record per note and
// rebuilds the graph from scratch. Records of documents that were not
// indexed by the crawl are pruned. Per-document failures are logged and
// counted. A missing root or an unreachable store fails the run.
//
// On cancellation the documents already started are committed, nothing is
// pruned, the graph is reloaded from the index and ctx.Err() is returned
// with the partial result.
func (s *Service) Initialize(ctx context.Context) (res *InitResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.now()
	res = &InitResult{RunID: uuid.NewString()}
	log := s.logger.With(slog.String("op", opInitialize), slog.String("run_id", res.RunID))
	defer func() {
		res.Duration = s.now().Sub(start)
		s.metrics.observeRun(opInitialize, start, err)
	}()

	docs, err := s.source.List(ctx, "")
	if err != nil {
		return res, fmt.Errorf("initialize: %w", err)
	}
	c := s.claim(docs, log)
	res.Failures = len(c.failed)
	res.Collisions = c.collisions

	records, err := s.store.All(ctx)
	if err != nil {
		return res, fmt.Errorf("initialize: %w", err)
	}
	prior := make(map[string]index.Record, len(records))
	for _, r := range records {
		prior[r.ID] = r
	}

	// Store writes outlive cancellation so in-flight work is committed.
	wctx := context.WithoutCancel(ctx)
	syncedAt := s.now().UTC()
	var (
		notes    []models.Note
		storeErr error
	)
	cancelled := s.crawl(ctx, c.docs, func(l loaded) {
		if l.err != nil {
			res.Failures++
			log.Warn("read failed", slog.String("path", l.info.Path), slog.String("error", l.err.Error()))
			return
		}
		if storeErr != nil {
			return
		}
		prev, ok := prior[l.note.ID]
		keepCreated(&l.note, prev, ok)
		if err := s.store.Upsert(wctx, index.NewRecord(l.note, l.fingerprint, l.checksum, syncedAt)); err != nil {
			storeErr = err
			return
		}
		notes = append(notes, l.note)
		res.NotesIndexed++
		res.LinksIndexed += len(l.note.Links)
	})

	s.metrics.documents(opInitialize, outcomeIndexed, res.NotesIndexed)
	s.metrics.documents(opInitialize, outcomeFailed, res.Failures)
	s.metrics.documents(opInitialize, outcomeCollision, res.Collisions)

	if storeErr != nil {
		// The index may now hold records the graph has not seen.
		s.hydrated.Store(false)
		return res, fmt.Errorf("initialize: %w", storeErr)
	}

	if cancelled {
		log.Warn("initialize cancelled", slog.Int("indexed", res.NotesIndexed))
		if err := s.hydrate(wctx); err != nil {
			s.hydrated.Store(false)
			return res, errors.Join(ctx.Err(), err)
		}
		return res, ctx.Err()
	}

	kept := make(map[string]struct{}, len(notes))
	for _, n := range notes {
		kept[n.ID] = struct{}{}
	}
	pruned, err := s.prune(wctx, kept)
	if err != nil {
		s.hydrated.Store(false)
		return res, fmt.Errorf("initialize: %w", err)
	}
	s.metrics.documents(opInitialize, outcomeRemoved, pruned)

	sortNotes(notes)
	s.builder.ReplaceAll(notes)
	s.hydrated.Store(true)

	st := s.builder.Snapshot().Stats()
	s.metrics.observeGraph(st)
	log.Info("initialize complete",
		slog.Int("notes", res.NotesIndexed),
		slog.Int("links", res.LinksIndexed),
		slog.Int("failures", res.Failures),
		slog.Int("collisions", res.Collisions),
		slog.Int("pruned", pruned),
		slog.Int("dangling", st.DanglingLinks))
	return res, nil
}

// prune deletes every record whose id is not in keep.
func (s *Service) prune(ctx context.Context, keep map[string]struct{}) (int, error) {
	records, err := s.store.All(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range records {
		if _, ok := keep[r.ID]; ok {
			continue
		}
		if err := s.store.Delete(ctx, r.ID); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
