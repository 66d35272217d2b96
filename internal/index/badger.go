package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/starford/notegraph/internal/apperr"
)

const notePrefix = "note/"

// BadgerConfig configures the Badger-backed Store.
type BadgerConfig struct {
	// Path is the directory for Badger files. Ignored when InMemory is true.
	Path string
	// InMemory keeps everything in RAM (tests, throwaway indexes).
	InMemory bool
	// SyncWrites fsyncs every commit.
	SyncWrites bool
	// Logger receives Badger's internal log lines. Nil disables them.
	Logger *slog.Logger
}

// Badger is the Store backed by an embedded Badger key-value database.
// Each record is a JSON value under "note/<id>"; links travel inside the record.
type Badger struct {
	db *badger.DB
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// OpenBadger opens (or creates) a Badger store.
func OpenBadger(cfg BadgerConfig) (*Badger, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, fmt.Errorf("%w: badger path is required", apperr.ErrStorageUnavailable)
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("%w: create %s: %v", apperr.ErrStorageUnavailable, cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open badger: %v", apperr.ErrStorageUnavailable, err)
	}
	return &Badger{db: db}, nil
}

func noteKey(id string) []byte {
	return []byte(notePrefix + id)
}

// Upsert stores the record, replacing any previous value.
func (b *Badger) Upsert(ctx context.Context, r Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.Tags == nil {
		r.Tags = []string{}
	}
	if _, err := json.Marshal(r.Metadata); err != nil {
		r.Metadata = sanitizeMetadata(r.Metadata)
	}
	val, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("index: encode %s: %w", r.ID, err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(noteKey(r.ID), val)
	})
	if err != nil {
		return fmt.Errorf("%w: upsert %s: %v", apperr.ErrStorageUnavailable, r.ID, err)
	}
	return nil
}

// Delete removes the record with the given id.
func (b *Badger) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(noteKey(id))
	})
	if err != nil {
		return fmt.Errorf("%w: delete %s: %v", apperr.ErrStorageUnavailable, id, err)
	}
	return nil
}

// Get returns the record with the given id.
func (b *Badger) Get(ctx context.Context, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rec Record
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(noteKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("note %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", apperr.ErrStorageUnavailable, id, err)
	}
	return &rec, nil
}

// All returns every record ordered by path.
func (b *Badger) All(ctx context.Context) ([]Record, error) {
	var out []Record
	err := b.scan(ctx, func(r Record) {
		out = append(out, r)
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Counts returns the number of stored notes and raw link occurrences.
func (b *Badger) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := b.scan(ctx, func(r Record) {
		c.Notes++
		c.Links += len(r.Links)
	})
	return c, err
}

func (b *Badger) scan(ctx context.Context, fn func(Record)) error {
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(notePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec Record
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			fn(rec)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: scan: %v", apperr.ErrStorageUnavailable, err)
	}
	return nil
}

// Close flushes and closes the database.
func (b *Badger) Close() error {
	return b.db.Close()
}

func sanitizeMetadata(m map[string]any) map[string]any {
	clean := make(map[string]any, len(m))
	for k, v := range m {
		if _, err := json.Marshal(v); err == nil {
			clean[k] = v
		}
	}
	return clean
}
