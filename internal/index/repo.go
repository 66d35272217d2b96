package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/notegraph/internal/apperr"
)

const selectRecordSQL = `
	SELECT id, path, name, folder, title, tags, metadata, word_count, reading_time,
	       created_at, updated_at, fingerprint, checksum, synced_at
	FROM notes`

// Upsert inserts or replaces a record and its links within a transaction.
func (db *DB) Upsert(ctx context.Context, r Record) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", apperr.ErrStorageUnavailable, err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, _ := json.Marshal(tags)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO notes (id, path, name, folder, title, tags, metadata, word_count, reading_time,
		                   created_at, updated_at, fingerprint, checksum, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			path         = excluded.path,
			name         = excluded.name,
			folder       = excluded.folder,
			title        = excluded.title,
			tags         = excluded.tags,
			metadata     = excluded.metadata,
			word_count   = excluded.word_count,
			reading_time = excluded.reading_time,
			created_at   = excluded.created_at,
			updated_at   = excluded.updated_at,
			fingerprint  = excluded.fingerprint,
			checksum     = excluded.checksum,
			synced_at    = excluded.synced_at
	`, r.ID, r.Path, r.Name, r.Folder, r.Title, string(tagsJSON), encodeMetadata(r.Metadata),
		r.WordCount, r.ReadingTime, unixNano(r.CreatedAt), unixNano(r.UpdatedAt),
		r.Fingerprint, r.Checksum, unixNano(r.SyncedAt))
	if err != nil {
		return fmt.Errorf("%w: upsert note %s: %v", apperr.ErrStorageUnavailable, r.ID, err)
	}

	// Replace links: delete old then insert in document order.
	if _, err := tx.ExecContext(ctx, `DELETE FROM links WHERE source = ?`, r.ID); err != nil {
		return fmt.Errorf("%w: clear links: %v", apperr.ErrStorageUnavailable, err)
	}
	if len(r.Links) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO links (source, position, target) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("%w: prepare link insert: %v", apperr.ErrStorageUnavailable, err)
		}
		defer stmt.Close()
		for i, target := range r.Links {
			if _, err := stmt.ExecContext(ctx, r.ID, i, target); err != nil {
				return fmt.Errorf("%w: insert link: %v", apperr.ErrStorageUnavailable, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", apperr.ErrStorageUnavailable, err)
	}
	return nil
}

// Delete removes a record and its outgoing links.
func (db *DB) Delete(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", apperr.ErrStorageUnavailable, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM links WHERE source = ?`, id); err != nil {
		return fmt.Errorf("%w: delete links: %v", apperr.ErrStorageUnavailable, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("%w: delete note: %v", apperr.ErrStorageUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", apperr.ErrStorageUnavailable, err)
	}
	return nil
}

// Get returns a single record with its links.
func (db *DB) Get(ctx context.Context, id string) (*Record, error) {
	rec, err := scanRecord(db.conn.QueryRowContext(ctx, selectRecordSQL+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("note %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get note: %v", apperr.ErrStorageUnavailable, err)
	}
	links, err := db.linksOf(ctx, id)
	if err != nil {
		return nil, err
	}
	rec.Links = links
	return rec, nil
}

// All returns every record ordered by path, each with its links in document order.
func (db *DB) All(ctx context.Context) ([]Record, error) {
	rows, err := db.conn.QueryContext(ctx, selectRecordSQL+` ORDER BY path, id`)
	if err != nil {
		return nil, fmt.Errorf("%w: list notes: %v", apperr.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var out []Record
	pos := make(map[string]int)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan note: %v", apperr.ErrStorageUnavailable, err)
		}
		pos[rec.ID] = len(out)
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list notes: %v", apperr.ErrStorageUnavailable, err)
	}

	lrows, err := db.conn.QueryContext(ctx, `SELECT source, target FROM links ORDER BY source, position`)
	if err != nil {
		return nil, fmt.Errorf("%w: list links: %v", apperr.ErrStorageUnavailable, err)
	}
	defer lrows.Close()
	for lrows.Next() {
		var source, target string
		if err := lrows.Scan(&source, &target); err != nil {
			return nil, fmt.Errorf("%w: scan link: %v", apperr.ErrStorageUnavailable, err)
		}
		if i, ok := pos[source]; ok {
			out[i].Links = append(out[i].Links, target)
		}
	}
	if err := lrows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list links: %v", apperr.ErrStorageUnavailable, err)
	}
	return out, nil
}

// Counts returns the number of stored notes and raw link occurrences.
func (db *DB) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := db.conn.QueryRowContext(ctx,
		`SELECT (SELECT count(*) FROM notes), (SELECT count(*) FROM links)`).Scan(&c.Notes, &c.Links)
	if err != nil {
		return Counts{}, fmt.Errorf("%w: counts: %v", apperr.ErrStorageUnavailable, err)
	}
	return c, nil
}

func (db *DB) linksOf(ctx context.Context, id string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT target FROM links WHERE source = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("%w: links: %v", apperr.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(s rowScanner) (*Record, error) {
	var (
		r                             Record
		tagsJSON, metaJSON            string
		created, updated, syncedNanos int64
	)
	err := s.Scan(&r.ID, &r.Path, &r.Name, &r.Folder, &r.Title, &tagsJSON, &metaJSON,
		&r.WordCount, &r.ReadingTime, &created, &updated, &r.Fingerprint, &r.Checksum, &syncedNanos)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &r.Tags); err != nil || r.Tags == nil {
		r.Tags = []string{}
	}
	if metaJSON != "" && metaJSON != "{}" {
		_ = json.Unmarshal([]byte(metaJSON), &r.Metadata)
	}
	r.CreatedAt = fromUnixNano(created)
	r.UpdatedAt = fromUnixNano(updated)
	r.SyncedAt = fromUnixNano(syncedNanos)
	return &r, nil
}

// encodeMetadata serialises frontmatter. Values JSON cannot represent
// (maps with non-string keys) are dropped rather than failing the record.
func encodeMetadata(m map[string]any) string {
	if len(m) == 0 {
		return "{}"
	}
	if b, err := json.Marshal(m); err == nil {
		return string(b)
	}
	b, _ := json.Marshal(sanitizeMetadata(m))
	return string(b)
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
