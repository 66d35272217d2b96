// Package index persists note records so the graph can be rebuilt and
// change detection survives restarts. SQLite is the default backend and
// Badger an embedded key-value alternative.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/notegraph/internal/apperr"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	id           TEXT PRIMARY KEY,
	path         TEXT NOT NULL,
	name         TEXT NOT NULL,
	folder       TEXT NOT NULL DEFAULT '',
	title        TEXT NOT NULL DEFAULT '',
	tags         TEXT NOT NULL DEFAULT '[]',
	metadata     TEXT NOT NULL DEFAULT '{}',
	word_count   INTEGER NOT NULL DEFAULT 0,
	reading_time INTEGER NOT NULL DEFAULT 0,
	created_at   INTEGER NOT NULL DEFAULT 0,
	updated_at   INTEGER NOT NULL DEFAULT 0,
	fingerprint  TEXT NOT NULL DEFAULT '',
	checksum     TEXT NOT NULL DEFAULT '',
	synced_at    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS links (
	source   TEXT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	target   TEXT NOT NULL,
	PRIMARY KEY (source, position)
);

CREATE INDEX IF NOT EXISTS idx_links_target ON links(target);
`

// DB is the SQLite-backed Store.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("%w: open db: %v", apperr.ErrStorageUnavailable, err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: ping: %v", apperr.ErrStorageUnavailable, err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: apply schema: %v", apperr.ErrStorageUnavailable, err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
