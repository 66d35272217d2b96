// Package testutil provides shared test helpers for vaults, index stores and loggers.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/storage"
)

// TestDB creates a temporary SQLite index that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "notegraph-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestBadger creates an in-memory Badger index.
func TestBadger(t *testing.T) *index.Badger {
	t.Helper()
	b, err := index.OpenBadger(index.BadgerConfig{InMemory: true})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

// Stores runs fn once per index backend.
func Stores(t *testing.T, fn func(t *testing.T, newStore func(t *testing.T) index.Store)) {
	t.Run("sqlite", func(t *testing.T) {
		fn(t, func(t *testing.T) index.Store { return TestDB(t) })
	})
	t.Run("badger", func(t *testing.T) {
		fn(t, func(t *testing.T) index.Store { return TestBadger(t) })
	})
}

// TestVault creates a temporary vault directory with a file-system provider.
func TestVault(t *testing.T) (string, *storage.FS) {
	t.Helper()
	vaultDir := t.TempDir()
	fs, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, fs
}

// WriteFile writes content under dir, creating parent directories.
func WriteFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	full := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// Eventually polls fn every tick until it returns true or timeout elapses.
func Eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}
