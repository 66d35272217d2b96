package indexer

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/notegraph/internal/storage"
)

// DefaultDebounce is the quiet period after the last file event before a
// watcher-driven sync runs.
const DefaultDebounce = 250 * time.Millisecond

// SyncCallback receives the result of every watcher-driven sync that
// applied at least one change.
type SyncCallback func(*SyncResult)

// Watch runs an fsnotify watcher on root and triggers a debounced Sync for
// document and directory events until ctx is cancelled. Directories
// created at runtime are added to the watch list; hidden directories are
// never watched.
func (s *Service) Watch(ctx context.Context, root string, debounce time.Duration, cb SyncCallback) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}
	log := s.logger.With(slog.String("component", "watcher"))
	log.Info("watcher started", slog.String("root", root))

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			fire = timer.C
			return
		}
		timer.Reset(debounce)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			log.Info("watcher stopped")
			return nil

		case <-fire:
			timer, fire = nil, nil
			res, err := s.Sync(ctx)
			if err != nil {
				if ctx.Err() == nil {
					log.Error("sync failed", slog.String("error", err.Error()))
				}
				continue
			}
			if cb != nil && len(res.Changes) > 0 {
				cb(res)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(ev.Name)
			if storage.IsHidden(name) {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if err := addDirsRecursive(w, ev.Name); err != nil {
						log.Warn("add new dir failed", slog.String("path", ev.Name), slog.String("error", err.Error()))
					}
					schedule()
					continue
				}
			}
			// Removed or renamed directories carry no extension.
			if s.isDocument(name) || (ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && filepath.Ext(name) == "") {
				schedule()
			}

		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Error("watcher error", slog.String("error", werr.Error()))
		}
	}
}

func (s *Service) isDocument(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), strings.ToLower(s.ext))
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && storage.IsHidden(d.Name()) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
