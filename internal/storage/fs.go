package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/models"
)

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to vault directory
	ext  string
}

// FSOption configures an FS provider.
type FSOption func(*FS)

// WithExtension sets the document extension recognised by List (".md" by default).
func WithExtension(ext string) FSOption {
	return func(f *FS) {
		if ext == "" {
			return
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		f.ext = ext
	}
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string, opts ...FSOption) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrRootUnavailable, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: not a directory: %s", apperr.ErrRootUnavailable, abs)
	}
	f := &FS{root: abs, ext: DefaultExtension}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Root returns the absolute vault directory.
func (f *FS) Root() string { return f.root }

// Extension returns the recognised document extension.
func (f *FS) Extension() string { return f.ext }

// safePath resolves a relative path against the vault root and rejects
// any result that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	abs, err := filepath.Abs(filepath.Join(f.root, cleaned))
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path escapes vault root: %s", rel)
	}
	return abs, nil
}

func (f *FS) rel(abs string) string {
	r, err := filepath.Rel(f.root, abs)
	if err != nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(r)
}

// IsHidden reports whether a directory or file name is hidden (".git", ".obsidian", ...).
func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

// IsDocument reports whether name carries the provider's document extension.
func (f *FS) IsDocument(name string) bool {
	return !IsHidden(name) && strings.HasSuffix(strings.ToLower(name), strings.ToLower(f.ext))
}

// List enumerates documents under dir with an explicit worklist so deep
// trees never grow the call stack. Hidden directories are skipped and
// symlinks are not followed. Entries that fail to stat or directories
// that fail to open are reported with Err set; only a missing or
// unreadable starting directory fails the whole call.
func (f *FS) List(ctx context.Context, dir string) ([]models.DocumentInfo, error) {
	base, err := f.safePath(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(base)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrRootUnavailable, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: not a directory: %s", apperr.ErrRootUnavailable, dir)
	}

	var out []models.DocumentInfo
	pending := []string{base}
	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		cur := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		entries, err := os.ReadDir(cur)
		if err != nil {
			if cur == base {
				return nil, fmt.Errorf("%w: %v", apperr.ErrRootUnavailable, err)
			}
			out = append(out, models.DocumentInfo{Path: f.rel(cur), Err: err})
			continue
		}
		for _, e := range entries {
			name := e.Name()
			full := filepath.Join(cur, name)
			switch {
			case e.Type()&os.ModeSymlink != 0:
				continue
			case e.IsDir():
				if !IsHidden(name) {
					pending = append(pending, full)
				}
				continue
			case !f.IsDocument(name):
				continue
			}
			fi, err := e.Info()
			if err != nil {
				out = append(out, models.DocumentInfo{Path: f.rel(full), Err: err})
				continue
			}
			out = append(out, models.DocumentInfo{
				Path:    f.rel(full),
				Size:    fi.Size(),
				ModTime: fi.ModTime(),
			})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Read returns the content and timestamps of a vault document. The
// modification time doubles as creation time; portable birth times are
// not available through os.FileInfo.
func (f *FS) Read(path string) (*models.Document, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat %s: %w", path, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return &models.Document{
		DocumentInfo: models.DocumentInfo{
			Path:    f.rel(abs),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		},
		Content:   data,
		CreatedAt: info.ModTime(),
	}, nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".notegraph-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Delete removes a document from the vault.
func (f *FS) Delete(path string) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("storage: delete %s: %w", path, err)
	}
	return nil
}
