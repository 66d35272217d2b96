// Package storage defines the document source the indexer crawls.
package storage

import (
	"context"

	"github.com/starford/notegraph/internal/models"
)

// DefaultExtension is the document extension recognised when none is configured.
const DefaultExtension = ".md"

// Provider enumerates and reads documents under a root.
type Provider interface {
	// List returns every document under dir (relative to the root), recursively.
	// Entries that could not be inspected carry a non-nil Err.
	List(ctx context.Context, dir string) ([]models.DocumentInfo, error)
	// Read returns the content and timestamps of the document at path (relative to the root).
	Read(path string) (*models.Document, error)
}

var (
	_ Provider = (*FS)(nil)
	_ Provider = (*Memory)(nil)
)
