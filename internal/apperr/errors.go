// Package apperr defines the error taxonomy shared by the parser, graph, index and sync layers.
package apperr

import "errors"

var (
	// ErrNotFound is returned when a requested note id is absent.
	ErrNotFound = errors.New("not found")
	// ErrParse marks a malformed document. Parsing still yields a best-effort result.
	ErrParse = errors.New("parse error")
	// ErrStorageUnavailable is returned when the persisted index cannot be reached.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrRootUnavailable is returned when the document root is missing or unreadable.
	ErrRootUnavailable = errors.New("document root unavailable")
	// ErrIntegrity marks a recoverable integrity problem (dangling link, id collision).
	ErrIntegrity = errors.New("integrity warning")
)
