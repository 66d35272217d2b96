// Package models defines the domain types shared across notegraph.
package models

import "time"

// Note is a parsed document and the structural facts extracted from it.
type Note struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Path        string         `json:"path"`
	Folder      string         `json:"folder,omitempty"`
	Title       string         `json:"title,omitempty"`
	Content     string         `json:"-"`
	Tags        []string       `json:"tags"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Links       []string       `json:"links,omitempty"` // raw targets, one per occurrence
	WordCount   int            `json:"word_count"`
	ReadingTime int            `json:"reading_time"` // minutes
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Label returns the display name of the note.
func (n Note) Label() string {
	if n.Title != "" {
		return n.Title
	}
	return n.Name
}

// DocumentInfo is the cheap listing entry for a document under the vault root.
type DocumentInfo struct {
	Path    string    `json:"path"` // slash-separated, relative to the root
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	Err     error     `json:"-"` // set when the entry could not be inspected
}

// Document is a document read from the source together with its timestamps.
type Document struct {
	DocumentInfo
	Content   []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
