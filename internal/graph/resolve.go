package graph

import (
	"path"
	"strings"

	"github.com/emirpasic/gods/maps/linkedhashmap"

	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/parser"
)

// resolver maps raw link targets to note ids.
type resolver struct {
	notes *linkedhashmap.Map    // id -> models.Note
	names map[string][]string // lower-cased name -> ids in insertion order
}

func (r resolver) has(id string) bool {
	_, ok := r.notes.Get(id)
	return ok
}

// resolve returns the id a raw target refers to from source, or "" when it
// dangles. First match wins:
//  1. the target's explicit folder, taken from the root;
//  2. the source's folder (joined with any explicit folder);
//  3. the root folder;
//  4. the only note with that name in any folder, ignoring case.
func (r resolver) resolve(sourceFolder, raw string) string {
	name, folder := parser.SplitTarget(raw)
	if name == "" {
		return ""
	}
	if folder != "" {
		if id := parser.GenerateNoteID(name, folder); r.has(id) {
			return id
		}
	}
	if sourceFolder != "" {
		if id := parser.GenerateNoteID(name, path.Join(sourceFolder, folder)); r.has(id) {
			return id
		}
	}
	if folder == "" {
		if id := parser.GenerateNoteID(name, ""); r.has(id) {
			return id
		}
	}

	var match string
	for _, id := range r.names[strings.ToLower(name)] {
		if folder != "" {
			v, _ := r.notes.Get(id)
			f := strings.ToLower(v.(models.Note).Folder)
			want := strings.ToLower(folder)
			if f != want && !strings.HasSuffix(f, "/"+want) {
				continue
			}
		}
		if match != "" {
			return "" // ambiguous
		}
		match = id
	}
	return match
}

func (r resolver) index(n models.Note) {
	key := strings.ToLower(n.Name)
	r.names[key] = append(r.names[key], n.ID)
}

func (r resolver) unindex(n models.Note) {
	key := strings.ToLower(n.Name)
	ids := r.names[key]
	for i, id := range ids {
		if id == n.ID {
			ids = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(r.names, key)
		return
	}
	r.names[key] = ids
}
