package parser

import (
	"path"
	"strings"
)

// GenerateNoteID returns the stable id of the note called name inside folder.
//
// The id is the slash-joined, normalised folder and name ("projects/Roadmap"),
// or just the name for notes at the root. Names never contain a slash, so two
// distinct (name, folder) pairs never share an id. The name is used as given:
// extensions are stripped by SplitPath and SplitTarget.
func GenerateNoteID(name, folder string) string {
	name = strings.TrimSpace(name)
	folder = normalizeFolder(folder)
	if folder == "" {
		return name
	}
	return folder + "/" + name
}

// SplitTarget normalises a raw link target ("folder/Note.md") into the
// (name, folder) pair understood by GenerateNoteID.
func SplitTarget(raw string) (name, folder string) {
	t := strings.TrimSpace(strings.ReplaceAll(raw, `\`, "/"))
	dir, base := path.Split(t)
	return trimMarkdownExt(strings.TrimSpace(base)), normalizeFolder(dir)
}

// SplitPath splits a document path relative to the root into (name, folder),
// dropping ext from the file name.
func SplitPath(rel, ext string) (name, folder string) {
	rel = strings.ReplaceAll(rel, `\`, "/")
	dir, base := path.Split(rel)
	if ext != "" && strings.HasSuffix(strings.ToLower(base), strings.ToLower(ext)) {
		base = base[:len(base)-len(ext)]
	}
	return base, normalizeFolder(dir)
}

func normalizeFolder(folder string) string {
	folder = strings.TrimSpace(strings.ReplaceAll(folder, `\`, "/"))
	if folder == "" {
		return ""
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+folder), "/")
	if cleaned == "." {
		return ""
	}
	return cleaned
}

func trimMarkdownExt(name string) string {
	if len(name) > 3 && strings.EqualFold(name[len(name)-3:], ".md") {
		return name[:len(name)-3]
	}
	return name
}
