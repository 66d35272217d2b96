// Package parser extracts frontmatter, wikilinks, tags and counts from Markdown content.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/notegraph/internal/apperr"
)

// DefaultWordsPerMinute is the reading speed used when none is configured.
const DefaultWordsPerMinute = 200

var (
	wikilinkRe   = regexp.MustCompile(`\[\[([^\[\]\n]*?)\]\]`)
	tagRe        = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
	inlineCodeRe = regexp.MustCompile("`[^`\n]*`")
)

// Result holds the output of parsing a Markdown file.
type Result struct {
	Frontmatter map[string]any
	Body        string
	Links       []string
	Tags        []string
	Title       string
	WordCount   int
	ReadingTime int
	// Err is set when part of the document was malformed. The rest of the
	// result is still usable.
	Err error
}

// Parser parses documents with a configured reading speed.
type Parser struct {
	wordsPerMinute int
}

// New returns a Parser. A non-positive wordsPerMinute falls back to DefaultWordsPerMinute.
func New(wordsPerMinute int) *Parser {
	if wordsPerMinute <= 0 {
		wordsPerMinute = DefaultWordsPerMinute
	}
	return &Parser{wordsPerMinute: wordsPerMinute}
}

var defaultParser = New(DefaultWordsPerMinute)

// Parse extracts facts from raw Markdown bytes using the default reading speed.
func Parse(data []byte) *Result {
	return defaultParser.Parse(data)
}

// Parse extracts frontmatter, body, wikilinks, tags and word counts from raw Markdown bytes.
// It never fails hard: malformed frontmatter is reported through Result.Err.
func (p *Parser) Parse(data []byte) *Result {
	fm, body, err := splitFrontmatter(data)
	prose := stripCode(body)

	words := len(strings.Fields(body))
	return &Result{
		Frontmatter: fm,
		Body:        body,
		Links:       extractLinks(prose),
		Tags:        extractTags(prose, fm),
		Title:       deriveTitle(fm, prose),
		WordCount:   words,
		ReadingTime: readingTime(words, p.wordsPerMinute),
		Err:         err,
	}
}

func readingTime(words, wpm int) int {
	if words <= 0 {
		return 0
	}
	return (words + wpm - 1) / wpm
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. If no frontmatter is found the entire content is body.
// The returned map is never nil.
func splitFrontmatter(data []byte) (map[string]any, string, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return map[string]any{}, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		// No closing delimiter: everything is body.
		return map[string]any{}, string(data), nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return map[string]any{}, string(data), fmt.Errorf("%w: frontmatter: %v", apperr.ErrParse, err)
	}
	if fm == nil {
		fm = map[string]any{}
	}
	return fm, body, nil
}

// stripCode blanks fenced code blocks and inline code spans so that
// `#include` or `[[x]]` inside code is not taken for a tag or a link.
func stripCode(body string) string {
	lines := strings.Split(body, "\n")
	inFence := false
	fence := ""
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !inFence && (strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~")) {
			inFence = true
			fence = trimmed[:3]
			lines[i] = ""
			continue
		}
		if inFence {
			if strings.HasPrefix(trimmed, fence) {
				inFence = false
			}
			lines[i] = ""
			continue
		}
		lines[i] = inlineCodeRe.ReplaceAllString(line, "")
	}
	return strings.Join(lines, "\n")
}

// extractLinks returns wikilink targets in document order, one entry per
// occurrence. Aliases ([[Target|Alias]]) and heading anchors ([[Target#H]]) are dropped.
func extractLinks(body string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(body, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		target := m[1]
		if i := strings.Index(target, "|"); i >= 0 {
			target = target[:i]
		}
		if i := strings.Index(target, "#"); i >= 0 {
			target = target[:i]
		}
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		out = append(out, target)
	}
	return out
}

// extractTags collects tags from the frontmatter "tags" field and inline #tags.
func extractTags(body string, fm map[string]any) []string {
	seen := make(map[string]struct{})
	out := []string{}
	add := func(t string) {
		t = strings.TrimPrefix(strings.TrimSpace(t), "#")
		if t == "" {
			return
		}
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}

	switch v := fm["tags"].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	case string:
		for _, s := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' }) {
			add(s)
		}
	}

	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm map[string]any, body string) string {
	if s, ok := fm["title"].(string); ok && s != "" {
		return s
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
