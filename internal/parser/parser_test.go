package parser

import (
	"errors"
	"testing"

	"github.com/starford/notegraph/internal/apperr"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\ntitle: Hello\ntags:\n  - go\n  - notes\n---\n# Hello\nBody text.\n")
	r := Parse(input)
	if r.Err != nil {
		t.Fatalf("unexpected error: %v", r.Err)
	}
	if r.Title != "Hello" {
		t.Errorf("title = %q, want %q", r.Title, "Hello")
	}
	if len(r.Tags) != 2 || r.Tags[0] != "go" || r.Tags[1] != "notes" {
		t.Errorf("tags = %v, want [go notes]", r.Tags)
	}
	if r.Body != "# Hello\nBody text.\n" {
		t.Errorf("body = %q", r.Body)
	}
	if r.WordCount != 4 {
		t.Errorf("word count = %d, want 4", r.WordCount)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	r := Parse([]byte("# Just a heading\nSome text.\n"))
	if r.Frontmatter == nil || len(r.Frontmatter) != 0 {
		t.Errorf("expected empty frontmatter map, got %v", r.Frontmatter)
	}
	if r.Title != "Just a heading" {
		t.Errorf("title = %q, want %q", r.Title, "Just a heading")
	}
	if r.Err != nil {
		t.Errorf("unexpected error: %v", r.Err)
	}
}

func TestParse_InvalidYAMLFallback(t *testing.T) {
	r := Parse([]byte("---\n: invalid: yaml: {{{\n---\nBody with [[Link]] and #tag\n"))
	if !errors.Is(r.Err, apperr.ErrParse) {
		t.Fatalf("err = %v, want ErrParse", r.Err)
	}
	if r.Frontmatter == nil || len(r.Frontmatter) != 0 {
		t.Errorf("expected empty metadata on invalid YAML, got %v", r.Frontmatter)
	}
	// The rest of the document stays usable.
	if len(r.Links) != 1 || r.Links[0] != "Link" {
		t.Errorf("links = %v", r.Links)
	}
	if len(r.Tags) != 1 || r.Tags[0] != "tag" {
		t.Errorf("tags = %v", r.Tags)
	}
}

func TestParse_UnclosedFrontmatterIsBody(t *testing.T) {
	r := Parse([]byte("---\ntitle: x\nno closing fence"))
	if r.Err != nil {
		t.Fatalf("unexpected error: %v", r.Err)
	}
	if len(r.Frontmatter) != 0 {
		t.Errorf("frontmatter = %v", r.Frontmatter)
	}
}

func TestParse_Deterministic(t *testing.T) {
	in := []byte("---\ntags: [a, b]\n---\nSee [[X]] [[Y|y]] #c #a\n")
	a, b := Parse(in), Parse(in)
	if len(a.Links) != len(b.Links) || len(a.Tags) != len(b.Tags) || a.WordCount != b.WordCount {
		t.Fatalf("parse not deterministic: %+v vs %+v", a, b)
	}
	for i := range a.Tags {
		if a.Tags[i] != b.Tags[i] {
			t.Fatalf("tag order differs: %v vs %v", a.Tags, b.Tags)
		}
	}
}

func TestExtractLinks_Occurrences(t *testing.T) {
	body := "See [[Note A]] and [[Note B|alias]].\nAlso [[Note A]] again and ![[img/Diagram]]."
	links := extractLinks(body)
	want := []string{"Note A", "Note B", "Note A", "img/Diagram"}
	if len(links) != len(want) {
		t.Fatalf("links = %v, want %v", links, want)
	}
	for i := range want {
		if links[i] != want[i] {
			t.Errorf("links[%d] = %q, want %q", i, links[i], want[i])
		}
	}
}

func TestExtractLinks_HeadingAndEmpty(t *testing.T) {
	links := extractLinks("see [[ ]] and [[|alias]] and [[#Local heading]] and [[Page#Section]]")
	if len(links) != 1 || links[0] != "Page" {
		t.Errorf("links = %v, want [Page]", links)
	}
}

func TestExtractTags_InlineAndFrontmatter(t *testing.T) {
	fm := map[string]any{
		"tags": []any{"alpha"},
	}
	body := "Some text #beta and #alpha again. #Beta is different."
	tags := extractTags(body, fm)
	want := []string{"alpha", "beta", "Beta"}
	if len(tags) != len(want) {
		t.Fatalf("tags = %v, want %v", tags, want)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Errorf("tags[%d] = %q, want %q", i, tags[i], want[i])
		}
	}
}

func TestExtractTags_FrontmatterString(t *testing.T) {
	tags := extractTags("", map[string]any{"tags": "#one, two three"})
	if len(tags) != 3 || tags[0] != "one" || tags[2] != "three" {
		t.Errorf("tags = %v", tags)
	}
}

func TestParse_IgnoresCode(t *testing.T) {
	in := "Intro #real [[Real]]\n```c\n#include <stdio.h>\n[[NotALink]]\n```\nInline `#nope [[Nope]]` end.\n"
	r := Parse([]byte(in))
	if len(r.Tags) != 1 || r.Tags[0] != "real" {
		t.Errorf("tags = %v, want [real]", r.Tags)
	}
	if len(r.Links) != 1 || r.Links[0] != "Real" {
		t.Errorf("links = %v, want [Real]", r.Links)
	}
}

func TestDeriveTitle_FrontmatterOverH1(t *testing.T) {
	fm := map[string]any{"title": "FM Title"}
	body := "# H1 Title\ntext"
	if title := deriveTitle(fm, body); title != "FM Title" {
		t.Errorf("title = %q, want %q", title, "FM Title")
	}
}

func TestDeriveTitle_H1Fallback(t *testing.T) {
	if title := deriveTitle(map[string]any{}, "some text\n# My Heading\nmore"); title != "My Heading" {
		t.Errorf("title = %q, want %q", title, "My Heading")
	}
}

func TestReadingTime(t *testing.T) {
	cases := []struct {
		words, wpm, want int
	}{
		{0, 200, 0},
		{1, 200, 1},
		{200, 200, 1},
		{201, 200, 2},
		{450, 100, 5},
	}
	for _, c := range cases {
		if got := readingTime(c.words, c.wpm); got != c.want {
			t.Errorf("readingTime(%d, %d) = %d, want %d", c.words, c.wpm, got, c.want)
		}
	}
}

func TestNew_ConfiguredWordsPerMinute(t *testing.T) {
	r := New(2).Parse([]byte("one two three four five"))
	if r.ReadingTime != 3 {
		t.Errorf("reading time = %d, want 3", r.ReadingTime)
	}
	if New(0).wordsPerMinute != DefaultWordsPerMinute {
		t.Error("non-positive wpm should fall back to the default")
	}
}
