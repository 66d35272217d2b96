package mcpserver

// NoteSyntaxURI identifies the note syntax resource.
const NoteSyntaxURI = "notegraph://note-syntax"

// NoteSyntax documents what the indexer extracts from a note.
const NoteSyntax = `# Note Syntax

The indexer reads Markdown documents and extracts links, tags and metadata.
Everything else is body text.

## Frontmatter

An optional YAML block fenced by ` + "`---`" + ` lines at the very start of the file.

` + "```" + `markdown
---
title: Weekly review            # display title; falls back to the first "# " heading, then the file name
tags: [review, planning]        # YAML list or a comma/space separated string; a leading # is ignored
created: 2025-01-20             # optional; RFC 3339, "YYYY-MM-DD HH:MM[:SS]" or "YYYY-MM-DD"
---
` + "```" + `

Malformed YAML is reported as a parse warning; links and tags in the body are still indexed.

## Links

- ` + "`[[Target]]`" + ` links to the note named Target.
- ` + "`[[folder/Target]]`" + ` names the folder explicitly.
- ` + "`[[Target|alias]]`" + ` and ` + "`[[Target#Heading]]`" + ` link to Target.
- ` + "`![[Target]]`" + ` embeds count as links.
- Each occurrence counts; repeated links to one note become a weighted edge.

A target resolves, in order, to: the explicit folder path, the same path relative to the
linking note's folder, the vault root, and finally a unique note of that name anywhere.
Ambiguous or missing targets stay as dangling links and never create nodes.

## Tags

Inline ` + "`#tag`" + ` tokens (letters, digits, ` + "`_ - /`" + `) plus frontmatter tags.
Tags are case-sensitive and deduplicated.

## Ignored

Fenced code blocks and inline code spans contribute no links or tags.

## Identity

A note's id is its folder and file name without the extension, joined by "/"
(` + "`projects/2024/Plan.md`" + ` → ` + "`projects/2024/Plan`" + `).
`
