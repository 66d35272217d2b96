package analytics

import (
	"math"
	"sort"

	"github.com/starford/notegraph/internal/graph"
)

// CoverageGap is a tag carried by too few notes relative to the corpus.
type CoverageGap struct {
	Tag         string   `json:"tag"`
	NoteCount   int      `json:"note_count"`
	Coverage    float64  `json:"coverage"` // NoteCount / total notes
	Suggestions []string `json:"suggestions"`
}

// Co-occurrence weights for gap suggestions.
const (
	sameNoteWeight   = 2
	linkedNoteWeight = 1
)

// coverageGaps lists tags whose note share is below threshold, rarest first.
// Suggestions are the tags that co-occur most with the gap, on the same
// note or on directly linked notes.
func coverageGaps(snap *graph.Snapshot, g *ugraph, threshold float64, maxSuggestions int) []CoverageGap {
	out := []CoverageGap{}
	total := snap.Len()
	if total == 0 {
		return out
	}

	freq := make(map[string]int)
	for _, n := range snap.Nodes {
		for _, t := range n.Tags {
			freq[t]++
		}
	}

	for tag, count := range freq {
		coverage := float64(count) / float64(total)
		if coverage >= threshold {
			continue
		}
		out = append(out, CoverageGap{
			Tag:         tag,
			NoteCount:   count,
			Coverage:    round(coverage, 4),
			Suggestions: suggestions(snap, g, tag, freq, maxSuggestions),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NoteCount != out[j].NoteCount {
			return out[i].NoteCount < out[j].NoteCount
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}

func suggestions(snap *graph.Snapshot, g *ugraph, tag string, freq map[string]int, limit int) []string {
	score := make(map[string]int)
	for i, n := range snap.Nodes {
		if !hasTag(n.Tags, tag) {
			continue
		}
		for _, t := range n.Tags {
			if t != tag {
				score[t] += sameNoteWeight
			}
		}
		for _, nb := range g.adj[i] {
			for _, t := range snap.Nodes[nb].Tags {
				if t != tag {
					score[t] += linkedNoteWeight
				}
			}
		}
	}

	ranked := make([]string, 0, len(score))
	for t := range score {
		ranked = append(ranked, t)
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if score[a] != score[b] {
			return score[a] > score[b]
		}
		if freq[a] != freq[b] {
			return freq[a] > freq[b]
		}
		return a < b
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
