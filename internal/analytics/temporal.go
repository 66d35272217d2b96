package analytics

import (
	"time"

	"github.com/starford/notegraph/internal/graph"
)

const dayLayout = "2006-01-02"

// DayCount holds the notes created and links written on one UTC day.
type DayCount struct {
	Date  string `json:"date"`
	Notes int    `json:"notes"`
	Links int    `json:"links"`
}

// Temporal aggregates activity per calendar day over the observed range.
type Temporal struct {
	Days           []DayCount `json:"days"`
	TotalDays      int        `json:"total_days"`
	FirstDay       string     `json:"first_day,omitempty"`
	LastDay        string     `json:"last_day,omitempty"`
	PeakDay        string     `json:"peak_day,omitempty"`
	AvgNotesPerDay float64    `json:"avg_notes_per_day"`
	AvgLinksPerDay float64    `json:"avg_links_per_day"`
}

// temporalOf buckets note creation times and link times by UTC day. A link
// is dated by its source note's last update and counted once per occurrence.
// Days without activity inside the range are present with zero counts.
func temporalOf(snap *graph.Snapshot) Temporal {
	notes := make(map[time.Time]int)
	links := make(map[time.Time]int)
	var first, last time.Time
	observe := func(t time.Time) (time.Time, bool) {
		if t.IsZero() {
			return time.Time{}, false
		}
		d := day(t)
		if first.IsZero() || d.Before(first) {
			first = d
		}
		if last.IsZero() || d.After(last) {
			last = d
		}
		return d, true
	}

	noteTotal, linkTotal := 0, 0
	for _, n := range snap.Nodes {
		if d, ok := observe(n.CreatedAt); ok {
			notes[d]++
			noteTotal++
		}
	}
	for _, e := range snap.Edges {
		src, err := snap.Node(e.Source)
		if err != nil {
			continue
		}
		if d, ok := observe(src.UpdatedAt); ok {
			links[d] += e.Weight
			linkTotal += e.Weight
		}
	}

	t := Temporal{Days: []DayCount{}}
	if first.IsZero() {
		return t
	}

	peak := -1
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		dc := DayCount{Date: d.Format(dayLayout), Notes: notes[d], Links: links[d]}
		if dc.Notes+dc.Links > peak {
			peak = dc.Notes + dc.Links
			t.PeakDay = dc.Date
		}
		t.Days = append(t.Days, dc)
	}
	t.TotalDays = len(t.Days)
	t.FirstDay = first.Format(dayLayout)
	t.LastDay = last.Format(dayLayout)
	t.AvgNotesPerDay = round(float64(noteTotal)/float64(t.TotalDays), 2)
	t.AvgLinksPerDay = round(float64(linkTotal)/float64(t.TotalDays), 2)
	return t
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
