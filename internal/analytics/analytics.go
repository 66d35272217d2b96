// Package analytics derives clusters, bridge notes, coverage gaps, temporal
// trends and a health score from a graph snapshot. It never mutates the
// snapshot and never fails on empty or disconnected graphs.
package analytics

import (
	"context"

	"github.com/starford/notegraph/internal/graph"
)

// Defaults applied by New for unset options.
const (
	DefaultGapThreshold   = 0.05
	DefaultMaxSuggestions = 3
	DefaultResolution     = 1.0
	DefaultMaxIterations  = 20
)

// Options tunes the engine. Zero values fall back to the defaults.
type Options struct {
	// GapThreshold is the note share below which a tag counts as a coverage gap.
	GapThreshold float64
	// MaxSuggestions caps the related tags suggested per gap.
	MaxSuggestions int
	// Resolution scales the null-model term of the community search.
	// Higher values yield smaller clusters.
	Resolution float64
	// MaxIterations bounds the local-move/refinement rounds.
	MaxIterations int
}

// Report is the full analytics output for one snapshot.
type Report struct {
	Version      uint64        `json:"version"`
	Stats        graph.Stats   `json:"stats"`
	Health       Health        `json:"health"`
	Clusters     []Cluster     `json:"clusters"`
	CoverageGaps []CoverageGap `json:"coverage_gaps"`
	Temporal     Temporal      `json:"temporal"`
	BridgeNotes  []BridgeNote  `json:"bridge_notes"`
	Orphans      []string      `json:"orphans"`
}

// Engine computes reports.
type Engine struct {
	opts Options
}

// New returns an Engine with defaults applied to opts.
func New(opts Options) *Engine {
	if opts.GapThreshold <= 0 {
		opts.GapThreshold = DefaultGapThreshold
	}
	if opts.MaxSuggestions <= 0 {
		opts.MaxSuggestions = DefaultMaxSuggestions
	}
	if opts.Resolution <= 0 {
		opts.Resolution = DefaultResolution
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	return &Engine{opts: opts}
}

// Options returns the effective options.
func (e *Engine) Options() Options { return e.opts }

// Analyze runs every analysis over snap. It only fails when ctx is done.
func (e *Engine) Analyze(ctx context.Context, snap *graph.Snapshot) (*Report, error) {
	g := newUGraph(snap)

	clusters, membership, err := e.clusters(ctx, snap, g)
	if err != nil {
		return nil, err
	}
	bridges, err := bridgeNotes(ctx, snap, g, clusters, membership)
	if err != nil {
		return nil, err
	}
	gaps := coverageGaps(snap, g, e.opts.GapThreshold, e.opts.MaxSuggestions)
	stats := snap.Stats()

	return &Report{
		Version:      snap.Version,
		Stats:        stats,
		Health:       healthOf(stats, len(gaps)),
		Clusters:     clusters,
		CoverageGaps: gaps,
		Temporal:     temporalOf(snap),
		BridgeNotes:  bridges,
		Orphans:      snap.Orphans(),
	}, nil
}

// Clusters partitions snap into clusters.
func (e *Engine) Clusters(ctx context.Context, snap *graph.Snapshot) ([]Cluster, error) {
	clusters, _, err := e.clusters(ctx, snap, newUGraph(snap))
	return clusters, err
}

// ugraph is the undirected weighted view of a snapshot, indexed by node position.
type ugraph struct {
	n   int
	adj [][]int
	w   [][]float64 // parallel to adj
	k   []float64   // weighted degree
	m   float64     // total edge weight
}

func newUGraph(s *graph.Snapshot) *ugraph {
	type key struct{ a, b int }
	pw := make(map[key]float64, len(s.Edges))
	for _, e := range s.Edges {
		a, _ := s.Position(e.Source)
		b, _ := s.Position(e.Target)
		if a > b {
			a, b = b, a
		}
		pw[key{a, b}] += float64(e.Weight)
	}

	g := &ugraph{
		n:   s.Len(),
		adj: make([][]int, s.Len()),
		w:   make([][]float64, s.Len()),
		k:   make([]float64, s.Len()),
	}
	for i := 0; i < g.n; i++ {
		g.adj[i] = s.Adjacency(i)
		g.w[i] = make([]float64, len(g.adj[i]))
		for j, nb := range g.adj[i] {
			a, b := i, nb
			if a > b {
				a, b = b, a
			}
			g.w[i][j] = pw[key{a, b}]
			g.k[i] += g.w[i][j]
		}
	}
	for _, w := range pw {
		g.m += w
	}
	return g
}
