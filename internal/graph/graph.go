// Package graph assembles parsed notes into a node/edge structure with
// incremental updates, point-in-time snapshots and bounded local subgraphs.
package graph

import "time"

// Node is the graph summary of a note.
type Node struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Name      string    `json:"name"`
	Folder    string    `json:"folder,omitempty"`
	Path      string    `json:"path"`
	Tags      []string  `json:"tags"`
	WordCount int       `json:"word_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Degree    int       `json:"degree"`
}

// Edge is a resolved link. Parallel links between the same ordered pair
// collapse into one edge whose Weight counts them.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Weight int    `json:"weight"`
}

// DanglingLink is a link whose target does not resolve to a note.
type DanglingLink struct {
	Source string `json:"source"`
	Target string `json:"target"` // raw target as written
	Count  int    `json:"count"`
}

// AddResult reports how the outbound links of an added note resolved
// against the node set at insertion time.
type AddResult struct {
	ID       string `json:"id"`
	Resolved int    `json:"resolved"` // distinct target notes
	Dangling int    `json:"dangling"` // distinct unresolved targets
	// Collision is set when the id was already held by a note at a different path.
	Collision bool `json:"collision,omitempty"`
}

// Stats are full-graph counters.
type Stats struct {
	TotalNotes     int     `json:"total_notes"`
	TotalLinks     int     `json:"total_links"`
	AvgConnections float64 `json:"avg_connections"`
	MaxConnections int     `json:"max_connections"`
	OrphanCount    int     `json:"orphan_count"`
	DanglingLinks  int     `json:"dangling_links"`
	Collisions     int     `json:"collisions"`
}

// LocalNode is a node of a local graph together with its hop distance from the root.
type LocalNode struct {
	Node
	Depth int `json:"depth"`
}

// LocalGraph is the subgraph induced by every node within Depth hops of Root.
type LocalGraph struct {
	Root  string      `json:"root"`
	Depth int         `json:"depth"`
	Nodes []LocalNode `json:"nodes"`
	Edges []Edge      `json:"edges"`
}
