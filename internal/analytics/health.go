package analytics

import "github.com/starford/notegraph/internal/graph"

// Health score weights. They sum to 1.
const (
	ConnectivityWeight = 0.5
	DegreeWeight       = 0.3
	GapsWeight         = 0.2

	// TargetAvgConnections is the average degree that earns the full degree component.
	TargetAvgConnections = 3.0
)

// HealthWeights documents how the components combine into the score.
type HealthWeights struct {
	Connectivity float64 `json:"connectivity"`
	Degree       float64 `json:"degree"`
	Gaps         float64 `json:"gaps"`
}

// Health is a 0-100 score with the components it was built from.
//
//	connectivity = non-orphan notes / notes
//	degree       = min(avg connections / 3, 1)
//	gaps         = 1 / (1 + coverage gaps)
//	score        = 100 * (0.5*connectivity + 0.3*degree + 0.2*gaps)
type Health struct {
	Score        float64       `json:"score"`
	Connectivity float64       `json:"connectivity"`
	Degree       float64       `json:"degree"`
	Gaps         float64       `json:"gaps"`
	GapCount     int           `json:"gap_count"`
	Weights      HealthWeights `json:"weights"`
}

func healthOf(stats graph.Stats, gapCount int) Health {
	h := Health{
		GapCount: gapCount,
		Weights: HealthWeights{
			Connectivity: ConnectivityWeight,
			Degree:       DegreeWeight,
			Gaps:         GapsWeight,
		},
	}
	if stats.TotalNotes == 0 {
		return h
	}
	h.Connectivity = float64(stats.TotalNotes-stats.OrphanCount) / float64(stats.TotalNotes)
	h.Degree = min(stats.AvgConnections/TargetAvgConnections, 1)
	h.Gaps = 1 / float64(1+gapCount)

	score := 100 * (ConnectivityWeight*h.Connectivity + DegreeWeight*h.Degree + GapsWeight*h.Gaps)
	h.Score = round(max(0, min(score, 100)), 1)
	h.Connectivity = round(h.Connectivity, 4)
	h.Degree = round(h.Degree, 4)
	h.Gaps = round(h.Gaps, 4)
	return h
}
