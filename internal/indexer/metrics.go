package indexer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/starford/notegraph/internal/graph"
)

const (
	metricsNamespace = "notegraph"
	indexerSubsystem = "indexer"
)

// Document outcomes recorded per run.
const (
	outcomeIndexed   = "indexed"
	outcomeUnchanged = "unchanged"
	outcomeRemoved   = "removed"
	outcomeFailed    = "failed"
	outcomeCollision = "collision"
)

// Metrics holds the indexer's Prometheus collectors.
type Metrics struct {
	RunsTotal       *prometheus.CounterVec
	RunDuration     *prometheus.HistogramVec
	DocumentsTotal  *prometheus.CounterVec
	GraphNotes      prometheus.Gauge
	GraphLinks      prometheus.Gauge
	GraphDangling   prometheus.Gauge
	GraphCollisions prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: indexerSubsystem,
				Name:      "runs_total",
				Help:      "Index runs by operation and status",
			},
			[]string{"op", "status"},
		),
		RunDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: indexerSubsystem,
				Name:      "run_duration_seconds",
				Help:      "Duration of index runs in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
			},
			[]string{"op"},
		),
		DocumentsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: indexerSubsystem,
				Name:      "documents_total",
				Help:      "Documents processed by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		GraphNotes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "graph",
			Name:      "notes",
			Help:      "Notes in the in-memory graph",
		}),
		GraphLinks: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "graph",
			Name:      "links",
			Help:      "Resolved edges in the in-memory graph",
		}),
		GraphDangling: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "graph",
			Name:      "dangling_links",
			Help:      "Unresolved links in the in-memory graph",
		}),
		GraphCollisions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "graph",
			Name:      "id_collisions",
			Help:      "Note ids claimed by more than one document",
		}),
	}
}

func (m *Metrics) observeRun(op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.RunsTotal.WithLabelValues(op, status).Inc()
	m.RunDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) documents(op, outcome string, n int) {
	if n > 0 {
		m.DocumentsTotal.WithLabelValues(op, outcome).Add(float64(n))
	}
}

func (m *Metrics) observeGraph(st graph.Stats) {
	m.GraphNotes.Set(float64(st.TotalNotes))
	m.GraphLinks.Set(float64(st.TotalLinks))
	m.GraphDangling.Set(float64(st.DanglingLinks))
	m.GraphCollisions.Set(float64(st.Collisions))
}
