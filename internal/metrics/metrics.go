// Package metrics counts what a run did with each block, pair and hunk.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sokinpui/editstream/internal/edit"
)

const namespace = "editstream"

// Block outcomes.
const (
	OutcomeApplied   = "applied"
	OutcomeUnchanged = "unchanged"
	OutcomePartial   = "partial"
	OutcomeFailed    = "failed"
)

type Metrics struct {
	registry *prometheus.Registry

	blocks   *prometheus.CounterVec
	pairs    *prometheus.CounterVec
	hunks    *prometheus.CounterVec
	files    *prometheus.CounterVec
	duration prometheus.Histogram
}

// New registers the pipeline metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		// Labels: kind (content, search_replace, patch), outcome
		blocks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_total",
			Help:      "Edit blocks processed, by kind and outcome",
		}, []string{"kind", "outcome"}),

		// Labels: stage (exact, indent, tokens, compact, or none), reason
		pairs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pairs_total",
			Help:      "SEARCH/REPLACE pairs resolved, by match stage and unmatched reason",
		}, []string{"stage", "reason"}),

		hunks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hunks_total",
			Help:      "Unified diff hunks applied or rejected",
		}, []string{"outcome"}),

		files: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Files written, by action",
		}, []string{"action"}),

		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a whole run",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveBlock(kind edit.Kind, outcome string) {
	m.blocks.WithLabelValues(kind.String(), outcome).Inc()
}

func (m *Metrics) ObservePair(r edit.MatchResult) {
	if r.Matched() {
		m.pairs.WithLabelValues(r.Stage, "").Inc()
		return
	}
	m.pairs.WithLabelValues("none", string(r.Reason)).Inc()
}

func (m *Metrics) ObserveHunks(n int, applied bool) {
	outcome := OutcomeApplied
	if !applied {
		outcome = OutcomeFailed
	}
	m.hunks.WithLabelValues(outcome).Add(float64(n))
}

func (m *Metrics) ObserveFile(action string) {
	m.files.WithLabelValues(action).Inc()
}

func (m *Metrics) ObserveRun(d time.Duration) {
	m.duration.Observe(d.Seconds())
}

// WriteTextfile writes the registry in the node exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
