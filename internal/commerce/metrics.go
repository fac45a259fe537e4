package commerce

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricSearchTotal       = "commerce_search_total"
	MetricSearchDuration    = "commerce_search_duration_seconds"
	MetricCandidateWindow   = "commerce_search_candidate_window_size"
	MetricMissingEmbeddings = "commerce_search_missing_embeddings_total"
)

// Metrics contains Prometheus metrics for commerce discovery.
// All operations are thread-safe.
type Metrics struct {
	searchTotal       *prometheus.CounterVec
	searchDuration    *prometheus.HistogramVec
	candidateWindow   prometheus.Histogram
	missingEmbeddings prometheus.Counter
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register
// them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		searchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricSearchTotal,
			Help: "Total number of commerce discovery requests by ranking mode",
		}, []string{"mode"}),
		searchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricSearchDuration,
			Help:    "Histogram of commerce discovery request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"mode"}),
		candidateWindow: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricCandidateWindow,
			Help:    "Histogram of candidate window sizes fetched for re-ranking",
			Buckets: []float64{50, 100, 200, 300, 400, 500},
		}),
		missingEmbeddings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricMissingEmbeddings,
			Help: "Total number of candidates scored with the sentinel because no usable embedding was stored",
		}),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.searchTotal,
		m.searchDuration,
		m.candidateWindow,
		m.missingEmbeddings,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveSearch records one discovery request for a mode with its duration.
func (m *Metrics) ObserveSearch(mode string, seconds float64) {
	if m == nil {
		return
	}
	m.searchTotal.WithLabelValues(mode).Inc()
	m.searchDuration.WithLabelValues(mode).Observe(seconds)
}

// ObserveWindow records the candidate window size used for a re-rank.
func (m *Metrics) ObserveWindow(size int) {
	if m == nil {
		return
	}
	m.candidateWindow.Observe(float64(size))
}

// RecordMissingEmbedding counts a candidate that fell back to the sentinel.
func (m *Metrics) RecordMissingEmbedding() {
	if m == nil {
		return
	}
	m.missingEmbeddings.Inc()
}
