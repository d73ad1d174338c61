package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fire_vuln"

// Metrics holds the Prometheus counters, histograms, and gauges for the scoring pipeline.
type Metrics struct {
	ScoringRuns     *prometheus.CounterVec // labels: outcome={success,error}
	RunDuration     prometheus.Histogram
	DistrictsScored prometheus.Gauge
	ActiveCriteria  prometheus.Gauge
	PipelineRunning prometheus.Gauge
	LastSuccess     prometheus.Gauge

	// Score cache and sinks.
	ScoreCache   *prometheus.CounterVec // labels: result={hit,miss}
	LoaderErrors *prometheus.CounterVec // labels: sink
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates all pipeline metrics and registers them with reg.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, so
// tests can build as many as they need.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ScoringRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scoring_runs_total",
			Help:      "Scoring runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scoring_run_duration_seconds",
			Help:      "Duration of a complete load-score-publish run.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		}),
		DistrictsScored: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "districts_scored",
			Help:      "Number of districts in the latest report.",
		}),
		ActiveCriteria: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_criteria",
			Help:      "Number of criteria in the latest report.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the refresh loop is active, 0 when shut down.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful scoring run.",
		}),
		ScoreCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "score_cache_total",
			Help:      "Score cache lookups by result.",
		}, []string{"result"}),
		LoaderErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loader_errors_total",
			Help:      "Report publication failures by sink.",
		}, []string{"sink"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ScoringRuns,
		m.RunDuration,
		m.DistrictsScored,
		m.ActiveCriteria,
		m.PipelineRunning,
		m.LastSuccess,
		m.ScoreCache,
		m.LoaderErrors,
	}
}
