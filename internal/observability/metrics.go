package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hazard_risk"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// assessment pipeline.
type Metrics struct {
	MessagesConsumed prometheus.Counter
	MessagesProduced prometheus.Counter
	AssessmentErrors *prometheus.CounterVec // labels: kind={insufficient_data,configuration,empty_input,missing_parameter,location_mismatch,malformed,other}
	PipelineRunning  prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Assessment results.
	TierAssessments *prometheus.CounterVec   // labels: tier
	HazardScores    *prometheus.HistogramVec // labels: hazard

	// Impact estimate cache.
	ImpactCache *prometheus.CounterVec // labels: result={hit,miss,purge}

	// Rules snapshot reloads.
	RulesReloads     *prometheus.CounterVec // labels: outcome={applied,unchanged,rejected}
	RulesSnapshotSeq prometheus.Gauge

	LatestLocations prometheus.Gauge

	// Advisory model calls.
	AdvisorRequests *prometheus.CounterVec // labels: outcome={success,error}
	AdvisorDuration prometheus.Histogram
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}
	return &Metrics{
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_consumed_total",
			Help:      help("Total location signals read from the source topic."),
		}),
		MessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_produced_total",
			Help:      help("Total risk bundles written to the sink."),
		}),
		AssessmentErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessment_errors_total",
			Help:      help("Signals that could not be assessed, by error kind."),
		}, []string{"kind"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      help("1 when the pipeline is active, 0 when shut down."),
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      help("Number of signals per scoring cycle."),
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      help("Duration of a complete scoring cycle."),
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		TierAssessments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tier_assessments_total",
			Help:      help("Locations classified, by risk tier."),
		}, []string{"tier"}),
		HazardScores: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "hazard_score",
			Help:      help("Distribution of hazard scores, by hazard type."),
			Buckets:   []float64{0.1, 0.25, 0.5, 0.75, 0.9, 1},
		}, []string{"hazard"}),
		ImpactCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "impact_cache_total",
			Help:      help("Impact estimate cache lookups and purges."),
		}, []string{"result"}),
		RulesReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rules_reloads_total",
			Help:      help("Rules snapshot reload attempts, by outcome."),
		}, []string{"outcome"}),
		RulesSnapshotSeq: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rules_snapshot_sequence",
			Help:      help("Sequence number of the active rules snapshot."),
		}),
		LatestLocations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "latest_locations",
			Help:      help("Locations held in the latest-results store."),
		}),
		AdvisorRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "advisor_requests_total",
			Help:      help("Advisory model ranking requests, by outcome."),
		}, []string{"outcome"}),
		AdvisorDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "advisor_request_duration_seconds",
			Help:      help("Latency of advisory model ranking requests."),
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.MessagesConsumed,
		m.MessagesProduced,
		m.AssessmentErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.TierAssessments,
		m.HazardScores,
		m.ImpactCache,
		m.RulesReloads,
		m.RulesSnapshotSeq,
		m.LatestLocations,
		m.AdvisorRequests,
		m.AdvisorDuration,
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}
