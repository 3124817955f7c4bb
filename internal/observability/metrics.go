package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// analysis service.
type Metrics struct {
	AnalysesCompleted *prometheus.CounterVec // labels: risk_level={low,moderate,high}
	AnalysisErrors    *prometheus.CounterVec // labels: kind={source_unavailable,empty_stream,scene_rejected,adapter_failure,other}
	FramesClassified  prometheus.Counter
	MotionSamples     prometheus.Counter
	AnalysisDuration  prometheus.Histogram
	ClipFrames        prometheus.Histogram

	// Classifier sidecar metrics.
	ClassifierRequestDuration prometheus.Histogram
	ClassifierHealthy         prometheus.Gauge

	// Alert publishing metrics.
	ReportsPublished prometheus.Counter
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		AnalysesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flood_risk",
			Name:      "analyses_completed_total",
			Help:      "Completed analyses by risk verdict.",
		}, []string{"risk_level"}),
		AnalysisErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flood_risk",
			Name:      "analysis_errors_total",
			Help:      "Failed analyses by error kind.",
		}, []string{"kind"}),
		FramesClassified: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_risk",
			Name:      "frames_classified_total",
			Help:      "Total frames scored by the classifier.",
		}),
		MotionSamples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_risk",
			Name:      "motion_samples_total",
			Help:      "Total frame pairs that produced a motion estimate.",
		}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flood_risk",
			Name:      "analysis_duration_seconds",
			Help:      "Duration of one complete clip analysis.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		ClipFrames: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flood_risk",
			Name:      "clip_frames",
			Help:      "Number of frames decoded per analyzed clip.",
			Buckets:   []float64{1, 10, 30, 60, 120, 300, 600, 1200},
		}),
		ClassifierRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flood_risk",
			Name:      "classifier_request_duration_seconds",
			Help:      "Classifier sidecar request duration in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		ClassifierHealthy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "flood_risk",
			Name:      "classifier_healthy",
			Help:      "1 when the classifier sidecar reports its model loaded, 0 otherwise.",
		}),
		ReportsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_risk",
			Name:      "reports_published_total",
			Help:      "Analysis reports written to the alerting topic.",
		}),
	}

	prometheus.MustRegister(
		m.AnalysesCompleted,
		m.AnalysisErrors,
		m.FramesClassified,
		m.MotionSamples,
		m.AnalysisDuration,
		m.ClipFrames,
		m.ClassifierRequestDuration,
		m.ClassifierHealthy,
		m.ReportsPublished,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		AnalysesCompleted:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "flood_risk", Name: "analyses_completed_total"}, []string{"risk_level"}),
		AnalysisErrors:            prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "flood_risk", Name: "analysis_errors_total"}, []string{"kind"}),
		FramesClassified:          prometheus.NewCounter(prometheus.CounterOpts{Namespace: "flood_risk", Name: "frames_classified_total"}),
		MotionSamples:             prometheus.NewCounter(prometheus.CounterOpts{Namespace: "flood_risk", Name: "motion_samples_total"}),
		AnalysisDuration:          prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "flood_risk", Name: "analysis_duration_seconds"}),
		ClipFrames:                prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "flood_risk", Name: "clip_frames"}),
		ClassifierRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "flood_risk", Name: "classifier_request_duration_seconds"}),
		ClassifierHealthy:         prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "flood_risk", Name: "classifier_healthy"}),
		ReportsPublished:          prometheus.NewCounter(prometheus.CounterOpts{Namespace: "flood_risk", Name: "reports_published_total"}),
	}
}
