package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "signalforge"

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	stepDuration *prometheus.HistogramVec
	runsTotal    *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	llmCalls     *prometheus.CounterVec
	llmDuration  *prometheus.HistogramVec
	deliveries   *prometheus.CounterVec
	importance   *prometheus.GaugeVec
	errorsTotal  *prometheus.CounterVec
}

// New creates a recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers every collector on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		stepDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "workflow",
				Name:      "step_duration_seconds",
				Help:      "Duration of workflow steps in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"workflow", "step", "status"},
		),
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "workflow",
				Name:      "runs_total",
				Help:      "Category runs by outcome",
			},
			[]string{"category", "status"},
		),
		runDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "workflow",
				Name:      "run_duration_seconds",
				Help:      "Duration of category runs in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
			},
			[]string{"category", "status"},
		),
		llmCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "llm",
				Name:      "calls_total",
				Help:      "Summary provider calls by outcome",
			},
			[]string{"provider", "status"},
		),
		llmDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "llm",
				Name:      "duration_seconds",
				Help:      "Summary provider latency in seconds",
				Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
			},
			[]string{"provider", "status"},
		),
		deliveries: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deliveries_total",
				Help:      "Outbound notifications and webhooks by outcome",
			},
			[]string{"kind", "status"},
		),
		importance: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "importance_score",
				Help:      "Importance score of the latest signal per category",
			},
			[]string{"category"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

// RecordStep observes one finished workflow step.
func (r *Recorder) RecordStep(workflow, step, status string, seconds float64) {
	r.stepDuration.WithLabelValues(workflow, step, status).Observe(seconds)
}

// RecordRun observes one finished category run.
func (r *Recorder) RecordRun(category, status string, seconds float64) {
	r.runsTotal.WithLabelValues(category, status).Inc()
	r.runDuration.WithLabelValues(category, status).Observe(seconds)
}

func (r *Recorder) RecordLLM(provider, status string, seconds float64) {
	r.llmCalls.WithLabelValues(provider, status).Inc()
	r.llmDuration.WithLabelValues(provider, status).Observe(seconds)
}

func (r *Recorder) RecordDelivery(kind, status string) {
	r.deliveries.WithLabelValues(kind, status).Inc()
}

func (r *Recorder) RecordImportance(category string, score int) {
	r.importance.WithLabelValues(category).Set(float64(score))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// StatusLabel maps an error to the status label used across vectors.
func StatusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
