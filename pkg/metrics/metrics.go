// Package metrics defines the Prometheus collectors for the corpus and topic
// model pipeline and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the pipeline.
type Metrics struct {
	TweetsIngestedTotal prometheus.Counter
	FilesSkippedTotal   *prometheus.CounterVec
	DocsNormalizedTotal *prometheus.CounterVec
	DocsFoldedTotal     *prometheus.CounterVec
	DocsTrainedTotal    *prometheus.CounterVec
	ArtifactCacheTotal  *prometheus.CounterVec
	StepDuration        *prometheus.HistogramVec
	ModelRunsTotal      *prometheus.CounterVec
	PendingDocs         *prometheus.GaugeVec
	DictionarySize      *prometheus.GaugeVec
	DuplicatesSkipped   *prometheus.CounterVec
	LifecycleState      *prometheus.GaugeVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPInFlight        prometheus.Gauge
	registry            prometheus.Gatherer
}

// New creates the collectors and registers them with reg. A nil reg uses a
// private registry, which keeps tests from colliding on the default one.
func New(reg prometheus.Registerer) *Metrics {
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if reg == nil {
		r := prometheus.NewRegistry()
		reg, gatherer = r, r
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	m := &Metrics{
		TweetsIngestedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tweets_ingested_total",
				Help: "Total raw tweets stored by the archive loader.",
			},
		),
		FilesSkippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archive_files_skipped_total",
				Help: "Archive files skipped by reason (processed, corrupt, bad_date, no_language_match).",
			},
			[]string{"reason"},
		),
		DocsNormalizedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "documents_normalized_total",
				Help: "Documents normalized per date.",
			},
			[]string{"date"},
		),
		DocsFoldedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "documents_bigram_folded_total",
				Help: "Documents that received bigram phrases per date.",
			},
			[]string{"date"},
		),
		DocsTrainedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "documents_trained_total",
				Help: "Documents folded into the topic model per date.",
			},
			[]string{"date"},
		),
		ArtifactCacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "artifact_cache_total",
				Help: "Artifact lookups by kind and result (hit, computed).",
			},
			[]string{"kind", "result"},
		),
		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_step_duration_seconds",
				Help:    "Duration of pipeline steps in seconds.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
			},
			[]string{"step"},
		),
		ModelRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "model_runs_total",
				Help: "Topic model runs by kind (bootstrap, update) and status.",
			},
			[]string{"kind", "status"},
		),
		PendingDocs: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "documents_pending",
				Help: "Normalized documents not yet in the topic model per date.",
			},
			[]string{"date"},
		),
		DictionarySize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dictionary_size",
				Help: "Number of terms in the dictionary per date.",
			},
			[]string{"date"},
		),
		DuplicatesSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "duplicate_records_skipped_total",
				Help: "Inserts skipped because the record already existed, by table.",
			},
			[]string{"table"},
		),
		LifecycleState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "lifecycle_state",
				Help: "Current lifecycle state per date (0=uninitialized .. 5=model_complete).",
			},
			[]string{"date"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ops_http_requests_total",
				Help: "Requests served by the metrics and health endpoints.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ops_http_request_duration_seconds",
				Help:    "Latency of the metrics and health endpoints in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ops_http_requests_in_flight",
				Help: "Requests currently being served by the ops server.",
			},
		),
		registry: gatherer,
	}

	reg.MustRegister(
		m.TweetsIngestedTotal,
		m.FilesSkippedTotal,
		m.DocsNormalizedTotal,
		m.DocsFoldedTotal,
		m.DocsTrainedTotal,
		m.ArtifactCacheTotal,
		m.StepDuration,
		m.ModelRunsTotal,
		m.PendingDocs,
		m.DictionarySize,
		m.DuplicatesSkipped,
		m.LifecycleState,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPInFlight,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler for the registry the
// collectors were registered with.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
