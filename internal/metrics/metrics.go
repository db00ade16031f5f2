// Package metrics exposes Prometheus collectors for the ingestion pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Row outcomes recorded by RowsProcessed.
const (
	OutcomeInserted  = "inserted"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
)

// Pipeline holds the ingestion collectors. A nil *Pipeline records nothing.
type Pipeline struct {
	gatherer prometheus.Gatherer

	rows       *prometheus.CounterVec
	jobs       *prometheus.CounterVec
	detections *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	batches    prometheus.Counter
}

// New registers the collectors on a fresh registry.
func New() *Pipeline {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry registers the collectors on reg.
func NewWithRegistry(reg *prometheus.Registry) *Pipeline {
	p := &Pipeline{
		gatherer: reg,
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "traffboard_import_rows_total",
			Help: "Rows examined by import jobs, partitioned by record type and outcome.",
		}, []string{"type", "outcome"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "traffboard_import_jobs_total",
			Help: "Import jobs that reached a terminal status.",
		}, []string{"type", "status"}),
		detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "traffboard_import_detections_total",
			Help: "Schema detection attempts by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "traffboard_import_job_duration_seconds",
			Help:    "Wall time spent processing an import job.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
		}, []string{"type", "status"}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "traffboard_import_batches_total",
			Help: "Record batches loaded into storage.",
		}),
	}
	reg.MustRegister(p.rows, p.jobs, p.detections, p.duration, p.batches)
	return p
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Pipeline) Handler() http.Handler {
	if p == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}

func (p *Pipeline) RowsProcessed(kind, outcome string, n int) {
	if p == nil || n <= 0 {
		return
	}
	p.rows.WithLabelValues(kind, outcome).Add(float64(n))
}

func (p *Pipeline) BatchLoaded() {
	if p == nil {
		return
	}
	p.batches.Inc()
}

func (p *Pipeline) Detection(outcome string) {
	if p == nil {
		return
	}
	p.detections.WithLabelValues(outcome).Inc()
}

func (p *Pipeline) JobFinished(kind, status string, elapsed time.Duration) {
	if p == nil {
		return
	}
	p.jobs.WithLabelValues(kind, status).Inc()
	p.duration.WithLabelValues(kind, status).Observe(elapsed.Seconds())
}
