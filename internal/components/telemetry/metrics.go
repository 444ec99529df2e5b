package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RunBuckets for whole pipeline runs, which include paced page fetches.
var RunBuckets = []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800}

// Metrics are the prometheus collectors of the scrape -> reconcile -> notify pipeline.
// Each Metrics owns its registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	// PipelineRuns counts pipeline runs by result (succeeded, failed, rejected)
	PipelineRuns *prometheus.CounterVec
	// PipelineRunSeconds measures the duration of a pipeline run
	PipelineRunSeconds prometheus.Histogram
	// ScrapedItems counts items produced by catalog walks
	ScrapedItems prometheus.Counter
	// ChangeEvents counts change events by kind (added, updated, deleted)
	ChangeEvents *prometheus.CounterVec
	// Subscribers tracks the current size of the subscriber set
	Subscribers prometheus.Gauge
	// DeliveryFailures counts failed sends that pruned a subscriber
	DeliveryFailures prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		registry: registry,
		PipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pricewatch",
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by result.",
		}, []string{"result"}),
		PipelineRunSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pricewatch",
			Name:      "pipeline_run_duration_seconds",
			Help:      "Duration of pipeline runs.",
			Buckets:   RunBuckets,
		}),
		ScrapedItems: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pricewatch",
			Name:      "scraped_items_total",
			Help:      "Items extracted from the catalog.",
		}),
		ChangeEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pricewatch",
			Name:      "change_events_total",
			Help:      "Change events broadcast to subscribers by kind.",
		}, []string{"kind"}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pricewatch",
			Name:      "subscribers",
			Help:      "Currently registered subscribers.",
		}),
		DeliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pricewatch",
			Name:      "delivery_failures_total",
			Help:      "Sends that failed and pruned the subscriber.",
		}),
	}
	registry.MustRegister(
		m.PipelineRuns,
		m.PipelineRunSeconds,
		m.ScrapedItems,
		m.ChangeEvents,
		m.Subscribers,
		m.DeliveryFailures,
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
