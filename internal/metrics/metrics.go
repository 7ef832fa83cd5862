// Package metrics provides Prometheus metrics collection for tablegen.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for tablegen on its own registry.
// It implements engine.Recorder.
type Collector struct {
	registry *prometheus.Registry

	// Document metrics
	DocumentsTotal   *prometheus.CounterVec
	DocumentDuration *prometheus.HistogramVec

	// Rule metrics
	RuleFunctionsTotal prometheus.Counter

	// Run metrics
	RunsTotal     prometheus.Counter
	LastRunFailed prometheus.Gauge
}

// New creates a collector registered on a fresh private registry.
func New() *Collector {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates a collector registered on reg.
func NewWithRegistry(reg *prometheus.Registry) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		DocumentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tablegen",
				Name:      "documents_total",
				Help:      "Total number of documents processed",
			},
			[]string{"kind", "result"},
		),
		DocumentDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tablegen",
				Name:      "document_duration_seconds",
				Help:      "Document processing duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"kind"},
		),
		RuleFunctionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "tablegen",
				Name:      "rule_functions_total",
				Help:      "Total number of matcher functions emitted",
			},
		),
		RunsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "tablegen",
				Name:      "runs_total",
				Help:      "Total number of batches run",
			},
		),
		LastRunFailed: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "tablegen",
				Name:      "last_run_failed",
				Help:      "Number of documents that failed in the last batch",
			},
		),
	}
}

// Registry returns the registry the collector is registered on.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveDocument records one processed document.
func (c *Collector) ObserveDocument(kind, result string, elapsed time.Duration) {
	c.DocumentsTotal.WithLabelValues(kind, result).Inc()
	c.DocumentDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// AddRuleFunctions records emitted matcher functions.
func (c *Collector) AddRuleFunctions(n int) {
	c.RuleFunctionsTotal.Add(float64(n))
}

// ObserveRun records a finished batch.
func (c *Collector) ObserveRun(_, _, failed int) {
	c.RunsTotal.Inc()
	c.LastRunFailed.Set(float64(failed))
}

// WriteTextfile writes the registry in the text exposition format to path,
// atomically, for the node exporter's textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}
