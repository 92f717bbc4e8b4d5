// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the metrics surface used by the web and publish layers.
type Recorder interface {
	RecordExpansion(occurrences int, truncated bool)
	RecordValidationFailure(reason string)
	RecordPublish(result string)
	RecordHTTPStatus(statusCode int)
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	expansions         prometheus.Counter
	occurrences        prometheus.Histogram
	truncations        prometheus.Counter
	validationFailures *prometheus.CounterVec
	publishRuns        *prometheus.CounterVec
	httpStatus         *prometheus.CounterVec
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		expansions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "riftcal_expansions_total",
			Help: "Number of session expansions performed.",
		}),
		occurrences: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "riftcal_expansion_occurrences",
			Help:    "Occurrences produced per session expansion.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 7),
		}),
		truncations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "riftcal_expansion_truncations_total",
			Help: "Expansions that hit the occurrence cap.",
		}),
		validationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "riftcal_validation_failures_total",
			Help: "Rejected session or days-of-week input by reason.",
		}, []string{"reason"}),
		publishRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "riftcal_publish_runs_total",
			Help: "ICS feed publish runs by result.",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "riftcal_http_status_total",
			Help: "API responses by status code.",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.expansions,
		c.occurrences,
		c.truncations,
		c.validationFailures,
		c.publishRuns,
		c.httpStatus,
	)
	return c
}

// RecordExpansion records one session expansion.
func (c *Collector) RecordExpansion(occurrences int, truncated bool) {
	c.expansions.Inc()
	c.occurrences.Observe(float64(occurrences))
	if truncated {
		c.truncations.Inc()
	}
}

func (c *Collector) RecordValidationFailure(reason string) {
	c.validationFailures.WithLabelValues(reason).Inc()
}

// RecordPublish records a publish run; result is "success" or "error".
func (c *Collector) RecordPublish(result string) {
	c.publishRuns.WithLabelValues(result).Inc()
}

func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop discards all metrics.
type Nop struct{}

func (Nop) RecordExpansion(int, bool) {}
func (Nop) RecordValidationFailure(string) {}
func (Nop) RecordPublish(string) {}
func (Nop) RecordHTTPStatus(int) {}

// Handler returns the HTTP handler for Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
