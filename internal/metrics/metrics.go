// Package metrics provides Prometheus instrumentation for the query engine
// and its HTTP surface.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine and API collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	// Query outcomes by operation and error code ("ok" on success)
	QueryOutcome *prometheus.CounterVec

	// Stage latencies: load_subject, match, results, query
	StageLatency *prometheus.HistogramVec

	// Queries narrowed to fit the cell budget
	QueriesCropped prometheus.Counter

	// Observations matched per query
	MatchedObservations prometheus.Histogram

	// Rows emitted per query
	ResultRows prometheus.Histogram

	// HTTP requests by route and status
	HTTPRequests *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. Passing nil
// registers with the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		QueryOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tablebuilder_query_outcomes_total",
			Help: "Total engine operations by operation and outcome code",
		}, []string{"operation", "code"}),

		StageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tablebuilder_stage_duration_seconds",
			Help:    "Duration of engine stages",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"stage"}),

		QueriesCropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "tablebuilder_queries_cropped_total",
			Help: "Total queries whose time periods were cropped to fit the cell budget",
		}),

		MatchedObservations: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tablebuilder_matched_observations",
			Help:    "Number of observations matched per query",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),

		ResultRows: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tablebuilder_result_rows",
			Help:    "Number of result rows emitted per query",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tablebuilder_http_requests_total",
			Help: "Total HTTP requests by route and status code",
		}, []string{"route", "status"}),
	}
}

// IncrementOutcome records the outcome of an engine operation.
func (m *Metrics) IncrementOutcome(operation, code string) {
	if m != nil {
		m.QueryOutcome.WithLabelValues(operation, code).Inc()
	}
}

// ObserveStage records the duration of an engine stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m != nil {
		m.StageLatency.WithLabelValues(stage).Observe(d.Seconds())
	}
}

// IncrementCropped records a cropped query.
func (m *Metrics) IncrementCropped() {
	if m != nil {
		m.QueriesCropped.Inc()
	}
}

// ObserveMatched records the size of a matched set.
func (m *Metrics) ObserveMatched(n int) {
	if m != nil {
		m.MatchedObservations.Observe(float64(n))
	}
}

// ObserveResultRows records the number of rows a query emitted.
func (m *Metrics) ObserveResultRows(n int) {
	if m != nil {
		m.ResultRows.Observe(float64(n))
	}
}

// IncrementHTTPRequest records a served HTTP request.
func (m *Metrics) IncrementHTTPRequest(route string, status int) {
	if m != nil {
		m.HTTPRequests.WithLabelValues(route, statusLabel(status)).Inc()
	}
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
