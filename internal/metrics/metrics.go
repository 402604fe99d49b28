// Package metrics holds the Prometheus collectors exported by xaggsd.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "xaggsd"

// Collector groups the application's metrics. A nil *Collector is valid and
// records nothing.
type Collector struct {
	// Store
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec

	// Aggregation dispatch
	AggregatesTotal *prometheus.CounterVec

	// API
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
}

// NewCollector registers all collectors with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		QueryDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_query_duration_seconds",
				Help:      "Daily-summary query duration in seconds by query type",
				Buckets:   []float64{0.0005, 0.001, 0.002, 0.005, 0.01, 0.02, 0.05, 0.1, 0.5, 1},
			},
			[]string{"query_type"},
		),
		QueryErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_query_errors_total",
				Help:      "Daily-summary query failures by kind",
			},
			[]string{"kind"},
		),
		AggregatesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "aggregates_total",
				Help:      "Aggregate requests by aggregate name and outcome",
			},
			[]string{"aggregate", "outcome"},
		),
		APIRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "API requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),
		APIRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1, 2},
			},
			[]string{"route"},
		),
	}
}

// ObserveQuery records how long a store query of queryType took.
func (c *Collector) ObserveQuery(queryType string, d time.Duration) {
	if c == nil {
		return
	}
	c.QueryDuration.WithLabelValues(queryType).Observe(d.Seconds())
}

// RecordQueryError counts a failed store query.
func (c *Collector) RecordQueryError(kind string) {
	if c == nil {
		return
	}
	c.QueryErrors.WithLabelValues(kind).Inc()
}

// RecordAggregate counts a dispatched aggregate request.
func (c *Collector) RecordAggregate(aggregate, outcome string) {
	if c == nil {
		return
	}
	c.AggregatesTotal.WithLabelValues(aggregate, outcome).Inc()
}

// RecordAPIRequest counts an API request and its latency.
func (c *Collector) RecordAPIRequest(route, method, status string, d time.Duration) {
	if c == nil {
		return
	}
	c.APIRequestsTotal.WithLabelValues(route, method, status).Inc()
	c.APIRequestDuration.WithLabelValues(route).Observe(d.Seconds())
}
