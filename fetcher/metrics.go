package fetcher

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the abstract fetcher.
type Metrics struct {
	Registry         *prometheus.Registry
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  prometheus.Histogram
	AbstractsTotal   prometheus.Counter
	RetriesTotal     prometheus.Counter
	CheckpointsTotal prometheus.Counter
	ErrorsTotal      *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "abstract_requests_total",
			Help: "Total detail-page requests issued by the fetcher.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "abstract_request_duration_seconds",
			Help:    "HTTP request latency for detail pages.",
			Buckets: prometheus.DefBuckets,
		},
	)
	abstracts := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "abstracts_fetched_total",
			Help: "Total abstracts recorded in the results mapping.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "abstract_retries_total",
			Help: "Total in-line retry attempts after a failed fetch.",
		},
	)
	checkpoints := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "abstract_checkpoints_total",
			Help: "Total checkpoint saves of the results mapping.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "abstract_errors_total",
			Help: "Total fetcher errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(requests, requestDuration, abstracts, retries, checkpoints, errorsTotal)

	return &Metrics{
		Registry:         registry,
		RequestsTotal:    requests,
		RequestDuration:  requestDuration,
		AbstractsTotal:   abstracts,
		RetriesTotal:     retries,
		CheckpointsTotal: checkpoints,
		ErrorsTotal:      errorsTotal,
	}
}

// IncRequest increments the requests counter for a phase label.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncAbstracts increments the recorded abstracts counter.
func (m *Metrics) IncAbstracts() {
	if m == nil {
		return
	}
	m.AbstractsTotal.Inc()
}

// IncRetries increments the retry attempts counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncCheckpoints increments the checkpoint saves counter.
func (m *Metrics) IncCheckpoints() {
	if m == nil {
		return
	}
	m.CheckpointsTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
