// Package metrics provides internal Prometheus metrics collection for the
// ingestion/queue pipeline. This package is internal and should not be
// imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"
)

// Collector is the single Prometheus registration point for the ingress,
// queue and dependency-client metrics. The §6 debug status snapshot reads
// the queue gauges back through this same registry rather than keeping a
// second, hand-updated counter struct.
type Collector struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	eventsIngestedTotal *prometheus.CounterVec
	eventsRejectedTotal *prometheus.CounterVec

	jobOutcomesTotal   *prometheus.CounterVec
	jobRetryExhausted  *prometheus.CounterVec
	jobProcessDuration *prometheus.HistogramVec

	queueDepth *prometheus.GaugeVec

	dependencyCallsTotal    *prometheus.CounterVec
	dependencyCallDuration  *prometheus.HistogramVec
	circuitBreakerState     *prometheus.GaugeVec

	notifierFailuresTotal prometheus.Counter

	logger *zap.Logger
}

// NewCollector registers every metric under namespace and returns the
// Collector. Call once per process; promauto panics on duplicate
// registration against the default registry.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of ingress HTTP requests",
		},
		[]string{"route", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Ingress HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	c.eventsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_ingested_total",
			Help:      "Total number of webhook events accepted into staging, by source and outcome",
		},
		[]string{"source", "outcome"}, // outcome: queued, duplicate
	)

	c.eventsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_rejected_total",
			Help:      "Total number of webhook requests rejected before staging, by source and reason",
		},
		[]string{"source", "reason"}, // reason: signature_invalid, invalid_request, ...
	)

	c.jobOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_outcomes_total",
			Help:      "Total number of Job Runner dispatch outcomes, by source/event_type/kind",
		},
		[]string{"source", "event_type", "kind"},
	)

	c.jobRetryExhausted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_retry_exhausted_total",
			Help:      "Total number of jobs that exhausted their retry policy",
		},
		[]string{"source", "event_type"},
	)

	c.jobProcessDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_process_duration_seconds",
			Help:      "Time spent dispatching one job, from reserve to ack/fail/retry",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"source", "event_type"},
	)

	c.queueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Current depth of each queue namespace",
		},
		[]string{"namespace"}, // ready, processing, delayed, failed
	)

	c.dependencyCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dependency_calls_total",
			Help:      "Total outbound calls to CRM/LLM dependencies, by dependency and status",
		},
		[]string{"dependency", "status"}, // status: success, transient_error, permanent_error
	)

	c.dependencyCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dependency_call_duration_seconds",
			Help:      "Outbound dependency call duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"dependency"},
	)

	c.circuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per dependency (0=closed, 1=open, 2=half_open)",
		},
		[]string{"dependency"},
	)

	c.notifierFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifier_failures_total",
			Help:      "Total number of best-effort notifier sends that errored",
		},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// RecordHTTPRequest records one ingress HTTP request.
func (c *Collector) RecordHTTPRequest(route string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(route, statusClass(status)).Inc()
	c.httpRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordEventIngested records a webhook event accepted into staging.
func (c *Collector) RecordEventIngested(source, outcome string) {
	c.eventsIngestedTotal.WithLabelValues(source, outcome).Inc()
}

// RecordEventRejected records a webhook request rejected before staging.
func (c *Collector) RecordEventRejected(source, reason string) {
	c.eventsRejectedTotal.WithLabelValues(source, reason).Inc()
}

// RecordJobOutcome records one Job Runner dispatch outcome.
func (c *Collector) RecordJobOutcome(source, eventType, kind string, duration time.Duration) {
	c.jobOutcomesTotal.WithLabelValues(source, eventType, kind).Inc()
	c.jobProcessDuration.WithLabelValues(source, eventType).Observe(duration.Seconds())
}

// RecordRetryExhausted records a job that ran out of retries.
func (c *Collector) RecordRetryExhausted(source, eventType string) {
	c.jobRetryExhausted.WithLabelValues(source, eventType).Inc()
}

// SetQueueDepths sets the queue_depth gauges from a queue.Depth snapshot.
func (c *Collector) SetQueueDepths(ready, processing, delayed, failed int64) {
	c.queueDepth.WithLabelValues("ready").Set(float64(ready))
	c.queueDepth.WithLabelValues("processing").Set(float64(processing))
	c.queueDepth.WithLabelValues("delayed").Set(float64(delayed))
	c.queueDepth.WithLabelValues("failed").Set(float64(failed))
}

// QueueDepth reads one queue_depth gauge back through the registry, rather
// than a second hand-kept struct, the way the §6 debug status snapshot
// wants it.
func (c *Collector) QueueDepth(namespace string) int64 {
	var m dto.Metric
	if err := c.queueDepth.WithLabelValues(namespace).Write(&m); err != nil {
		c.logger.Warn("failed to read queue_depth gauge", zap.String("namespace", namespace), zap.Error(err))
		return 0
	}
	return int64(m.GetGauge().GetValue())
}

// RecordDependencyCall records one outbound CRM/LLM call.
func (c *Collector) RecordDependencyCall(dependency, status string, duration time.Duration) {
	c.dependencyCallsTotal.WithLabelValues(dependency, status).Inc()
	c.dependencyCallDuration.WithLabelValues(dependency).Observe(duration.Seconds())
}

// SetCircuitBreakerState records a dependency's current breaker state.
func (c *Collector) SetCircuitBreakerState(dependency string, state int) {
	c.circuitBreakerState.WithLabelValues(dependency).Set(float64(state))
}

// RecordNotifierFailure records a best-effort notifier send that errored.
func (c *Collector) RecordNotifierFailure() {
	c.notifierFailuresTotal.Inc()
}

func statusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
