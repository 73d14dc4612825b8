// Package observability exposes the process's own Prometheus metrics. These
// are about the emulator itself, not the emulated CloudWatch service.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the instruments shared across the request path.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	eventsDelivered *prometheus.CounterVec
	lbForwards      *prometheus.CounterVec
}

// NewMetrics creates a registry with the emulator's instruments.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "localcloud_requests_total",
		Help: "API requests by emulated service, operation, and status code.",
	}, []string{"service", "operation", "status"})

	m.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "localcloud_request_duration_seconds",
		Help:    "API request latency by emulated service and operation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"service", "operation"})

	m.eventsDelivered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "localcloud_events_delivered_total",
		Help: "Event bus deliveries by target type and outcome.",
	}, []string{"target_type", "outcome"})

	m.lbForwards = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "localcloud_lb_forwards_total",
		Help: "Load balancer forwards by target group and outcome.",
	}, []string{"target_group", "outcome"})

	m.registry.MustRegister(m.requestsTotal, m.requestDuration, m.eventsDelivered, m.lbForwards)
	return m
}

// ObserveRequest records one API request.
func (m *Metrics) ObserveRequest(service, operation string, status int, elapsed time.Duration) {
	m.requestsTotal.WithLabelValues(service, operation, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(service, operation).Observe(elapsed.Seconds())
}

// ObserveEventDelivery records one event bus delivery attempt.
func (m *Metrics) ObserveEventDelivery(targetType string, ok bool) {
	m.eventsDelivered.WithLabelValues(targetType, outcome(ok)).Inc()
}

// ObserveLBForward records one data plane forward.
func (m *Metrics) ObserveLBForward(targetGroup string, ok bool) {
	m.lbForwards.WithLabelValues(targetGroup, outcome(ok)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
