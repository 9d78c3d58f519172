package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the payment subsystem.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry         *prometheus.Registry
	gatewayRequests  *prometheus.CounterVec
	gatewayLatency   *prometheus.HistogramVec
	paymentStatus    *prometheus.CounterVec
	orderTransitions *prometheus.CounterVec
	webhookEvents    *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		gatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Calls to the card gateway by operation and outcome.",
		}, []string{"operation", "outcome"}),
		gatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storefront",
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Latency of card gateway calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		paymentStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "payments",
			Name:      "status_changes_total",
			Help:      "Local payment status writes by source and resulting status.",
		}, []string{"source", "status"}),
		orderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "orders",
			Name:      "transitions_total",
			Help:      "Order status transition attempts.",
		}, []string{"from", "to", "result"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "webhook",
			Name:      "notifications_total",
			Help:      "Gateway notifications by reconciliation outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.gatewayRequests,
		m.gatewayLatency,
		m.paymentStatus,
		m.orderTransitions,
		m.webhookEvents,
	)
	return m
}

// NewDefault builds a registry that also exports Go runtime and process metrics.
func NewDefault() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return New(reg)
}

func (m *Metrics) ObserveGatewayCall(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.gatewayRequests.WithLabelValues(operation, outcome).Inc()
	m.gatewayLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *Metrics) PaymentStatusChanged(source, status string) {
	if m == nil {
		return
	}
	m.paymentStatus.WithLabelValues(source, status).Inc()
}

func (m *Metrics) OrderTransition(from, to string, ok bool) {
	if m == nil {
		return
	}
	result := "applied"
	if !ok {
		result = "rejected"
	}
	m.orderTransitions.WithLabelValues(from, to, result).Inc()
}

func (m *Metrics) WebhookNotification(outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(outcome).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
