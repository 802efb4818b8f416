// Package metrics описывает метрики Prometheus сервиса биллинга.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rhmaster_billing"

// Metrics набор метрик с собственным реестром.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	SubscriptionOps     *prometheus.CounterVec
	WebhookEvents       *prometheus.CounterVec
	PublishedEvents     *prometheus.CounterVec
}

// New создает и регистрирует метрики.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status_code"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		SubscriptionOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscription_operations_total",
			Help:      "Subscription mutations by operation and result",
		}, []string{"operation", "result"}),
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Stripe webhook events by type and result",
		}, []string{"type", "result"}),
		PublishedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_events_published_total",
			Help:      "Lifecycle events published to the broker",
		}, []string{"type"}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SubscriptionOps,
		m.WebhookEvents,
		m.PublishedEvents,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler отдает метрики реестра.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveOperation учитывает результат мутации подписки.
func (m *Metrics) ObserveOperation(operation string, err error) {
	if m == nil {
		return
	}
	m.SubscriptionOps.WithLabelValues(operation, result(err)).Inc()
}

// ObserveWebhook учитывает обработку события вебхука.
func (m *Metrics) ObserveWebhook(eventType string, err error) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(eventType, result(err)).Inc()
}

// ObservePublished учитывает опубликованное событие.
func (m *Metrics) ObservePublished(eventType string) {
	if m == nil {
		return
	}
	m.PublishedEvents.WithLabelValues(eventType).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
