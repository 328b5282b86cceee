package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gigmarket"

// Metrics holds the collectors for the order core on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	orderTransitions     *prometheus.CounterVec
	notificationsCreated *prometheus.CounterVec
	promotionResolutions *prometheus.CounterVec
	reviewsCreated       prometheus.Counter
	transactionRetries   *prometheus.CounterVec
	transactionFailures  *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		orderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Accepted order status transitions.",
		}, []string{"from", "to"}),
		notificationsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_created_total",
			Help:      "Notifications written, by type.",
		}, []string{"type"}),
		promotionResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promotion_resolutions_total",
			Help:      "Resolved freelancer promotion requests, by outcome.",
		}, []string{"outcome"}),
		reviewsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reviews_created_total",
			Help:      "Reviews attached to orders.",
		}),
		transactionRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transaction_retries_total",
			Help:      "Transactions re-run after a deadlock or lock wait timeout.",
		}, []string{"tx"}),
		transactionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transaction_failures_total",
			Help:      "Transactions that ended in a storage failure.",
		}, []string{"tx"}),
	}

	m.registry.MustRegister(
		m.orderTransitions,
		m.notificationsCreated,
		m.promotionResolutions,
		m.reviewsCreated,
		m.transactionRetries,
		m.transactionFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) OrderTransitioned(from, to string) {
	m.orderTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) NotificationCreated(notificationType string) {
	m.notificationsCreated.WithLabelValues(notificationType).Inc()
}

func (m *Metrics) PromotionResolved(outcome string) {
	m.promotionResolutions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ReviewCreated() {
	m.reviewsCreated.Inc()
}

func (m *Metrics) TransactionRetried(name string) {
	m.transactionRetries.WithLabelValues(name).Inc()
}

func (m *Metrics) TransactionFailed(name string) {
	m.transactionFailures.WithLabelValues(name).Inc()
}
