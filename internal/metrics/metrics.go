package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the storefront's Prometheus collectors.
type Metrics struct {
	CartMutations        *prometheus.CounterVec
	CartSyncFailures     *prometheus.CounterVec
	CheckoutTransitions  *prometheus.CounterVec
	NotificationsEmitted *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
// A nil registerer leaves them unregistered, which tests rely on.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "technest_cart_mutations_total",
			Help: "Cart mutations applied locally, by operation",
		}, []string{"op"}),
		CartSyncFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "technest_cart_sync_failures_total",
			Help: "Remote cart syncs that failed after the local mutation, by operation",
		}, []string{"op"}),
		CheckoutTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "technest_checkout_operations_total",
			Help: "Checkout wizard operations, by operation and outcome",
		}, []string{"op", "outcome"}),
		NotificationsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "technest_notifications_total",
			Help: "Transient notifications pushed to sessions, by level",
		}, []string{"level"}),
	}
	if reg != nil {
		reg.MustRegister(m.CartMutations, m.CartSyncFailures, m.CheckoutTransitions, m.NotificationsEmitted)
	}
	return m
}

// CartMutation counts a local cart mutation.
func (m *Metrics) CartMutation(op string) {
	if m == nil {
		return
	}
	m.CartMutations.WithLabelValues(op).Inc()
}

// CartSyncFailure counts a failed remote sync.
func (m *Metrics) CartSyncFailure(op string) {
	if m == nil {
		return
	}
	m.CartSyncFailures.WithLabelValues(op).Inc()
}

// Checkout counts a wizard operation outcome ("ok" or "error").
func (m *Metrics) Checkout(op string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.CheckoutTransitions.WithLabelValues(op, outcome).Inc()
}

// Notification counts a pushed notification.
func (m *Metrics) Notification(level string) {
	if m == nil {
		return
	}
	m.NotificationsEmitted.WithLabelValues(level).Inc()
}
