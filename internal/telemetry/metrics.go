// Package telemetry exposes Prometheus metrics for the checkout funnel and
// the settlement engine.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the settlement engine's Prometheus collectors.
type Metrics struct {
	// Checkout funnel
	CheckoutStarted   prometheus.Counter
	CheckoutCompleted prometheus.Counter

	// Settlement outcomes
	SettlementResults *prometheus.CounterVec
	SettlementFailed  *prometheus.CounterVec

	// Gateway
	GatewayRetries  prometheus.Counter
	PaymentStatuses *prometheus.CounterVec

	// Orders
	OrderValue prometheus.Histogram
}

// NewMetrics registers the collectors on reg. Pass
// prometheus.DefaultRegisterer in production; tests use a fresh registry
// so parallel tests do not collide.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	const (
		namespace = "njord"
		subsystem = "checkout"
	)

	factory := promauto.With(reg)

	return &Metrics{
		CheckoutStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "started_total",
			Help:      "Total checkout submissions that created a payment authorization",
		}),
		CheckoutCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "completed_total",
			Help:      "Total checkouts that ended in a created order",
		}),
		SettlementResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "settlement_results_total",
			Help:      "Terminal settlement states reached",
		}, []string{"state"}),
		SettlementFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "settlement_failures_total",
			Help:      "Settlement failures by reason",
		}, []string{"reason"}),
		GatewayRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "gateway_retries_total",
			Help:      "Retried payment status lookups after transient gateway errors",
		}),
		PaymentStatuses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "payment_statuses_total",
			Help:      "Gateway payment statuses observed on return",
		}, []string{"status"}),
		OrderValue: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "order_value",
			Help:      "Grand total of created orders in major currency units",
			Buckets:   prometheus.ExponentialBuckets(10, 2.5, 8),
		}),
	}
}
