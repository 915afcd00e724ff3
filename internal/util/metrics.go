package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_orders_created_total",
		Help: "Total number of orders created, by source",
	}, []string{"source"})

	OrdersRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_orders_rejected_total",
		Help: "Order creations rejected, by error kind",
	}, []string{"kind"})

	OrderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_order_transitions_total",
		Help: "Order status transitions that changed state, by target status",
	}, []string{"status"})

	OrderTransitionNoopsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_order_transition_noops_total",
		Help: "Order status updates that re-applied the current status",
	})

	PaymentsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_payments_created_total",
		Help: "Total number of payments created, by provider",
	}, []string{"provider"})

	PaymentTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_payment_transitions_total",
		Help: "Payment status transitions that changed state, by target status",
	}, []string{"status"})

	WebhookVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_webhook_verifications_total",
		Help: "Webhook signature checks, by outcome",
	}, []string{"outcome"})

	ReconcileOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_reconcile_outcomes_total",
		Help: "Reconciliation results per candidate payment",
	}, []string{"outcome"})

	ReconcileLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pos_reconcile_scan_seconds",
		Help:    "Duration of a reconciliation scan",
		Buckets: prometheus.DefBuckets,
	})

	ProviderQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pos_provider_query_seconds",
		Help:    "Latency of payment provider status queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})

	StaleProcessingPayments = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pos_stale_processing_payments",
		Help: "Processing payments older than the reconciliation window",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
