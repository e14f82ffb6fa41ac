package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus metrics for business-level observability.
// All metrics include tenant_id label for multi-tenant dashboard segmentation.
type BusinessMetrics struct {
	// Checkout funnel
	CheckoutStarted  *prometheus.CounterVec
	PaymentSucceeded *prometheus.CounterVec
	PaymentFailed    *prometheus.CounterVec

	// Subscriptions
	SubscriptionsCanceled *prometheus.CounterVec

	// Webhooks
	WebhookReceived  *prometheus.CounterVec
	WebhookProcessed *prometheus.CounterVec
	WebhookFailed    *prometheus.CounterVec
	WebhookLatency   *prometheus.HistogramVec

	// Revenue tracking
	RevenueCollected *prometheus.CounterVec

	// External API performance
	GatewayAPILatency *prometheus.HistogramVec
}

// NewBusinessMetrics creates and registers all business metrics
func NewBusinessMetrics(namespace string) *BusinessMetrics {
	if namespace == "" {
		namespace = "courseloom"
	}

	subsystem := "business"

	m := &BusinessMetrics{
		// =======================================================================
		// Checkout Funnel
		// =======================================================================
		CheckoutStarted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "checkout_started_total",
				Help:      "Total checkouts initiated with a payment gateway",
			},
			[]string{"tenant_id", "gateway", "plan_type"},
		),
		PaymentSucceeded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payment_succeeded_total",
				Help:      "Total verified payments",
			},
			[]string{"tenant_id", "gateway"},
		),
		PaymentFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payment_failed_total",
				Help:      "Total failed or unverified payments",
			},
			[]string{"tenant_id", "gateway", "failure_reason"},
		),

		// =======================================================================
		// Subscriptions
		// =======================================================================
		SubscriptionsCanceled: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "subscriptions_canceled_total",
				Help:      "Total subscriptions canceled at the gateway",
			},
			[]string{"tenant_id", "gateway", "reason"}, // reason: user_request, installments_complete
		),

		// =======================================================================
		// Webhooks
		// =======================================================================
		WebhookReceived: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhooks_received_total",
				Help:      "Total webhook events received by gateway",
			},
			[]string{"tenant_id", "gateway"},
		),
		WebhookProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhooks_processed_total",
				Help:      "Total webhook events processed successfully",
			},
			[]string{"tenant_id", "gateway"},
		),
		WebhookFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhooks_failed_total",
				Help:      "Total webhook events that failed processing",
			},
			[]string{"tenant_id", "gateway", "failure_reason"},
		),
		WebhookLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_duration_seconds",
				Help:      "Webhook handler duration by gateway",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"tenant_id", "gateway"},
		),

		// =======================================================================
		// Revenue Tracking
		// =======================================================================
		RevenueCollected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "revenue_collected_total",
				Help:      "Total revenue from verified payments, in site currency units",
			},
			[]string{"tenant_id", "gateway", "currency"},
		),

		// =======================================================================
		// External API Performance
		// =======================================================================
		GatewayAPILatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "gateway_api_duration_seconds",
				Help:      "Payment gateway API call duration (differentiates app slowness from gateway issues)",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"tenant_id", "gateway", "operation"}, // operation: initiate, cancel, validate_subscription
		),
	}

	return m
}

// Global instance for easy access from handlers
var Business *BusinessMetrics

// InitBusinessMetrics initializes the global business metrics instance
func InitBusinessMetrics(namespace string) *BusinessMetrics {
	Business = NewBusinessMetrics(namespace)
	return Business
}
