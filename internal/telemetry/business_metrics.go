package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus metrics for business-level observability.
type BusinessMetrics struct {
	// Cart
	CartItemsAdded *prometheus.CounterVec
	CartCleared    prometheus.Counter
	CouponApplied  *prometheus.CounterVec

	// Checkout funnel
	CheckoutStarted prometheus.Counter
	CheckoutFailed  *prometheus.CounterVec
	OrdersCreated   *prometheus.CounterVec
	OrderValue      *prometheus.HistogramVec

	// Payments and settlement
	PaymentSucceeded   *prometheus.CounterVec
	PaymentFailed      *prometheus.CounterVec
	Settlements        *prometheus.CounterVec
	SettlementDuration *prometheus.HistogramVec
	RevenueCollected   prometheus.Counter
	InventoryConflicts prometheus.Counter

	// Loyalty
	CouponRedemptions   *prometheus.CounterVec
	CoinsSpent          prometheus.Counter
	CoinsCredited       *prometheus.CounterVec
	ReferralsRegistered prometheus.Counter
	RewardsClaimed      *prometheus.CounterVec

	// Webhooks
	WebhookReceived  *prometheus.CounterVec
	WebhookProcessed *prometheus.CounterVec
	WebhookFailed    *prometheus.CounterVec
	WebhookLatency   *prometheus.HistogramVec

	// Reconciliation
	ReconcileRuns    prometheus.Counter
	ReconcileChecked prometheus.Counter
	ReconcileSettled prometheus.Counter
	ReconcileFailed  prometheus.Counter
	ReconcileExpired prometheus.Counter

	// Event publishing
	EventsPublished *prometheus.CounterVec

	// External API performance
	StripeAPILatency *prometheus.HistogramVec
}

// NewBusinessMetrics creates all business metrics and registers them with reg.
func NewBusinessMetrics(namespace string, reg prometheus.Registerer) *BusinessMetrics {
	if namespace == "" {
		namespace = "kirana"
	}

	subsystem := "business"
	f := promauto.With(reg)

	m := &BusinessMetrics{
		// =======================================================================
		// Cart
		// =======================================================================
		CartItemsAdded: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cart_items_added_total",
				Help:      "Total add to cart actions",
			},
			[]string{"product_id"},
		),
		CartCleared: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cart_cleared_total",
				Help:      "Total carts cleared by the shopper or by settlement",
			},
		),
		CouponApplied: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "coupon_applied_total",
				Help:      "Coupon apply attempts by result",
			},
			[]string{"result"}, // result: ok, invalid, expired, limit, minimum, used
		),

		// =======================================================================
		// Checkout Funnel
		// =======================================================================
		CheckoutStarted: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "checkout_started_total",
				Help:      "Total order placement attempts",
			},
		),
		CheckoutFailed: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "checkout_failed_total",
				Help:      "Order placement failures by reason",
			},
			[]string{"reason"}, // reason: empty_cart, out_of_stock, coupon, processor, internal
		),
		OrdersCreated: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "orders_created_total",
				Help:      "Pending orders created at checkout",
			},
			[]string{"payment_method"},
		),
		OrderValue: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "order_value_paise",
				Help:      "Order total distribution in paise",
				Buckets:   []float64{10000, 50000, 100000, 250000, 500000, 1000000, 2500000, 5000000},
			},
			[]string{"payment_method"},
		),

		// =======================================================================
		// Payments and Settlement
		// =======================================================================
		PaymentSucceeded: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payment_succeeded_total",
				Help:      "Orders settled after a successful payment",
			},
			[]string{"source"}, // source: client, webhook, reconcile
		),
		PaymentFailed: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payment_failed_total",
				Help:      "Failed or canceled payments",
			},
			[]string{"failure_reason"},
		),
		Settlements: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "settlements_total",
				Help:      "Settlement attempts by source and result",
			},
			[]string{"source", "result"}, // result: settled, already_settled, not_paid, failed
		),
		SettlementDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "settlement_duration_seconds",
				Help:      "Time to verify and settle an order",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		RevenueCollected: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "revenue_collected_paise_total",
				Help:      "Settled order totals in paise",
			},
		),
		InventoryConflicts: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "inventory_conflicts_total",
				Help:      "Settlements aborted because stock ran out after payment",
			},
		),

		// =======================================================================
		// Loyalty
		// =======================================================================
		CouponRedemptions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "coupon_redemptions_total",
				Help:      "Coupons redeemed at settlement",
			},
			[]string{"coupon_type"},
		),
		CoinsSpent: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "coins_spent_total",
				Help:      "Loyalty coins deducted at settlement",
			},
		),
		CoinsCredited: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "coins_credited_total",
				Help:      "Loyalty coins credited",
			},
			[]string{"reason"}, // reason: referral_signup, referral_order
		),
		ReferralsRegistered: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "referrals_registered_total",
				Help:      "Accounts registered with a referral code",
			},
		),
		RewardsClaimed: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "rewards_claimed_total",
				Help:      "Referral milestone rewards claimed",
			},
			[]string{"milestone"},
		),

		// =======================================================================
		// Webhooks
		// =======================================================================
		WebhookReceived: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_received_total",
				Help:      "Total webhooks received",
			},
			[]string{"event_type"},
		),
		WebhookProcessed: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_processed_total",
				Help:      "Webhooks processed without error",
			},
			[]string{"event_type"},
		),
		WebhookFailed: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_failed_total",
				Help:      "Webhooks whose processing failed (still acknowledged)",
			},
			[]string{"event_type", "reason"},
		),
		WebhookLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_processing_seconds",
				Help:      "Webhook processing time",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"event_type"},
		),

		// =======================================================================
		// Reconciliation
		// =======================================================================
		ReconcileRuns: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "reconcile_runs_total",
				Help:      "Reconciliation sweeps executed",
			},
		),
		ReconcileChecked: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "reconcile_checked_total",
				Help:      "Pending orders checked against the processor",
			},
		),
		ReconcileSettled: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "reconcile_settled_total",
				Help:      "Pending orders settled by reconciliation",
			},
		),
		ReconcileFailed: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "reconcile_failed_total",
				Help:      "Reconciliation attempts that errored",
			},
		),
		ReconcileExpired: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "reconcile_expired_total",
				Help:      "Abandoned checkouts whose payment intent was canceled",
			},
		),

		// =======================================================================
		// Event Publishing
		// =======================================================================
		EventsPublished: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "events_published_total",
				Help:      "Domain events published by subject and result",
			},
			[]string{"subject", "result"},
		),

		// =======================================================================
		// External API Performance
		// =======================================================================
		StripeAPILatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "stripe_api_duration_seconds",
				Help:      "Stripe API call duration (helps differentiate app slowness from Stripe issues)",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"operation"}, // operation: create_payment_intent, get_payment_intent, cancel_payment_intent
		),
	}

	return m
}

// Global instance for easy access from services and handlers
var Business *BusinessMetrics

// InitBusinessMetrics initializes the global business metrics instance on the
// default registry.
func InitBusinessMetrics(namespace string) *BusinessMetrics {
	Business = NewBusinessMetrics(namespace, prometheus.DefaultRegisterer)
	return Business
}
