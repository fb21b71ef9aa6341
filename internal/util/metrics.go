package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckoutsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkouts_completed_total",
		Help: "Total number of committed checkouts",
	})

	CheckoutsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkouts_failed_total",
		Help: "Total number of failed checkouts",
	}, []string{"reason"})

	CheckoutReplaysTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_replays_total",
		Help: "Checkouts answered from an earlier request with the same idempotency key",
	})

	CheckoutRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_retries_total",
		Help: "Checkout transactions re-run after a deadlock or serialization failure",
	})

	CheckoutDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Latency of checkout operations",
		Buckets: prometheus.DefBuckets,
	})

	InventoryReserveLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inventory_reserve_latency_seconds",
		Help:    "Latency of inventory reservation operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"product_type"})

	InventoryReservationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_reservations_failed_total",
		Help: "Total number of failed inventory reservations",
	}, []string{"product_type", "reason"})

	DiscountsAppliedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discounts_applied_total",
		Help: "Total number of coupons applied to orders",
	}, []string{"discount_type"})

	CouponLookupMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coupon_lookup_misses_total",
		Help: "Coupon references that matched no coupon",
	})

	PriceMismatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "price_mismatches_total",
		Help: "Cart prices that differed from the catalog price",
	}, []string{"policy"})

	OutboxPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_published_total",
		Help: "Outbox messages relayed to Kafka",
	})

	OutboxPublishFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_publish_failed_total",
		Help: "Outbox relay attempts that failed to publish",
	})

	InvoicesRenderedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invoices_rendered_total",
		Help: "Completed orders handed to the invoice renderer",
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
