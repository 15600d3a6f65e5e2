package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_submitted_total",
		Help: "Total number of orders submitted",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed order submissions",
	}, []string{"reason"})

	OrdersCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_completed_total",
		Help: "Total number of orders marked complete",
	})

	SequencerLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sequencer_latency_seconds",
		Help:    "Latency of order number sequencing transactions",
		Buckets: prometheus.DefBuckets,
	})

	ActiveOrdersGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "active_orders",
		Help: "Current number of incomplete orders per site",
	}, []string{"site_key"})

	NotificationsSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Total number of completion notifications sent",
	})

	NotificationsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_failed_total",
		Help: "Total number of completion notifications that failed",
	})

	StreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_errors_total",
		Help: "Total number of change feed errors",
	}, []string{"stream"})

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
