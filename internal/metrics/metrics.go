package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   prometheus.CounterVec
	HTTPRequestDuration prometheus.HistogramVec

	// Rate limiting metrics
	RateLimitExceededTotal prometheus.CounterVec

	// Matching / notification pipeline metrics
	MatchesEvaluatedTotal  prometheus.CounterVec
	MatchDuration          prometheus.HistogramVec
	PushMessagesSentTotal  prometheus.CounterVec
	PushBatchesTotal       prometheus.CounterVec
	NotificationRowsTotal  prometheus.CounterVec
	GeocodeLookupsTotal    prometheus.CounterVec

	// Attachment metrics
	AttachmentUploadsTotal   prometheus.CounterVec
	AttachmentRejectionsTotal prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Initialize creates and registers all Prometheus metrics
func Initialize() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			HTTPRequestsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"method", "path", "status"},
			),
			RateLimitExceededTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "rate_limit_exceeded_total",
					Help: "Total number of rate-limited requests",
				},
				[]string{"path"},
			),
			MatchesEvaluatedTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "provider_matches_evaluated_total",
					Help: "Provider candidates evaluated by the matcher",
				},
				[]string{"outcome"}, // matched, filtered, unresolved
			),
			MatchDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "provider_match_duration_seconds",
					Help:    "Time spent matching providers for a request",
					Buckets: []float64{.005, .01, .05, .1, .5, 1, 5},
				},
				[]string{"category"},
			),
			PushMessagesSentTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "push_messages_sent_total",
					Help: "Push messages handed to the Expo gateway",
				},
				[]string{"status"}, // ok, error
			),
			PushBatchesTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "push_batches_total",
					Help: "Batched calls made to the Expo push endpoint",
				},
				[]string{"status"},
			),
			NotificationRowsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "notification_rows_total",
					Help: "In-app notification rows persisted",
				},
				[]string{"status"}, // ok, error
			),
			GeocodeLookupsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "geocode_lookups_total",
					Help: "Location resolution attempts by source",
				},
				[]string{"source"}, // stored, region, ip, cache, miss
			),
			AttachmentUploadsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "attachment_uploads_total",
					Help: "Chat attachments uploaded to object storage",
				},
				[]string{"kind"},
			),
			AttachmentRejectionsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "attachment_rejections_total",
					Help: "Chat attachments rejected by the validator",
				},
				[]string{"reason"}, // extension, size, signature
			),
		}
	})
	return instance
}

// Get returns the metrics instance, initializing it if needed
func Get() *Metrics {
	return Initialize()
}
