package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_checks_total",
			Help: "Total number of probe checks by location and outcome",
		},
		[]string{"location", "result"}, // success, failure
	)

	CheckDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentinel_check_duration_seconds",
			Help:    "Duration of probe checks",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"location"},
	)

	SchedulerScheduled = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_scheduler_scheduled_checks",
			Help: "Number of monitors with an active schedule",
		},
	)

	SchedulerRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_scheduler_running_checks",
			Help: "Number of checks currently executing",
		},
	)

	SchedulerTicksSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_scheduler_ticks_skipped_total",
			Help: "Ticks skipped because the previous check of the monitor was still running",
		},
	)

	AlertsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_alerts_emitted_total",
			Help: "Alerts emitted by type",
		},
		[]string{"type"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_notifications_total",
			Help: "Notification deliveries by channel type and outcome",
		},
		[]string{"channel_type", "result"}, // success, failure, disabled, abandoned
	)

	RetryQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sentinel_retry_queue_items",
			Help: "Items in the notification retry queue",
		},
		[]string{"state"}, // ready, pending
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_http_requests_total",
			Help: "HTTP API requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentinel_http_request_duration_seconds",
			Help:    "HTTP API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordCheck records the outcome of one probe
func RecordCheck(location string, success bool, d time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	ChecksTotal.WithLabelValues(location, result).Inc()
	CheckDuration.WithLabelValues(location).Observe(d.Seconds())
}

func RecordNotification(channelType, result string) {
	NotificationsTotal.WithLabelValues(channelType, result).Inc()
}

func RecordRetryQueue(ready, pending int64) {
	RetryQueueDepth.WithLabelValues("ready").Set(float64(ready))
	RetryQueueDepth.WithLabelValues("pending").Set(float64(pending))
}

// HTTPRecorder satisfies the HTTP metrics middleware.
type HTTPRecorder struct{}

func (HTTPRecorder) Observe(method, route string, status int, d time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
