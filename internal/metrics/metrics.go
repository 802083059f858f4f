package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tend_http_requests_total",
			Help: "Total HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tend_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	remindersCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tend_reminders_created_total",
			Help: "Total reminders created by priority",
		},
		[]string{"priority"},
	)

	remindersDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tend_reminders_delivered_total",
			Help: "Reminders marked delivered by the listing path",
		},
	)

	remindersSnoozed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tend_reminders_snoozed_total",
			Help: "Total snoozes by duration label",
		},
		[]string{"duration"},
	)

	remindersDismissed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tend_reminders_dismissed_total",
			Help: "Total reminders permanently retired",
		},
	)

	nudgesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tend_nudges_sent_total",
			Help: "Nudge emails sent by outcome",
		},
		[]string{"outcome"},
	)

	idempotencyHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tend_idempotency_hits_total",
			Help: "Requests served from idempotency cache",
		},
	)

	rateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tend_rate_limit_rejections_total",
			Help: "Requests rejected by rate limiter",
		},
		[]string{"family"},
	)

	rateLimitBuckets = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tend_rate_limit_buckets",
			Help: "Distinct keys currently tracked by the rate limiter",
		},
	)

	dbConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tend_db_connections_active",
			Help: "Active database connections",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordReminderCreated records a reminder creation
func RecordReminderCreated(priority string) {
	remindersCreated.WithLabelValues(priority).Inc()
}

// RecordRemindersDelivered records reminders marked delivered by a listing
func RecordRemindersDelivered(count int) {
	remindersDelivered.Add(float64(count))
}

// RecordReminderSnoozed records a snooze by duration label
func RecordReminderSnoozed(duration string) {
	remindersSnoozed.WithLabelValues(duration).Inc()
}

// RecordRemindersDismissed records permanently retired reminders
func RecordRemindersDismissed(count int) {
	remindersDismissed.Add(float64(count))
}

// RecordNudgeSent records a nudge email outcome ("sent" or "failed")
func RecordNudgeSent(outcome string) {
	nudgesSent.WithLabelValues(outcome).Inc()
}

// RecordIdempotencyHit records a cache hit for idempotency
func RecordIdempotencyHit() {
	idempotencyHits.Inc()
}

// RecordRateLimitRejection records a rate limit rejection per quota class
func RecordRateLimitRejection(family string) {
	rateLimitRejections.WithLabelValues(family).Inc()
}

// SetRateLimitBuckets sets the current tracked-key count
func SetRateLimitBuckets(count int) {
	rateLimitBuckets.Set(float64(count))
}

// SetDBConnections sets active database connection count
func SetDBConnections(count int) {
	dbConnectionsActive.Set(float64(count))
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns HTTP middleware that records request metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		RecordRequest(r.Method, r.URL.Path, wrapped.status, time.Since(start))
	})
}
