package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_http_requests_total",
			Help: "Total number of HTTP requests processed by the messaging service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "messaging_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "messaging_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
		[]string{"kind"},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_ws_events_total",
			Help: "Total number of websocket events.",
		},
		[]string{"kind", "event"},
	)
	wsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "messaging_ws_dropped_payloads_total",
			Help: "Payloads dropped from full subscriber queues (oldest first).",
		},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "messaging_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
	messagesSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "messaging_messages_sent_total",
			Help: "Messages committed to the message store.",
		},
	)
	conversationConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "messaging_conversation_create_conflicts_total",
			Help: "Concurrent conversation creations resolved by re-reading the existing row.",
		},
	)
	sideEffectErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_side_effect_errors_total",
			Help: "Swallowed failures of post-commit broadcast and notification steps.",
		},
		[]string{"step"},
	)
	notificationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_notification_errors_total",
			Help: "Notification sink failures by event type.",
		},
		[]string{"type"},
	)
	rateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "messaging_rate_limited_total",
			Help: "Requests rejected by the per-user send limiter.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsEventsTotal,
		wsDroppedTotal,
		amqpPublishErrorsTotal,
		messagesSentTotal,
		conversationConflictsTotal,
		sideEffectErrorsTotal,
		notificationErrorsTotal,
		rateLimitedTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Inc()
}

func DecWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Dec()
}

func IncWSEvent(kind, event string) {
	wsEventsTotal.WithLabelValues(kind, event).Inc()
}

func IncWSDropped() {
	wsDroppedTotal.Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}

func IncMessagesSent() {
	messagesSentTotal.Inc()
}

func IncConversationConflict() {
	conversationConflictsTotal.Inc()
}

func IncSideEffectError(step string) {
	sideEffectErrorsTotal.WithLabelValues(step).Inc()
}

func IncNotificationError(eventType string) {
	notificationErrorsTotal.WithLabelValues(eventType).Inc()
}

func IncRateLimited() {
	rateLimitedTotal.Inc()
}
