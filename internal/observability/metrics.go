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
			Name: "classchat_http_requests_total",
			Help: "Total number of HTTP requests processed by the chat service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "classchat_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	streamActiveSubscribers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "classchat_stream_active_subscribers",
			Help: "Number of active live-update subscribers.",
		},
		[]string{"kind"},
	)
	streamSnapshotsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classchat_stream_snapshots_total",
			Help: "Total number of snapshots pushed to live subscribers.",
		},
		[]string{"kind"},
	)
	messagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classchat_messages_total",
			Help: "Total number of messages posted, by kind.",
		},
		[]string{"kind"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "classchat_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		streamActiveSubscribers,
		streamSnapshotsTotal,
		messagesTotal,
		amqpPublishErrorsTotal,
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

func IncStreamActive(kind string) {
	streamActiveSubscribers.WithLabelValues(kind).Inc()
}

func DecStreamActive(kind string) {
	streamActiveSubscribers.WithLabelValues(kind).Dec()
}

func IncSnapshotPushed(kind string) {
	streamSnapshotsTotal.WithLabelValues(kind).Inc()
}

func IncMessagePosted(kind string) {
	messagesTotal.WithLabelValues(kind).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
