package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quiz_active_sessions",
			Help: "Number of section sessions currently running a countdown",
		},
	)

	ViolationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_violations_total",
			Help: "Integrity violations by reason and whether they were counted or debounced",
		},
		[]string{"reason", "outcome"},
	)

	SectionSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_section_submissions_total",
			Help: "Finalized sections by kind and trigger",
		},
		[]string{"kind", "trigger"},
	)

	PersistFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_persist_failures_total",
			Help: "Failed attempt writes by operation",
		},
		[]string{"operation"},
	)

	LiveMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_live_messages_total",
			Help: "Messages on attempt live connections by type and direction",
		},
		[]string{"type", "direction"},
	)

	MergeConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_merge_conflicts_total",
			Help: "Conditional attempt writes rejected because of a concurrent update",
		},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(ActiveSessions)
	prometheus.MustRegister(ViolationCounter)
	prometheus.MustRegister(SectionSubmissions)
	prometheus.MustRegister(PersistFailures)
	prometheus.MustRegister(MergeConflicts)
	prometheus.MustRegister(LiveMessages)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
