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

	// 测验生成管线指标
	GenerationAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_generation_attempts_total",
			Help: "Quiz generation attempts by outcome",
		},
		[]string{"outcome"}, // success, validation_failed, provider_error
	)

	GenerationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quiz_generation_duration_seconds",
			Help:    "End-to-end duration of quiz generation including retries",
			Buckets: []float64{1, 5, 10, 20, 40, 60},
		},
	)

	ValidationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_validation_failures_total",
			Help: "Quiz validation failures by check",
		},
		[]string{"check"},
	)

	TargetTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "learning_target_transitions_total",
			Help: "Learning target status transitions",
		},
		[]string{"from", "to"},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(GenerationAttempts)
	prometheus.MustRegister(GenerationDuration)
	prometheus.MustRegister(ValidationFailures)
	prometheus.MustRegister(TargetTransitions)
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
