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

	QuestionsServed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diagnostic_questions_served_total",
			Help: "Questions handed out by the selector, by subject",
		},
		[]string{"subject"},
	)

	AnswersScored = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diagnostic_answers_scored_total",
			Help: "Answers scored, by subject and correctness",
		},
		[]string{"subject", "correct"},
	)

	SessionRebuilds = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "diagnostic_session_rebuilds_total",
			Help: "Session states rebuilt from the store after a cache miss",
		},
	)

	ReportsGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "diagnostic_reports_generated_total",
			Help: "Mastery reports generated",
		},
	)

	PlanFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "study_plan_failures_total",
			Help: "Study plan generations that ended in permanent failure",
		},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(QuestionsServed)
	prometheus.MustRegister(AnswersScored)
	prometheus.MustRegister(SessionRebuilds)
	prometheus.MustRegister(ReportsGenerated)
	prometheus.MustRegister(PlanFailures)
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
