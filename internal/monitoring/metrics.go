package monitoring

import (
	"net/http"
	"strconv"
	"sync"
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

	ImportCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_imports_total",
			Help: "Total number of ledger imports by final status",
		},
		[]string{"status"},
	)

	ImportRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_import_rows_total",
			Help: "Ledger rows seen by imports, by outcome",
		},
		[]string{"outcome"},
	)

	ImportDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ledger_import_duration_seconds",
			Help:    "Duration of ledger imports",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120},
		},
	)
)

var registerOnce sync.Once

// Init registers the collectors with the default registry. Safe to call
// from every binary entrypoint and from tests.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestCounter)
		prometheus.MustRegister(RequestDuration)
		prometheus.MustRegister(ImportCounter)
		prometheus.MustRegister(ImportRows)
		prometheus.MustRegister(ImportDuration)
	})
}

func ObserveImport(status string, started time.Time, students, skipped int) {
	ImportCounter.WithLabelValues(status).Inc()
	ImportDuration.Observe(time.Since(started).Seconds())
	ImportRows.WithLabelValues("student").Add(float64(students))
	ImportRows.WithLabelValues("skipped").Add(float64(skipped))
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

// NewServer exposes /metrics for processes that do not run the gin API.
func NewServer(port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
