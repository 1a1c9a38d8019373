package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Business metrics
	AnalysesStarted    prometheus.Counter
	AnalysesCompleted  prometheus.Counter
	AnalysesFailed     prometheus.Counter
	StageDuration      *prometheus.HistogramVec
	CompetitorsPerRun  prometheus.Histogram
	TokensDeducted     prometheus.Counter
	TokensCredited     prometheus.Counter
	ReportsSent        prometheus.Counter

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// Database metrics
	DBConnections prometheus.Gauge
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),

		AnalysesStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "analyses_started_total",
			Help: "Total number of analyses started",
		}),
		AnalysesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "analyses_completed_total",
			Help: "Total number of analyses completed successfully",
		}),
		AnalysesFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "analyses_failed_total",
			Help: "Total number of analyses that failed",
		}),
		StageDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analysis_stage_duration_seconds",
				Help:    "Duration of each analysis pipeline stage",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
			},
			[]string{"stage"}, // acquisition, profiling, discovery, extraction, aggregation
		),
		CompetitorsPerRun: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "analysis_competitors_per_run",
			Help:    "Number of competitors analyzed per run",
			Buckets: []float64{0, 1, 2, 3, 5, 7, 10, 15},
		}),
		TokensDeducted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tokens_deducted_total",
			Help: "Total tokens deducted for analyses",
		}),
		TokensCredited: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tokens_credited_total",
			Help: "Total tokens credited from purchases",
		}),
		ReportsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subscription_reports_sent_total",
			Help: "Total subscription report emails sent",
		}),

		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "analysis_cache_hits_total",
			Help: "Analyses served from the Redis cache",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "analysis_cache_misses_total",
			Help: "Analyses that missed the Redis cache",
		}),

		DBConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		}),
	}
}

// Middleware creates an Echo middleware for Prometheus metrics
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			path := c.Path() // route pattern, not the raw URL

			err := next(c)

			status := c.Response().Status
			duration := time.Since(start).Seconds()

			m.HTTPRequestsTotal.WithLabelValues(req.Method, path, strconv.Itoa(status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(req.Method, path, strconv.Itoa(status)).Observe(duration)

			return err
		}
	}
}

// RecordStage records one pipeline stage duration
func (m *Metrics) RecordStage(stage string, duration time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// UpdateDBConnections updates active database connections gauge
func (m *Metrics) UpdateDBConnections(count float64) {
	m.DBConnections.Set(count)
}
