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
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Routing metrics
	AssignmentsTotal    *prometheus.CounterVec
	ReassignmentsTotal  *prometheus.CounterVec
	EscalationsTotal    prometheus.Counter
	PooledLeadsTotal    *prometheus.CounterVec
	AssignmentConflicts prometheus.Counter

	// Watchdog metrics
	SweepDuration prometheus.Histogram
	SweepBreaches prometheus.Counter

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	m := &Metrics{
		// HTTP metrics
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
		HTTPRequestSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 5000, 10000, 50000, 100000},
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 5000, 10000, 50000, 100000},
			},
			[]string{"method", "path"},
		),

		// Routing metrics
		AssignmentsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lead_assignments_total",
				Help: "Total number of lead assignment decisions",
			},
			[]string{"source", "reason"},
		),
		ReassignmentsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lead_reassignments_total",
				Help: "Total number of lead reassignments",
			},
			[]string{"reason"},
		),
		EscalationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lead_escalations_total",
			Help: "Total number of leads escalated after exhausting reassignments",
		}),
		PooledLeadsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pooled_leads_total",
				Help: "Total number of leads placed into pools",
			},
			[]string{"reason"},
		),
		AssignmentConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "assignment_version_conflicts_total",
			Help: "Total number of lost optimistic-concurrency races on lead writes",
		}),

		// Watchdog metrics
		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "watchdog_sweep_duration_seconds",
			Help:    "Duration of SLA watchdog sweeps",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}),
		SweepBreaches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "watchdog_sla_breaches_total",
			Help: "Total number of SLA breaches detected by the watchdog",
		}),

		// Cache metrics
		CacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type"},
		),
		CacheMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type"},
		),
	}

	return m
}

// Middleware creates an Echo middleware for Prometheus metrics
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			path := c.Path() // Use route pattern, not actual path (e.g., /api/v1/leads/:id)

			if req.ContentLength > 0 {
				m.HTTPRequestSize.WithLabelValues(req.Method, path).Observe(float64(req.ContentLength))
			}

			err := next(c)

			status := c.Response().Status
			duration := time.Since(start).Seconds()

			m.HTTPRequestsTotal.WithLabelValues(req.Method, path, strconv.Itoa(status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(req.Method, path, strconv.Itoa(status)).Observe(duration)
			m.HTTPResponseSize.WithLabelValues(req.Method, path).Observe(float64(c.Response().Size))

			return err
		}
	}
}

// RecordAssignment increments the assignment decisions counter
func (m *Metrics) RecordAssignment(source, reason string) {
	if m == nil {
		return
	}
	m.AssignmentsTotal.WithLabelValues(source, reason).Inc()
}

// RecordReassignment increments the reassignments counter
func (m *Metrics) RecordReassignment(reason string) {
	if m == nil {
		return
	}
	m.ReassignmentsTotal.WithLabelValues(reason).Inc()
}

// RecordEscalation increments the escalations counter
func (m *Metrics) RecordEscalation() {
	if m == nil {
		return
	}
	m.EscalationsTotal.Inc()
}

// RecordPooledLead increments the pooled-leads counter
func (m *Metrics) RecordPooledLead(reason string) {
	if m == nil {
		return
	}
	m.PooledLeadsTotal.WithLabelValues(reason).Inc()
}

// RecordConflict increments the lost-CAS-race counter
func (m *Metrics) RecordConflict() {
	if m == nil {
		return
	}
	m.AssignmentConflicts.Inc()
}

// RecordSweep records a watchdog sweep's duration
func (m *Metrics) RecordSweep(duration time.Duration) {
	if m == nil {
		return
	}
	m.SweepDuration.Observe(duration.Seconds())
}

// RecordSLABreach increments the SLA breach counter
func (m *Metrics) RecordSLABreach() {
	if m == nil {
		return
	}
	m.SweepBreaches.Inc()
}

// RecordCacheHit increments cache hits counter
func (m *Metrics) RecordCacheHit(cacheType string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss increments cache misses counter
func (m *Metrics) RecordCacheMiss(cacheType string) {
	if m == nil {
		return
	}
	m.CacheMisses.WithLabelValues(cacheType).Inc()
}
