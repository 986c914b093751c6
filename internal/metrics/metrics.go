// Package metrics provides Prometheus instrumentation for the escrow engine.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path pattern, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cstore",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cstore",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// EscrowTransitionsTotal counts escrow state transitions by target status.
	EscrowTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cstore",
			Name:      "escrow_transitions_total",
			Help:      "Total escrow state transitions by resulting status.",
		},
		[]string{"status"},
	)

	// ApprovalVotesTotal counts multi-sig votes by subject and verdict.
	ApprovalVotesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cstore",
			Name:      "approval_votes_total",
			Help:      "Total multi-sig approval votes by subject and verdict.",
		},
		[]string{"subject", "verdict"},
	)

	// TransfersExecutedTotal counts executed wallet transfers by currency.
	TransfersExecutedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cstore",
			Name:      "transfers_executed_total",
			Help:      "Total wallet transfer executions by currency.",
		},
		[]string{"currency"},
	)

	// SweeperRunsTotal counts expiry sweeper passes by result.
	SweeperRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cstore",
			Name:      "sweeper_runs_total",
			Help:      "Total expiry sweeper passes by result.",
		},
		[]string{"result"},
	)

	// ChainVerificationsTotal counts verification calls by currency and outcome.
	ChainVerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cstore",
			Name:      "chain_verifications_total",
			Help:      "Total blockchain verification calls by currency and outcome.",
		},
		[]string{"currency", "outcome"},
	)
)

// Register registers all collectors on the given registry.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		EscrowTransitionsTotal,
		ApprovalVotesTotal,
		TransfersExecutedTotal,
		SweeperRunsTotal,
		ChainVerificationsTotal,
	)
}

// Handler returns the /metrics endpoint handler.
func Handler(reg *prometheus.Registry) gin.HandlerFunc {
	h := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// Middleware instruments HTTP requests.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
