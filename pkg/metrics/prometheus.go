package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route and status.",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	ordersIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_ingested_total",
			Help: "Orders written by reconciliation, by origin.",
		},
		[]string{"origin"},
	)

	expenseWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expense_writes_total",
			Help: "Expense writes by source and outcome (created, updated, skipped).",
		},
		[]string{"source", "outcome"},
	)

	importLinesApproved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "import_lines_approved_total",
			Help: "Staged statement lines promoted to expenses.",
		},
	)

	syncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_errors_total",
			Help: "Item-level failures in sync passes.",
		},
		[]string{"flow"},
	)

	costLookupCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cost_lookup_cache_total",
			Help: "Cost table cache reads by result.",
		},
		[]string{"result"},
	)
)

// PrometheusMiddleware records request count and latency per route template.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

func RecordOrderIngested(origin string) {
	ordersIngested.WithLabelValues(origin).Inc()
}

func RecordExpenseWrite(source, outcome string) {
	expenseWrites.WithLabelValues(source, outcome).Inc()
}

func RecordImportLinesApproved(n int) {
	importLinesApproved.Add(float64(n))
}

func RecordSyncError(flow string) {
	syncErrors.WithLabelValues(flow).Inc()
}

func RecordCostCache(hit bool) {
	if hit {
		costLookupCache.WithLabelValues("hit").Inc()
		return
	}
	costLookupCache.WithLabelValues("miss").Inc()
}
