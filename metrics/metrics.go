package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueriesTotal counts executed plans by outcome.
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memquery_queries_total",
			Help: "Total number of executed query plans",
		},
		[]string{"status"},
	)
	// QueryDuration is the wall time of Execute and Stream calls.
	QueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "memquery_query_duration_seconds",
			Help:    "Query execution latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
	// OperatorRows counts rows produced per physical operator kind.
	OperatorRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memquery_operator_rows_total",
			Help: "Rows produced by physical operators",
		},
		[]string{"operator"},
	)
	// HashJoinFallbacks counts hash joins that fell back to nested loops
	// because a key could not be encoded.
	HashJoinFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "memquery_hash_join_fallbacks_total",
			Help: "Hash joins that fell back to nested-loop matching",
		},
	)
	// ExprCacheLookups counts compiled expression cache lookups by result.
	ExprCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memquery_expr_cache_lookups_total",
			Help: "Compiled expression cache lookups",
		},
		[]string{"result"},
	)
	// StoreOperations counts relation store calls.
	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memquery_store_operations_total",
			Help: "Relation store operations",
		},
		[]string{"operation", "status"},
	)
	// RequestTotal counts HTTP requests by method, route and status.
	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memquery_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	// RequestDuration is the latency of HTTP requests.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "memquery_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Status maps an error to the status label value.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
