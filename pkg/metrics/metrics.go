package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)

	// Policy metrics
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rbac_decisions_total",
			Help: "Total number of client-side policy decisions",
		},
		[]string{"check", "allowed"},
	)

	// Role store metrics
	RoleLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rbac_role_loads_total",
			Help: "Total number of role loads by outcome",
		},
		[]string{"outcome"},
	)

	RoleLoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rbac_role_load_duration_seconds",
			Help:    "Role load duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
	)

	PersistFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rbac_persist_failures_total",
			Help: "Total number of failed role persistence writes",
		},
		[]string{"op"},
	)

	InvalidationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rbac_invalidations_total",
			Help: "Total number of role invalidation signals received",
		},
	)

	// Role source metrics
	SourceRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rbac_source_requests_total",
			Help: "Total number of authoritative role fetches",
		},
		[]string{"status"},
	)
)

// RecordHTTPRequest records an HTTP request metric
func RecordHTTPRequest(service, method, path, status string) {
	HTTPRequestsTotal.WithLabelValues(service, method, path, status).Inc()
}

// RecordHTTPDuration records HTTP request duration
func RecordHTTPDuration(service, method, path string, duration float64) {
	HTTPRequestDuration.WithLabelValues(service, method, path).Observe(duration)
}

// RecordDecision records a permission, action or role check result
func RecordDecision(check string, allowed bool) {
	DecisionsTotal.WithLabelValues(check, strconv.FormatBool(allowed)).Inc()
}

// RecordRoleLoad records how a role load resolved and how long it took
func RecordRoleLoad(outcome string, duration float64) {
	RoleLoadsTotal.WithLabelValues(outcome).Inc()
	RoleLoadDuration.Observe(duration)
}

// RecordPersistFailure records a failed set or remove against role storage
func RecordPersistFailure(op string) {
	PersistFailuresTotal.WithLabelValues(op).Inc()
}

// RecordSourceRequest records an authoritative role fetch by result
func RecordSourceRequest(status string) {
	SourceRequestsTotal.WithLabelValues(status).Inc()
}
