package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WorkflowTransitions counts admin decisions by entity and resulting status.
	WorkflowTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "koydenal_workflow_transitions_total",
		Help: "Total number of approval decisions",
	}, []string{"entity", "to"})

	// ListingSubmissions counts listing submissions by submitter kind and outcome.
	ListingSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "koydenal_listing_submissions_total",
		Help: "Total number of listing submissions",
	}, []string{"submitter", "outcome"})

	// ImageUploads counts image upload attempts by outcome.
	ImageUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "koydenal_image_uploads_total",
		Help: "Total number of listing image uploads",
	}, []string{"outcome"})

	// GuestAccessChecks counts guest capability checks by result.
	GuestAccessChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "koydenal_guest_access_checks_total",
		Help: "Total number of guest secret checks",
	}, []string{"operation", "result"})

	// AdminLogins counts admin sign-in attempts by verdict.
	AdminLogins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "koydenal_admin_logins_total",
		Help: "Total number of admin sign-in attempts",
	}, []string{"verdict"})

	// RateLimitDecisions counts quota checks by limit name and outcome (allowed, limited, store_error).
	RateLimitDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "koydenal_rate_limit_decisions_total",
		Help: "Total number of rate limit checks",
	}, []string{"limit", "outcome"})

	// RedisCommands records Redis command latency by command and outcome (ok, miss, error).
	RedisCommands = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "koydenal_redis_command_seconds",
		Help:    "Redis command latency in seconds",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
	}, []string{"command", "outcome"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "koydenal_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
