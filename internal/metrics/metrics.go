// Package metrics exposes Prometheus collectors for upstream traffic. All
// collectors register on the default registry at init and are served by the
// /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values used with UpstreamRequests and UpstreamRetries.
const (
	OutcomeSuccess     = "success"
	OutcomeClientError = "client_error"
	OutcomeServerError = "server_error"
	OutcomeRateLimited = "rate_limited"
	OutcomeNetwork     = "network_error"

	ReasonRateLimited = "rate_limited"
	ReasonNetwork     = "network"
)

var (
	// UpstreamRequests counts outbound API requests by method and outcome.
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snooproxy_upstream_requests_total",
			Help: "Outbound upstream API requests by method and outcome.",
		},
		[]string{"method", "outcome"},
	)

	// UpstreamDuration observes wall time of individual upstream requests,
	// excluding pacing and backoff waits.
	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snooproxy_upstream_request_duration_seconds",
			Help:    "Duration of individual upstream API requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// UpstreamRetries counts retry attempts by the condition that caused them.
	UpstreamRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snooproxy_upstream_retries_total",
			Help: "Upstream request retries by reason.",
		},
		[]string{"reason"},
	)

	// TokenRefreshes counts application token exchanges by outcome.
	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snooproxy_token_refresh_total",
			Help: "Application token exchanges by outcome.",
		},
		[]string{"outcome"},
	)

	// PacingWait observes how long requests waited for the shared pacing
	// slot before being dispatched.
	PacingWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "snooproxy_pacing_wait_seconds",
			Help:    "Time requests spent waiting for the shared pacing interval.",
			Buckets: prometheus.DefBuckets,
		},
	)
)
