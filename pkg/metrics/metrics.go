// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Redirect outcomes.
const (
	OutcomeHit     = "hit"
	OutcomeMiss    = "miss"
	OutcomeFailure = "failure"
)

var (
	Redirects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shortly",
		Name:      "redirects_total",
		Help:      "Short code resolutions by outcome.",
	}, []string{"outcome"})

	LinksCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shortly",
		Name:      "links_created_total",
		Help:      "Links persisted for previously unseen URLs.",
	})

	TitleFetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shortly",
		Name:      "title_fetch_failures_total",
		Help:      "Link submissions rejected because the destination title could not be read.",
	})

	CodeCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shortly",
		Name:      "code_collisions_total",
		Help:      "Generated short codes discarded because they were already taken.",
	})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shortly",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter.",
	}, []string{"path"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "shortly",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "status"})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
