// Package telemetry provides logging setup and Prometheus metrics for the portal API.
//
// All metrics are registered against the default Prometheus registry and are
// exposed by the side-channel HTTP server started in main.go:
//
//	GET http://<host>:<PORTAL_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// The endpoint is not served by the Gin router.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template)
//   - Organization lifecycle counters (created, deleted)
//   - Membership request outcomes
//   - Follow and unfollow actions
//   - Rate limiter rejections by backend
//   - Database connection pool gauge
//
// HTTP metrics use c.FullPath() (e.g. /api/1/organizations/:org/) rather than the
// raw URL so that organization slugs do not become label values.
package telemetry

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPRequestsTotal counts requests by method, route template and status code.
// HTTPRequestDuration observes latency by method and route template.
//
// Example PromQL queries:
//   - Request rate:  rate(http_requests_total[5m])
//   - p99 latency:   histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Organization domain metrics.
//
// MembershipRequestsTotal carries an {outcome} label with one of the
// Outcome* constants below. OrganizationFollowsTotal carries an {action}
// label, either "follow" or "unfollow".
var (
	OrganizationsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "organizations_created_total",
			Help: "Total number of organizations created.",
		},
	)

	OrganizationsDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "organizations_deleted_total",
			Help: "Total number of organizations soft-deleted.",
		},
	)

	MembershipRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membership_requests_total",
			Help: "Total number of membership request state changes, by outcome.",
		},
		[]string{"outcome"},
	)

	OrganizationFollowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "organization_follows_total",
			Help: "Total number of organization follow and unfollow actions.",
		},
		[]string{"action"},
	)
)

// Membership request outcome label values.
const (
	OutcomeCreated  = "created"
	OutcomeUpdated  = "updated"
	OutcomeAccepted = "accepted"
	OutcomeRefused  = "refused"
)

// RateLimitRejectionsTotal counts requests answered with 429, by limiter backend
// ("memory" or "redis").
var RateLimitRejectionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rate_limit_rejections_total",
		Help: "Total number of requests rejected by the rate limiter, by backend.",
	},
	[]string{"backend"},
)

// BackgroundTaskPanicsTotal counts panics recovered by safego, by task name.
var BackgroundTaskPanicsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "background_task_panics_total",
		Help: "Total number of panics recovered in background tasks, by task.",
	},
	[]string{"task"},
)

// DBOpenConnections tracks open connections in the sql.DB pool. It is sampled
// periodically by StartDBStatsCollector instead of per request.
//
// Example PromQL queries:
//   - Pool utilisation (%): db_open_connections / <PORTAL_DATABASE_MAX_CONNECTIONS> * 100
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector samples pool statistics every interval until ctx is
// cancelled or the database stops answering pings.
//
//	telemetry.StartDBStatsCollector(ctx, database, 30*time.Second)
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := db.PingContext(ctx); err != nil {
					slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
					return
				}
				DBOpenConnections.Set(float64(db.Stats().OpenConnections))
			}
		}
	}()
}
