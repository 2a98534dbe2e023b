package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/civicdata/portal-api/internal/telemetry"
)

// noRoute labels requests that matched no route so arbitrary URLs do not
// become label values.
const noRoute = "<no-route>"

// MetricsMiddleware records http_requests_total and
// http_request_duration_seconds for every request, labelled with the matched
// route template from c.FullPath() (e.g. /api/1/organizations/:org/).
//
// Register it after gin.Recovery() and RequestIDMiddleware so the final status
// written by handlers is what gets counted.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = noRoute
		}

		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
