package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/preptracker/backend/internal/infrastructure"
)

// Routes that are scraped or polled and would drown the API histograms
var unmeteredRoutes = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// MetricsMiddleware records duration and count of API requests, labelled by
// route, resource and whether the caller was signed in.
func MetricsMiddleware(metrics *infrastructure.TelemetryMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if unmeteredRoutes[c.Request.URL.Path] {
			c.Next()
			return
		}
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		_, signedIn := c.Get(UserIDKey)

		attrs := metric.WithAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", c.Writer.Status()),
			attribute.String("api.resource", resourceOf(route)),
			attribute.Bool("user.authenticated", signedIn),
		)
		ctx := c.Request.Context()
		metrics.HTTPRequestDuration.Record(ctx, time.Since(start).Seconds(), attrs)
		metrics.HTTPRequestCount.Add(ctx, 1, attrs)
	}
}

// resourceOf maps /api/v1/contests/:id/start to "contests"
func resourceOf(route string) string {
	rest, ok := strings.CutPrefix(route, "/api/v1/")
	if !ok {
		return "other"
	}
	resource, _, _ := strings.Cut(rest, "/")
	return resource
}
