package httpserver

import (
	"context"
	"time"

	"storefront/internal/events"
	"storefront/internal/metrics"

	"github.com/gin-gonic/gin"
)

// correlationMiddleware propagates or mints X-Correlation-Id and stores it on the request context.
func correlationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := events.EnsureCorrelationID(c.GetHeader(events.CorrelationHeader))
		c.Header(events.CorrelationHeader, id)
		c.Request = c.Request.WithContext(events.WithCorrelationID(c.Request.Context(), id))
		c.Next()
	}
}

func timeoutMiddleware(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func metricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveRequest(route, c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}
