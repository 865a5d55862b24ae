package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"leadharvest/internal/logger"
	"leadharvest/internal/metrics"
)

// RequestLogger returns a Gin middleware that injects a request-scoped
// logger, stamps every response with a request ID and logs the request with
// its latency. It also feeds the HTTP Prometheus collectors. Probe endpoints
// are passed through unlogged.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/health" || path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		query := c.Request.URL.RawQuery

		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := logger.SetRequestID(c.Request.Context(), requestID)
		ctx = logger.SetComponent(ctx, "api")
		if userID := c.GetHeader(HeaderUserID); userID != "" {
			ctx = logger.SetUserID(ctx, userID)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveHTTPRequest(c.Request.Method, route, status, latency)

		fullPath := path
		if query != "" {
			fullPath = path + "?" + query
		}
		logger.FromContext(ctx).WithFields(logger.Fields{
			logger.FieldStatus:     status,
			logger.FieldDurationMs: latency.Milliseconds(),
		}).Infof("%s %s -> %d", c.Request.Method, fullPath, status)
	}
}
