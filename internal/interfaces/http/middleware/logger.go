package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/builders-garden/swifty/pkg/logger"
)

// LoggerMiddleware writes one access log line per request, plus the
// errors handlers attached to the gin context. Paths in skip (scrapes,
// health checks) are only logged when they fail.
func LoggerMiddleware(skip ...string) gin.HandlerFunc {
	quiet := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		quiet[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path += "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		if _, ok := quiet[c.Request.URL.Path]; ok && status < 400 {
			return
		}

		ctx := c.Request.Context()
		if id := c.Param("id"); id != "" {
			ctx = logger.WithAttemptID(ctx, id)
		}
		logger.LogRequest(ctx, c.Request.Method, path, status, time.Since(start), c.ClientIP())
		for _, e := range c.Errors {
			logger.Warn(ctx, "Request error", zap.String("route", c.FullPath()), zap.Error(e.Err))
		}
	}
}
