package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// quietPrefixes are never logged, they are polled by scrapers and dashboards
var quietPrefixes = []string{"/metrics", "/api/diagnostics", "/favicon.ico"}

// LoggerMiddleware logs control requests that change state. Reads are
// logged only when they fail.
func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		status := c.Writer.Status()
		if !shouldLogRequest(method, path, status) {
			return
		}

		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", method),
			zap.String("path", path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.String("ip", c.ClientIP()),
			zap.String("requestId", GetRequestID(c)),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		if status >= 500 {
			logger.Error("Request", fields...)
			return
		}
		logger.Info("Request", fields...)
	}
}

func shouldLogRequest(method, path string, status int) bool {
	if status >= 400 {
		return true
	}
	for _, p := range quietPrefixes {
		if strings.HasPrefix(path, p) {
			return false
		}
	}
	return method != "GET" && method != "HEAD" && method != "OPTIONS"
}
