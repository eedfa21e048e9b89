package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/code-100-precent/LingChat/pkg/utils/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RecoveryMiddleware turns a handler panic into a 500 envelope so the daemon
// keeps its connection and notification state
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			requestID := GetRequestID(c)
			logger.Error("control handler panicked",
				zap.Any("panic", r),
				zap.String("route", c.FullPath()),
				zap.String("method", c.Request.Method),
				zap.String("requestId", requestID),
				zap.ByteString("stack", debug.Stack()),
			)
			response.Result(c, http.StatusInternalServerError, http.StatusInternalServerError,
				fmt.Sprintf("internal error: %v", r), gin.H{"requestId": requestID})
			c.Abort()
		}()
		c.Next()
	}
}
