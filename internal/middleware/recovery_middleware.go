// internal/middleware/recovery_middleware.go
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ordering-service/internal/metrics"
	"ordering-service/internal/pkg/response"
)

// RecoveryMiddleware turns a handler panic into a 500 and counts it. It must
// run inside LoggingMiddleware so the failed request is still logged.
func RecoveryMiddleware(logger *zap.Logger, recorder metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			route := c.FullPath()
			if route == "" {
				route = "unmatched"
			}
			recorder.RecordPanic(route)
			logger.Error("handler panicked",
				zap.String("method", c.Request.Method),
				zap.String("route", route),
				zap.Any("panic", rec),
				zap.Stack("stack"),
			)

			if c.Writer.Written() {
				c.Abort()
				return
			}
			response.Error(c, http.StatusInternalServerError, "internal server error", nil)
		}()
		c.Next()
	}
}
