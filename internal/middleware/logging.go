package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs every request with its status and duration.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		switch status := c.Writer.Status(); {
		case status >= 500:
			slog.Error("request failed", append(attrs, "errors", c.Errors.String())...)
		case status >= 400:
			slog.Warn("request rejected", append(attrs, "errors", c.Errors.String())...)
		default:
			slog.Info("request ok", attrs...)
		}
	}
}
