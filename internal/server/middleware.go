package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/marketlane/backoffice/internal/actorcontext"
	"go.uber.org/zap"
)

// RequestContextMiddleware stamps every request with a correlation id and the
// acting administrator, then logs the request with safe fields.
func RequestContextMiddleware(log *zap.Logger) gin.HandlerFunc {
	requestLog := log.Named("http.request")
	return func(c *gin.Context) {
		start := time.Now()
		requestID := ensureRequestID(c)

		ctx := c.Request.Context()
		ctx = actorcontext.WithRequestID(ctx, requestID)
		ctx = actorcontext.WithActor(ctx,
			c.GetHeader("X-Admin-User-Id"),
			c.GetHeader("X-Admin-User-Email"),
		)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if strings.TrimSpace(route) == "" {
			route = "unknown"
		}

		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		}
		if lastErr := c.Errors.Last(); lastErr != nil {
			fields = append(fields, zap.String("error", lastErr.Err.Error()))
		}

		if strings.EqualFold(route, "/metrics") || strings.EqualFold(route, "/health") {
			requestLog.Debug("http_request", fields...)
			return
		}
		if status >= http.StatusInternalServerError {
			requestLog.Error("http_request", fields...)
			return
		}
		requestLog.Info("http_request", fields...)
	}
}

func ensureRequestID(c *gin.Context) string {
	requestID := strings.TrimSpace(c.GetHeader("X-Request-Id"))
	if requestID == "" {
		requestID = uuid.NewString()
	}

	c.Set("request_id", requestID)
	c.Header("X-Request-Id", requestID)
	return requestID
}
