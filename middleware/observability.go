package middleware

import (
	"fmt"
	"net/http"
	"time"

	"storefront-backend/logger"
	"storefront-backend/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	RequestIDHeader  = "X-Request-Id"
	ContextRequestID = "request_id"
)

// RequestID tags each request with an id, reusing the caller's X-Request-Id when present.
func RequestID(logg *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(RequestIDHeader)
		if reqID == "" || len(reqID) > 128 {
			reqID = uuid.NewString()
		}

		c.Header(RequestIDHeader, reqID)
		c.Set(ContextRequestID, reqID)
		c.Request = c.Request.WithContext(logg.WithRequestID(c.Request.Context(), reqID))
		c.Next()
	}
}

func Logging(logg *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ctx := logg.WithFields(c.Request.Context(), map[string]any{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       c.FullPath(),
			"status":      status,
			"duration_ms": time.Since(start).Milliseconds(),
			"client_ip":   c.ClientIP(),
		})

		switch {
		case len(c.Errors) > 0:
			logg.Error(ctx, "request.complete", c.Errors.Last())
		case status >= http.StatusInternalServerError:
			logg.Error(ctx, "request.complete", nil)
		case status >= http.StatusBadRequest:
			logg.Warn(ctx, "request.complete")
		default:
			logg.Info(ctx, "request.complete")
		}
	}
}

// Recovery turns panics into a logged 500.
func Recovery(logg *logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, rec any) {
		ctx := logg.WithField(c.Request.Context(), "panic", fmt.Sprint(rec))
		logg.Error(ctx, "panic.recovered", fmt.Errorf("panic: %v", rec))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	})
}

func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.ObserveRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
