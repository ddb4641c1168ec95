package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"jobboard-backend/internal/shared/telemetry"
)

// Context keys handlers may set for the request log line.
const (
	TempResumeIDKey = "tempResumeId"
	TransitionKey   = "transition"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := map[string]any{
			"request_id":     RequestIDFromContext(c),
			"method":         c.Request.Method,
			"path":           c.Request.URL.Path,
			"status":         c.Writer.Status(),
			"duration_ms":    float64(latency.Microseconds()) / 1000.0,
			"user_id":        UserIDFromContext(c),
			"temp_resume_id": c.GetString(TempResumeIDKey),
			"transition":     c.GetString(TransitionKey),
			"client_ip":      c.ClientIP(),
		}
		if isGuest, ok := c.Get(isGuestKey); ok {
			fields["is_guest"] = isGuest
		}
		if len(c.Errors) > 0 {
			fields["error"] = c.Errors.String()
		}
		telemetry.Info("request.complete", fields)
	}
}
