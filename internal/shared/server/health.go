package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"jobboard-backend/internal/shared/server/respond"
)

// HealthFunc reports component status, e.g. {"database": "up"}.
type HealthFunc func(ctx context.Context) map[string]string

const healthTimeout = 2 * time.Second

func healthHandler(check HealthFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload := gin.H{"ok": true}
		if check != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
			defer cancel()
			components := check(ctx)
			for _, status := range components {
				if status == "down" {
					payload["ok"] = false
				}
			}
			payload["components"] = components
		}
		if payload["ok"] == false {
			respond.JSON(c, http.StatusServiceUnavailable, payload)
			return
		}
		respond.JSON(c, http.StatusOK, payload)
	}
}
