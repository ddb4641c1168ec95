package server

import (
	"github.com/gin-gonic/gin"

	"jobboard-backend/internal/lifecycle"
	"jobboard-backend/internal/shared/config"
	"jobboard-backend/internal/shared/metrics"
	"jobboard-backend/internal/shared/server/middleware"
	"jobboard-backend/internal/usage"
	"jobboard-backend/internal/users"
)

const analyzeGroup = "ANALYZE"

// RouterDeps carries the handlers NewRouter mounts.
type RouterDeps struct {
	Config           config.Config
	Verifier         middleware.TokenVerifier
	LifecycleHandler *lifecycle.Handler
	UsageHandler     *usage.Handler
	UsersHandler     *users.Handler
	Health           HealthFunc
	// Limiter is shared across requests; tests inject one with a fixed clock.
	Limiter *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	api := r.Group("/api/v1")
	api.GET("/health", healthHandler(deps.Health))
	api.GET("/metrics", metrics.Handler())

	authed := api.Group("", middleware.Auth(deps.Verifier))
	registerSessionRoutes(authed)

	analyzeLimit := middleware.RateLimit(middleware.RateLimitConfig{
		Group:   analyzeGroup,
		Limiter: deps.Limiter,
		Rule:    middleware.RateLimitRule{Rate: deps.Config.AnalyzeRatePerMinute / 60, Burst: deps.Config.AnalyzeBurst},
	})
	if deps.LifecycleHandler != nil {
		deps.LifecycleHandler.RegisterRoutes(authed, analyzeLimit)
	}
	if deps.UsageHandler != nil {
		deps.UsageHandler.RegisterRoutes(authed)
	}
	if deps.UsersHandler != nil {
		deps.UsersHandler.RegisterRoutes(authed)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
