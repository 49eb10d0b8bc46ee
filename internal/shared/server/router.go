package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hirelink-backend/internal/availability"
	"hirelink-backend/internal/scheduling"
	"hirelink-backend/internal/shared/config"
	"hirelink-backend/internal/shared/metrics"
	"hirelink-backend/internal/shared/server/middleware"
	"hirelink-backend/internal/shared/server/respond"
)

// RouterDeps carries the handlers the router mounts.
type RouterDeps struct {
	Config              config.Config
	AvailabilityHandler *availability.Handler
	SchedulingHandler   *scheduling.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.RateLimit(middleware.RateLimitConfig{
			DefaultGroup: "MUTATION",
			GroupFor: func(c *gin.Context) string {
				if c.Request.Method == http.MethodGet {
					return "READ"
				}
				return "MUTATION"
			},
			Rules: map[string]middleware.RateLimitRule{
				"READ":     {Rate: 10, Burst: 30},
				"MUTATION": {Rate: 2, Burst: 10},
			},
		}),
	)

	r.GET("/internal/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	deps.AvailabilityHandler.RegisterRoutes(api)
	deps.SchedulingHandler.RegisterRoutes(api)

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
