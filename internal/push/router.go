package push

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"logworker/internal/constants"
	"logworker/internal/logger"
	"logworker/pkg/health"
	"logworker/pkg/middleware"
	"logworker/pkg/ratelimit"
	"logworker/pkg/tracing"
)

type RouterOptions struct {
	Handler *Handler
	Health  *health.CheckerRegistry
	// RateLimiter guards the push routes only. Nil disables limiting.
	RateLimiter *ratelimit.ClientLimiter
	Logger      logger.Logger
	Tracing     bool
	Swagger     bool
}

func NewRouter(opts RouterOptions) *gin.Engine {
	router := gin.New()

	if opts.Tracing {
		router.Use(tracing.GinMiddleware(constants.ServiceName))
	}
	router.Use(middleware.RecoveryMiddleware(opts.Logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(opts.Logger))

	pushRoutes := router.Group("")
	if opts.RateLimiter != nil {
		pushRoutes.Use(opts.RateLimiter.Middleware())
	}
	pushRoutes.POST("/", opts.Handler.Push)
	pushRoutes.POST("/push", opts.Handler.Push)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/tenants/:tenant_id/logs/:log_id", opts.Handler.GetRecord)
	}

	registry := opts.Health
	if registry == nil {
		registry = health.NewCheckerRegistry()
	}
	router.GET("/health", healthHandler(registry))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if opts.Swagger {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return router
}

// Health godoc
// @Summary      Service health
// @Tags         operator
// @Produce      json
// @Success      200  {object}  health.Health
// @Failure      503  {object}  health.Health
// @Router       /health [get]
func healthHandler(registry *health.CheckerRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := registry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if !h.Healthy() {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	}
}
