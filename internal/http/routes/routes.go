package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/phambaophuc/blob-thumbnail/internal/http/handlers"
	"github.com/phambaophuc/blob-thumbnail/internal/http/middleware"
)

type Router struct {
	eventHandler   *handlers.EventHandler
	metricsHandler http.Handler
	logger         *zap.Logger
}

// NewRouter wires the webhook routes. A nil metricsHandler serves the default
// Prometheus registry.
func NewRouter(
	eventHandler *handlers.EventHandler,
	metricsHandler http.Handler,
	logger *zap.Logger,
) *Router {
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	return &Router{
		eventHandler:   eventHandler,
		metricsHandler: metricsHandler,
		logger:         logger,
	}
}

func (r *Router) SetupRoutes() *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(r.logger))
	router.Use(middleware.ErrorHandler(r.logger))
	router.Use(middleware.SecurityHeaders())

	// API version 1
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", r.eventHandler.HealthCheck)
		v1.POST("/events", r.eventHandler.HandleEvents)
	}

	router.GET("/metrics", gin.WrapH(r.metricsHandler))

	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{
			"status":  "OK",
			"message": "Thumbnail service is running",
		})
	})

	return router
}
