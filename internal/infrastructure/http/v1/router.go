// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"procurement/internal/infrastructure/http/v1/handlers"
	"procurement/internal/infrastructure/http/v1/middleware"
	"procurement/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	Consolidation handlers.Consolidator
	Approval      handlers.Approver
	Orders        handlers.OrderService

	// Health reports liveness and store readiness
	Health *handlers.HealthHandler

	// Debug enables gin debug mode
	Debug bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	if cfg.Health != nil {
		router.GET("/health", cfg.Health.Live)
		router.GET("/health/ready", cfg.Health.Ready)
	}

	api := router.Group("/api/v1")
	api.Use(middleware.Auth(cfg.JWTValidator))

	handler := handlers.NewPurchaseOrderHandler(handlers.NewBaseHandler(), cfg.Consolidation, cfg.Approval, cfg.Orders)
	RegisterPurchaseOrderRoutes(api.Group("/purchase-orders"), handler)

	return router
}
