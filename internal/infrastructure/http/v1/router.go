// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"acmesync/internal/domain/auth"
	"acmesync/internal/domain/client"
	"acmesync/internal/domain/order"
	"acmesync/internal/domain/product"
	"acmesync/internal/domain/stock"
	"acmesync/internal/domain/user"
	"acmesync/internal/infrastructure/http/v1/handlers"
	"acmesync/internal/infrastructure/http/v1/middleware"
	"acmesync/internal/infrastructure/storage/sqlite"
	"acmesync/internal/replication"
	"acmesync/internal/status"
	"acmesync/pkg/logger"
)

// RouterConfig holds everything the router wires together.
type RouterConfig struct {
	NodeName     string
	ReplicaToken string

	DB     *sqlite.DB
	Logger *logger.Logger

	JWT      *auth.JWTService
	Clients  *client.Service
	Products *product.Service
	Users    *user.Service
	Orders   *order.Service
	Stock    *stock.Service

	Receiver *replication.Receiver
	Reporter *status.Reporter
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	base := handlers.NewBaseHandler()

	// Health endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.NodeName)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	v1 := router.Group("/api/v1")
	{
		// Public auth endpoints
		authHandler := handlers.NewAuthHandler(base, cfg.Users, cfg.JWT)
		v1.POST("/auth/login", authHandler.Login)

		// Node-to-node endpoints, guarded by the shared replication token
		replica := v1.Group("/replica")
		replica.Use(middleware.ReplicaAuth(cfg.ReplicaToken))
		handlers.NewReplicaHandler(base, cfg.Receiver).RegisterRoutes(replica)

		// User-facing endpoints, guarded by JWT
		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWT))

		protected.GET("/auth/me", authHandler.Me)

		handlers.NewClientHandler(base, cfg.Clients).RegisterRoutes(protected.Group("/clients"))
		handlers.NewProductHandler(base, cfg.Products).RegisterRoutes(protected.Group("/products"))
		handlers.NewOrderHandler(base, cfg.Orders).RegisterRoutes(protected.Group("/orders"))
		handlers.NewStockHandler(base, cfg.Stock).RegisterRoutes(protected.Group("/stock"))

		users := protected.Group("/users")
		users.Use(middleware.RequireRole(user.RoleAdmin))
		handlers.NewUserHandler(base, cfg.Users).RegisterRoutes(users)

		statusHandler := handlers.NewStatusHandler(base, cfg.Reporter)
		protected.GET("/status", statusHandler.Get)
	}

	return router
}
