package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"storefront-system/internal/domain"
	"storefront-system/internal/gateway/handlers"
	"storefront-system/internal/gateway/middleware"
	"storefront-system/internal/utils"
)

type Services struct {
	Catalog      handlers.CatalogService
	Carts        handlers.CartService
	Orders       handlers.OrderService
	Transactions handlers.TransactionService
	Users        handlers.UserService
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type RouterConfig struct {
	RateLimit string
	JWT       *utils.JWTManager
	Logger    *zap.Logger
	// Checks are run by /health; "database" is required for a healthy answer.
	Checks map[string]HealthCheck
}

func NewRouter(cfg RouterConfig, svc Services) (*gin.Engine, error) {
	handlers.RegisterValidators()

	rateLimit, err := middleware.RateLimit(cfg.RateLimit)
	if err != nil {
		return nil, errors.Wrap(err, "rate limit")
	}

	r := gin.New()
	r.Use(middleware.CORS())
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(gin.Recovery())
	r.Use(rateLimit)

	userHandler := handlers.NewUserHTTPHandler(svc.Users)
	catalogHandler := handlers.NewCatalogHTTPHandler(svc.Catalog)
	cartHandler := handlers.NewCartHTTPHandler(svc.Carts)
	orderHandler := handlers.NewOrderHTTPHandler(svc.Orders)
	transactionHandler := handlers.NewTransactionHTTPHandler(svc.Transactions)

	// --- Public API Group ---
	public := r.Group("/api/v1")
	{
		auth := public.Group("/auth")
		{
			auth.POST("/login", userHandler.Login)
			auth.POST("/register", userHandler.Register)
		}

		public.GET("/categories", catalogHandler.ListCategories)
		public.GET("/categories/:slug", catalogHandler.GetCategory)

		public.GET("/books", catalogHandler.ListItems(domain.KindBook))
		public.GET("/books/:slug", catalogHandler.GetItem(domain.KindBook))
		public.GET("/motoparts", catalogHandler.ListItems(domain.KindMotopart))
		public.GET("/motoparts/:slug", catalogHandler.GetItem(domain.KindMotopart))
	}

	// --- Protected API Group ---
	protected := r.Group("/api/v1")
	protected.Use(middleware.JWTAuth(cfg.JWT))
	{
		protected.GET("/auth/me", userHandler.Me)
		protected.POST("/auth/logout", userHandler.Logout)

		carts := protected.Group("/carts")
		{
			carts.GET("", cartHandler.ListCarts)
			carts.POST("", cartHandler.CreateCart)
			carts.GET("/active", cartHandler.GetActiveCart)
			carts.POST("/active/items", cartHandler.AddToActiveCart)
			carts.GET("/:id", cartHandler.GetCart)
			carts.DELETE("/:id", cartHandler.DeleteCart)
			carts.POST("/:id/items", cartHandler.AddItem)
			carts.DELETE("/:id/items", cartHandler.ClearCart)
			carts.PUT("/:id/items/:item_id", cartHandler.UpdateItem)
			carts.DELETE("/:id/items/:item_id", cartHandler.RemoveItem)
			carts.POST("/:id/checkout/", cartHandler.Checkout)
		}

		orders := protected.Group("/orders")
		{
			orders.GET("", orderHandler.ListOrders)
			orders.GET("/:id", orderHandler.GetOrder)
			orders.PATCH("/:id", orderHandler.UpdateOrder)
			orders.PUT("/:id/status/", middleware.RequireAdmin(), orderHandler.UpdateStatus)
		}

		transactions := protected.Group("/transactions")
		{
			transactions.GET("", transactionHandler.ListTransactions)
			transactions.POST("", transactionHandler.CreateTransaction)
			transactions.GET("/search", transactionHandler.Search)
			transactions.GET("/stats", transactionHandler.Stats)
			transactions.GET("/by-id/:transaction_id", transactionHandler.GetTransaction)
			transactions.PUT("/by-id/:transaction_id/status/", transactionHandler.UpdateStatus)
			transactions.POST("/process-payment/", transactionHandler.ProcessPayment)
		}
	}

	// --- Admin API Group ---
	admin := r.Group("/api/v1/admin")
	admin.Use(middleware.JWTAuth(cfg.JWT), middleware.RequireAdmin())
	{
		admin.GET("/users", userHandler.ListUsers)
		admin.GET("/orders", orderHandler.ListAllOrders)
		admin.GET("/transactions", transactionHandler.ListAllTransactions)
		admin.GET("/transactions/stats", transactionHandler.AdminStats)

		admin.POST("/categories", catalogHandler.CreateCategory)
		admin.PUT("/categories/:id", catalogHandler.UpdateCategory)
		admin.DELETE("/categories/:id", catalogHandler.DeleteCategory)

		admin.POST("/items", catalogHandler.CreateItem)
		admin.PUT("/items/:id", catalogHandler.UpdateItem)
		admin.DELETE("/items/:id", catalogHandler.DeleteItem)
	}

	r.GET("/health", healthCheckHandler(cfg.Checks))
	r.GET("/api/v1/health", healthCheckHandler(cfg.Checks))

	return r, nil
}

func healthCheckHandler(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		status := "healthy"
		httpStatus := http.StatusOK
		services := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				services[name] = "unavailable"
				if name == "database" {
					status = "unhealthy"
					httpStatus = http.StatusServiceUnavailable
				} else if status == "healthy" {
					status = "degraded"
				}
				continue
			}
			services[name] = "healthy"
		}

		c.JSON(httpStatus, gin.H{
			"status":    status,
			"services":  services,
			"timestamp": time.Now(),
		})
	}
}
