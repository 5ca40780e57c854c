package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/flicky/grocer/internal/config"
	"github.com/flicky/grocer/internal/middleware"
)

type Router struct {
	Auth    *AuthHandler
	Product *ProductHandler
	Review  *ReviewHandler
	Cart    *CartHandler
	Order   *OrderHandler
	Health  *HealthHandler

	JWTSecret   string
	Session     config.SessionConfig
	AuthLimiter *middleware.IPRateLimiter
	ServiceName string
	Metrics     http.Handler
	Log         *slog.Logger
}

func (r *Router) Engine() *gin.Engine {
	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		middleware.Logger(r.Log),
		middleware.Metrics(),
		otelgin.Middleware(r.ServiceName),
	)

	engine.GET("/healthz", r.Health.Healthz)
	engine.GET("/readyz", r.Health.Readyz)
	if r.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(r.Metrics))
	}

	requireAuth := middleware.AuthMiddleware(r.JWTSecret)

	v1 := engine.Group("/api/v1",
		gzip.Gzip(gzip.DefaultCompression),
		middleware.Session(r.Session),
		middleware.OptionalAuth(r.JWTSecret),
	)
	{
		auth := v1.Group("/auth", middleware.RateLimit(r.AuthLimiter))
		auth.POST("/register", r.Auth.Register)
		auth.POST("/login", r.Auth.Login)
		v1.GET("/me", requireAuth, r.Auth.Me)

		v1.GET("/categories", r.Product.Categories)

		products := v1.Group("/products")
		products.GET("", r.Product.List)
		products.GET("/:id", r.Product.GetByID)
		products.GET("/:id/reviews", r.Review.List)
		products.POST("/:id/reviews", requireAuth, r.Review.Create)

		admin := products.Group("", requireAuth, middleware.AdminOnly())
		admin.POST("", r.Product.Create)
		admin.PUT("/:id", r.Product.Update)

		cart := v1.Group("/cart")
		cart.GET("", r.Cart.GetCart)
		cart.POST("/items", r.Cart.AddItem)
		cart.PUT("/items/:id", r.Cart.UpdateItem)
		cart.DELETE("/items/:id", r.Cart.DeleteItem)

		v1.POST("/checkout", requireAuth, r.Order.Checkout)

		orders := v1.Group("/orders", requireAuth)
		orders.GET("", r.Order.ListOrders)
		orders.GET("/:id", r.Order.GetOrder)
	}

	return engine
}
