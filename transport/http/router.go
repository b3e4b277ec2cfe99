package http

import (
	"github.com/gin-gonic/gin"
	"github.com/layer-3/pricewatch/service"
	log "github.com/sirupsen/logrus"
)

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, catalog *service.CatalogService, logger log.FieldLogger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	handlers := NewAuthHandlers(authService)
	catalogHandlers := NewCatalogHandlers(catalog)
	protected := AuthMiddleware(authService)

	// Auth routes
	auth := router.Group("/auth")
	{
		auth.POST("/register", handlers.Register)
		auth.POST("/login", handlers.Login)
		auth.POST("/refresh", handlers.Refresh)
		auth.POST("/logout", handlers.Logout)
		auth.GET("/me", protected, handlers.Me)
		auth.PUT("/me", protected, handlers.UpdateMe)
	}

	products := router.Group("/products")
	{
		products.GET("", catalogHandlers.ListProducts)
		products.GET("/search", catalogHandlers.Search)
		products.POST("/scrape", protected, catalogHandlers.Scrape)
		products.GET("/:id", catalogHandlers.GetProduct)
		products.POST("/track", protected, catalogHandlers.Track)
		products.GET("/tracked", protected, catalogHandlers.Tracked)
		products.DELETE("/tracked/:id", protected, catalogHandlers.Untrack)
	}

	alerts := router.Group("/alerts", protected)
	{
		alerts.GET("", catalogHandlers.Alerts)
		alerts.POST("", catalogHandlers.CreateAlert)
		alerts.PUT("/:id", catalogHandlers.UpdateAlert)
		alerts.DELETE("/:id", catalogHandlers.DeleteAlert)
		alerts.POST("/:id/test", catalogHandlers.TestAlert)
	}

	return router
}
