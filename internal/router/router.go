package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fbrgate/internal/config"
	"fbrgate/internal/handler"
	"fbrgate/internal/middleware"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	cfg *config.Config,
	businessH *handler.BusinessHandler,
	catalogH *handler.CatalogHandler,
	invoiceH *handler.InvoiceHandler,
	batchH *handler.BatchHandler,
	healthH *handler.HealthHandler,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	// Health checks and metrics
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware(&cfg.JWT))

	// Business management; creation and listing are admin-only
	v1.POST("/businesses", middleware.RequireAdmin(), businessH.Create)
	v1.GET("/businesses", middleware.RequireAdmin(), businessH.List)
	v1.PUT("/businesses/:businessID/integration", middleware.RequireAdmin(), businessH.UpdateIntegration)

	biz := v1.Group("/businesses/:businessID")
	biz.GET("", businessH.GetByID)

	// Catalog
	biz.POST("/customers", catalogH.CreateCustomer)
	biz.GET("/customers", catalogH.ListCustomers)
	biz.POST("/products", catalogH.CreateProduct)
	biz.GET("/products", catalogH.ListProducts)

	// Invoices
	biz.POST("/invoices", invoiceH.Create)
	biz.GET("/invoices", invoiceH.List)
	biz.GET("/invoices/:id", invoiceH.GetByID)
	biz.POST("/invoices/:id/submit", invoiceH.Submit)
	biz.POST("/invoices/:id/cancel", invoiceH.Cancel)

	// Bulk batches
	biz.POST("/batches", batchH.Upload)
	biz.GET("/batches", batchH.List)
	biz.GET("/batches/:id", batchH.GetStatus)
	biz.POST("/batches/:id/retry", batchH.Retry)
	biz.POST("/batches/:id/cancel", batchH.Cancel)

	return r
}
