// Package httpapi exposes the bakery service over HTTP with gin.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"bakerycore/internal/adapters/reports"
	"bakerycore/internal/core"
	"bakerycore/internal/reporting"
)

// Deps are the collaborators served by the router. Exports and Metrics may be nil.
type Deps struct {
	Service *core.Service
	Reports *reporting.Service
	Exports reports.Scheduler
	Metrics prometheus.Gatherer
	Logger  *zap.Logger
}

// New wires the gin engine with the bakery routes and middlewares.
func New(d Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handler{svc: d.Service, reports: d.Reports, exports: d.Exports, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Metrics, promhttp.HandlerOpts{})))
	}

	ingredients := r.Group("/ingredients")
	ingredients.POST("", h.createIngredient)
	ingredients.GET("", h.listIngredients)
	ingredients.GET("/low-stock", h.lowStock)
	ingredients.GET("/alerts", h.stockAlerts)
	ingredients.GET("/expiring", h.expiring)
	ingredients.GET("/:id", h.getIngredient)
	ingredients.POST("/:id/adjust", h.adjustStock)
	ingredients.POST("/:id/restock", h.restock)

	products := r.Group("/products")
	products.POST("", h.createProduct)
	products.GET("", h.listProducts)
	products.DELETE("/:id", h.deactivateProduct)
	products.POST("/:id/costing", h.refreshCosting)

	recipes := r.Group("/recipes")
	recipes.POST("", h.createRecipe)
	recipes.GET("/:id", h.getRecipe)
	recipes.GET("/:id/cost", h.recipeCost)
	recipes.GET("/:id/feasibility", h.feasibility)

	productions := r.Group("/productions")
	productions.POST("/register", h.registerProduction)
	productions.POST("/plan", h.planProduction)
	productions.GET("/efficiency", h.efficiency)
	productions.GET("/:id", h.getProduction)
	productions.POST("/:id/start", h.startProduction)
	productions.POST("/:id/cancel", h.cancelProduction)

	r.POST("/sales", h.recordSale)

	rep := r.Group("/reports")
	rep.GET("/sales", h.salesReport)
	rep.GET("/waste", h.wasteReport)
	rep.GET("/production-cost", h.productionCostReport)
	rep.GET("/daily", h.dailySummary)
	rep.POST("/exports", h.enqueueExport)
	rep.GET("/exports/:id", h.getExport)

	logger.Info("router initialized")
	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
