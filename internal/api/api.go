// internal/api/api.go
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/patagonia-core/stock-planning/internal/api/handlers"
	"github.com/patagonia-core/stock-planning/internal/api/middleware"
	"github.com/patagonia-core/stock-planning/internal/service"
)

type Services struct {
	Segmentation  *service.SegmentationService
	Aggregation   *service.AggregationService
	Replenishment *service.ReplenishmentService
	Transfer      *service.TransferService
}

// Options tunes the router. An empty JWTSecret leaves mutating routes open.
type Options struct {
	AllowedOrigins []string
	JWTSecret      string
	JWTIssuer      string
	MaxBodyBytes   int64
}

func NewRouter(services *Services, opts Options) *gin.Engine {
	router := gin.New()

	// Add middleware
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	router.Use(middleware.BodyLimit(opts.MaxBodyBytes))
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(opts.AllowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(opts.AllowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api/v1/stock-planning")
	auth := middleware.RequireJWT(opts.JWTSecret, opts.JWTIssuer)
	if opts.JWTSecret == "" {
		log.Warn().Msg("AUTH_JWT_SECRET not set, mutating routes are not protected")
	}

	if services == nil {
		return router
	}

	if services.Segmentation != nil {
		segmentationHandler := handlers.NewSegmentationHandler(services.Segmentation)
		apiGroup.GET("/stores", segmentationHandler.Stores)
		segmentsGroup := apiGroup.Group("/segments")
		{
			segmentsGroup.GET("", segmentationHandler.List)
			segmentsGroup.GET("/deliveries", segmentationHandler.DeliveryOptions)
			segmentsGroup.POST("/upload", auth, segmentationHandler.Upload)
			segmentsGroup.POST("/upload-csv", auth, segmentationHandler.UploadCSV)
			segmentsGroup.POST("/import-drive", auth, segmentationHandler.ImportDrive)
			segmentsGroup.DELETE("", auth, segmentationHandler.Truncate)
		}
	}

	if services.Aggregation != nil {
		aggregationHandler := handlers.NewAggregationHandler(services.Aggregation)
		apiGroup.GET("/sales", aggregationHandler.Sales)
		apiGroup.GET("/stock/central", aggregationHandler.CentralStock)
		apiGroup.GET("/stock/stores", aggregationHandler.StoreStock)
		apiGroup.DELETE("/cache", auth, aggregationHandler.Invalidate)
	}

	if services.Replenishment != nil {
		replenishmentHandler := handlers.NewReplenishmentHandler(services.Replenishment, services.Segmentation, services.Transfer)
		apiGroup.POST("/replenishment/calculate", replenishmentHandler.Calculate)
		replenishmentGroup := apiGroup.Group("/replenishments")
		{
			replenishmentGroup.GET("", replenishmentHandler.List)
			replenishmentGroup.POST("", auth, replenishmentHandler.Save)
			replenishmentGroup.GET("/:id/summary", replenishmentHandler.Summary)
			replenishmentGroup.GET("/:id/lines", replenishmentHandler.Lines)
			replenishmentGroup.GET("/:id/operation", replenishmentHandler.Operation)
			if services.Segmentation != nil {
				replenishmentGroup.GET("/:id/segmentation", replenishmentHandler.Segmentation)
			}
			replenishmentGroup.POST("/:id/export", auth, replenishmentHandler.Export)
			if services.Transfer != nil {
				replenishmentGroup.POST("/:id/erp", auth, replenishmentHandler.PushToERP)
			}
			replenishmentGroup.DELETE("/:id", auth, replenishmentHandler.Delete)
		}
	}

	if services.Transfer != nil {
		erpHandler := handlers.NewERPHandler(services.Transfer)
		erpGroup := apiGroup.Group("/erp", auth)
		{
			erpGroup.POST("/header", erpHandler.CreateHeader)
			erpGroup.POST("/line", erpHandler.CreateLine)
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
