package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/adscope/api/handler"
	"github.com/use-agent/adscope/api/middleware"
	"github.com/use-agent/adscope/cache"
	"github.com/use-agent/adscope/config"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoints are outside auth so monitoring probes always work.
// /health and /scrape at the root are kept for clients of the first
// version of the service.
func NewRouter(sc handler.AdScraper, batches *handler.Batches, cc *cache.Cache, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	health := handler.Health(sc, startTime)
	scrape := handler.Scrape(sc, cc)

	guard := []gin.HandlerFunc{}
	if cfg.Auth.Enabled {
		guard = append(guard, middleware.Auth(cfg.Auth.APIKeys))
	}
	guard = append(guard, middleware.RateLimit(cfg.RateLimit))

	v1 := r.Group("/api/v1")

	// Health: no auth required.
	v1.GET("/health", health)

	// Protected group: auth + rate limit.
	protected := v1.Group("", guard...)
	protected.POST("/scrape", scrape)
	protected.POST("/batch/scrape", batches.Post())
	protected.GET("/batch/:id", batches.Get())

	// Legacy routes.
	r.GET("/health", health)
	r.Group("", guard...).POST("/scrape", scrape)

	return r
}
