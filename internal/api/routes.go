package api

import (
	"github.com/RishiKendai/cellguard/internal/config"
	"github.com/RishiKendai/cellguard/internal/plagiarism"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	cfg *config.Config,
	service *plagiarism.Service,
	status StatusReader,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	// Create handler
	handler := NewHandler(cfg, service, status)

	// Create rate limiter
	burst := max(1, int(cfg.RateLimitRPS*2))
	rateLimiter := NewRateLimiter(cfg.RateLimitRPS, burst)

	// Middleware
	router.Use(MetricsMiddleware())
	router.Use(ErrorHandlerMiddleware())

	// Health endpoint (no rate limit)
	router.GET("/health", handler.Health)

	// API routes (rate limited per client)
	api := router.Group("/api/v1")
	api.Use(RateLimitMiddleware(rateLimiter))
	{
		api.POST("/check", handler.Check)
		api.POST("/explain", handler.Explain)
		api.GET("/status/:versionId", handler.Status)
	}

	return router
}
