// Package api wires the collector's handlers onto the gin server.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/jonesrussell/north-cloud/spectre/internal/handler"
	"github.com/jonesrussell/north-cloud/spectre/internal/metrics"
	"github.com/jonesrussell/north-cloud/spectre/internal/middleware"
)

// RateLimit is the per-IP token bucket applied to every tracker and
// dashboard endpoint.
type RateLimit struct {
	RequestsPerSecond int
	Burst             int
}

// SetupRoutes configures all API routes.
// Health routes are registered by the gin server builder.
func SetupRoutes(
	router *gin.Engine,
	tracking *handler.TrackingHandler,
	heatmaps *handler.HeatmapHandler,
	m *metrics.Collector,
	limit RateLimit,
	done <-chan struct{},
) {
	router.Use(m.Middleware())
	router.GET("/metrics", gin.WrapH(m.Handler()))

	limiter := middleware.RateLimiter(limit.RequestsPerSecond, limit.Burst, done)

	// Tracker-facing endpoints with bot flagging and rate limiting
	public := router.Group("")
	public.Use(middleware.BotFilter())
	public.Use(limiter)

	public.GET("/config", tracking.GetConfig)
	public.POST("/track", tracking.TrackPageView)
	public.POST("/events", tracking.TrackEvent)
	public.POST("/goals", tracking.TrackGoal)
	public.POST("/heatmap", heatmaps.Ingest)

	// Dashboard reads share the per-IP budget; render is the costly one
	read := router.Group("/heatmap")
	read.Use(limiter)
	read.GET("/stats", heatmaps.Stats)
	read.GET("/urls", heatmaps.URLs)
	read.GET("/render", heatmaps.Render)
}
