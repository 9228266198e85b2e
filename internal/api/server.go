package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonesrussell/north-cloud/spectre/internal/config"
	"github.com/jonesrussell/north-cloud/spectre/internal/handler"
	"github.com/jonesrussell/north-cloud/spectre/internal/metrics"
	"github.com/jonesrussell/north-cloud/spectre/internal/platform/ginserver"
	"github.com/jonesrussell/north-cloud/spectre/internal/platform/logger"
)

const (
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 10 * time.Second
	defaultIdleTimeout  = 60 * time.Second
	healthCheckTimeout  = 2 * time.Second
)

// Pinger is a dependency reported on /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies groups what the server needs beyond configuration.
type Dependencies struct {
	Tracking *handler.TrackingHandler
	Heatmaps *handler.HeatmapHandler
	Metrics  *metrics.Collector
	Database Pinger
	// Cache is optional; a failing cache degrades /health instead of
	// failing it.
	Cache Pinger
}

// NewServer creates a new HTTP server.
func NewServer(
	deps Dependencies,
	cfg *config.Config,
	log logger.Logger,
	done <-chan struct{},
) *ginserver.Server {
	builder := ginserver.NewServerBuilder(cfg.Service.Name, cfg.Service.Port).
		WithLogger(log).
		WithDebug(cfg.Service.Debug).
		WithVersion(cfg.Service.Version).
		WithCORSOrigins(cfg.Service.CORSOrigins).
		WithTimeouts(defaultReadTimeout, defaultWriteTimeout, defaultIdleTimeout)

	if deps.Database != nil {
		builder = builder.WithHealthCheck("database", pingCheck("database", false, deps.Database))
	}
	if deps.Cache != nil {
		builder = builder.WithHealthCheck("redis", pingCheck("redis", true, deps.Cache))
	}

	limit := RateLimit{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	}

	return builder.
		WithRoutes(func(router *gin.Engine) {
			SetupRoutes(router, deps.Tracking, deps.Heatmaps, deps.Metrics, limit, done)
		}).
		Build()
}

func pingCheck(name string, optional bool, p Pinger) ginserver.HealthChecker {
	return ginserver.PingChecker(name, optional, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
		defer cancel()
		return p.Ping(ctx)
	})
}
