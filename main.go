package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jonesrussell/north-cloud/spectre/internal/api"
	"github.com/jonesrussell/north-cloud/spectre/internal/config"
	"github.com/jonesrussell/north-cloud/spectre/internal/handler"
	"github.com/jonesrussell/north-cloud/spectre/internal/metrics"
	infraconfig "github.com/jonesrussell/north-cloud/spectre/internal/platform/config"
	"github.com/jonesrussell/north-cloud/spectre/internal/platform/logger"
	"github.com/jonesrussell/north-cloud/spectre/internal/platform/profiling"
	"github.com/jonesrussell/north-cloud/spectre/internal/privacy"
	"github.com/jonesrussell/north-cloud/spectre/internal/retention"
	"github.com/jonesrussell/north-cloud/spectre/internal/sitecache"
	"github.com/jonesrussell/north-cloud/spectre/internal/storage"

	_ "github.com/lib/pq"
)

// Database connection timeout.
const dbPingTimeout = 5 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	// Initialize logger
	log, err := createLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	// Start profiling (if enabled)
	profiling.StartPprofServer(log)
	profiler, err := profiling.StartPyroscope(cfg.Service.Name, log)
	if err != nil {
		log.Warn("Continuous profiling unavailable", logger.Error(err))
	}
	if profiler != nil {
		defer func() { _ = profiler.Stop() }()
	}

	// Connect to database
	db, err := connectDatabase(cfg, log)
	if err != nil {
		log.Error("Failed to connect to database", logger.Error(err))
		return 1
	}
	defer func() { _ = db.Close() }()

	// Run server
	return runServer(cfg, log, db)
}

// loadConfig loads and validates configuration.
func loadConfig() (*config.Config, error) {
	configPath := infraconfig.GetConfigPath("config.yml")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if validationErr := cfg.Validate(); validationErr != nil {
		return nil, fmt.Errorf("validate config: %w", validationErr)
	}
	return cfg, nil
}

// createLogger creates a logger instance from configuration.
func createLogger(cfg *config.Config) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Development: cfg.Service.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log.With(logger.String("service", cfg.Service.Name)), nil
}

// connectDatabase opens and verifies a database connection.
func connectDatabase(cfg *config.Config, log logger.Logger) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbPingTimeout)
	defer cancel()

	if pingErr := db.PingContext(ctx); pingErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", pingErr)
	}

	log.Info("Database connected",
		logger.String("host", cfg.Database.Host),
		logger.Int("port", cfg.Database.Port),
		logger.String("database", cfg.Database.Database),
	)

	return db, nil
}

// connectCache wraps repo in a Redis read-through cache when enabled. A
// Redis outage at startup falls back to direct lookups.
func connectCache(cfg *config.Config, log logger.Logger, repo *storage.Repository) (handler.SiteLookup, api.Pinger, func()) {
	if !cfg.Redis.Enabled {
		return repo, nil, func() {}
	}

	client, err := sitecache.NewClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Warn("Site cache disabled, using database lookups",
			logger.String("address", cfg.Redis.Address),
			logger.Error(err),
		)
		return repo, nil, func() {}
	}

	log.Info("Site cache connected", logger.String("address", cfg.Redis.Address))
	cache := sitecache.New(client, repo, cfg.Redis.TTL, log)
	return cache, cache, func() { _ = client.Close() }
}

// runServer creates all dependencies and starts the HTTP server.
func runServer(cfg *config.Config, log logger.Logger, db *sqlx.DB) int {
	repo := storage.NewRepository(db)
	m := metrics.New()

	sites, cachePinger, closeCache := connectCache(cfg, log, repo)
	defer closeCache()

	// Create heatmap buffer and store
	buf := storage.NewBuffer(cfg.Heatmap.BufferSize)
	store := storage.NewStore(repo, buf, log, m, cfg.Heatmap.FlushInterval, cfg.Heatmap.FlushThreshold)
	store.Start()
	defer store.Stop()

	if cfg.Retention.Enabled {
		pruner := retention.NewPruner(repo, m, log, cfg.Retention.HeatmapDays, cfg.Retention.Schedule)
		if err := pruner.Start(); err != nil {
			log.Error("Failed to start heatmap retention", logger.Error(err))
			return 1
		}
		defer pruner.Stop()
	}

	// Create handlers
	salt := privacy.NewSaltSource(cfg.Service.PrivacySecret, time.Now)
	tracking := handler.NewTrackingHandler(sites, repo, salt, m, log)
	heatmaps := handler.NewHeatmapHandler(sites, repo, buf, handler.HeatmapLimits{
		StatsLimit:      cfg.Heatmap.StatsLimit,
		URLListLimit:    cfg.Heatmap.URLListLimit,
		MovementLimit:   cfg.Heatmap.MovementLimit,
		ClickLimit:      cfg.Heatmap.ClickLimit,
		ScrollLimit:     cfg.Heatmap.ScrollLimit,
		RenderMaxWidth:  cfg.Heatmap.RenderMaxWidth,
		RenderMaxHeight: cfg.Heatmap.RenderMaxHeight,
		RenderMaxPixels: cfg.Heatmap.RenderMaxPixels,
	}, m, log)

	// done channel signals background goroutines (rate limiter) on shutdown
	done := make(chan struct{})
	defer close(done)

	server := api.NewServer(api.Dependencies{
		Tracking: tracking,
		Heatmaps: heatmaps,
		Metrics:  m,
		Database: repo,
		Cache:    cachePinger,
	}, cfg, log, done)

	log.Info("Spectre collector starting",
		logger.Int("port", cfg.Service.Port),
		logger.Bool("site_cache", cachePinger != nil),
		logger.Bool("retention", cfg.Retention.Enabled),
	)

	if err := server.Run(context.Background()); err != nil {
		log.Error("Server error", logger.Error(err))
		return 1
	}

	log.Info("Spectre collector exited cleanly")
	return 0
}
