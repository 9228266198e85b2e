package config

import (
	"fmt"
	"time"

	infraconfig "github.com/jonesrussell/north-cloud/spectre/internal/platform/config"
)

// Default configuration values.
const (
	defaultServiceName  = "spectre-collector"
	defaultServicePort  = 8095
	defaultVersion      = "0.1.0"
	defaultLoggingLevel = "info"
	defaultLoggingFmt   = "json"
	defaultDBHost       = "localhost"
	defaultDBPort       = 5432
	defaultDBName       = "spectre"
	defaultDBUser       = "postgres"
	defaultDBSSLMode    = "disable"
	defaultRedisAddr    = "localhost:6379"
	defaultSiteCacheTTL = 5 * time.Minute

	defaultRequestsPerSecond = 20
	defaultBurst             = 40

	defaultStatsLimit      = 5000
	defaultURLListLimit    = 50
	defaultMovementLimit   = 50
	defaultClickLimit      = 500
	defaultScrollLimit     = 500
	defaultBufferSize      = 10000
	defaultFlushThreshold  = 500
	defaultFlushIntervalS  = 1
	defaultRenderMaxWidth  = 4096
	defaultRenderMaxHeight = 16384
	defaultRenderMaxPixels = 4096 * 2048

	defaultRetentionDays     = 90
	defaultRetentionSchedule = "0 3 * * *"
)

// Config holds the collector configuration.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Heatmap   HeatmapConfig   `yaml:"heatmap"`
	Retention RetentionConfig `yaml:"retention"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name          string   `yaml:"name"`
	Version       string   `yaml:"version"`
	Port          int      `env:"SPECTRE_PORT"           yaml:"port"`
	Debug         bool     `env:"APP_DEBUG"              yaml:"debug"`
	PrivacySecret string   `env:"SPECTRE_PRIVACY_SECRET" yaml:"privacy_secret"`
	CORSOrigins   []string `env:"SPECTRE_CORS_ORIGINS"   yaml:"cors_origins"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host     string `env:"POSTGRES_SPECTRE_HOST"     yaml:"host"`
	Port     int    `env:"POSTGRES_SPECTRE_PORT"     yaml:"port"`
	User     string `env:"POSTGRES_SPECTRE_USER"     yaml:"user"`
	Password string `env:"POSTGRES_SPECTRE_PASSWORD" yaml:"password"`
	Database string `env:"POSTGRES_SPECTRE_DB"       yaml:"database"`
	SSLMode  string `env:"POSTGRES_SPECTRE_SSLMODE"  yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// URL returns the PostgreSQL URL form used by golang-migrate.
func (d *DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// RedisConfig holds the site-lookup cache configuration. An empty Address
// disables the cache.
type RedisConfig struct {
	Address  string        `env:"REDIS_ADDRESS"  yaml:"address"`
	Password string        `env:"REDIS_PASSWORD" yaml:"password"`
	DB       int           `env:"REDIS_DB"       yaml:"db"`
	Enabled  bool          `env:"REDIS_ENABLED"  yaml:"enabled"`
	TTL      time.Duration `yaml:"ttl"`
}

// RateLimitConfig holds per-IP token bucket settings.
type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	Burst             int `yaml:"burst"`
}

// HeatmapConfig holds ingestion and query limits for heatmap data.
type HeatmapConfig struct {
	StatsLimit      int           `yaml:"stats_limit"`
	URLListLimit    int           `yaml:"url_list_limit"`
	MovementLimit   int           `yaml:"movement_limit"`
	ClickLimit      int           `yaml:"click_limit"`
	ScrollLimit     int           `yaml:"scroll_limit"`
	BufferSize      int           `yaml:"buffer_size"`
	FlushInterval   time.Duration `yaml:"flush_interval"`
	FlushThreshold  int           `yaml:"flush_threshold"`
	RenderMaxWidth  int           `yaml:"render_max_width"`
	RenderMaxHeight int           `yaml:"render_max_height"`
	RenderMaxPixels int           `yaml:"render_max_pixels"`
}

// RetentionConfig holds the heatmap pruning schedule.
type RetentionConfig struct {
	Enabled     bool   `env:"SPECTRE_RETENTION_ENABLED" yaml:"enabled"`
	HeatmapDays int    `yaml:"heatmap_days"`
	Schedule    string `yaml:"schedule"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL"  yaml:"level"`
	Format string `env:"LOG_FORMAT" yaml:"format"`
}

// Load loads configuration from the specified path.
func Load(path string) (*Config, error) {
	return infraconfig.LoadWithDefaults[Config](path, setDefaults)
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	setDatabaseDefaults(&cfg.Database)
	setRedisDefaults(&cfg.Redis)
	setRateLimitDefaults(&cfg.RateLimit)
	setHeatmapDefaults(&cfg.Heatmap)
	setRetentionDefaults(&cfg.Retention)
	setLoggingDefaults(&cfg.Logging)
}

func setServiceDefaults(svc *ServiceConfig) {
	if svc.Name == "" {
		svc.Name = defaultServiceName
	}
	if svc.Version == "" {
		svc.Version = defaultVersion
	}
	if svc.Port == 0 {
		svc.Port = defaultServicePort
	}
	if len(svc.CORSOrigins) == 0 {
		svc.CORSOrigins = []string{"*"}
	}
}

func setDatabaseDefaults(db *DatabaseConfig) {
	if db.Host == "" {
		db.Host = defaultDBHost
	}
	if db.Port == 0 {
		db.Port = defaultDBPort
	}
	if db.User == "" {
		db.User = defaultDBUser
	}
	if db.Database == "" {
		db.Database = defaultDBName
	}
	if db.SSLMode == "" {
		db.SSLMode = defaultDBSSLMode
	}
}

func setRedisDefaults(r *RedisConfig) {
	if r.Address == "" {
		r.Address = defaultRedisAddr
	}
	if r.TTL == 0 {
		r.TTL = defaultSiteCacheTTL
	}
}

func setRateLimitDefaults(rl *RateLimitConfig) {
	if rl.RequestsPerSecond == 0 {
		rl.RequestsPerSecond = defaultRequestsPerSecond
	}
	if rl.Burst == 0 {
		rl.Burst = defaultBurst
	}
}

func setHeatmapDefaults(h *HeatmapConfig) {
	if h.StatsLimit == 0 {
		h.StatsLimit = defaultStatsLimit
	}
	if h.URLListLimit == 0 {
		h.URLListLimit = defaultURLListLimit
	}
	if h.MovementLimit == 0 {
		h.MovementLimit = defaultMovementLimit
	}
	if h.ClickLimit == 0 {
		h.ClickLimit = defaultClickLimit
	}
	if h.ScrollLimit == 0 {
		h.ScrollLimit = defaultScrollLimit
	}
	if h.BufferSize == 0 {
		h.BufferSize = defaultBufferSize
	}
	if h.FlushInterval == 0 {
		h.FlushInterval = defaultFlushIntervalS * time.Second
	}
	if h.FlushThreshold == 0 {
		h.FlushThreshold = defaultFlushThreshold
	}
	if h.RenderMaxWidth == 0 {
		h.RenderMaxWidth = defaultRenderMaxWidth
	}
	if h.RenderMaxHeight == 0 {
		h.RenderMaxHeight = defaultRenderMaxHeight
	}
	if h.RenderMaxPixels == 0 {
		h.RenderMaxPixels = defaultRenderMaxPixels
	}
}

func setRetentionDefaults(r *RetentionConfig) {
	if r.HeatmapDays == 0 {
		r.HeatmapDays = defaultRetentionDays
	}
	if r.Schedule == "" {
		r.Schedule = defaultRetentionSchedule
	}
}

func setLoggingDefaults(log *LoggingConfig) {
	if log.Level == "" {
		log.Level = defaultLoggingLevel
	}
	if log.Format == "" {
		log.Format = defaultLoggingFmt
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := infraconfig.ValidatePort("service.port", c.Service.Port); err != nil {
		return err
	}
	if err := infraconfig.ValidateRequired("service.privacy_secret", c.Service.PrivacySecret); err != nil {
		return err
	}
	if c.Heatmap.MovementLimit < 0 {
		return &infraconfig.ValidationError{Field: "heatmap.movement_limit", Message: "must not be negative"}
	}
	if c.Heatmap.ClickLimit < 0 {
		return &infraconfig.ValidationError{Field: "heatmap.click_limit", Message: "must not be negative"}
	}
	if c.Heatmap.ScrollLimit < 0 {
		return &infraconfig.ValidationError{Field: "heatmap.scroll_limit", Message: "must not be negative"}
	}
	if c.Heatmap.RenderMaxPixels < 1 {
		return &infraconfig.ValidationError{Field: "heatmap.render_max_pixels", Message: "must be at least 1"}
	}
	if c.Retention.HeatmapDays < 1 {
		return &infraconfig.ValidationError{Field: "retention.heatmap_days", Message: "must be at least 1"}
	}
	return infraconfig.ValidateLogLevel(c.Logging.Level)
}
