package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jonesrussell/north-cloud/spectre/internal/domain"
	"github.com/jonesrussell/north-cloud/spectre/internal/platform/logger"
)

const defaultConfigTimeout = 3 * time.Second

// RemoteConfig is what the tracker runs with for one page load. Offline is
// set when the fetch failed; goals are then empty and the salt unset.
type RemoteConfig struct {
	Goals     []domain.GoalRule
	DailySalt string
	Offline   bool
}

// ConfigLoader fetches goal rules and the daily salt.
type ConfigLoader struct {
	endpoint   string
	httpClient *http.Client
	timeout    time.Duration
	logger     logger.Logger
}

// NewConfigLoader creates a ConfigLoader for the collector at endpoint.
// A non-positive timeout selects the default.
func NewConfigLoader(endpoint string, httpClient *http.Client, timeout time.Duration, log logger.Logger) *ConfigLoader {
	if timeout <= 0 {
		timeout = defaultConfigTimeout
	}
	return &ConfigLoader{endpoint: endpoint, httpClient: httpClient, timeout: timeout, logger: log}
}

// Load issues one GET /config. Any failure yields offline mode; Load never
// returns an error and never outlives its timeout.
func (l *ConfigLoader) Load(ctx context.Context, siteID string) RemoteConfig {
	cfg, err := l.fetch(ctx, siteID)
	if err != nil {
		l.logger.Info("Using offline mode, config fetch failed",
			logger.String("site_id", siteID),
			logger.Error(err),
		)
		return RemoteConfig{Goals: []domain.GoalRule{}, Offline: true}
	}

	goals := cfg.Goals
	if goals == nil {
		goals = []domain.GoalRule{}
	}

	l.logger.Debug("Config loaded", logger.Int("rules", len(goals)))
	return RemoteConfig{Goals: goals, DailySalt: cfg.DailySalt}
}

func (l *ConfigLoader) fetch(ctx context.Context, siteID string) (*domain.RemoteConfig, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	reqURL := l.endpoint + "/config?site_id=" + url.QueryEscape(siteID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get config: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("get config: unexpected status %d", resp.StatusCode)
	}

	var cfg domain.RemoteConfig
	if err = json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}
