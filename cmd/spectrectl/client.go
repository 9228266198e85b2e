package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jonesrussell/north-cloud/spectre/internal/domain"
)

const defaultClientTimeout = 10 * time.Second

var (
	// errCollector wraps an error body returned by the collector.
	errCollector = errors.New("collector error")

	errMissingSiteFlag = errors.New("--site is required")
)

// CollectorClient reads heatmap data from a collector.
type CollectorClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewCollectorClient creates a CollectorClient for baseURL.
func NewCollectorClient(baseURL string) *CollectorClient {
	return &CollectorClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultClientTimeout},
	}
}

// Stats fetches heatmap points for a URL prefix.
func (c *CollectorClient) Stats(ctx context.Context, siteID, urlPrefix, interactionType string) (*domain.HeatmapStats, error) {
	q := url.Values{}
	q.Set("site_id", siteID)
	q.Set("url", urlPrefix)
	q.Set("type", interactionType)

	stats := domain.NewHeatmapStats()
	if err := c.getJSON(ctx, "/heatmap/stats", q, stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// URLs lists a site's URLs with heatmap data, most active first.
func (c *CollectorClient) URLs(ctx context.Context, siteID string) ([]domain.HeatmapURL, error) {
	q := url.Values{}
	q.Set("site_id", siteID)

	var body struct {
		URLs []domain.HeatmapURL `json:"urls"`
	}
	if err := c.getJSON(ctx, "/heatmap/urls", q, &body); err != nil {
		return nil, err
	}
	return body.URLs, nil
}

func (c *CollectorClient) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%w: get %s: %d %s", errCollector, path, resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("%w: get %s: unexpected status %d", errCollector, path, resp.StatusCode)
	}

	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
