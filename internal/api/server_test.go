package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonesrussell/north-cloud/spectre/internal/api"
	"github.com/jonesrussell/north-cloud/spectre/internal/config"
	"github.com/jonesrussell/north-cloud/spectre/internal/domain"
	"github.com/jonesrussell/north-cloud/spectre/internal/handler"
	"github.com/jonesrussell/north-cloud/spectre/internal/metrics"
	"github.com/jonesrussell/north-cloud/spectre/internal/platform/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct{}

func (stubStore) SiteExists(_ context.Context, siteID string) (bool, error) {
	return siteID == "TR-1234-A", nil
}

func (stubStore) ActiveGoals(context.Context, string) ([]domain.GoalRule, error) { return nil, nil }

func (stubStore) RecordPageView(context.Context, *domain.PageView) error { return nil }

func (stubStore) InsertEvent(context.Context, *domain.Event) (int64, error) { return 1, nil }

func (stubStore) InsertGoal(context.Context, *domain.GoalConversion) (int64, error) { return 1, nil }

func (stubStore) HeatmapPoints(context.Context, string, string, string, int) (*domain.HeatmapStats, error) {
	return domain.NewHeatmapStats(), nil
}

func (stubStore) HeatmapURLs(context.Context, string, int) ([]domain.HeatmapURL, error) {
	return []domain.HeatmapURL{}, nil
}

func (stubStore) SendAll(rows []domain.HeatmapRow) int { return len(rows) }

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type stubSalt struct{}

func (stubSalt) Current() string { return "salt" }

func newTestServer(t *testing.T, cache api.Pinger) http.Handler {
	t.Helper()
	return newTestServerFromYAML(t, cache, "")
}

func newTestServerFromYAML(t *testing.T, cache api.Pinger, yaml string) http.Handler {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	if yaml != "" {
		require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	}
	cfg, err := config.Load(path)
	require.NoError(t, err)

	log := logger.NewNop()
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	store := stubStore{}
	done := make(chan struct{})
	t.Cleanup(func() { close(done) })

	deps := api.Dependencies{
		Tracking: handler.NewTrackingHandler(store, store, stubSalt{}, m, log),
		Heatmaps: handler.NewHeatmapHandler(store, store, store, handler.HeatmapLimits{}, m, log),
		Metrics:  m,
		Database: stubPinger{},
		Cache:    cache,
	}
	return api.NewServer(deps, cfg, log, done).Router()
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(w, req)
	return w
}

func TestRoutesRegistered(t *testing.T) {
	h := newTestServer(t, nil)

	tests := []struct {
		method string
		path   string
		body   string
		code   int
	}{
		{http.MethodGet, "/config?site_id=TR-1234-A", "", http.StatusOK},
		{http.MethodPost, "/track", `{"site_id":"TR-1234-A","url":"https://x/"}`, http.StatusCreated},
		{http.MethodPost, "/events", `{"site_id":"TR-1234-A","event_name":"heartbeat"}`, http.StatusCreated},
		{http.MethodPost, "/goals", `{"site_id":"TR-1234-A","goal_name":"signup"}`, http.StatusCreated},
		{http.MethodPost, "/heatmap", `{"site_id":"TR-1234-A","url":"https://x/"}`, http.StatusCreated},
		{http.MethodGet, "/heatmap/stats?site_id=TR-1234-A&url=https://x/", "", http.StatusOK},
		{http.MethodGet, "/heatmap/urls?site_id=TR-1234-A", "", http.StatusOK},
		{http.MethodGet, "/heatmap/render?site_id=TR-1234-A&url=https://x/&width=10&height=10", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodGet, "/health", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := serve(h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}
}

func TestHeatmapReadsAreRateLimited(t *testing.T) {
	h := newTestServerFromYAML(t, nil, "rate_limit:\n  requests_per_second: 1\n  burst: 2\n")

	paths := []string{
		"/heatmap/render?site_id=TR-1234-A&url=https://x/&width=10&height=10",
		"/heatmap/stats?site_id=TR-1234-A&url=https://x/",
		"/heatmap/urls?site_id=TR-1234-A",
	}
	for _, path := range paths[:2] {
		require.Equal(t, http.StatusOK, serve(h, http.MethodGet, path, "").Code)
	}
	for _, path := range paths {
		w := serve(h, http.MethodGet, path, "")
		assert.Equal(t, http.StatusTooManyRequests, w.Code, path)
	}
}

func TestMetricsCountRequests(t *testing.T) {
	h := newTestServer(t, nil)

	serve(h, http.MethodGet, "/config?site_id=TR-1234-A", "")
	w := serve(h, http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `spectre_http_requests_total{route="/config",status="200"} 1`)
}

func TestHealth_CacheFailureDegrades(t *testing.T) {
	h := newTestServer(t, stubPinger{err: errors.New("connection refused")})

	w := serve(h, http.MethodGet, "/health", "")

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
}
