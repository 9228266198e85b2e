package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonesrussell/north-cloud/spectre/internal/domain"
	"github.com/jonesrussell/north-cloud/spectre/internal/heatmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorClient_Stats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/heatmap/stats", r.URL.Path)
		assert.Equal(t, "TR-1234-A", r.URL.Query().Get("site_id"))
		assert.Equal(t, "https://shop.example/", r.URL.Query().Get("url"))
		assert.Equal(t, "click", r.URL.Query().Get("type"))

		stats := domain.NewHeatmapStats()
		stats.Add(domain.InteractionClick, domain.HeatmapPoint{X: 10, Y: 20})
		_ = json.NewEncoder(w).Encode(stats)
	}))
	defer srv.Close()

	stats, err := NewCollectorClient(srv.URL).Stats(context.Background(), "TR-1234-A", "https://shop.example/", "click")
	require.NoError(t, err)
	require.Len(t, stats.Clicks, 1)
	assert.Equal(t, 20, stats.Clicks[0].Y)
	assert.Empty(t, stats.Movements)
}

func TestCollectorClient_URLs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"urls":[{"url":"https://shop.example/","title":"Home","count":42}]}`))
	}))
	defer srv.Close()

	urls, err := NewCollectorClient(srv.URL).URLs(context.Background(), "TR-1234-A")
	require.NoError(t, err)
	assert.Equal(t, []domain.HeatmapURL{{URL: "https://shop.example/", Title: "Home", Count: 42}}, urls)
}

func TestCollectorClient_ErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"unknown site"}`))
	}))
	defer srv.Close()

	_, err := NewCollectorClient(srv.URL).URLs(context.Background(), "nope")
	require.ErrorIs(t, err, errCollector)
	assert.Contains(t, err.Error(), "unknown site")
}

func TestReadStatsAndWritePNG(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "stats.json")
	require.NoError(t, os.WriteFile(input, []byte(`{"clicks":[{"x":5,"y":5}],"scrolls":[],"movements":[]}`), 0o600))

	stats, err := readStats(input)
	require.NoError(t, err)
	require.Len(t, stats.Clicks, 1)

	output := filepath.Join(dir, "out.png")
	require.NoError(t, writePNG(output, heatmap.Render(stats, domain.InteractionClick, 32, 16, false)))

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 16, img.Bounds().Dy())
}

func TestRenderURLTable(t *testing.T) {
	var buf bytes.Buffer
	renderURLTable(&buf, []domain.HeatmapURL{
		{URL: "https://shop.example/", Title: "Home", Count: 42},
		{URL: "https://shop.example/cart", Title: "Cart", Count: 7},
	})

	out := buf.String()
	assert.Contains(t, out, "https://shop.example/cart")
	assert.Contains(t, out, "42")
	assert.Contains(t, out, "INTERACTIONS")
}
