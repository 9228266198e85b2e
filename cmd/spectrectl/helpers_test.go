package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/jonesrussell/north-cloud/spectre/internal/domain"
)

// fakeCollector answers /config with a configurable salt and records
// every POST body by path.
type fakeCollector struct {
	mu     sync.Mutex
	salt   string
	goals  []domain.GoalRule
	bodies map[string][][]byte
	server *httptest.Server
}

func newFakeCollector(t *testing.T) *fakeCollector {
	t.Helper()
	c := &fakeCollector{salt: "salt-1", bodies: map[string][][]byte{}}
	c.server = httptest.NewServer(http.HandlerFunc(c.serve))
	t.Cleanup(c.server.Close)
	return c
}

func (c *fakeCollector) serve(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r.Method == http.MethodGet && r.URL.Path == "/config" {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(domain.RemoteConfig{
			SiteID:    r.URL.Query().Get("site_id"),
			DailySalt: c.salt,
			Goals:     c.goals,
		})
		return
	}

	body, _ := io.ReadAll(r.Body)
	c.bodies[r.URL.Path] = append(c.bodies[r.URL.Path], body)
	w.WriteHeader(http.StatusCreated)
}

func (c *fakeCollector) setSalt(salt string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.salt = salt
}

func (c *fakeCollector) count(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bodies[path])
}

func decodeBodies[T any](t *testing.T, c *fakeCollector, path string) []T {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]T, 0, len(c.bodies[path]))
	for _, b := range c.bodies[path] {
		var v T
		if err := json.Unmarshal(b, &v); err != nil {
			t.Fatalf("decode %s body: %v", path, err)
		}
		out = append(out, v)
	}
	return out
}
