package agent_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jonesrussell/north-cloud/spectre/internal/agent"
	"github.com/jonesrussell/north-cloud/spectre/internal/domain"
	"github.com/stretchr/testify/require"
)

const testSiteID = "TR-1234-A"

var testEpoch = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

// fakeClock fires timers only when advanced.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock *fakeClock
	at    time.Time
	f     func()
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: testEpoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) agent.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	timer := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, timer)
	return timer
}

func (tm *fakeTimer) Stop() bool {
	c := tm.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, other := range c.timers {
		if other == tm {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return true
		}
	}
	return false
}

// Advance moves time forward by d, firing due timers in deadline order.
// afterFire runs after each callback, outside the clock lock.
func (c *fakeClock) Advance(d time.Duration, afterFire func()) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		sort.SliceStable(c.timers, func(i, j int) bool { return c.timers[i].at.Before(c.timers[j].at) })
		if len(c.timers) == 0 || c.timers[0].at.After(target) {
			c.now = target
			c.mu.Unlock()
			return
		}
		next := c.timers[0]
		c.timers = c.timers[1:]
		c.now = next.at
		c.mu.Unlock()

		next.f()
		if afterFire != nil {
			afterFire()
		}
	}
}

// collector is an in-memory stand-in for the collector API.
type collector struct {
	server     *httptest.Server
	mu         sync.Mutex
	bodies     map[string][]json.RawMessage
	config     domain.RemoteConfig
	configCode int
	requestIDs []string
}

func newCollector(t *testing.T, cfg domain.RemoteConfig) *collector {
	t.Helper()

	c := &collector{
		bodies:     make(map[string][]json.RawMessage),
		config:     cfg,
		configCode: http.StatusOK,
	}
	c.server = httptest.NewServer(http.HandlerFunc(c.serve))
	t.Cleanup(c.server.Close)
	return c
}

func (c *collector) serve(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet && r.URL.Path == "/config" {
		c.mu.Lock()
		code := c.configCode
		c.mu.Unlock()
		if code != http.StatusOK {
			http.Error(w, `{"error":"unavailable"}`, code)
			return
		}
		_ = json.NewEncoder(w).Encode(c.config)
		return
	}

	body, _ := io.ReadAll(r.Body)

	c.mu.Lock()
	c.bodies[r.URL.Path] = append(c.bodies[r.URL.Path], body)
	c.requestIDs = append(c.requestIDs, r.Header.Get("X-Request-ID"))
	c.mu.Unlock()

	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write([]byte(`{"message":"ok"}`))
}

func (c *collector) count(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bodies[path])
}

func decodeAll[T any](t *testing.T, c *collector, path string) []T {
	t.Helper()

	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]T, 0, len(c.bodies[path]))
	for _, raw := range c.bodies[path] {
		var v T
		require.NoError(t, json.Unmarshal(raw, &v))
		out = append(out, v)
	}
	return out
}

// testPage builds a small document:
//
//	body
//	  button#cta-1.btn.btn-success > span "Sign up"
//	  a[href=/pricing?plan=pro] "Pricing"
//	  div.card (cursor: pointer)
//	  form > input#email
func testPage() (agent.Page, map[string]*agent.Element) {
	span := &agent.Element{Tag: "span", Text: "Sign up"}
	button := &agent.Element{Tag: "button", ID: "cta-1", Classes: []string{"btn", "btn-success"}, Cursor: "pointer"}
	button.Append(span)
	link := &agent.Element{Tag: "a", Href: "https://shop.example/pricing?plan=pro", Text: "Pricing", Cursor: "pointer"}
	card := &agent.Element{Tag: "div", Classes: []string{"card"}, Cursor: "pointer"}
	email := &agent.Element{Tag: "input", ID: "email"}
	form := agent.NewElement("form").Append(email)

	body := agent.NewElement("body").Append(button, link, card, form)
	html := agent.NewElement("html").Append(body)

	page := agent.Page{
		URL:            "https://shop.example/?utm_source=newsletter&utm_campaign=fall",
		Title:          "Shop",
		Referrer:       "https://www.google.com/",
		ViewportWidth:  1280,
		ViewportHeight: 800,
		LoadTime:       850 * time.Millisecond,
		Document:       html,
	}
	elements := map[string]*agent.Element{
		"span":   span,
		"button": button,
		"link":   link,
		"card":   card,
		"email":  email,
		"body":   body,
	}
	return page, elements
}

func testFingerprint() agent.Fingerprint {
	return agent.Fingerprint{
		UserAgent:    "Mozilla/5.0 (X11; Linux x86_64)",
		Language:     "en-CA",
		ScreenWidth:  1920,
		ScreenHeight: 1080,
		Timezone:     "America/Toronto",
	}
}

func syncTracker(t *testing.T, tr *agent.Tracker) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, tr.Sync(ctx))
}
