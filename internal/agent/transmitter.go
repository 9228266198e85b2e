package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonesrussell/north-cloud/spectre/internal/platform/logger"
)

const (
	defaultSendTimeout = 5 * time.Second
	requestIDHeader    = "X-Request-ID"
)

// Collector paths.
const (
	PathTrack   = "/track"
	PathEvents  = "/events"
	PathGoals   = "/goals"
	PathHeatmap = "/heatmap"
)

// TransmitStats counts sends by outcome.
type TransmitStats struct {
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
	Skipped int64 `json:"skipped"`
}

// Transmitter posts payloads fire-and-forget. Requests run on their own
// context so they outlive the page event that produced them. Failures are
// logged at warn level and dropped.
type Transmitter struct {
	endpoint   string
	httpClient *http.Client
	doNotTrack bool
	timeout    time.Duration
	logger     logger.Logger

	inflight sync.WaitGroup
	sent     atomic.Int64
	failed   atomic.Int64
	skipped  atomic.Int64
}

// NewTransmitter creates a Transmitter. With doNotTrack set every Send is
// a no-op.
func NewTransmitter(endpoint string, httpClient *http.Client, doNotTrack bool, log logger.Logger) *Transmitter {
	return &Transmitter{
		endpoint:   endpoint,
		httpClient: httpClient,
		doNotTrack: doNotTrack,
		timeout:    defaultSendTimeout,
		logger:     log,
	}
}

// Send serializes payload and POSTs it to path in the background.
func (t *Transmitter) Send(path string, payload any) {
	if t.doNotTrack {
		t.skipped.Add(1)
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		t.failed.Add(1)
		t.logger.Warn("Payload not serializable", logger.String("path", path), logger.Error(err))
		return
	}

	t.inflight.Add(1)
	go func() {
		defer t.inflight.Done()

		if postErr := t.post(path, body); postErr != nil {
			t.failed.Add(1)
			t.logger.Warn("Telemetry send failed", logger.String("path", path), logger.Error(postErr))
			return
		}
		t.sent.Add(1)
	}()
}

func (t *Transmitter) post(path string, body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(requestIDHeader, uuid.NewString())

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("post %s: unexpected status %d", path, resp.StatusCode)
	}
	return nil
}

// Wait blocks until in-flight sends finish or grace elapses. It reports
// whether everything finished.
func (t *Transmitter) Wait(grace time.Duration) bool {
	done := make(chan struct{})
	go func() {
		t.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(grace):
		return false
	}
}

// Stats returns a snapshot of send outcomes.
func (t *Transmitter) Stats() TransmitStats {
	return TransmitStats{
		Sent:    t.sent.Load(),
		Failed:  t.failed.Load(),
		Skipped: t.skipped.Load(),
	}
}
