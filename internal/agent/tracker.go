// Package agent is the in-page analytics tracker. A Tracker owns all page
// state on one goroutine and consumes host-page events from a bounded
// queue, so detectors, goal matching and heatmap buffering run without
// locks.
package agent

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonesrussell/north-cloud/spectre/internal/domain"
	"github.com/jonesrussell/north-cloud/spectre/internal/platform/logger"
)

// Tracker defaults.
const (
	DefaultSampleRate        = 1.0
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultUnloadGrace       = 2 * time.Second
	DefaultQueueSize         = 1024
)

var (
	// ErrMissingSiteID is returned by New without a site id.
	ErrMissingSiteID = errors.New("site id is required")
	// ErrMissingEndpoint is returned by New without a collector endpoint.
	ErrMissingEndpoint = errors.New("collector endpoint is required")

	botUserAgent = regexp.MustCompile(`(?i)bot|crawl|spider|googlebot`)
)

// Capabilities are the optional browser APIs available to the page.
type Capabilities struct {
	CryptoHash          bool `json:"crypto_hash"`
	PerformanceObserver bool `json:"performance_observer"`
}

// Page describes the document the tracker runs in.
type Page struct {
	URL            string        `json:"url"`
	Title          string        `json:"title"`
	Referrer       string        `json:"referrer"`
	ViewportWidth  int           `json:"viewport_width"`
	ViewportHeight int           `json:"viewport_height"`
	LoadTime       time.Duration `json:"load_time"`
	Hidden         bool          `json:"hidden"`
	Document       *Element      `json:"document"`
}

// Options configures a Tracker.
type Options struct {
	SiteID       string
	Endpoint     string
	Fingerprint  Fingerprint
	Capabilities Capabilities
	DoNotTrack   bool

	// HeatmapSampleRate is the probability that heatmap collection runs for
	// a page load. Zero selects DefaultSampleRate; a negative rate disables
	// collection.
	HeatmapSampleRate    float64
	HeatmapBatchSize     int
	HeatmapFlushInterval time.Duration
	MoveThrottle         time.Duration
	MovementCap          int

	HeartbeatInterval time.Duration
	ConfigTimeout     time.Duration
	UnloadGrace       time.Duration
	QueueSize         int

	Storage    Storage
	HTTPClient *http.Client
	Clock      Clock
	Random     func() float64
	Logger     logger.Logger
}

func (o *Options) setDefaults() {
	if o.HeatmapSampleRate == 0 {
		o.HeatmapSampleRate = DefaultSampleRate
	}
	if o.HeatmapBatchSize <= 0 {
		o.HeatmapBatchSize = DefaultHeatmapBatchSize
	}
	if o.HeatmapFlushInterval <= 0 {
		o.HeatmapFlushInterval = DefaultHeatmapFlushInterval
	}
	if o.MoveThrottle <= 0 {
		o.MoveThrottle = DefaultMoveThrottle
	}
	if o.MovementCap <= 0 {
		o.MovementCap = DefaultMovementCap
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if o.UnloadGrace <= 0 {
		o.UnloadGrace = DefaultUnloadGrace
	}
	if o.QueueSize <= 0 {
		o.QueueSize = DefaultQueueSize
	}
	if o.Storage == nil {
		o.Storage = NewMemoryStorage()
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{}
	}
	if o.Clock == nil {
		o.Clock = systemClock{}
	}
	if o.Random == nil {
		o.Random = rand.Float64
	}
	if o.Logger == nil {
		o.Logger = logger.NewNop()
	}
}

// Tracker is the analytics agent for one page load.
type Tracker struct {
	opts        Options
	clock       Clock
	logger      logger.Logger
	loader      *ConfigLoader
	sessions    *SessionIdentifier
	transmitter *Transmitter

	queue   chan Event
	done    chan struct{}
	dropped atomic.Int64

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool

	// Owned by the loop goroutine.
	page           Page
	sessionID      string
	config         RemoteConfig
	goals          *GoalMatcher
	state          *interactionState
	heatmap        *HeatmapCollector
	flushTimer     Timer
	heartbeatTimer Timer
}

// New creates a Tracker. Call Start to begin tracking.
func New(opts Options) (*Tracker, error) {
	if opts.SiteID == "" {
		return nil, ErrMissingSiteID
	}
	if opts.Endpoint == "" {
		return nil, ErrMissingEndpoint
	}
	opts.setDefaults()

	log := opts.Logger.With(logger.String("site_id", opts.SiteID))

	return &Tracker{
		opts:        opts,
		clock:       opts.Clock,
		logger:      log,
		loader:      NewConfigLoader(opts.Endpoint, opts.HTTPClient, opts.ConfigTimeout, log),
		sessions:    NewSessionIdentifier(opts.Storage, opts.Capabilities.CryptoHash, opts.Clock.Now, log),
		transmitter: NewTransmitter(opts.Endpoint, opts.HTTPClient, opts.DoNotTrack, log),
		queue:       make(chan Event, opts.QueueSize),
		done:        make(chan struct{}),
		state:       newInteractionState(),
		goals:       NewGoalMatcher(nil),
		heatmap:     NewHeatmapCollector(false, opts.HeatmapBatchSize, opts.MovementCap, opts.MoveThrottle),
	}, nil
}

// Start loads the remote config, identifies the session, sends the page
// view and then serves events. It returns immediately; events dispatched
// before startup completes are queued. ctx bounds the startup work only.
func (t *Tracker) Start(ctx context.Context, page Page) {
	t.startOnce.Do(func() {
		t.page = page
		t.started.Store(true)
		go t.run(ctx)
	})
}

func (t *Tracker) run(ctx context.Context) {
	defer close(t.done)

	t.safely("startup", func() { t.boot(ctx) })

	for ev := range t.queue {
		t.safely("event", func() { ev.apply(t) })
		if _, ok := ev.(unload); ok {
			return
		}
	}
}

func (t *Tracker) boot(ctx context.Context) {
	t.config = t.loader.Load(ctx, t.opts.SiteID)
	t.sessionID = t.sessions.Identify(ctx, t.config.DailySalt, t.opts.Fingerprint)
	t.goals = NewGoalMatcher(t.config.Goals)

	sampled := !t.opts.DoNotTrack && t.opts.Random() < t.opts.HeatmapSampleRate
	t.heatmap = NewHeatmapCollector(sampled, t.opts.HeatmapBatchSize, t.opts.MovementCap, t.opts.MoveThrottle)

	t.logger.Info("Tracker active",
		logger.String("session_id", t.sessionID),
		logger.Bool("offline", t.config.Offline),
		logger.Bool("heatmap", sampled),
	)

	t.sendPageView()

	if sampled {
		t.flushTimer = t.clock.AfterFunc(t.opts.HeatmapFlushInterval, func() { t.post(flushTick{}) })
	}
	t.heartbeatTimer = t.clock.AfterFunc(t.opts.HeartbeatInterval, func() { t.post(heartbeatTick{}) })
}

// safely runs f, logging instead of propagating a panic so one bad event
// cannot stop the loop.
func (t *Tracker) safely(stage string, f func()) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("Tracker recovered from panic",
				logger.String("stage", stage),
				logger.Any("panic", r),
			)
		}
	}()
	f()
}

// Dispatch queues a host-page event without blocking. It returns false and
// counts a drop when the queue is full or the tracker has stopped.
func (t *Tracker) Dispatch(ev Event) bool {
	select {
	case <-t.done:
		return false
	default:
	}

	select {
	case t.queue <- ev:
		return true
	default:
		t.dropped.Add(1)
		return false
	}
}

// post queues a message, waiting for room. Used by timers and the public
// tracking calls, which must not be dropped.
func (t *Tracker) post(ev Event) {
	select {
	case t.queue <- ev:
	case <-t.done:
	}
}

// Dropped is the number of events Dispatch rejected.
func (t *Tracker) Dropped() int64 {
	return t.dropped.Load()
}

// Sync waits until every event queued before the call has been handled.
func (t *Tracker) Sync(ctx context.Context) error {
	if !t.started.Load() {
		return nil
	}

	b := barrier{done: make(chan struct{})}
	select {
	case t.queue <- b:
	case <-t.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sync tracker: %w", ctx.Err())
	}

	select {
	case <-b.done:
		return nil
	case <-t.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sync tracker: %w", ctx.Err())
	}
}

// Stop delivers the unload: pending form abandonment and CLS are reported
// and the heatmap buffers flushed. It then waits, up to the unload grace,
// for in-flight sends.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() {
		neverStarted := false
		t.startOnce.Do(func() {
			neverStarted = true
			close(t.done)
		})
		if neverStarted {
			return
		}

		t.post(unload{})
		<-t.done

		if !t.transmitter.Wait(t.opts.UnloadGrace) {
			t.logger.Warn("Unload grace elapsed with sends in flight")
		}
	})
}

// Stats returns a snapshot of transmitter outcomes.
func (t *Tracker) Stats() TransmitStats {
	return t.transmitter.Stats()
}

// TrackEvent sends a custom event through the tracker queue.
func (t *Tracker) TrackEvent(name, category, label string, value float64, metadata map[string]any) {
	if category == "" {
		category = domain.CategoryGeneral
	}
	t.post(customEvent{signal: Signal{Name: name, Category: category, Label: label, Value: value, Metadata: metadata}})
}

// TrackGoal sends a goal conversion outside the rule engine.
func (t *Tracker) TrackGoal(name string, value float64) {
	t.post(customGoal{name: name, value: value})
}

// TrackPageView sends a page view for the current URL.
func (t *Tracker) TrackPageView() {
	t.post(pageViewRequest{})
}

func (t *Tracker) onClick(e Click) {
	now := t.clock.Now()

	if e.Target != nil {
		for _, rule := range t.goals.Match(e.Target) {
			t.sendGoal(rule.Name, rule.DefaultValue, map[string]any{"rule_id": rule.ID})
		}
	}

	// The heatmap keeps the coordinates even without a resolved element.
	if t.heatmap.Click(e.X, e.Y, e.Target, now) {
		t.flushHeatmap()
	}

	if e.Target == nil {
		return
	}

	if sig, ok := t.state.observeClick(e.Target, now); ok {
		t.sendSignal(sig)
	}

	id := t.state.scheduleDeadCheck(e.Target)
	t.clock.AfterFunc(DeadClickDelay, func() { t.post(deadCheckDue{id: id}) })
}

func (t *Tracker) onDeadCheck(id uint64) {
	if sig, ok := t.state.resolveDeadCheck(id); ok {
		t.sendSignal(sig)
	}
}

func (t *Tracker) onPerformance(e PerformanceEntry) {
	if !t.opts.Capabilities.PerformanceObserver {
		return
	}
	if sig, ok := t.state.observePerformance(e); ok {
		t.sendSignal(sig)
	}
}

// onNavigate sends a page view when the URL actually changed. Buffered
// heatmap samples are flushed under the old URL first.
func (t *Tracker) onNavigate(e Navigate) {
	if e.URL == "" || e.URL == t.page.URL {
		return
	}

	t.flushHeatmap()
	t.state.observeMutation()
	t.heatmap.ResetPage()

	t.page.Referrer = t.page.URL
	t.page.URL = e.URL
	if e.Title != "" {
		t.page.Title = e.Title
	}
	t.page.LoadTime = 0
	t.sendPageView()
}

func (t *Tracker) onFlushTick() {
	t.flushHeatmap()
	t.flushTimer = t.clock.AfterFunc(t.opts.HeatmapFlushInterval, func() { t.post(flushTick{}) })
}

func (t *Tracker) onHeartbeat() {
	if !t.page.Hidden {
		t.sendSignal(Signal{
			Name:     domain.SignalHeartbeat,
			Category: domain.CategorySystem,
			Metadata: map[string]any{"type": "ping"},
		})
	}
	t.heartbeatTimer = t.clock.AfterFunc(t.opts.HeartbeatInterval, func() { t.post(heartbeatTick{}) })
}

func (t *Tracker) onUnload() {
	if t.flushTimer != nil {
		t.flushTimer.Stop()
	}
	if t.heartbeatTimer != nil {
		t.heartbeatTimer.Stop()
	}

	if sig, ok := t.state.formAbandonment(); ok {
		t.sendSignal(sig)
	}
	if t.opts.Capabilities.PerformanceObserver {
		if sig, ok := t.state.cumulativeLayoutShift(); ok {
			t.sendSignal(sig)
		}
	}
	t.flushHeatmap()
}

func (t *Tracker) flushHeatmap() {
	batch := domain.HeatmapBatch{
		SiteID:         t.opts.SiteID,
		SessionID:      t.sessionID,
		URL:            t.page.URL,
		PageTitle:      t.page.Title,
		ViewportWidth:  t.page.ViewportWidth,
		ViewportHeight: t.page.ViewportHeight,
	}
	if !t.heatmap.Drain(&batch) {
		return
	}
	t.transmitter.Send(PathHeatmap, batch)
}

func (t *Tracker) sendPageView() {
	pv := domain.PageView{
		SiteID:         t.opts.SiteID,
		SessionID:      t.sessionID,
		URL:            t.page.URL,
		PageTitle:      t.page.Title,
		Referrer:       t.page.Referrer,
		Device:         domain.DeviceForWidth(t.page.ViewportWidth),
		ViewportWidth:  t.page.ViewportWidth,
		ViewportHeight: t.page.ViewportHeight,
		IsBot:          botUserAgent.MatchString(t.opts.Fingerprint.UserAgent),
	}
	if t.page.LoadTime > 0 {
		ms := int(t.page.LoadTime.Milliseconds())
		pv.PageLoadTime = &ms
	}
	applyUTM(&pv)

	t.transmitter.Send(PathTrack, pv)
}

// applyUTM copies utm_* query parameters of the page URL.
func applyUTM(pv *domain.PageView) {
	u, err := url.Parse(pv.URL)
	if err != nil {
		return
	}
	q := u.Query()
	pv.UTMSource = q.Get("utm_source")
	pv.UTMMedium = q.Get("utm_medium")
	pv.UTMCampaign = q.Get("utm_campaign")
	pv.UTMTerm = q.Get("utm_term")
	pv.UTMContent = q.Get("utm_content")
}

func (t *Tracker) sendSignal(sig Signal) {
	t.transmitter.Send(PathEvents, domain.Event{
		SiteID:    t.opts.SiteID,
		SessionID: t.sessionID,
		Name:      sig.Name,
		Category:  sig.Category,
		Label:     sig.Label,
		Value:     sig.Value,
		Metadata:  sig.Metadata,
		URL:       t.page.URL,
		PageTitle: t.page.Title,
		Timestamp: t.clock.Now().UTC(),
	})
}

func (t *Tracker) sendGoal(name string, value float64, metadata map[string]any) {
	t.transmitter.Send(PathGoals, domain.GoalConversion{
		SiteID:    t.opts.SiteID,
		SessionID: t.sessionID,
		Name:      name,
		Value:     value,
		Metadata:  metadata,
		URL:       t.page.URL,
		PageTitle: t.page.Title,
		Timestamp: t.clock.Now().UTC(),
	})
}
