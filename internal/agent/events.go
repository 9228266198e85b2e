package agent

// Event is a host-page notification delivered to the tracker loop with
// Tracker.Dispatch.
type Event interface {
	apply(t *Tracker)
}

// Click is a click on Target at page coordinates X, Y.
type Click struct {
	Target *Element
	X, Y   int
}

// MouseMove is a pointer position in page coordinates.
type MouseMove struct {
	X, Y int
}

// Scroll reports the bottom edge of the viewport in page pixels.
type Scroll struct {
	Depth int
}

// FocusIn is focus entering Target.
type FocusIn struct {
	Target *Element
}

// Submit is a form submission anywhere in the document.
type Submit struct{}

// Mutation is any subtree, child-list or attribute change in the document.
type Mutation struct{}

// Navigate is an in-page URL change (history API navigation).
type Navigate struct {
	URL   string
	Title string
}

// VisibilityChange is the document becoming visible or hidden.
type VisibilityChange struct {
	Visible bool
}

func (e Click) apply(t *Tracker)            { t.onClick(e) }
func (e MouseMove) apply(t *Tracker)        { t.heatmap.Move(e.X, e.Y, t.clock.Now()) }
func (e Scroll) apply(t *Tracker)           { t.heatmap.Scroll(e.Depth, t.clock.Now()) }
func (e FocusIn) apply(t *Tracker)          { t.state.observeFocus(e.Target) }
func (Submit) apply(t *Tracker)             { t.state.observeSubmit() }
func (Mutation) apply(t *Tracker)           { t.state.observeMutation() }
func (e Navigate) apply(t *Tracker)         { t.onNavigate(e) }
func (e VisibilityChange) apply(t *Tracker) { t.page.Hidden = !e.Visible }
func (e PerformanceEntry) apply(t *Tracker) { t.onPerformance(e) }

// Loop-internal messages.
type (
	deadCheckDue  struct{ id uint64 }
	flushTick     struct{}
	heartbeatTick struct{}
	barrier       struct{ done chan struct{} }
	unload        struct{}

	customEvent struct{ signal Signal }
	customGoal  struct {
		name  string
		value float64
	}
	pageViewRequest struct{}
)

func (m deadCheckDue) apply(t *Tracker)  { t.onDeadCheck(m.id) }
func (flushTick) apply(t *Tracker)       { t.onFlushTick() }
func (heartbeatTick) apply(t *Tracker)   { t.onHeartbeat() }
func (m barrier) apply(*Tracker)         { close(m.done) }
func (unload) apply(t *Tracker)          { t.onUnload() }
func (m customEvent) apply(t *Tracker)   { t.sendSignal(m.signal) }
func (m customGoal) apply(t *Tracker)    { t.sendGoal(m.name, m.value, nil) }
func (pageViewRequest) apply(t *Tracker) { t.sendPageView() }
