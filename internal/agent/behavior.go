package agent

import (
	"math"
	"time"

	"github.com/jonesrussell/north-cloud/spectre/internal/domain"
)

// Detector thresholds.
const (
	RageClickThreshold = 3
	RageClickWindow    = 1000 * time.Millisecond
	DeadClickDelay     = 500 * time.Millisecond
	clsReportScale     = 1000
)

// Performance entry types.
const (
	EntryLargestContentfulPaint = "largest-contentful-paint"
	EntryFirstInput             = "first-input"
	EntryLayoutShift            = "layout-shift"
)

// Signal is one behavioral event to post to /events.
type Signal struct {
	Name     string
	Category string
	Label    string
	Value    float64
	Metadata map[string]any
}

type clickState struct {
	target *Element
	at     time.Time
	count  int
}

type deadCheck struct {
	target *Element
}

// interactionState is the per-page-load state shared by the detectors. It
// is owned by the tracker loop and never touched from another goroutine.
type interactionState struct {
	lastClick    clickState
	lastFocused  *Element
	formReported bool

	pending   map[uint64]deadCheck
	nextCheck uint64

	lcpReported bool
	fidReported bool
	clsScore    float64
	clsSeen     bool
	clsReported bool
}

func newInteractionState() *interactionState {
	return &interactionState{pending: make(map[uint64]deadCheck)}
}

// observeClick runs rage detection. The window is anchored at the first
// click of a burst and the counter is not reset after firing, so a
// sustained burst restarts once the window passes and can fire again.
func (s *interactionState) observeClick(target *Element, at time.Time) (Signal, bool) {
	if s.lastClick.target == target && at.Sub(s.lastClick.at) < RageClickWindow {
		s.lastClick.count++
		if s.lastClick.count == RageClickThreshold {
			return Signal{
				Name:     domain.SignalRageClick,
				Category: domain.CategoryFrustration,
				Label:    Selector(target),
				Metadata: map[string]any{"count": s.lastClick.count},
			}, true
		}
		return Signal{}, false
	}

	s.lastClick = clickState{target: target, at: at, count: 1}
	return Signal{}, false
}

// scheduleDeadCheck registers a pending dead-click check for target and
// returns its id. Non-interactive filtering happens at the deadline.
func (s *interactionState) scheduleDeadCheck(target *Element) uint64 {
	s.nextCheck++
	s.pending[s.nextCheck] = deadCheck{target: target}
	return s.nextCheck
}

// observeMutation resolves every pending dead-click check: the page
// reacted.
func (s *interactionState) observeMutation() {
	clear(s.pending)
}

// resolveDeadCheck runs at the deadline of check id.
func (s *interactionState) resolveDeadCheck(id uint64) (Signal, bool) {
	check, ok := s.pending[id]
	if !ok {
		return Signal{}, false
	}
	delete(s.pending, id)

	target := check.target
	if isInteractive(target) || s.lastClick.count >= RageClickThreshold || target.Cursor != "pointer" {
		return Signal{}, false
	}

	return Signal{
		Name:     domain.SignalDeadClick,
		Category: domain.CategoryUIError,
		Label:    Selector(target),
	}, true
}

func isInteractive(el *Element) bool {
	return el.Is("a", "button", "input", "select", "textarea") || el.Closest("a", "button") != nil
}

// observeFocus tracks the last focused text field.
func (s *interactionState) observeFocus(target *Element) {
	if target != nil && target.Is("input", "textarea") {
		s.lastFocused = target
	}
}

func (s *interactionState) observeSubmit() {
	s.lastFocused = nil
}

// formAbandonment fires at most once per page life when a field is still
// tracked at unload.
func (s *interactionState) formAbandonment() (Signal, bool) {
	if s.lastFocused == nil || s.formReported {
		return Signal{}, false
	}
	s.formReported = true

	return Signal{
		Name:     domain.SignalFormAbandonment,
		Category: domain.CategoryBehavior,
		Label:    Selector(s.lastFocused),
	}, true
}

// PerformanceEntry mirrors the browser's performance timeline entry.
// Times are milliseconds since navigation start.
type PerformanceEntry struct {
	Type            string  `json:"type"`
	StartTime       float64 `json:"start_time"`
	ProcessingStart float64 `json:"processing_start,omitempty"`
	Value           float64 `json:"value,omitempty"`
	HadRecentInput  bool    `json:"had_recent_input,omitempty"`
}

// observePerformance reports LCP and FID once each and accumulates CLS.
func (s *interactionState) observePerformance(e PerformanceEntry) (Signal, bool) {
	switch e.Type {
	case EntryLargestContentfulPaint:
		if s.lcpReported {
			return Signal{}, false
		}
		s.lcpReported = true
		return performanceSignal("LCP", e.StartTime), true
	case EntryFirstInput:
		if s.fidReported {
			return Signal{}, false
		}
		s.fidReported = true
		return performanceSignal("FID", e.ProcessingStart-e.StartTime), true
	case EntryLayoutShift:
		if !e.HadRecentInput {
			s.clsScore += e.Value
			s.clsSeen = true
		}
	}
	return Signal{}, false
}

// cumulativeLayoutShift reports the accumulated score once, scaled by 1000.
func (s *interactionState) cumulativeLayoutShift() (Signal, bool) {
	if !s.clsSeen || s.clsReported {
		return Signal{}, false
	}
	s.clsReported = true
	return performanceSignal("CLS", s.clsScore*clsReportScale), true
}

func performanceSignal(label string, value float64) Signal {
	return Signal{
		Name:     domain.SignalPerformance,
		Category: domain.CategoryPerformance,
		Label:    label,
		Value:    math.Round(value),
	}
}
