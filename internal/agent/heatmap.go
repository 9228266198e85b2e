package agent

import (
	"strings"
	"time"

	"github.com/jonesrussell/north-cloud/spectre/internal/domain"
)

// Heatmap collection defaults.
const (
	DefaultHeatmapBatchSize     = 5
	DefaultHeatmapFlushInterval = 5 * time.Second
	DefaultMoveThrottle         = 200 * time.Millisecond
	DefaultMovementCap          = 50
)

// HeatmapCollector buffers clicks, scroll depths and throttled movements
// between flushes. A disabled collector ignores everything.
type HeatmapCollector struct {
	enabled     bool
	batchSize   int
	throttle    time.Duration
	movementCap int

	clicks    []domain.ClickSample
	scrolls   []domain.ScrollSample
	movements []domain.MoveSample

	lastMove   time.Time
	lastScroll time.Time
	maxDepth   int
}

// NewHeatmapCollector creates a collector. enabled is the once-per-page
// sampling decision.
func NewHeatmapCollector(enabled bool, batchSize, movementCap int, throttle time.Duration) *HeatmapCollector {
	return &HeatmapCollector{
		enabled:     enabled,
		batchSize:   batchSize,
		throttle:    throttle,
		movementCap: movementCap,
	}
}

// Enabled reports the sampling decision.
func (c *HeatmapCollector) Enabled() bool {
	return c.enabled
}

// Click buffers a click and reports whether the batch size was reached.
func (c *HeatmapCollector) Click(x, y int, target *Element, at time.Time) bool {
	if !c.enabled {
		return false
	}

	sample := domain.ClickSample{X: x, Y: y, Timestamp: at}
	if target != nil {
		sample.Element = target.Tag
		sample.ElementID = target.ID
		sample.ElementClass = strings.Join(target.Classes, " ")
	}
	c.clicks = append(c.clicks, sample)
	return len(c.clicks) >= c.batchSize
}

// Move buffers at most one sample per throttle window, up to the
// per-flush cap.
func (c *HeatmapCollector) Move(x, y int, at time.Time) {
	if !c.enabled || len(c.movements) >= c.movementCap {
		return
	}
	if !c.lastMove.IsZero() && at.Sub(c.lastMove) <= c.throttle {
		return
	}
	c.lastMove = at
	c.movements = append(c.movements, domain.MoveSample{X: x, Y: y, Timestamp: at})
}

// Scroll buffers a depth when it exceeds the deepest seen so far, at most
// once per throttle window.
func (c *HeatmapCollector) Scroll(depth int, at time.Time) {
	if !c.enabled || depth <= c.maxDepth {
		return
	}
	if !c.lastScroll.IsZero() && at.Sub(c.lastScroll) <= c.throttle {
		return
	}
	c.lastScroll = at
	c.maxDepth = depth
	c.scrolls = append(c.scrolls, domain.ScrollSample{Depth: depth, Timestamp: at})
}

// Drain moves the buffered samples into batch and clears the buffers. It
// returns false, leaving batch untouched, when nothing is buffered.
func (c *HeatmapCollector) Drain(batch *domain.HeatmapBatch) bool {
	if !c.enabled || len(c.clicks)+len(c.scrolls)+len(c.movements) == 0 {
		return false
	}

	batch.Clicks = orEmpty(c.clicks)
	batch.Scrolls = orEmpty(c.scrolls)
	batch.Movements = orEmpty(c.movements)
	c.clicks, c.scrolls, c.movements = nil, nil, nil
	return true
}

// ResetPage forgets the scroll high-water mark after an in-page navigation.
func (c *HeatmapCollector) ResetPage() {
	c.maxDepth = 0
	c.lastScroll = time.Time{}
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
