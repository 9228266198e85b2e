package domain

import "time"

// Interaction types stored in heatmap_data.interaction_type.
const (
	InteractionClick    = "click"
	InteractionScroll   = "scroll"
	InteractionMovement = "movement"
	InteractionAll      = "all"
)

// ValidInteractionType reports whether t is a stats filter value.
func ValidInteractionType(t string) bool {
	switch t {
	case InteractionClick, InteractionScroll, InteractionMovement, InteractionAll:
		return true
	default:
		return false
	}
}

// ClickSample is one buffered click. Element carries the tag name.
type ClickSample struct {
	X            int       `json:"x"`
	Y            int       `json:"y"`
	Element      string    `json:"element"`
	ElementID    string    `json:"elementId,omitempty"`
	ElementClass string    `json:"elementClass,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// ScrollSample is one buffered scroll depth, in pixels from the top.
type ScrollSample struct {
	Depth     int       `json:"depth"`
	Timestamp time.Time `json:"timestamp"`
}

// MoveSample is one throttled pointer position.
type MoveSample struct {
	X         int       `json:"x"`
	Y         int       `json:"y"`
	Timestamp time.Time `json:"timestamp"`
}

// HeatmapBatch is the POST /heatmap body.
type HeatmapBatch struct {
	SiteID         string         `json:"site_id"`
	SessionID      string         `json:"session_id"`
	URL            string         `json:"url"`
	PageTitle      string         `json:"page_title,omitempty"`
	ViewportWidth  int            `json:"viewport_width"`
	ViewportHeight int            `json:"viewport_height"`
	Clicks         []ClickSample  `json:"clicks"`
	Scrolls        []ScrollSample `json:"scrolls"`
	Movements      []MoveSample   `json:"movements"`
}

// Empty reports whether the batch carries no samples.
func (b *HeatmapBatch) Empty() bool {
	return len(b.Clicks) == 0 && len(b.Scrolls) == 0 && len(b.Movements) == 0
}

// HeatmapRow is one persisted interaction.
type HeatmapRow struct {
	SiteID          string    `db:"site_id"`
	SessionID       string    `db:"session_id"`
	URL             string    `db:"url"`
	PageTitle       *string   `db:"page_title"`
	InteractionType string    `db:"interaction_type"`
	X               *int      `db:"x_position"`
	Y               *int      `db:"y_position"`
	ScrollDepth     *int      `db:"scroll_depth"`
	ViewportWidth   int       `db:"viewport_width"`
	ViewportHeight  int       `db:"viewport_height"`
	ElementTag      *string   `db:"element_tag"`
	ElementID       *string   `db:"element_id"`
	ElementClass    *string   `db:"element_class"`
	CreatedAt       time.Time `db:"created_at"`
}

// RowLimits caps how many samples of each type one batch may store. A
// non-positive limit keeps all samples of that type.
type RowLimits struct {
	Clicks    int
	Scrolls   int
	Movements int
}

// Rows flattens a batch into storage rows, keeping at most the first
// limits samples of each type.
func (b *HeatmapBatch) Rows(limits RowLimits, now time.Time) []HeatmapRow {
	clicks := capped(b.Clicks, limits.Clicks)
	scrolls := capped(b.Scrolls, limits.Scrolls)
	movements := capped(b.Movements, limits.Movements)

	rows := make([]HeatmapRow, 0, len(clicks)+len(scrolls)+len(movements))
	base := HeatmapRow{
		SiteID:         b.SiteID,
		SessionID:      b.SessionID,
		URL:            b.URL,
		PageTitle:      optional(b.PageTitle),
		ViewportWidth:  b.ViewportWidth,
		ViewportHeight: b.ViewportHeight,
		CreatedAt:      now,
	}

	for _, c := range clicks {
		row := base
		row.InteractionType = InteractionClick
		row.X, row.Y = intPtr(c.X), intPtr(c.Y)
		row.ElementTag = optional(c.Element)
		row.ElementID = optional(c.ElementID)
		row.ElementClass = optional(c.ElementClass)
		rows = append(rows, row)
	}
	for _, s := range scrolls {
		row := base
		row.InteractionType = InteractionScroll
		row.ScrollDepth = intPtr(s.Depth)
		rows = append(rows, row)
	}
	for _, m := range movements {
		row := base
		row.InteractionType = InteractionMovement
		row.X, row.Y = intPtr(m.X), intPtr(m.Y)
		rows = append(rows, row)
	}
	return rows
}

// HeatmapPoint is one point in the GET /heatmap/stats response.
type HeatmapPoint struct {
	X              int       `json:"x"`
	Y              int       `json:"y"`
	ScrollDepth    int       `json:"scroll_depth"`
	ViewportWidth  int       `json:"viewport_width"`
	ViewportHeight int       `json:"viewport_height"`
	ElementTag     *string   `json:"element_tag"`
	ElementID      *string   `json:"element_id"`
	ElementClass   *string   `json:"element_class"`
	Timestamp      time.Time `json:"timestamp"`
}

// HeatmapStats groups points by interaction type.
type HeatmapStats struct {
	Clicks    []HeatmapPoint `json:"clicks"`
	Scrolls   []HeatmapPoint `json:"scrolls"`
	Movements []HeatmapPoint `json:"movements"`
}

// NewHeatmapStats returns stats with non-nil slices so they encode as [].
func NewHeatmapStats() *HeatmapStats {
	return &HeatmapStats{
		Clicks:    []HeatmapPoint{},
		Scrolls:   []HeatmapPoint{},
		Movements: []HeatmapPoint{},
	}
}

// Add files a point under its interaction type. Unknown types are ignored.
func (s *HeatmapStats) Add(interactionType string, p HeatmapPoint) {
	switch interactionType {
	case InteractionClick:
		s.Clicks = append(s.Clicks, p)
	case InteractionScroll:
		s.Scrolls = append(s.Scrolls, p)
	case InteractionMovement:
		s.Movements = append(s.Movements, p)
	}
}

// HeatmapURL is one entry of GET /heatmap/urls.
type HeatmapURL struct {
	URL   string `db:"url"               json:"url"`
	Title string `db:"title"             json:"title"`
	Count int    `db:"interaction_count" json:"count"`
}

func capped[T any](samples []T, limit int) []T {
	if limit > 0 && len(samples) > limit {
		return samples[:limit]
	}
	return samples
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func intPtr(v int) *int {
	return &v
}
