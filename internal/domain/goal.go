package domain

import "time"

// Goal rule match types.
const (
	MatchCSSClass     = "css_class"
	MatchCSSID        = "css_id"
	MatchTextContains = "text_contains"
	MatchHrefContains = "href_contains"
)

// GoalRule is a server-defined DOM predicate. The wire names follow the
// tracker contract: type, value, event.
type GoalRule struct {
	ID           int64   `db:"id"            json:"id"`
	SiteID       string  `db:"site_id"       json:"-"`
	Name         string  `db:"name"          json:"name"`
	MatchType    string  `db:"match_type"    json:"type"`
	MatchValue   string  `db:"match_value"   json:"value"`
	EventType    string  `db:"event_type"    json:"event"`
	DefaultValue float64 `db:"default_value" json:"default_value"`
	Active       bool    `db:"active"        json:"-"`
}

// GoalConversion is the POST /goals body.
type GoalConversion struct {
	SiteID    string         `json:"site_id"`
	SessionID string         `json:"session_id"`
	Name      string         `json:"goal_name"`
	Value     float64        `json:"goal_value"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	URL       string         `json:"url"`
	PageTitle string         `json:"page_title,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
