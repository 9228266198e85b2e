// Package domain holds the wire and storage types shared by the collector
// and the in-page agent.
package domain

import "time"

// Site is a tracked property. SiteID is the public key embedded by the
// tracker snippet (for example "TR-1234-A").
type Site struct {
	ID           int64      `db:"id"             json:"-"`
	SiteID       string     `db:"site_id"        json:"site_id"`
	Domain       string     `db:"domain"         json:"domain"`
	LastActiveAt *time.Time `db:"last_active_at" json:"last_active_at,omitempty"`
}

// Session is the cookieless visitor session kept per site.
type Session struct {
	SiteID       string    `db:"site_id"       json:"site_id"`
	SessionID    string    `db:"session_id"    json:"session_id"`
	CreatedAt    time.Time `db:"created_at"    json:"created_at"`
	LastActivity time.Time `db:"last_activity" json:"last_activity"`
	PageViews    int       `db:"page_views"    json:"page_view_count"`
	IsBot        bool      `db:"is_bot"        json:"is_bot"`
	Device       string    `db:"device"        json:"device"`
}

// RemoteConfig is the GET /config response consumed by the agent.
type RemoteConfig struct {
	SiteID    string     `json:"site_id"`
	DailySalt string     `json:"daily_salt"`
	Goals     []GoalRule `json:"goals"`
}
