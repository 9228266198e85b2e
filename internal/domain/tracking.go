package domain

import "time"

// Device classes derived from the viewport width.
const (
	DeviceMobile  = "Mobile"
	DeviceTablet  = "Tablet"
	DeviceDesktop = "Desktop"
)

// Breakpoints for DeviceForWidth.
const (
	mobileMaxWidth = 768
	tabletMaxWidth = 1024
)

// DeviceForWidth classifies a viewport width.
func DeviceForWidth(width int) string {
	switch {
	case width < mobileMaxWidth:
		return DeviceMobile
	case width < tabletMaxWidth:
		return DeviceTablet
	default:
		return DeviceDesktop
	}
}

// PageView is the POST /track body.
type PageView struct {
	SiteID         string `json:"site_id"`
	SessionID      string `json:"session_id"`
	URL            string `json:"url"`
	PageTitle      string `json:"page_title,omitempty"`
	Referrer       string `json:"referrer"`
	Device         string `json:"device"`
	PageLoadTime   *int   `json:"page_load_time,omitempty"`
	ViewportWidth  int    `json:"viewport_width"`
	ViewportHeight int    `json:"viewport_height"`
	IsBot          bool   `json:"is_bot"`
	UTMSource      string `json:"utm_source,omitempty"`
	UTMMedium      string `json:"utm_medium,omitempty"`
	UTMCampaign    string `json:"utm_campaign,omitempty"`
	UTMTerm        string `json:"utm_term,omitempty"`
	UTMContent     string `json:"utm_content,omitempty"`
}

// Event is the POST /events body. Behavioral signals (rage_click,
// dead_click, form_abandonment, performance_metric) and heartbeats are events.
type Event struct {
	SiteID    string         `json:"site_id"`
	SessionID string         `json:"session_id"`
	Name      string         `json:"event_name"`
	Category  string         `json:"event_category"`
	Label     string         `json:"event_label,omitempty"`
	Value     float64        `json:"event_value"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	URL       string         `json:"url"`
	PageTitle string         `json:"page_title,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Behavioral signal names and categories.
const (
	SignalRageClick       = "rage_click"
	SignalDeadClick       = "dead_click"
	SignalFormAbandonment = "form_abandonment"
	SignalPerformance     = "performance_metric"
	SignalHeartbeat       = "heartbeat"

	CategoryFrustration = "frustration"
	CategoryUIError     = "ui_error"
	CategoryBehavior    = "behavior"
	CategoryPerformance = "performance"
	CategorySystem      = "system"
	CategoryGeneral     = "general"
)

// EventCustom labels every event that is not a behavioral signal.
const EventCustom = "custom"

// EventKind returns name if it is a behavioral signal and EventCustom
// otherwise. Event names come from clients, so the result is the bounded
// form to use wherever the set of values must stay small.
func EventKind(name string) string {
	switch name {
	case SignalRageClick, SignalDeadClick, SignalFormAbandonment, SignalPerformance, SignalHeartbeat:
		return name
	default:
		return EventCustom
	}
}
