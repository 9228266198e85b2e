package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jonesrussell/north-cloud/spectre/internal/attribution"
	"github.com/jonesrussell/north-cloud/spectre/internal/domain"
	"github.com/jonesrussell/north-cloud/spectre/internal/metrics"
	"github.com/jonesrussell/north-cloud/spectre/internal/middleware"
	"github.com/jonesrussell/north-cloud/spectre/internal/platform/logger"
)

// maxPageLoadTimeMs bounds page_load_time; values outside 0..60000 are dropped.
const maxPageLoadTimeMs = 60000

// Recorder persists page views, events and goal conversions.
type Recorder interface {
	RecordPageView(ctx context.Context, pv *domain.PageView) error
	InsertEvent(ctx context.Context, ev *domain.Event) (int64, error)
	InsertGoal(ctx context.Context, g *domain.GoalConversion) (int64, error)
}

// SaltSource yields the current daily salt.
type SaltSource interface {
	Current() string
}

// TrackingHandler serves /config, /track, /events and /goals.
type TrackingHandler struct {
	sites    SiteLookup
	recorder Recorder
	salt     SaltSource
	metrics  *metrics.Collector
	logger   logger.Logger
}

// NewTrackingHandler creates a TrackingHandler.
func NewTrackingHandler(
	sites SiteLookup,
	recorder Recorder,
	salt SaltSource,
	m *metrics.Collector,
	log logger.Logger,
) *TrackingHandler {
	return &TrackingHandler{
		sites:    sites,
		recorder: recorder,
		salt:     salt,
		metrics:  m,
		logger:   log,
	}
}

// GetConfig returns the site's active goal rules and today's salt.
func (h *TrackingHandler) GetConfig(c *gin.Context) {
	siteID := c.Query("site_id")
	if !requireSite(c, h.sites, h.metrics, requestLogger(c, h.logger), siteID) {
		return
	}

	goals, err := h.sites.ActiveGoals(c.Request.Context(), siteID)
	if err != nil {
		requestLogger(c, h.logger).Error("Failed to load goal rules", logger.String("site_id", siteID), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternalError})
		return
	}
	if goals == nil {
		goals = []domain.GoalRule{}
	}

	c.JSON(http.StatusOK, domain.RemoteConfig{
		SiteID:    siteID,
		DailySalt: h.salt.Current(),
		Goals:     goals,
	})
}

// TrackPageView records one page view.
func (h *TrackingHandler) TrackPageView(c *gin.Context) {
	var pv domain.PageView
	if err := c.ShouldBindJSON(&pv); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidBody})
		return
	}
	if !requireSite(c, h.sites, h.metrics, requestLogger(c, h.logger), pv.SiteID) {
		return
	}

	normalizePageView(&pv, middleware.IsBot(c))

	if err := h.recorder.RecordPageView(c.Request.Context(), &pv); err != nil {
		requestLogger(c, h.logger).Error("Failed to record page view",
			logger.String("site_id", pv.SiteID),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to track visit"})
		return
	}

	h.metrics.PageViews.WithLabelValues(pv.Device, strconv.FormatBool(pv.IsBot)).Inc()
	c.JSON(http.StatusCreated, gin.H{"message": "Visit tracked successfully"})
}

// normalizePageView fills attribution, clamps page_load_time, defaults the
// device and ORs the server-side bot check into is_bot.
func normalizePageView(pv *domain.PageView, serverBot bool) {
	utm := attribution.Resolve(attribution.UTM{
		Source:   pv.UTMSource,
		Medium:   pv.UTMMedium,
		Campaign: pv.UTMCampaign,
		Term:     pv.UTMTerm,
		Content:  pv.UTMContent,
	}, pv.Referrer)
	pv.UTMSource, pv.UTMMedium, pv.UTMTerm = utm.Source, utm.Medium, utm.Term

	if pv.PageLoadTime != nil && (*pv.PageLoadTime < 0 || *pv.PageLoadTime > maxPageLoadTimeMs) {
		pv.PageLoadTime = nil
	}
	if pv.Device == "" {
		pv.Device = domain.DeviceForWidth(pv.ViewportWidth)
	}
	pv.IsBot = pv.IsBot || serverBot
}

// TrackEvent records one event and refreshes the session.
func (h *TrackingHandler) TrackEvent(c *gin.Context) {
	var ev domain.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidBody})
		return
	}
	if ev.SiteID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingSiteID})
		return
	}
	if ev.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingEvent})
		return
	}
	if !requireSite(c, h.sites, h.metrics, requestLogger(c, h.logger), ev.SiteID) {
		return
	}
	if ev.Category == "" {
		ev.Category = domain.CategoryGeneral
	}

	id, err := h.recorder.InsertEvent(c.Request.Context(), &ev)
	if err != nil && id == 0 {
		requestLogger(c, h.logger).Error("Failed to record event",
			logger.String("site_id", ev.SiteID),
			logger.String("event_name", ev.Name),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to track event"})
		return
	}
	if err != nil {
		requestLogger(c, h.logger).Warn("Event stored but session touch failed", logger.Int64("event_id", id), logger.Error(err))
	}

	h.metrics.EventsTotal.WithLabelValues(domain.EventKind(ev.Name)).Inc()
	c.JSON(http.StatusCreated, gin.H{"message": "Event tracked successfully", "event_id": id})
}

// TrackGoal records one goal conversion.
func (h *TrackingHandler) TrackGoal(c *gin.Context) {
	var g domain.GoalConversion
	if err := c.ShouldBindJSON(&g); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidBody})
		return
	}
	if g.SiteID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingSiteID})
		return
	}
	if g.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingGoal})
		return
	}
	if !requireSite(c, h.sites, h.metrics, requestLogger(c, h.logger), g.SiteID) {
		return
	}

	id, err := h.recorder.InsertGoal(c.Request.Context(), &g)
	if err != nil {
		requestLogger(c, h.logger).Error("Failed to record goal",
			logger.String("site_id", g.SiteID),
			logger.String("goal_name", g.Name),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to track goal"})
		return
	}

	h.metrics.GoalsTotal.Inc()
	c.JSON(http.StatusCreated, gin.H{"message": "Goal tracked successfully", "goal_id": id})
}
