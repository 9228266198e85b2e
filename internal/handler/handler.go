// Package handler implements the collector's HTTP endpoints.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jonesrussell/north-cloud/spectre/internal/domain"
	"github.com/jonesrussell/north-cloud/spectre/internal/metrics"
	"github.com/jonesrussell/north-cloud/spectre/internal/platform/logger"
)

// Error messages returned in {"error": ...} bodies.
const (
	msgMissingSiteID     = "Missing site_id"
	msgInvalidSiteID     = "Invalid site_id"
	msgMissingURL        = "Missing url"
	msgMissingEvent      = "Missing event_name"
	msgMissingGoal       = "Missing goal_name"
	msgInvalidBody       = "invalid request body"
	msgInvalidType       = "type must be one of: click, scroll, movement, all"
	msgInvalidRenderType = "type must be one of: click, scroll, movement"
	msgInvalidDimension  = "width and height must be positive integers"
	msgRenderTooLarge    = "width * height exceeds the render pixel limit"
	msgBodyTooLarge      = "request body too large"
	msgInternalError     = "internal server error"
)

var errUnknownSite = errors.New("unknown site")

// SiteLookup resolves sites and their active goal rules.
type SiteLookup interface {
	SiteExists(ctx context.Context, siteID string) (bool, error)
	ActiveGoals(ctx context.Context, siteID string) ([]domain.GoalRule, error)
}

// requestLogger prefers the request-scoped logger attached by the server
// middleware.
func requestLogger(c *gin.Context, base logger.Logger) logger.Logger {
	return logger.FromContextOr(c.Request.Context(), base)
}

// requireSite answers 400 for an empty siteID, 404 for an unknown one and
// 500 on lookup failure. It returns false when the request was answered.
func requireSite(c *gin.Context, sites SiteLookup, m *metrics.Collector, log logger.Logger, siteID string) bool {
	if siteID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingSiteID})
		return false
	}

	exists, err := sites.SiteExists(c.Request.Context(), siteID)
	if err != nil {
		log.Error("Site lookup failed", logger.String("site_id", siteID), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternalError})
		return false
	}
	if !exists {
		m.UnknownSites.Inc()
		_ = c.Error(errUnknownSite)
		c.JSON(http.StatusNotFound, gin.H{"error": msgInvalidSiteID})
		return false
	}
	return true
}
