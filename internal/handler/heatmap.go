package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonesrussell/north-cloud/spectre/internal/domain"
	"github.com/jonesrussell/north-cloud/spectre/internal/heatmap"
	"github.com/jonesrussell/north-cloud/spectre/internal/metrics"
	"github.com/jonesrussell/north-cloud/spectre/internal/platform/logger"
)

// Default render canvas, matching the dashboard screenshot size.
const (
	defaultRenderWidth  = 1280
	defaultRenderHeight = 800
)

// maxHeatmapBodyBytes bounds one POST /heatmap body.
const maxHeatmapBodyBytes = 1 << 20

// HeatmapReader queries stored heatmap rows.
type HeatmapReader interface {
	HeatmapPoints(ctx context.Context, siteID, urlPrefix, interactionType string, limit int) (*domain.HeatmapStats, error)
	HeatmapURLs(ctx context.Context, siteID string, limit int) ([]domain.HeatmapURL, error)
}

// RowSink accepts rows for asynchronous persistence and returns how many
// it took.
type RowSink interface {
	SendAll(rows []domain.HeatmapRow) int
}

// HeatmapLimits bounds ingestion, queries and rendering. Zero values
// leave the matching dimension unbounded.
type HeatmapLimits struct {
	StatsLimit      int
	URLListLimit    int
	MovementLimit   int
	ClickLimit      int
	ScrollLimit     int
	RenderMaxWidth  int
	RenderMaxHeight int
	RenderMaxPixels int
}

// HeatmapHandler serves the heatmap ingestion and read endpoints.
type HeatmapHandler struct {
	sites   SiteLookup
	reader  HeatmapReader
	sink    RowSink
	limits  HeatmapLimits
	metrics *metrics.Collector
	logger  logger.Logger
	now     func() time.Time
}

// NewHeatmapHandler creates a HeatmapHandler.
func NewHeatmapHandler(
	sites SiteLookup,
	reader HeatmapReader,
	sink RowSink,
	limits HeatmapLimits,
	m *metrics.Collector,
	log logger.Logger,
) *HeatmapHandler {
	return &HeatmapHandler{
		sites:   sites,
		reader:  reader,
		sink:    sink,
		limits:  limits,
		metrics: m,
		logger:  log,
		now:     time.Now,
	}
}

// Ingest accepts one batch of clicks, scrolls and movements. inserted is
// the number of rows accepted for persistence.
func (h *HeatmapHandler) Ingest(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxHeatmapBodyBytes)

	var batch domain.HeatmapBatch
	if err := c.ShouldBindJSON(&batch); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": msgBodyTooLarge})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidBody})
		return
	}
	if batch.SiteID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingSiteID})
		return
	}
	if batch.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingURL})
		return
	}
	if !requireSite(c, h.sites, h.metrics, requestLogger(c, h.logger), batch.SiteID) {
		return
	}

	rows := batch.Rows(domain.RowLimits{
		Clicks:    h.limits.ClickLimit,
		Scrolls:   h.limits.ScrollLimit,
		Movements: h.limits.MovementLimit,
	}, h.now().UTC())
	accepted := h.sink.SendAll(rows)

	for i := range rows[:accepted] {
		h.metrics.HeatmapRows.WithLabelValues(rows[i].InteractionType).Inc()
	}
	if dropped := len(rows) - accepted; dropped > 0 {
		h.metrics.HeatmapDropped.Add(float64(dropped))
		requestLogger(c, h.logger).Warn("Heatmap buffer full, dropping rows",
			logger.String("site_id", batch.SiteID),
			logger.Int("dropped", dropped),
		)
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Heatmap data recorded successfully",
		"inserted": accepted,
	})
}

// Stats returns the newest raw points for a URL prefix grouped by type.
func (h *HeatmapHandler) Stats(c *gin.Context) {
	siteID, urlPrefix, typ, ok := h.parseQuery(c, domain.InteractionAll)
	if !ok {
		return
	}

	stats, err := h.reader.HeatmapPoints(c.Request.Context(), siteID, urlPrefix, typ, h.limits.StatsLimit)
	if err != nil {
		requestLogger(c, h.logger).Error("Failed to query heatmap points", logger.String("site_id", siteID), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternalError})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// URLs lists the most interacted-with URLs of a site.
func (h *HeatmapHandler) URLs(c *gin.Context) {
	siteID := c.Query("site_id")
	if !requireSite(c, h.sites, h.metrics, requestLogger(c, h.logger), siteID) {
		return
	}

	urls, err := h.reader.HeatmapURLs(c.Request.Context(), siteID, h.limits.URLListLimit)
	if err != nil {
		requestLogger(c, h.logger).Error("Failed to list heatmap urls", logger.String("site_id", siteID), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternalError})
		return
	}

	c.JSON(http.StatusOK, gin.H{"urls": urls})
}

// Render draws the density overlay for a URL prefix as a PNG.
// Query: site_id, url, type (click default), width, height, normalize.
// Width and height are clamped to the configured maxima; a canvas whose
// area still exceeds RenderMaxPixels is rejected.
func (h *HeatmapHandler) Render(c *gin.Context) {
	if c.Query("type") == domain.InteractionAll {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidRenderType})
		return
	}

	siteID, urlPrefix, typ, ok := h.parseQuery(c, domain.InteractionClick)
	if !ok {
		return
	}

	width, height, ok := h.parseDimensions(c)
	if !ok {
		return
	}

	stats, err := h.reader.HeatmapPoints(c.Request.Context(), siteID, urlPrefix, typ, h.limits.StatsLimit)
	if err != nil {
		requestLogger(c, h.logger).Error("Failed to query heatmap points", logger.String("site_id", siteID), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternalError})
		return
	}

	var buf bytes.Buffer
	if err = heatmap.EncodePNG(&buf, heatmap.Render(stats, typ, width, height, c.Query("normalize") == "true")); err != nil {
		requestLogger(c, h.logger).Error("Failed to encode heatmap", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternalError})
		return
	}

	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

// parseQuery reads site_id, url and type, answering 400/404 itself.
func (h *HeatmapHandler) parseQuery(c *gin.Context, defaultType string) (siteID, urlPrefix, typ string, ok bool) {
	siteID = c.Query("site_id")
	if siteID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingSiteID})
		return "", "", "", false
	}

	urlPrefix = c.Query("url")
	if urlPrefix == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingURL})
		return "", "", "", false
	}

	typ = c.DefaultQuery("type", defaultType)
	if !domain.ValidInteractionType(typ) {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidType})
		return "", "", "", false
	}

	if !requireSite(c, h.sites, h.metrics, requestLogger(c, h.logger), siteID) {
		return "", "", "", false
	}
	return siteID, urlPrefix, typ, true
}

func (h *HeatmapHandler) parseDimensions(c *gin.Context) (width, height int, ok bool) {
	width, errW := strconv.Atoi(c.DefaultQuery("width", strconv.Itoa(defaultRenderWidth)))
	height, errH := strconv.Atoi(c.DefaultQuery("height", strconv.Itoa(defaultRenderHeight)))
	if errW != nil || errH != nil || width <= 0 || height <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidDimension})
		return 0, 0, false
	}

	if h.limits.RenderMaxWidth > 0 {
		width = min(width, h.limits.RenderMaxWidth)
	}
	if h.limits.RenderMaxHeight > 0 {
		height = min(height, h.limits.RenderMaxHeight)
	}
	if h.limits.RenderMaxPixels > 0 && width*height > h.limits.RenderMaxPixels {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgRenderTooLarge})
		return 0, 0, false
	}
	return width, height, true
}
