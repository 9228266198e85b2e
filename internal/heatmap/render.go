package heatmap

import (
	"image"

	"github.com/jonesrussell/north-cloud/spectre/internal/domain"
)

// Render draws stats for one interaction type. scroll renders reach bands,
// click uses clicks and anything else uses movements; callers reject
// "all", which has no single overlay.
func Render(stats *domain.HeatmapStats, interactionType string, width, height int, normalize bool) *image.NRGBA {
	if interactionType == domain.InteractionScroll {
		return RenderScroll(AggregateDepths(stats.Scrolls), width, height)
	}

	points := stats.Movements
	if interactionType == domain.InteractionClick {
		points = stats.Clicks
	}

	opts := OptionsFor(interactionType)
	opts.NormalizeViewport = normalize

	overlay := NewOverlay(opts, width, height)
	overlay.SetData(Aggregate(points))
	return overlay.Draw()
}
