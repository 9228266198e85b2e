package heatmap

import (
	"image"
	"sort"

	"github.com/jonesrussell/north-cloud/spectre/internal/domain"
)

// Aggregate collapses identical coordinates into one weighted point, so
// repeated clicks on one spot saturate instead of stacking faint splats.
// Output order follows first appearance.
func Aggregate(points []domain.HeatmapPoint) []Point {
	type key struct{ x, y, vw int }
	index := make(map[key]int, len(points))
	out := make([]Point, 0, len(points))

	for _, p := range points {
		k := key{p.X, p.Y, p.ViewportWidth}
		if i, ok := index[k]; ok {
			out[i].Weight++
			continue
		}
		index[k] = len(out)
		out = append(out, Point{X: float64(p.X), Y: float64(p.Y), Weight: 1, ViewportWidth: p.ViewportWidth})
	}
	return out
}

// DepthWeight is one (scroll_depth, weight) aggregate.
type DepthWeight struct {
	Depth  int `json:"scroll_depth"`
	Weight int `json:"weight"`
}

// AggregateDepths counts scroll points per depth, shallowest first.
func AggregateDepths(points []domain.HeatmapPoint) []DepthWeight {
	counts := make(map[int]int)
	for _, p := range points {
		counts[p.ScrollDepth]++
	}

	out := make([]DepthWeight, 0, len(counts))
	for depth, n := range counts {
		out = append(out, DepthWeight{Depth: depth, Weight: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Depth < out[j].Depth })
	return out
}

// ScrollReach returns, for each pixel row, the fraction of scroll samples
// that reached at least that depth.
func ScrollReach(depths []DepthWeight, height int) []float64 {
	reach := make([]float64, max(height, 0))
	total := 0
	for _, d := range depths {
		total += d.Weight
	}
	if total == 0 {
		return reach
	}

	// depths are sorted ascending; walk rows while consuming buckets.
	remaining := total
	next := 0
	for y := range reach {
		for next < len(depths) && depths[next].Depth < y {
			remaining -= depths[next].Weight
			next++
		}
		reach[y] = float64(remaining) / float64(total)
	}
	return reach
}

// RenderScroll paints row bands whose color follows ScrollReach.
func RenderScroll(depths []DepthWeight, width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, max(width, 0), max(height, 0)))
	palette := NewPalette(DefaultGradient)

	for y, r := range ScrollReach(depths, height) {
		if r <= 0 {
			continue
		}
		a := uint8(r*255 + 0.5)
		c := palette[a]
		c.A = a
		for x := range width {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}
