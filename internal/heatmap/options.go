// Package heatmap turns raw interaction points into a colorized density
// overlay: each point adds a radius-bounded, blurred splat to an alpha
// accumulator the size of the canvas, which is then mapped through a
// blue-to-red palette.
package heatmap

import "github.com/jonesrussell/north-cloud/spectre/internal/domain"

// Options tunes the density kernel.
type Options struct {
	// Max is the weight at which a single splat reaches full opacity.
	Max float64
	// Radius is the solid part of the splat, in pixels.
	Radius int
	// Blur is the falloff band around Radius, in pixels.
	Blur int
	// MinOpacity is the floor applied to each splat's opacity.
	MinOpacity float64
	// NormalizeViewport rescales each point from its recorded viewport
	// width to the canvas width.
	NormalizeViewport bool
}

const defaultMinOpacity = 0.05

// ClickOptions saturates after a handful of clicks.
var ClickOptions = Options{Max: 5, Radius: 25, Blur: 15, MinOpacity: defaultMinOpacity}

// MovementOptions tolerates the much denser movement stream.
var MovementOptions = Options{Max: 10, Radius: 15, Blur: 10, MinOpacity: defaultMinOpacity}

// OptionsFor returns the defaults for an interaction type. Anything other
// than click renders with movement settings.
func OptionsFor(interactionType string) Options {
	if interactionType == domain.InteractionClick {
		return ClickOptions
	}
	return MovementOptions
}
