package heatmap

import "image/color"

// Stop is one gradient color stop; Offset is in [0, 1].
type Stop struct {
	Offset float64
	Color  color.NRGBA
}

// DefaultGradient runs blue, cyan, lime, yellow, red.
var DefaultGradient = []Stop{
	{0.4, color.NRGBA{R: 0, G: 0, B: 255, A: 255}},
	{0.6, color.NRGBA{R: 0, G: 255, B: 255, A: 255}},
	{0.7, color.NRGBA{R: 0, G: 255, B: 0, A: 255}},
	{0.8, color.NRGBA{R: 255, G: 255, B: 0, A: 255}},
	{1.0, color.NRGBA{R: 255, G: 0, B: 0, A: 255}},
}

const paletteSize = 256

// Palette maps an accumulated alpha byte to a color.
type Palette [paletteSize]color.NRGBA

// NewPalette samples stops into 256 entries. Offsets below the first stop
// take its color.
func NewPalette(stops []Stop) Palette {
	var p Palette
	for i := range paletteSize {
		t := float64(i) / (paletteSize - 1)
		p[i] = sample(stops, t)
	}
	return p
}

func sample(stops []Stop, t float64) color.NRGBA {
	if len(stops) == 0 {
		return color.NRGBA{}
	}
	if t <= stops[0].Offset {
		return stops[0].Color
	}
	for i := 1; i < len(stops); i++ {
		hi := stops[i]
		if t > hi.Offset {
			continue
		}
		lo := stops[i-1]
		f := (t - lo.Offset) / (hi.Offset - lo.Offset)
		return color.NRGBA{
			R: lerp(lo.Color.R, hi.Color.R, f),
			G: lerp(lo.Color.G, hi.Color.G, f),
			B: lerp(lo.Color.B, hi.Color.B, f),
			A: 255,
		}
	}
	return stops[len(stops)-1].Color
}

func lerp(a, b uint8, f float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*f + 0.5)
}
