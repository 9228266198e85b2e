package heatmap

import (
	"image"
	"image/png"
	"io"
	"math"
)

// Point is one weighted sample in page coordinates.
type Point struct {
	X, Y          float64
	Weight        float64
	ViewportWidth int
}

// Overlay accumulates points onto a canvas-sized grid and colorizes it.
// An Overlay is not safe for concurrent use.
type Overlay struct {
	opts    Options
	kernel  kernel
	palette Palette
	points  []Point
	width   int
	height  int
	grid    []float32
	img     *image.NRGBA
	draws   int
}

// NewOverlay creates an overlay for a width x height canvas.
func NewOverlay(opts Options, width, height int) *Overlay {
	if opts.Max <= 0 {
		opts.Max = 1
	}
	o := &Overlay{
		opts:    opts,
		kernel:  newKernel(opts.Radius, opts.Blur),
		palette: NewPalette(DefaultGradient),
	}
	o.allocate(width, height)
	return o
}

// SetData replaces the point set. The next Draw uses it.
func (o *Overlay) SetData(points []Point) {
	o.points = append(o.points[:0], points...)
}

// Add appends one point.
func (o *Overlay) Add(p Point) {
	o.points = append(o.points, p)
}

// Size returns the canvas size.
func (o *Overlay) Size() (width, height int) {
	return o.width, o.height
}

// Resize changes the canvas size and redraws. It reports whether the size
// actually changed; an unchanged size keeps the current image.
func (o *Overlay) Resize(width, height int) bool {
	if width == o.width && height == o.height {
		return false
	}
	o.allocate(width, height)
	o.Draw()
	return true
}

// Draws returns how many times the overlay has been drawn.
func (o *Overlay) Draws() int {
	return o.draws
}

// Image returns the most recently drawn image, or nil before the first Draw.
func (o *Overlay) Image() *image.NRGBA {
	return o.img
}

// Intensity returns the accumulated alpha in [0, 1] at (x, y) after Draw.
func (o *Overlay) Intensity(x, y int) float64 {
	if x < 0 || y < 0 || x >= o.width || y >= o.height {
		return 0
	}
	return float64(o.grid[y*o.width+x])
}

// Draw accumulates all points and colorizes the grid.
func (o *Overlay) Draw() *image.NRGBA {
	clear(o.grid)

	for _, p := range o.points {
		o.splat(p)
	}

	img := image.NewNRGBA(image.Rect(0, 0, o.width, o.height))
	for i, acc := range o.grid {
		if acc <= 0 {
			continue
		}
		a := uint8(math.Round(float64(acc) * 255))
		c := o.palette[a]
		off := i * 4
		img.Pix[off] = c.R
		img.Pix[off+1] = c.G
		img.Pix[off+2] = c.B
		img.Pix[off+3] = a
	}

	o.img = img
	o.draws++
	return img
}

// splat composites one kernel stamp source-over onto the grid.
func (o *Overlay) splat(p Point) {
	x, y := p.X, p.Y
	if o.opts.NormalizeViewport && p.ViewportWidth > 0 {
		scale := float64(o.width) / float64(p.ViewportWidth)
		x *= scale
		y *= scale
	}

	weight := p.Weight
	if weight == 0 {
		weight = 1
	}
	opacity := math.Min(math.Max(weight/o.opts.Max, o.opts.MinOpacity), 1)

	cx, cy := int(math.Round(x)), int(math.Round(y))
	ext := o.kernel.extent

	for dy := -ext; dy <= ext; dy++ {
		py := cy + dy
		if py < 0 || py >= o.height {
			continue
		}
		row := py * o.width
		for dx := -ext; dx <= ext; dx++ {
			px := cx + dx
			if px < 0 || px >= o.width {
				continue
			}
			k := o.kernel.at(dx, dy)
			if k == 0 {
				continue
			}
			g := float64(o.grid[row+px])
			o.grid[row+px] = float32(g + opacity*k*(1-g))
		}
	}
}

func (o *Overlay) allocate(width, height int) {
	o.width = max(width, 0)
	o.height = max(height, 0)
	o.grid = make([]float32, o.width*o.height)
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}
