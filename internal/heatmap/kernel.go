package heatmap

import "math"

// kernel is a square alpha stamp of side 2*extent+1.
type kernel struct {
	extent int
	alpha  []float64
}

// newKernel builds a disc of the given radius whose edge fades to zero
// across blur pixels on either side with a smoothstep curve.
func newKernel(radius, blur int) kernel {
	extent := radius + blur
	side := 2*extent + 1
	k := kernel{extent: extent, alpha: make([]float64, side*side)}

	inner := float64(radius - blur)
	outer := float64(radius + blur)

	for dy := -extent; dy <= extent; dy++ {
		for dx := -extent; dx <= extent; dx++ {
			d := math.Hypot(float64(dx), float64(dy))
			var a float64
			switch {
			case d <= inner:
				a = 1
			case d >= outer:
				a = 0
			default:
				x := (outer - d) / (outer - inner)
				a = x * x * (3 - 2*x)
			}
			k.alpha[(dy+extent)*side+(dx+extent)] = a
		}
	}
	return k
}

func (k kernel) at(dx, dy int) float64 {
	side := 2*k.extent + 1
	return k.alpha[(dy+k.extent)*side+(dx+k.extent)]
}
