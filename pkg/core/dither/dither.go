// Package dither binarizes a grid in place with Floyd–Steinberg error
// diffusion.
//
// Pixels are visited row by row, left to right. Each pixel is snapped to
// [grid.Black] or [grid.White] and the signed quantization error is pushed
// into the four neighbours that have not been visited yet:
//
//	        .    X   7/16
//	      3/16 5/16  1/16
//
// A neighbour's new value is the float sum of its stored value and the
// weighted error, truncated toward zero and clamped to 0..255. Neighbours
// outside the grid are skipped; there is no wraparound.
package dither

import (
	"github.com/matzehuels/catbits/pkg/core/grid"
)

// DefaultThreshold is the intensity at and above which a pixel becomes white.
const DefaultThreshold = 128

// Step records how one pixel was quantized. The sequence of steps for a
// grid is its error-propagation trace.
type Step struct {
	X, Y int
	Old  uint8
	New  uint8
	Err  int
}

// Options configures Apply.
type Options struct {
	// Threshold defaults to DefaultThreshold when zero.
	Threshold int

	// Trace, if set, is called once per pixel in visiting order.
	Trace func(Step)
}

type tap struct {
	dx, dy int
	weight float64
}

var floydSteinberg = [...]tap{
	{1, 0, 7.0 / 16},
	{-1, 1, 3.0 / 16},
	{0, 1, 5.0 / 16},
	{1, 1, 1.0 / 16},
}

// Apply dithers g in place and returns it.
func Apply(g *grid.Grid, opts Options) *grid.Grid {
	threshold := opts.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}

	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			old := g.At(x, y)
			nv := grid.Black
			if int(old) >= threshold {
				nv = grid.White
			}
			g.Set(x, y, nv)

			qerr := int(old) - int(nv)
			if opts.Trace != nil {
				opts.Trace(Step{X: x, Y: y, Old: old, New: nv, Err: qerr})
			}
			if qerr == 0 {
				continue
			}
			for _, t := range floydSteinberg {
				nx, ny := x+t.dx, y+t.dy
				if !g.In(nx, ny) {
					continue
				}
				g.Set(nx, ny, diffuse(g.At(nx, ny), qerr, t.weight))
			}
		}
	}
	return g
}

// diffuse adds the weighted error to v, truncating toward zero.
func diffuse(v uint8, qerr int, weight float64) uint8 {
	s := int(float64(v) + float64(qerr)*weight)
	switch {
	case s < 0:
		return 0
	case s > 255:
		return 255
	}
	return uint8(s)
}

// IsBinary reports whether every pixel of g is black or white.
func IsBinary(g *grid.Grid) bool {
	for _, p := range g.Pix {
		if p != grid.Black && p != grid.White {
			return false
		}
	}
	return true
}
