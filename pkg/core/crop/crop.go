// Package crop implements the preprocessing stage: a centered crop of a
// pixel grid to a fixed canvas. No resampling is performed.
package crop

import (
	"math"

	"github.com/matzehuels/catbits/pkg/core/grid"
	"github.com/matzehuels/catbits/pkg/errors"
)

// Default canvas size.
const (
	DefaultWidth  = 1024
	DefaultHeight = 1024
)

// Offsets returns the top-left corner of a width x height window centered
// in a srcW x srcH grid. A half-pixel offset (odd difference) rounds half
// to even, so a margin of 1 starts at 0 and a margin of 3 starts at 2.
func Offsets(srcW, srcH, width, height int) (x0, y0 int) {
	return halfToEven(srcW - width), halfToEven(srcH - height)
}

func halfToEven(margin int) int {
	return int(math.RoundToEven(float64(margin) / 2))
}

// Center returns a new width x height grid cut from the center of g.
// The source must be at least as large as the target on both axes.
func Center(g *grid.Grid, width, height int) (*grid.Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidCrop, "crop target must be positive, got %dx%d", width, height)
	}
	if g.Width < width || g.Height < height {
		return nil, errors.New(errors.ErrCodeInvalidCrop,
			"crop target %dx%d exceeds source %dx%d", width, height, g.Width, g.Height)
	}

	x0, y0 := Offsets(g.Width, g.Height, width, height)
	out := grid.New(width, height)
	for y := 0; y < height; y++ {
		src := g.Pix[(y0+y)*g.Width+x0:]
		copy(out.Pix[y*width:(y+1)*width], src[:width])
	}
	return out, nil
}
