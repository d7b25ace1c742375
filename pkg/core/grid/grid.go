// Package grid provides the single-channel pixel grid every pipeline stage
// operates on.
//
// A [Grid] is a row-major buffer of 8-bit intensities. Stages take a grid,
// either mutate it in place and hand the same value back (dithering) or
// allocate a fresh one (cropping, permutation). A grid is never shared
// between two stages at the same time.
//
// Conversion from an [image.Image] selects one intensity per pixel:
//
//	g := grid.FromImage(img, grid.ChannelLuma) // ITU-R 601 luma
//	g := grid.FromImage(img, grid.ChannelRed)  // first RGB channel only
package grid

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Pixel values of a binarized grid.
const (
	Black uint8 = 0
	White uint8 = 255
)

// Channel selects which intensity FromImage reads from a color image.
type Channel string

const (
	// ChannelLuma converts to grayscale with imaging's luma weights.
	ChannelLuma Channel = "luma"
	// ChannelRed reads the red channel as the intensity.
	ChannelRed Channel = "red"
)

// ValidChannels is the set of supported intensity channels.
var ValidChannels = map[Channel]bool{
	ChannelLuma: true,
	ChannelRed:  true,
}

// Grid is a Width x Height grid of 8-bit intensities in row-major order.
type Grid struct {
	Width  int
	Height int
	Pix    []uint8
}

// New allocates a zeroed (all black) grid.
func New(width, height int) *Grid {
	return &Grid{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height),
	}
}

// Filled allocates a grid with every pixel set to v.
func Filled(width, height int, v uint8) *Grid {
	g := New(width, height)
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return g
}

// At returns the value at column x, row y.
func (g *Grid) At(x, y int) uint8 { return g.Pix[y*g.Width+x] }

// Set stores v at column x, row y.
func (g *Grid) Set(x, y int, v uint8) { g.Pix[y*g.Width+x] = v }

// In reports whether (x, y) lies inside the grid.
func (g *Grid) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.Width && y < g.Height
}

// IsSquare reports whether width equals height.
func (g *Grid) IsSquare() bool { return g.Width == g.Height }

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	c := &Grid{Width: g.Width, Height: g.Height, Pix: make([]uint8, len(g.Pix))}
	copy(c.Pix, g.Pix)
	return c
}

// Equal reports whether both grids have the same size and contents.
func (g *Grid) Equal(o *Grid) bool {
	if g.Width != o.Width || g.Height != o.Height {
		return false
	}
	for i := range g.Pix {
		if g.Pix[i] != o.Pix[i] {
			return false
		}
	}
	return true
}

// Count returns how many pixels equal v.
func (g *Grid) Count(v uint8) int {
	n := 0
	for _, p := range g.Pix {
		if p == v {
			n++
		}
	}
	return n
}

// String implements fmt.Stringer with the grid dimensions.
func (g *Grid) String() string {
	return fmt.Sprintf("grid %dx%d", g.Width, g.Height)
}

// FromImage converts img into a grid using the given channel.
// The grid origin is img.Bounds().Min.
func FromImage(img image.Image, ch Channel) *Grid {
	var src = imaging.Clone(img)
	if ch != ChannelRed {
		src = imaging.Grayscale(src)
	}

	b := src.Bounds()
	g := New(b.Dx(), b.Dy())
	for y := 0; y < g.Height; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+g.Width*4]
		for x := 0; x < g.Width; x++ {
			g.Pix[y*g.Width+x] = row[x*4]
		}
	}
	return g
}

// Image returns the grid as an *image.Gray sharing no memory with g.
func (g *Grid) Image() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, g.Width, g.Height))
	copy(img.Pix, g.Pix)
	return img
}
