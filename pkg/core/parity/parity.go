// Package parity reduces a binary grid to one parity bit per square block.
//
// A block's bit is the parity of its black (zero-valued) pixel count:
// 0 for an even count, 1 for an odd one.
package parity

import (
	"github.com/matzehuels/catbits/pkg/core/grid"
	"github.com/matzehuels/catbits/pkg/errors"
)

// DefaultBlockSize is the side of the square windows.
const DefaultBlockSize = 4

// EdgePolicy controls grids whose sides are not multiples of the block size.
type EdgePolicy string

const (
	// EdgeStrict rejects such grids with INVALID_DIMENSIONS.
	EdgeStrict EdgePolicy = "strict"
	// EdgeClamp encodes trailing partial blocks from the pixels that exist.
	EdgeClamp EdgePolicy = "clamp"
)

// ValidEdgePolicies is the set of supported edge policies.
var ValidEdgePolicies = map[EdgePolicy]bool{
	EdgeStrict: true,
	EdgeClamp:  true,
}

// Blocks is a Rows x Cols grid of parity bits in row-major order.
type Blocks struct {
	Rows int
	Cols int
	Bits []uint8
}

// At returns the bit of block (row, col).
func (b *Blocks) At(row, col int) uint8 { return b.Bits[row*b.Cols+col] }

// Encode partitions g into size x size windows starting at (0,0) and
// returns their parity bits.
func Encode(g *grid.Grid, size int, edge EdgePolicy) (*Blocks, error) {
	if size <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "block size must be positive, got %d", size)
	}
	if edge == "" {
		edge = EdgeStrict
	}
	if edge == EdgeStrict && (g.Width%size != 0 || g.Height%size != 0) {
		return nil, errors.New(errors.ErrCodeInvalidDimensions,
			"grid %dx%d is not a multiple of block size %d", g.Width, g.Height, size)
	}

	rows := (g.Height + size - 1) / size
	cols := (g.Width + size - 1) / size
	out := &Blocks{Rows: rows, Cols: cols, Bits: make([]uint8, rows*cols)}

	for r := 0; r < rows; r++ {
		y0, y1 := r*size, min((r+1)*size, g.Height)
		for c := 0; c < cols; c++ {
			x0, x1 := c*size, min((c+1)*size, g.Width)
			black := 0
			for y := y0; y < y1; y++ {
				for _, p := range g.Pix[y*g.Width+x0 : y*g.Width+x1] {
					if p == grid.Black {
						black++
					}
				}
			}
			out.Bits[r*cols+c] = uint8(black & 1)
		}
	}
	return out, nil
}
