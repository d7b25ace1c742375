// Package bits packs bit sequences into bytes, most significant bit first.
//
// Sequences whose length is not a multiple of eight are handled by an
// explicit [TailPolicy]: [TailPad] fills the last byte with trailing zero
// bits, [TailReject] fails with DATA_ALIGNMENT.
package bits

import (
	"github.com/matzehuels/catbits/pkg/core/grid"
	"github.com/matzehuels/catbits/pkg/errors"
)

// TailPolicy decides what happens to a trailing partial byte.
type TailPolicy string

const (
	TailPad    TailPolicy = "pad"
	TailReject TailPolicy = "reject"
)

// ValidTailPolicies is the set of supported tail policies.
var ValidTailPolicies = map[TailPolicy]bool{
	TailPad:    true,
	TailReject: true,
}

// PackedLen returns the number of bytes Pack produces for n bits under TailPad.
func PackedLen(n int) int { return (n + 7) / 8 }

// Pack converts bits (each 0 or 1) into bytes, MSB first.
func Pack(bits []uint8, tail TailPolicy) ([]byte, error) {
	if tail == "" {
		tail = TailPad
	}
	if rem := len(bits) % 8; rem != 0 && tail == TailReject {
		return nil, errors.New(errors.ErrCodeDataAlignment,
			"bit sequence of length %d leaves %d trailing bits", len(bits), rem)
	}

	out := make([]byte, PackedLen(len(bits)))
	for i, b := range bits {
		switch b {
		case 0:
		case 1:
			out[i>>3] |= 0x80 >> (i & 7)
		default:
			return nil, errors.New(errors.ErrCodeInvalidInput, "bit %d has value %d, want 0 or 1", i, b)
		}
	}
	return out, nil
}

// Unpack expands data into bits, MSB first.
func Unpack(data []byte) []uint8 {
	out := make([]uint8, len(data)*8)
	for i := range out {
		out[i] = (data[i>>3] >> (7 - i&7)) & 1
	}
	return out
}

// Bitmap flattens a binary grid row-major into bits: 1 for white, 0 otherwise.
func Bitmap(g *grid.Grid) []uint8 {
	out := make([]uint8, len(g.Pix))
	for i, p := range g.Pix {
		if p == grid.White {
			out[i] = 1
		}
	}
	return out
}

// Ones counts set bits in data.
func Ones(data []byte) int {
	n := 0
	for _, b := range data {
		for ; b != 0; b &= b - 1 {
			n++
		}
	}
	return n
}
