// Package catmap implements the chaotic permutation stage: a generalized
// discrete cat map over the coordinates of a square grid.
//
// One iteration moves the pixel at (x, y) to
//
//	nx = (x + p*y) mod N
//	ny = (q*x + (p*q+1)*y) mod N
//
// The matrix [[1, p], [q, pq+1]] has determinant 1, so the map is a
// bijection on the N x N torus for any integers p, q and any N. [Inverse]
// undoes one iteration and [Unpermute] undoes [Permute].
package catmap

import (
	"github.com/matzehuels/catbits/pkg/core/grid"
	"github.com/matzehuels/catbits/pkg/errors"
)

// Default parameters.
const (
	DefaultP          = 1
	DefaultQ          = 1
	DefaultIterations = 7
)

// Params holds the map coefficients and the iteration count.
type Params struct {
	P          int `json:"p" toml:"p"`
	Q          int `json:"q" toml:"q"`
	Iterations int `json:"iterations" toml:"iterations"`
}

// DefaultParams returns p=q=1 with seven iterations.
func DefaultParams() Params {
	return Params{P: DefaultP, Q: DefaultQ, Iterations: DefaultIterations}
}

// Validate rejects a negative iteration count.
func (p Params) Validate() error {
	if p.Iterations < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "iterations must be >= 0, got %d", p.Iterations)
	}
	return nil
}

func mod(v, n int) int {
	v %= n
	if v < 0 {
		v += n
	}
	return v
}

// Forward maps (x, y) one iteration forward on an n x n torus.
func Forward(x, y, n int, p Params) (int, int) {
	return mod(x+p.P*y, n), mod(p.Q*x+(p.P*p.Q+1)*y, n)
}

// Inverse maps (x, y) one iteration backward on an n x n torus.
func Inverse(x, y, n int, p Params) (int, int) {
	return mod((p.P*p.Q+1)*x-p.P*y, n), mod(-p.Q*x+y, n)
}

// Permute applies the map p.Iterations times and returns a new grid.
// Each iteration allocates a fresh grid and discards the previous one;
// g itself is left untouched. g must be square.
func Permute(g *grid.Grid, p Params) (*grid.Grid, error) {
	return iterate(g, p, Forward)
}

// Unpermute applies the inverse map p.Iterations times.
func Unpermute(g *grid.Grid, p Params) (*grid.Grid, error) {
	return iterate(g, p, Inverse)
}

func iterate(g *grid.Grid, p Params, step func(x, y, n int, p Params) (int, int)) (*grid.Grid, error) {
	if !g.IsSquare() || g.Width == 0 {
		return nil, errors.New(errors.ErrCodeInvalidDimensions,
			"cat map needs a non-empty square grid, got %dx%d", g.Width, g.Height)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	n := g.Width
	cur := g
	for i := 0; i < p.Iterations; i++ {
		next := grid.New(n, n)
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				nx, ny := step(x, y, n, p)
				next.Set(nx, ny, cur.At(x, y))
			}
		}
		cur = next
	}
	if cur == g {
		cur = g.Clone()
	}
	return cur, nil
}
