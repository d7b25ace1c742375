package dither

import (
	"math/rand/v2"
	"testing"

	"github.com/matzehuels/catbits/pkg/core/grid"
)

func noise(w, h int, seed uint64) *grid.Grid {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	g := grid.New(w, h)
	for i := range g.Pix {
		g.Pix[i] = uint8(r.IntN(256))
	}
	return g
}

func TestApplyBinaryRange(t *testing.T) {
	for _, size := range []struct{ w, h int }{{1, 1}, {7, 3}, {32, 32}, {64, 17}} {
		g := Apply(noise(size.w, size.h, 1), Options{})
		if !IsBinary(g) {
			t.Errorf("%dx%d: output contains values other than 0 and 255", size.w, size.h)
		}
	}
}

func TestApplyKnownGrid(t *testing.T) {
	g := grid.Filled(2, 2, 100)

	var trace []Step
	Apply(g, Options{Trace: func(s Step) { trace = append(trace, s) }})

	want := []uint8{0, 255, 0, 0}
	for i, v := range want {
		if g.Pix[i] != v {
			t.Errorf("Pix[%d] = %d, want %d", i, g.Pix[i], v)
		}
	}

	wantErr := []int{100, -112, 110, 119}
	if len(trace) != len(wantErr) {
		t.Fatalf("trace length = %d, want %d", len(trace), len(wantErr))
	}
	for i, e := range wantErr {
		if trace[i].Err != e {
			t.Errorf("trace[%d].Err = %d, want %d", i, trace[i].Err, e)
		}
	}
	if trace[1].X != 1 || trace[1].Y != 0 {
		t.Errorf("trace[1] at (%d,%d), want row-major (1,0)", trace[1].X, trace[1].Y)
	}
}

func TestApplyAllWhiteUnchanged(t *testing.T) {
	g := grid.Filled(8, 8, grid.White)
	Apply(g, Options{Trace: func(s Step) {
		if s.Err != 0 {
			t.Errorf("step (%d,%d) error = %d, want 0", s.X, s.Y, s.Err)
		}
	}})
	if g.Count(grid.White) != 64 {
		t.Error("all-white grid changed during dithering")
	}
}

func TestApplyThreshold(t *testing.T) {
	tests := []struct {
		value     uint8
		threshold int
		want      uint8
	}{
		{127, 0, grid.Black},
		{128, 0, grid.White},
		{128, 129, grid.Black},
		{10, 10, grid.White},
	}
	for _, tt := range tests {
		g := grid.Filled(1, 1, tt.value)
		Apply(g, Options{Threshold: tt.threshold})
		if g.Pix[0] != tt.want {
			t.Errorf("value %d threshold %d = %d, want %d", tt.value, tt.threshold, g.Pix[0], tt.want)
		}
	}
}

func TestApplyDeterministic(t *testing.T) {
	var t1, t2 []Step
	a := Apply(noise(40, 30, 7), Options{Trace: func(s Step) { t1 = append(t1, s) }})
	b := Apply(noise(40, 30, 7), Options{Trace: func(s Step) { t2 = append(t2, s) }})

	if !a.Equal(b) {
		t.Fatal("identical input produced different output")
	}
	if len(t1) != len(t2) {
		t.Fatalf("trace lengths differ: %d vs %d", len(t1), len(t2))
	}
	for i := range t1 {
		if t1[i] != t2[i] {
			t.Fatalf("trace differs at step %d: %+v vs %+v", i, t1[i], t2[i])
		}
	}
}

func TestApplyReturnsSameGrid(t *testing.T) {
	g := noise(4, 4, 3)
	if out := Apply(g, Options{}); out != g {
		t.Error("Apply should mutate and return its input")
	}
}

func TestDiffuse(t *testing.T) {
	tests := []struct {
		name   string
		v      uint8
		qerr   int
		weight float64
		want   uint8
	}{
		{"positive", 100, 100, 7.0 / 16, 143},
		{"sum truncated toward zero", 10, -20, 7.0 / 16, 1},
		{"clamped low", 5, -128, 7.0 / 16, 0},
		{"clamped high", 250, 127, 7.0 / 16, 255},
		{"small weight", 100, 100, 1.0 / 16, 106},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := diffuse(tt.v, tt.qerr, tt.weight); got != tt.want {
				t.Errorf("diffuse(%d, %d, %v) = %d, want %d", tt.v, tt.qerr, tt.weight, got, tt.want)
			}
		})
	}
}
