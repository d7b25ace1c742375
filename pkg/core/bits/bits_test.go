package bits

import (
	"bytes"
	"slices"
	"testing"

	"github.com/matzehuels/catbits/pkg/core/grid"
	"github.com/matzehuels/catbits/pkg/errors"
)

func TestPack(t *testing.T) {
	tests := []struct {
		name string
		bits []uint8
		want []byte
	}{
		{"empty", nil, []byte{}},
		{"one byte msb first", []uint8{1, 0, 0, 0, 0, 0, 0, 1}, []byte{0x81}},
		{"two bytes", []uint8{1, 1, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 1, 0}, []byte{0xF0, 0x0A}},
		{"short tail padded", []uint8{1, 0, 1}, []byte{0xA0}},
		{"four zeros", []uint8{0, 0, 0, 0}, []byte{0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Pack(tt.bits, TailPad)
			if err != nil {
				t.Fatalf("Pack() error: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Pack() = %x, want %x", got, tt.want)
			}
		})
	}
}

func TestPackReject(t *testing.T) {
	_, err := Pack([]uint8{1, 0, 1}, TailReject)
	if !errors.Is(err, errors.ErrCodeDataAlignment) {
		t.Errorf("error = %v, want DATA_ALIGNMENT", err)
	}

	got, err := Pack(make([]uint8, 16), TailReject)
	if err != nil || len(got) != 2 {
		t.Errorf("aligned input: got %x, %v", got, err)
	}
}

func TestPackInvalidBit(t *testing.T) {
	if _, err := Pack([]uint8{0, 2}, TailPad); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("error = %v, want INVALID_INPUT", err)
	}
}

func TestUnpack(t *testing.T) {
	want := []uint8{1, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 1, 0}
	if got := Unpack([]byte{0x81, 0x0A}); !slices.Equal(got, want) {
		t.Errorf("Unpack() = %v, want %v", got, want)
	}
}

func TestBitmap(t *testing.T) {
	g := grid.Filled(3, 1, grid.White)
	g.Set(1, 0, grid.Black)
	if got := Bitmap(g); !slices.Equal(got, []uint8{1, 0, 1}) {
		t.Errorf("Bitmap() = %v, want [1 0 1]", got)
	}
}

func TestOnes(t *testing.T) {
	if got := Ones([]byte{0xFF, 0x01, 0x00, 0x88}); got != 11 {
		t.Errorf("Ones() = %d, want 11", got)
	}
}

func TestPackedLen(t *testing.T) {
	for n, want := range map[int]int{0: 0, 1: 1, 8: 1, 9: 2, 65536: 8192} {
		if got := PackedLen(n); got != want {
			t.Errorf("PackedLen(%d) = %d, want %d", n, got, want)
		}
	}
}
