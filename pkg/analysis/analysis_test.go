package analysis

import (
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/catbits/pkg/errors"
	pkgio "github.com/matzehuels/catbits/pkg/io"
)

func almost(a, b, eps float64) bool { return math.Abs(a-b) <= eps }

func allValues(repeat int) []byte {
	out := make([]byte, 0, 256*repeat)
	for range repeat {
		for v := range 256 {
			out = append(out, byte(v))
		}
	}
	return out
}

func TestHistogram(t *testing.T) {
	h := Histogram([]byte{0, 0, 255, 7})
	if h[0] != 2 || h[255] != 1 || h[7] != 1 || h[1] != 0 {
		t.Errorf("unexpected histogram: h[0]=%d h[7]=%d h[255]=%d", h[0], h[7], h[255])
	}
}

func TestEntropy(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want float64
	}{
		{"empty", nil, 0},
		{"constant", make([]byte, 100), 0},
		{"two symbols", []byte{0, 1, 0, 1}, 1},
		{"uniform", allValues(4), 8},
	}
	for _, tt := range tests {
		if got := Entropy(Histogram(tt.data)); !almost(got, tt.want, 1e-9) {
			t.Errorf("%s: Entropy = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestChiSquare(t *testing.T) {
	if got := ChiSquare(Histogram(allValues(3))); got != 0 {
		t.Errorf("uniform ChiSquare = %v, want 0", got)
	}
	// 256 zeros: expected 1 per bin, observed 256 in one bin.
	// (256-1)^2/1 + 255 * 1 = 65025 + 255
	if got := ChiSquare(Histogram(make([]byte, 256))); got != 65280 {
		t.Errorf("constant ChiSquare = %v, want 65280", got)
	}
}

func TestSerialCorrelation(t *testing.T) {
	if got := SerialCorrelation(make([]byte, 10)); got != 0 {
		t.Errorf("constant data = %v, want 0", got)
	}
	alternating := []byte{0, 255, 0, 255, 0, 255, 0, 255}
	if got := SerialCorrelation(alternating); !almost(got, -1, 1e-9) {
		t.Errorf("alternating = %v, want -1", got)
	}
}

func TestAnalyzeRandomLooking(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	data := make([]byte, 1<<16)
	for i := range data {
		data[i] = byte(r.Uint32())
	}

	s, err := Analyze(data)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if s.Entropy < 7.99 {
		t.Errorf("Entropy = %v, want close to 8", s.Entropy)
	}
	if !almost(s.BitOnesRatio, 0.5, 0.01) {
		t.Errorf("BitOnesRatio = %v, want about 0.5", s.BitOnesRatio)
	}
	if !almost(s.Mean, 127.5, 2) {
		t.Errorf("Mean = %v, want about 127.5", s.Mean)
	}
	if s.CompressionRatio < 0.95 {
		t.Errorf("CompressionRatio = %v, random data should not compress", s.CompressionRatio)
	}
	if !almost(s.BinMean, 256, 1e-9) {
		t.Errorf("BinMean = %v, want 256", s.BinMean)
	}
}

func TestAnalyzeBiased(t *testing.T) {
	s, err := Analyze(make([]byte, 4096))
	if err != nil {
		t.Fatal(err)
	}
	if s.Entropy != 0 || s.BitOnesRatio != 0 {
		t.Errorf("zeros: entropy %v ones %v", s.Entropy, s.BitOnesRatio)
	}
	if s.CompressionRatio > 0.1 {
		t.Errorf("zeros should compress well, ratio %v", s.CompressionRatio)
	}
	if s.BinMax != 4096 || s.BinMin != 0 {
		t.Errorf("bin min/max = %v/%v", s.BinMin, s.BinMax)
	}
}

func TestAnalyzeEmpty(t *testing.T) {
	if _, err := Analyze(nil); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("error = %v, want INVALID_INPUT", err)
	}
}

func TestAnalyzeFileFormats(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "random_sequence.bin")
	txt := filepath.Join(dir, "random_sequence.txt")
	os.WriteFile(bin, []byte{0xA5, 0x0F}, 0o644)
	os.WriteFile(txt, []byte("10100101\n00001111\n"), 0o644)

	rb, err := AnalyzeFile(bin, "")
	if err != nil {
		t.Fatalf("AnalyzeFile(bin) error: %v", err)
	}
	rt, err := AnalyzeFile(txt, "")
	if err != nil {
		t.Fatalf("AnalyzeFile(txt) error: %v", err)
	}
	if rb.Format != pkgio.FormatBinary || rt.Format != pkgio.FormatText {
		t.Errorf("formats = %s/%s", rb.Format, rt.Format)
	}
	if rb.Histogram != rt.Histogram {
		t.Error("text and binary renderings should analyze identically")
	}
	if rb.Summary.Bytes != 2 || rb.Path != bin {
		t.Errorf("report = %+v", rb)
	}

	if _, err := AnalyzeFile(filepath.Join(dir, "missing.bin"), ""); !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("missing file error = %v", err)
	}
}
