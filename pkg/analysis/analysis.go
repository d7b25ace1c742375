// Package analysis measures how random-looking an output artifact is.
//
// It is a pure consumer of the artifact format: a flat byte sequence, or
// its ASCII '0'/'1' rendering. The measures are the usual first checks for
// a byte source:
//
//   - byte histogram and Shannon entropy (8 bits per byte is ideal)
//   - chi-square of the histogram against a uniform distribution
//   - ratio of one bits, byte mean and serial correlation
//   - zstd compression ratio (random data does not compress)
//
// None of these certify randomness; they flag obviously biased output.
package analysis

import (
	"math"

	"github.com/klauspost/compress/zstd"
	"github.com/montanaflynn/stats"

	"github.com/matzehuels/catbits/pkg/core/bits"
	"github.com/matzehuels/catbits/pkg/errors"
	pkgio "github.com/matzehuels/catbits/pkg/io"
)

// Summary holds the measures for one byte sequence.
type Summary struct {
	Bytes int `json:"bytes"`

	// Entropy is the Shannon entropy of the byte distribution in bits per byte.
	Entropy float64 `json:"entropy"`

	// ChiSquare is the statistic against a uniform byte distribution with
	// 255 degrees of freedom.
	ChiSquare float64 `json:"chi_square"`

	// Mean is the arithmetic mean of the byte values (127.5 ideal).
	Mean float64 `json:"mean"`

	// SerialCorrelation between consecutive bytes (0 ideal).
	SerialCorrelation float64 `json:"serial_correlation"`

	// BitOnesRatio is the fraction of set bits (0.5 ideal).
	BitOnesRatio float64 `json:"bit_ones_ratio"`

	// CompressionRatio is compressed size / size (about 1 for random data).
	CompressionRatio float64 `json:"compression_ratio"`

	// Statistics of the 256 histogram bin counts.
	BinMean   float64 `json:"bin_mean"`
	BinStdDev float64 `json:"bin_stddev"`
	BinMedian float64 `json:"bin_median"`
	BinMin    float64 `json:"bin_min"`
	BinMax    float64 `json:"bin_max"`
}

// Report is a Summary together with its histogram and input format.
type Report struct {
	Path      string       `json:"path,omitempty"`
	Format    pkgio.Format `json:"format"`
	Summary   Summary      `json:"summary"`
	Histogram [256]uint64  `json:"histogram"`
}

// Histogram counts occurrences of every byte value.
func Histogram(data []byte) [256]uint64 {
	var h [256]uint64
	for _, b := range data {
		h[b]++
	}
	return h
}

func total(hist [256]uint64) uint64 {
	var n uint64
	for _, c := range hist {
		n += c
	}
	return n
}

// Entropy returns the Shannon entropy of hist in bits per symbol.
func Entropy(hist [256]uint64) float64 {
	n := float64(total(hist))
	if n == 0 {
		return 0
	}
	var h float64
	for _, c := range hist {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		h -= p * math.Log2(p)
	}
	return h
}

// ChiSquare returns the chi-square statistic of hist against the uniform
// distribution.
func ChiSquare(hist [256]uint64) float64 {
	n := float64(total(hist))
	if n == 0 {
		return 0
	}
	expected := n / 256
	var chi float64
	for _, c := range hist {
		d := float64(c) - expected
		chi += d * d / expected
	}
	return chi
}

// SerialCorrelation returns the correlation coefficient between each byte
// and its successor, wrapping the last byte around to the first.
func SerialCorrelation(data []byte) float64 {
	n := float64(len(data))
	if len(data) < 2 {
		return 0
	}
	var sx, sxx, sxy float64
	for i, b := range data {
		x := float64(b)
		y := float64(data[(i+1)%len(data)])
		sx += x
		sxx += x * x
		sxy += x * y
	}
	den := n*sxx - sx*sx
	if den == 0 {
		return 0
	}
	return (n*sxy - sx*sx) / den
}

// CompressionRatio returns the zstd-compressed size divided by the input size.
func CompressionRatio(data []byte) (float64, error) {
	if len(data) == 0 {
		return 0, nil
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return 0, err
	}
	defer enc.Close()
	return float64(len(enc.EncodeAll(data, nil))) / float64(len(data)), nil
}

// Analyze computes the Summary of data.
func Analyze(data []byte) (Summary, error) {
	s, _, err := analyze(data)
	return s, err
}

func analyze(data []byte) (Summary, [256]uint64, error) {
	hist := Histogram(data)
	s := Summary{Bytes: len(data)}
	if len(data) == 0 {
		return s, hist, errors.New(errors.ErrCodeInvalidInput, "no data to analyze")
	}

	s.Entropy = Entropy(hist)
	s.ChiSquare = ChiSquare(hist)
	s.SerialCorrelation = SerialCorrelation(data)
	s.BitOnesRatio = float64(bits.Ones(data)) / float64(len(data)*8)

	var sum float64
	for v, c := range hist {
		sum += float64(v) * float64(c)
	}
	s.Mean = sum / float64(len(data))

	counts := make(stats.Float64Data, len(hist))
	for i, c := range hist {
		counts[i] = float64(c)
	}
	var err error
	if s.BinMean, err = stats.Mean(counts); err != nil {
		return s, hist, err
	}
	if s.BinStdDev, err = stats.StandardDeviation(counts); err != nil {
		return s, hist, err
	}
	if s.BinMedian, err = stats.Median(counts); err != nil {
		return s, hist, err
	}
	if s.BinMin, err = stats.Min(counts); err != nil {
		return s, hist, err
	}
	if s.BinMax, err = stats.Max(counts); err != nil {
		return s, hist, err
	}

	if s.CompressionRatio, err = CompressionRatio(data); err != nil {
		return s, hist, err
	}
	return s, hist, nil
}

// AnalyzeBytes analyzes an artifact held in memory. Text artifacts are
// packed to bytes first.
func AnalyzeBytes(data []byte, format pkgio.Format) (*Report, error) {
	if format == "" {
		format = pkgio.DetectFormat(data)
	}
	if format == pkgio.FormatText {
		var err error
		if data, err = pkgio.DecodeText(data); err != nil {
			return nil, err
		}
	}

	s, hist, err := analyze(data)
	if err != nil {
		return nil, err
	}
	return &Report{Format: format, Summary: s, Histogram: hist}, nil
}

// AnalyzeFile reads and analyzes the artifact at path. An empty format is
// detected from the contents.
func AnalyzeFile(path string, format pkgio.Format) (*Report, error) {
	data, err := pkgio.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r, err := AnalyzeBytes(data, format)
	if err != nil {
		return nil, err
	}
	r.Path = path
	return r, nil
}
