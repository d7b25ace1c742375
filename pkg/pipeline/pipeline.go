// Package pipeline turns source images into packed bitstreams.
//
// This package chains the core stages and is shared by the CLI and the HTTP
// server so that both produce byte-identical output for the same options.
//
// # Architecture
//
// Every image runs through the same linear chain:
//
//  1. grid: decode to a single-channel intensity grid
//  2. crop: centered crop to the target size
//  3. dither: Floyd–Steinberg binarization, in place
//  4. permute: iterated cat map on the square grid
//  5. encode: parity of every block
//  6. serialize: zigzag scan of the parity grid, in chunks
//  7. pack: bits to bytes, MSB first
//
// Images are processed one at a time. A stage never shares its grid with
// another stage.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.Options{Iterations: 7}
//	result, err := runner.Process(ctx, img, opts)
//
// Or drive a whole batch into an artifact:
//
//	src, _ := source.Dir("src")
//	out, _ := pkgio.NewFile("random_sequence.bin")
//	res, err := runner.Batch(ctx, src, pipeline.Sinks{Output: out}, opts, nil)
package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/catbits/pkg/cache"
	"github.com/matzehuels/catbits/pkg/core/bits"
	"github.com/matzehuels/catbits/pkg/core/catmap"
	"github.com/matzehuels/catbits/pkg/core/crop"
	"github.com/matzehuels/catbits/pkg/core/dither"
	"github.com/matzehuels/catbits/pkg/core/grid"
	"github.com/matzehuels/catbits/pkg/core/parity"
	"github.com/matzehuels/catbits/pkg/core/zigzag"
	"github.com/matzehuels/catbits/pkg/errors"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

const (
	// DefaultWidth is the crop width in pixels.
	DefaultWidth = crop.DefaultWidth

	// DefaultHeight is the crop height in pixels.
	DefaultHeight = crop.DefaultHeight

	// DefaultThreshold is the dithering threshold.
	DefaultThreshold = dither.DefaultThreshold

	// DefaultIterations is the number of cat map rounds.
	DefaultIterations = catmap.DefaultIterations

	// DefaultBlockSize is the parity block edge length.
	DefaultBlockSize = parity.DefaultBlockSize

	// DefaultChunkSize is the zigzag chunk length.
	DefaultChunkSize = zigzag.DefaultChunkSize

	// DefaultChannel is the intensity channel read from color images.
	DefaultChannel = grid.ChannelLuma

	// DefaultTail is the policy for a bit count that is not a multiple of 8.
	DefaultTail = bits.TailPad

	// DefaultEdge is the policy for grids that are not a multiple of the block size.
	DefaultEdge = parity.EdgeStrict
)

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for the bitstream pipeline.
// Zero values select the defaults above. This struct supports JSON, TOML and
// environment decoding for the config file, the API and CATBITS_* variables.
type Options struct {
	// Preprocess options
	Width   int          `json:"width,omitempty" toml:"width" env:"WIDTH"`
	Height  int          `json:"height,omitempty" toml:"height" env:"HEIGHT"`
	Channel grid.Channel `json:"channel,omitempty" toml:"channel" env:"CHANNEL"`

	// AutoOrient applies the EXIF orientation tag while decoding. Off by
	// default: the stages see the pixels in stored order, so a rotated
	// phone photo is cropped in its sensor orientation.
	AutoOrient bool `json:"auto_orient,omitempty" toml:"auto_orient" env:"AUTO_ORIENT"`

	// Dither options
	Threshold int `json:"threshold,omitempty" toml:"threshold" env:"THRESHOLD"`

	// Permutation options. CatP and CatQ are pointers because 0 is a valid
	// coefficient; nil selects the default. A zero iteration count means
	// DefaultIterations; NoPermute skips the stage entirely.
	CatP       *int `json:"cat_p,omitempty" toml:"cat_p" env:"CAT_P"`
	CatQ       *int `json:"cat_q,omitempty" toml:"cat_q" env:"CAT_Q"`
	Iterations int  `json:"iterations,omitempty" toml:"iterations" env:"ITERATIONS"`
	NoPermute  bool `json:"no_permute,omitempty" toml:"no_permute" env:"NO_PERMUTE"`

	// Encode options
	BlockSize int               `json:"block_size,omitempty" toml:"block_size" env:"BLOCK_SIZE"`
	Edge      parity.EdgePolicy `json:"edge,omitempty" toml:"edge" env:"EDGE"`
	ChunkSize int               `json:"chunk_size,omitempty" toml:"chunk_size" env:"CHUNK_SIZE"`
	Tail      bits.TailPolicy   `json:"tail,omitempty" toml:"tail" env:"TAIL"`

	// Output options
	ExportBitmap bool   `json:"export_bitmap,omitempty" toml:"export_bitmap" env:"EXPORT_BITMAP"`
	DebugDir     string `json:"-" toml:"debug_dir" env:"DEBUG_DIR"`
	Refresh      bool   `json:"-" toml:"-"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-" toml:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// Result contains the outputs for one image.
type Result struct {
	// Bits is the serialized parity sequence, one 0/1 value per element.
	Bits []uint8

	// Bytes is Bits packed MSB first.
	Bytes []byte

	// Bitmap is the packed dithered grid before permutation, when
	// ExportBitmap is set.
	Bitmap []byte

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks whether the result came from the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	SourceWidth  int
	SourceHeight int
	BlockRows    int
	BlockCols    int
	Chunks       int
	BitCount     int
	Stages       []StageTiming
	Total        time.Duration
}

// StageTiming is the duration of one stage.
type StageTiming struct {
	Stage    string
	Duration time.Duration
}

// CacheInfo tracks cache hits.
type CacheInfo struct {
	ResultHit bool
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateChannel checks that a channel name is valid.
func ValidateChannel(ch grid.Channel) error {
	if !grid.ValidChannels[ch] {
		return errors.New(errors.ErrCodeInvalidConfig, "invalid channel: %q (must be one of: luma, red)", ch)
	}
	return nil
}

// ValidateTail checks that a tail policy is valid.
func ValidateTail(t bits.TailPolicy) error {
	if !bits.ValidTailPolicies[t] {
		return errors.New(errors.ErrCodeInvalidConfig, "invalid tail policy: %q (must be one of: pad, reject)", t)
	}
	return nil
}

// ValidateEdge checks that an edge policy is valid.
func ValidateEdge(e parity.EdgePolicy) error {
	if !parity.ValidEdgePolicies[e] {
		return errors.New(errors.ErrCodeInvalidConfig, "invalid edge policy: %q (must be one of: strict, clamp)", e)
	}
	return nil
}

// =============================================================================
// Options Methods
// =============================================================================

// SetDefaults fills zero fields with their defaults.
func (o *Options) SetDefaults() {
	if o.Width == 0 {
		o.Width = DefaultWidth
	}
	if o.Height == 0 {
		o.Height = DefaultHeight
	}
	if o.Channel == "" {
		o.Channel = DefaultChannel
	}
	if o.Threshold == 0 {
		o.Threshold = DefaultThreshold
	}
	if o.CatP == nil {
		o.CatP = Int(catmap.DefaultP)
	}
	if o.CatQ == nil {
		o.CatQ = Int(catmap.DefaultQ)
	}
	if o.Iterations == 0 {
		o.Iterations = DefaultIterations
	}
	if o.BlockSize == 0 {
		o.BlockSize = DefaultBlockSize
	}
	if o.ChunkSize == 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.Edge == "" {
		o.Edge = DefaultEdge
	}
	if o.Tail == "" {
		o.Tail = DefaultTail
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// Validate checks option ranges. Call SetDefaults first.
func (o *Options) Validate() error {
	if o.Width < 1 || o.Height < 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "crop size must be positive, got %dx%d", o.Width, o.Height)
	}
	if !o.NoPermute && o.Width != o.Height {
		return errors.New(errors.ErrCodeInvalidConfig,
			"crop must be square for the cat map, got %dx%d", o.Width, o.Height)
	}
	if o.Threshold < 1 || o.Threshold > 255 {
		return errors.New(errors.ErrCodeInvalidConfig, "threshold must be in 1..255, got %d", o.Threshold)
	}
	if err := o.CatParams().Validate(); err != nil {
		return err
	}
	if o.BlockSize < 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "block size must be positive, got %d", o.BlockSize)
	}
	if o.ChunkSize < 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "chunk size must be positive, got %d", o.ChunkSize)
	}
	if err := ValidateChannel(o.Channel); err != nil {
		return err
	}
	if err := ValidateEdge(o.Edge); err != nil {
		return err
	}
	if o.Edge == parity.EdgeStrict && (o.Width%o.BlockSize != 0 || o.Height%o.BlockSize != 0) {
		return errors.New(errors.ErrCodeInvalidConfig,
			"crop %dx%d is not a multiple of block size %d (use edge=clamp)", o.Width, o.Height, o.BlockSize)
	}
	return ValidateTail(o.Tail)
}

// ValidateAndSetDefaults applies defaults and validates.
// This method is idempotent - calling it multiple times has the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	o.SetDefaults()
	if err := o.Validate(); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// Clone returns a copy of o that ValidateAndSetDefaults checks again, for
// callers that override fields of already validated options.
func (o Options) Clone() Options {
	o.validated = false
	return o
}

// Int returns a pointer to v, for the optional CatP and CatQ fields.
func Int(v int) *int { return &v }

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// CatParams returns the permutation parameters. Unset coefficients read
// as their defaults.
func (o *Options) CatParams() catmap.Params {
	return catmap.Params{
		P:          intOr(o.CatP, catmap.DefaultP),
		Q:          intOr(o.CatQ, catmap.DefaultQ),
		Iterations: o.Iterations,
	}
}

// ResultKeyOpts returns cache key options for a pipeline result.
func (o *Options) ResultKeyOpts() cache.ResultKeyOpts {
	cat := o.CatParams()
	if o.NoPermute {
		cat.Iterations = -1
	}
	return cache.ResultKeyOpts{
		Width:      o.Width,
		Height:     o.Height,
		Channel:    string(o.Channel),
		AutoOrient: o.AutoOrient,
		Threshold:  o.Threshold,
		P:          cat.P,
		Q:          cat.Q,
		Iterations: cat.Iterations,
		BlockSize:  o.BlockSize,
		ChunkSize:  o.ChunkSize,
		Edge:       string(o.Edge),
		Tail:       string(o.Tail),
		Bitmap:     o.ExportBitmap,
	}
}

// String summarizes the options for logs.
func (o *Options) String() string {
	cat := o.CatParams()
	return fmt.Sprintf("%dx%d %s t=%d cat(p=%d,q=%d,k=%d) block=%d chunk=%d edge=%s tail=%s",
		o.Width, o.Height, o.Channel, o.Threshold, cat.P, cat.Q, cat.Iterations,
		o.BlockSize, o.ChunkSize, o.Edge, o.Tail)
}
