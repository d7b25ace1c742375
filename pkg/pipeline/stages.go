package pipeline

import (
	"fmt"
	"image"
	"time"

	"github.com/matzehuels/catbits/pkg/core/bits"
	"github.com/matzehuels/catbits/pkg/core/catmap"
	"github.com/matzehuels/catbits/pkg/core/crop"
	"github.com/matzehuels/catbits/pkg/core/dither"
	"github.com/matzehuels/catbits/pkg/core/grid"
	"github.com/matzehuels/catbits/pkg/core/parity"
	"github.com/matzehuels/catbits/pkg/core/zigzag"
)

// Stage names in execution order.
const (
	StageGrid      = "grid"
	StageCrop      = "crop"
	StageDither    = "dither"
	StagePermute   = "permute"
	StageEncode    = "encode"
	StageSerialize = "serialize"
	StagePack      = "pack"
)

// Stages lists every stage in execution order.
var Stages = []string{
	StageGrid, StageCrop, StageDither, StagePermute, StageEncode, StageSerialize, StagePack,
}

// StageInfo describes one stage of a configured chain.
type StageInfo struct {
	Name   string
	Detail string
}

// Plan returns the stages opts will run, in order, with their parameters.
func Plan(opts Options) ([]StageInfo, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	dither := fmt.Sprintf("Floyd-Steinberg, threshold %d", opts.Threshold)
	if opts.ExportBitmap {
		dither += ", bitmap exported"
	}
	plan := []StageInfo{
		{StageGrid, fmt.Sprintf("%s channel", opts.Channel)},
		{StageCrop, fmt.Sprintf("centered %dx%d", opts.Width, opts.Height)},
		{StageDither, dither},
	}
	if !opts.NoPermute {
		cat := opts.CatParams()
		plan = append(plan, StageInfo{StagePermute,
			fmt.Sprintf("cat map p=%d q=%d, %d rounds", cat.P, cat.Q, cat.Iterations)})
	}
	return append(plan,
		StageInfo{StageEncode, fmt.Sprintf("%dx%d block parity, %s edges", opts.BlockSize, opts.BlockSize, opts.Edge)},
		StageInfo{StageSerialize, fmt.Sprintf("zigzag, chunks of %d", opts.ChunkSize)},
		StageInfo{StagePack, fmt.Sprintf("MSB first, %s tail", opts.Tail)},
	), nil
}

// observer is told about each finished stage. g is the stage's output grid
// for grid-producing stages and nil otherwise; it must not be retained.
type observer func(stage string, d time.Duration, g *grid.Grid, err error)

// Transform runs the full chain on img. It does no caching, logging or
// hook calls; use a Runner for that.
func Transform(img image.Image, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	return transform(grid.FromImage(img, opts.Channel), opts, nil)
}

// TransformGrid runs the chain from crop onward. g is consumed.
func TransformGrid(g *grid.Grid, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	return transform(g, opts, nil)
}

func transform(g *grid.Grid, opts Options, obs observer) (*Result, error) {
	if obs == nil {
		obs = func(string, time.Duration, *grid.Grid, error) {}
	}
	res := &Result{}
	res.Stats.SourceWidth, res.Stats.SourceHeight = g.Width, g.Height
	start := time.Now()

	// run times fn and records it under stage.
	run := func(stage string, fn func() (*grid.Grid, error)) error {
		t := time.Now()
		out, err := fn()
		d := time.Since(t)
		res.Stats.Stages = append(res.Stats.Stages, StageTiming{Stage: stage, Duration: d})
		obs(stage, d, out, err)
		if err != nil {
			return fmt.Errorf("%s: %w", stage, err)
		}
		return nil
	}

	err := run(StageCrop, func() (*grid.Grid, error) {
		var err error
		g, err = crop.Center(g, opts.Width, opts.Height)
		return g, err
	})
	if err != nil {
		return nil, err
	}

	err = run(StageDither, func() (*grid.Grid, error) {
		g = dither.Apply(g, dither.Options{Threshold: opts.Threshold})
		return g, nil
	})
	if err != nil {
		return nil, err
	}

	if opts.ExportBitmap {
		res.Bitmap, err = bits.Pack(bits.Bitmap(g), opts.Tail)
		if err != nil {
			return nil, fmt.Errorf("bitmap: %w", err)
		}
	}

	if !opts.NoPermute {
		err = run(StagePermute, func() (*grid.Grid, error) {
			var err error
			g, err = catmap.Permute(g, opts.CatParams())
			return g, err
		})
		if err != nil {
			return nil, err
		}
	}

	var blocks *parity.Blocks
	err = run(StageEncode, func() (*grid.Grid, error) {
		var err error
		blocks, err = parity.Encode(g, opts.BlockSize, opts.Edge)
		return nil, err
	})
	if err != nil {
		return nil, err
	}
	res.Stats.BlockRows, res.Stats.BlockCols = blocks.Rows, blocks.Cols

	err = run(StageSerialize, func() (*grid.Grid, error) {
		chunks := zigzag.Chunk(zigzag.Scan(blocks.Bits, blocks.Rows, blocks.Cols), opts.ChunkSize)
		res.Stats.Chunks = len(chunks)
		res.Bits = zigzag.Flatten(chunks)
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	res.Stats.BitCount = len(res.Bits)

	err = run(StagePack, func() (*grid.Grid, error) {
		var err error
		res.Bytes, err = bits.Pack(res.Bits, opts.Tail)
		return nil, err
	})
	if err != nil {
		return nil, err
	}

	res.Stats.Total = time.Since(start)
	return res, nil
}
