package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/catbits/pkg/cache"
	"github.com/matzehuels/catbits/pkg/core/bits"
	"github.com/matzehuels/catbits/pkg/core/grid"
	"github.com/matzehuels/catbits/pkg/observability"
	"github.com/matzehuels/catbits/pkg/source"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and API use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Process runs the pipeline on a decoded image without caching.
func (r *Runner) Process(ctx context.Context, img image.Image, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	r.applyLogger(&opts)
	return r.process(ctx, "image", img, opts)
}

// ProcessItem decodes and processes an encoded image. Results are cached by
// the hash of the encoded bytes and every option that affects the output.
func (r *Runner) ProcessItem(ctx context.Context, item source.Item, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	r.applyLogger(&opts)

	key := r.Keyer.ResultKey(cache.Hash(item.Data), opts.ResultKeyOpts())
	hooks := observability.Cache()

	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			if res, err := decodeCached(data); err == nil {
				hooks.OnCacheHit(ctx, key)
				r.Logger.Debug("result cache hit", "image", item.Name)
				return res, nil
			}
			// If deserialization fails, fall through to recompute
		}
		hooks.OnCacheMiss(ctx, key)
	}

	img, err := source.Decode(item, opts.AutoOrient)
	if err != nil {
		return nil, err
	}
	res, err := r.process(ctx, item.Name, img, opts)
	if err != nil {
		return nil, err
	}

	if data, err := encodeCached(res); err == nil {
		if err := r.Cache.Set(ctx, key, data, cache.TTLResult); err == nil {
			hooks.OnCacheSet(ctx, key, len(data))
		}
	}
	return res, nil
}

func (r *Runner) process(ctx context.Context, name string, img image.Image, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hooks := observability.Pipeline()
	logger := opts.Logger.With("image", name)

	t := time.Now()
	g := grid.FromImage(img, opts.Channel)
	d := time.Since(t)
	hooks.OnStage(ctx, name, StageGrid, d, nil)
	logger.Debug("stage done", "stage", StageGrid, "size", fmt.Sprintf("%dx%d", g.Width, g.Height), "duration", d)

	debug := newDebugExporter(opts.DebugDir, name, r.Logger)
	res, err := transform(g, opts, func(stage string, d time.Duration, out *grid.Grid, err error) {
		hooks.OnStage(ctx, name, stage, d, err)
		if err != nil {
			return
		}
		logger.Debug("stage done", "stage", stage, "duration", d)
		debug.export(stage, out)
	})
	if err != nil {
		return nil, err
	}
	res.Stats.Stages = append([]StageTiming{{Stage: StageGrid, Duration: d}}, res.Stats.Stages...)
	res.Stats.Total += d
	return res, nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

// cachedResult is the cache representation of a Result.
type cachedResult struct {
	BitCount int    `json:"bit_count"`
	Bytes    []byte `json:"bytes"`
	Bitmap   []byte `json:"bitmap,omitempty"`
	Rows     int    `json:"rows"`
	Cols     int    `json:"cols"`
	Chunks   int    `json:"chunks"`
	SourceW  int    `json:"source_w"`
	SourceH  int    `json:"source_h"`
}

func encodeCached(res *Result) ([]byte, error) {
	return json.Marshal(cachedResult{
		BitCount: res.Stats.BitCount,
		Bytes:    res.Bytes,
		Bitmap:   res.Bitmap,
		Rows:     res.Stats.BlockRows,
		Cols:     res.Stats.BlockCols,
		Chunks:   res.Stats.Chunks,
		SourceW:  res.Stats.SourceWidth,
		SourceH:  res.Stats.SourceHeight,
	})
}

func decodeCached(data []byte) (*Result, error) {
	var c cachedResult
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if c.BitCount < 0 || c.BitCount > len(c.Bytes)*8 {
		return nil, cache.ErrCorrupt
	}
	return &Result{
		Bits:   bits.Unpack(c.Bytes)[:c.BitCount],
		Bytes:  c.Bytes,
		Bitmap: c.Bitmap,
		Stats: Stats{
			SourceWidth:  c.SourceW,
			SourceHeight: c.SourceH,
			BlockRows:    c.Rows,
			BlockCols:    c.Cols,
			Chunks:       c.Chunks,
			BitCount:     c.BitCount,
		},
		CacheInfo: CacheInfo{ResultHit: true},
	}, nil
}
