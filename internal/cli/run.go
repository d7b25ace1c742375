package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/catbits/pkg/analysis"
	"github.com/matzehuels/catbits/pkg/core/bits"
	"github.com/matzehuels/catbits/pkg/core/grid"
	"github.com/matzehuels/catbits/pkg/core/parity"
	"github.com/matzehuels/catbits/pkg/config"
	"github.com/matzehuels/catbits/pkg/httputil"
	pkgio "github.com/matzehuels/catbits/pkg/io"
	"github.com/matzehuels/catbits/pkg/pipeline"
	"github.com/matzehuels/catbits/pkg/source"
	"github.com/matzehuels/catbits/pkg/store"
)

// runFlags holds the flags of the run command. Only flags the user set
// override the config file; see apply.
type runFlags struct {
	sourceDir    string
	extensions   []string
	output       string
	bitmapOutput string
	format       string
	cacheURL     string
	storeURL     string
	prefetch     int
	noCache      bool
	progress     bool

	width, height int
	channel       string
	autoOrient    bool
	threshold     int
	catP, catQ    int
	iterations    int
	noPermute     bool
	blockSize     int
	chunkSize     int
	edge          string
	tail          string
	bitmap        bool
	debugDir      string
	refresh       bool
}

// runCommand creates the run command.
func (c *CLI) runCommand() *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run [images or URLs...]",
		Short: "Convert images into the bitstream artifact",
		Long: `Convert images into the bitstream artifact.

Without arguments every image in the source directory (default "src",
extension .jpg) is processed in name order. Arguments may instead name
image files, or http(s) URLs that are downloaded concurrently.

Each image is cropped to the centre, dithered, scrambled with the cat map,
reduced to one parity bit per 4x4 block and serialized in zigzag order. The
packed bytes of every image are appended to the output, which is truncated
once at the start of the run. Images that cannot be decoded or are too
small are skipped.`,
		Example: `  catbits run
  catbits run -s photos --ext .jpg,.png -o out.bin --bitmap
  catbits run --format text --iterations 3 img1.jpg img2.jpg
  catbits run https://example.com/a.jpg https://example.com/b.jpg`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			f.apply(cmd.Flags().Changed, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return c.runBatch(cmd.Context(), cfg, args, f)
		},
	}

	defaults := config.Default()
	opts := defaults.Pipeline

	flags := cmd.Flags()
	flags.StringVarP(&f.sourceDir, "source", "s", defaults.Source.Dir, "directory scanned for images")
	flags.StringSliceVar(&f.extensions, "ext", defaults.Source.Extensions, "image extensions to include (comma-separated)")
	flags.StringVarP(&f.output, "output", "o", defaults.Output.Path, "bitstream artifact")
	flags.StringVar(&f.bitmapOutput, "bitmap-output", defaults.Output.Bitmap, "dithered bitmap artifact (with --bitmap)")
	flags.StringVarP(&f.format, "format", "f", string(defaults.Output.Format), "artifact encoding: bin, text")
	flags.StringVar(&f.cacheURL, "cache", defaults.Cache.URL, "cache backend: file, none or redis://host:port/db")
	flags.BoolVar(&f.noCache, "no-cache", false, "disable caching")
	flags.StringVar(&f.storeURL, "store", "", "run history: sqlite path, mongodb:// URL or none")
	flags.IntVar(&f.prefetch, "prefetch", defaults.Source.Prefetch, "concurrent downloads for URL arguments")
	flags.BoolVar(&f.progress, "progress", false, "show a live progress view")

	flags.IntVar(&f.width, "width", opts.Width, "crop width")
	flags.IntVar(&f.height, "height", opts.Height, "crop height")
	flags.StringVar(&f.channel, "channel", string(opts.Channel), "intensity channel: luma, red")
	flags.IntVar(&f.threshold, "threshold", opts.Threshold, "dithering threshold (1-255)")
	flags.BoolVar(&f.autoOrient, "auto-orient", false, "rotate JPEGs by their EXIF orientation before cropping")
	flags.IntVar(&f.catP, "cat-p", opts.CatParams().P, "cat map parameter p (0 allowed)")
	flags.IntVar(&f.catQ, "cat-q", opts.CatParams().Q, "cat map parameter q (0 allowed)")
	flags.IntVar(&f.iterations, "iterations", opts.Iterations, "cat map rounds (0 selects the default)")
	flags.BoolVar(&f.noPermute, "no-permute", false, "skip the cat map")
	flags.IntVar(&f.blockSize, "block-size", opts.BlockSize, "parity block side")
	flags.IntVar(&f.chunkSize, "chunk-size", opts.ChunkSize, "serializer chunk length")
	flags.StringVar(&f.edge, "edge", string(opts.Edge), "partial blocks: strict, clamp")
	flags.StringVar(&f.tail, "tail", string(opts.Tail), "bit counts not divisible by 8: pad, reject")
	flags.BoolVar(&f.bitmap, "bitmap", false, "also write the dithered bitmap artifact")
	flags.StringVar(&f.debugDir, "debug-dir", "", "write intermediate grids as PNG to this directory")
	flags.BoolVar(&f.refresh, "refresh", false, "ignore cached results and downloads")

	return cmd
}

// apply copies every flag the user set into cfg.
func (f *runFlags) apply(changed func(string) bool, cfg *config.File) {
	set := func(name string, fn func()) {
		if changed(name) {
			fn()
		}
	}
	p := &cfg.Pipeline

	set("source", func() { cfg.Source.Dir = f.sourceDir })
	set("ext", func() { cfg.Source.Extensions = f.extensions })
	set("output", func() { cfg.Output.Path = f.output })
	set("bitmap-output", func() { cfg.Output.Bitmap = f.bitmapOutput })
	set("format", func() { cfg.Output.Format = pkgio.Format(f.format) })
	set("cache", func() { cfg.Cache.URL = f.cacheURL })
	set("store", func() { cfg.Store.URL = f.storeURL })
	set("prefetch", func() { cfg.Source.Prefetch = f.prefetch })
	if f.noCache {
		cfg.Cache.URL = "none"
	}

	set("width", func() { p.Width = f.width })
	set("height", func() { p.Height = f.height })
	set("channel", func() { p.Channel = grid.Channel(f.channel) })
	set("threshold", func() { p.Threshold = f.threshold })
	set("auto-orient", func() { p.AutoOrient = f.autoOrient })
	set("cat-p", func() { p.CatP = pipeline.Int(f.catP) })
	set("cat-q", func() { p.CatQ = pipeline.Int(f.catQ) })
	set("iterations", func() { p.Iterations = f.iterations })
	set("no-permute", func() { p.NoPermute = f.noPermute })
	set("block-size", func() { p.BlockSize = f.blockSize })
	set("chunk-size", func() { p.ChunkSize = f.chunkSize })
	set("edge", func() { p.Edge = parity.EdgePolicy(f.edge) })
	set("tail", func() { p.Tail = bits.TailPolicy(f.tail) })
	set("bitmap", func() { p.ExportBitmap = f.bitmap })
	set("debug-dir", func() { p.DebugDir = f.debugDir })
	set("refresh", func() { p.Refresh = f.refresh })
}

// runBatch wires the source, sinks, runner and run history together.
func (c *CLI) runBatch(ctx context.Context, cfg *config.File, args []string, f runFlags) error {
	stopTracing, err := c.setupTracing(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer stopTracing()

	runner, err := c.newRunner(cfg, nil)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	opts := cfg.Pipeline
	src, label, err := c.openSource(ctx, cfg, runner, args, opts.Refresh)
	if err != nil {
		return err
	}
	defer src.Close()
	if src.Len() == 0 {
		printWarning("No images found in %s", label)
		return nil
	}

	sinks, err := openSinks(cfg.Output, opts.ExportBitmap)
	if err != nil {
		return err
	}

	ledger := c.newStore(ctx, cfg.Store)
	defer ledger.Close()

	c.Logger.Info("starting batch", "source", label, "images", src.Len(), "options", opts.String())
	prog := newProgress(c.Logger)

	var res *pipeline.BatchResult
	if f.progress {
		res, err = batchWithProgress(ctx, runner, src, sinks, opts)
	} else {
		res, err = runner.Batch(ctx, src, sinks, opts, func(r pipeline.ImageReport) {
			fmt.Println(imageLine(r))
		})
	}
	if res == nil {
		return err
	}

	entropy := c.summarize(cfg.Output, res)
	run := store.NewRun(res, label, cfg.Output.Path, opts, entropy, err)
	if serr := ledger.SaveRun(context.WithoutCancel(ctx), run); serr != nil {
		c.Logger.Warn("could not record run", "error", serr)
	}
	if err != nil {
		return err
	}

	prog.done("batch complete", "images", res.Images)
	printBatchSummary(res)
	printFile(cfg.Output.Path)
	if opts.ExportBitmap {
		printFile(cfg.Output.Bitmap)
	}
	printNextStep("Inspect the output", "catbits analyze "+cfg.Output.Path)
	return nil
}

// openSource picks the image source: URL arguments, file arguments or the
// configured directory.
func (c *CLI) openSource(ctx context.Context, cfg *config.File, runner *pipeline.Runner, args []string, refresh bool) (source.Source, string, error) {
	if len(args) == 0 {
		src, err := source.Dir(cfg.Source.Dir, cfg.Source.Extensions...)
		return src, cfg.Source.Dir, err
	}

	remote := 0
	for _, a := range args {
		if strings.HasPrefix(a, "http://") || strings.HasPrefix(a, "https://") {
			remote++
		}
	}
	switch remote {
	case 0:
		src, err := source.Files(args...)
		return src, fmt.Sprintf("%d files", len(args)), err
	case len(args):
		client := httputil.NewClient(runner.Cache, "image", map[string]string{"User-Agent": "catbits"})
		src := source.URLs(client, args).WithRefresh(refresh)
		src.Prefetch(ctx, cfg.Source.Prefetch)
		return src, fmt.Sprintf("%d URLs", len(args)), nil
	default:
		return nil, "", fmt.Errorf("cannot mix URLs and file paths")
	}
}

func openSinks(out config.Output, bitmap bool) (pipeline.Sinks, error) {
	wrap := func(path string) (pkgio.Sink, error) {
		f, err := pkgio.NewFile(path)
		if err != nil {
			return nil, err
		}
		if out.Format == pkgio.FormatText {
			return pkgio.NewText(f), nil
		}
		return f, nil
	}

	var sinks pipeline.Sinks
	var err error
	if sinks.Output, err = wrap(out.Path); err != nil {
		return sinks, err
	}
	if bitmap {
		if sinks.Bitmap, err = wrap(out.Bitmap); err != nil {
			return sinks, err
		}
	}
	return sinks, nil
}

// summarize logs the entropy of the written artifact and returns it.
func (c *CLI) summarize(out config.Output, res *pipeline.BatchResult) float64 {
	if res.Bytes == 0 {
		return 0
	}
	report, err := analysis.AnalyzeFile(out.Path, out.Format)
	if err != nil {
		c.Logger.Debug("skipping output analysis", "error", err)
		return 0
	}
	c.Logger.Debug("output analysis", "entropy", report.Summary.Entropy, "chi_square", report.Summary.ChiSquare)
	return report.Summary.Entropy
}
