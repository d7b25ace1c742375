package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/catbits/pkg/errors"
	pkgio "github.com/matzehuels/catbits/pkg/io"
	"github.com/matzehuels/catbits/pkg/observability"
	"github.com/matzehuels/catbits/pkg/source"
)

// Sinks are the artifacts a batch writes to. Bitmap is only used when
// Options.ExportBitmap is set and may be nil otherwise.
type Sinks struct {
	Output pkgio.Sink
	Bitmap pkgio.Sink
}

// ImageReport describes the outcome for one source image.
type ImageReport struct {
	Index    int
	Total    int
	Name     string
	Bits     int
	Bytes    int
	Duration time.Duration
	CacheHit bool

	// Err is set when the image was skipped.
	Err error
}

// Skipped reports whether the image contributed no bytes.
func (r ImageReport) Skipped() bool { return r.Err != nil }

// BatchResult summarizes a batch.
type BatchResult struct {
	RunID       string
	StartedAt   time.Time
	FinishedAt  time.Time
	Images      int
	Skipped     int
	Bytes       int64
	BitmapBytes int64
	Reports     []ImageReport
}

// Duration returns the wall time of the batch.
func (b *BatchResult) Duration() time.Duration { return b.FinishedAt.Sub(b.StartedAt) }

// Batch processes every item of src in order and appends each image's bytes
// to the sinks, which are reset once before the first image.
//
// Errors that only concern one image (see errors.Skippable) are logged,
// reported and skipped. Artifact write failures and cancellation abort the
// batch; bytes already appended for earlier images are kept. The partial
// BatchResult is returned together with the error.
//
// report, if non-nil, is called after every image.
func (r *Runner) Batch(ctx context.Context, src source.Source, sinks Sinks, opts Options, report func(ImageReport)) (*BatchResult, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	r.applyLogger(&opts)
	if sinks.Output == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "output sink is required")
	}
	if opts.ExportBitmap && sinks.Bitmap == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "bitmap export requested without a bitmap sink")
	}
	if report == nil {
		report = func(ImageReport) {}
	}

	res := &BatchResult{RunID: uuid.NewString(), StartedAt: time.Now()}
	hooks := observability.Pipeline()
	hooks.OnBatchStart(ctx, res.RunID)

	err := r.batch(ctx, src, sinks, opts, res, report)

	res.FinishedAt = time.Now()
	hooks.OnBatchComplete(ctx, res.RunID, res.Images, res.Skipped, res.Duration(), err)
	r.Logger.Info("batch finished",
		"run", res.RunID,
		"images", res.Images,
		"skipped", res.Skipped,
		"bytes", res.Bytes,
		"duration", res.Duration())
	return res, err
}

func (r *Runner) batch(ctx context.Context, src source.Source, sinks Sinks, opts Options, res *BatchResult, report func(ImageReport)) error {
	if err := sinks.Output.Reset(); err != nil {
		return err
	}
	if opts.ExportBitmap {
		if err := sinks.Bitmap.Reset(); err != nil {
			return err
		}
	}

	hooks := observability.Pipeline()
	total := src.Len()
	for index := 0; ; index++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		item, err := src.Next(ctx)
		if err == io.EOF {
			return nil
		}

		rep := ImageReport{Index: index, Total: total, Name: item.Name}
		start := time.Now()
		hooks.OnImageStart(ctx, item.Name)

		var out *Result
		if err == nil {
			out, err = r.ProcessItem(ctx, item, opts)
		}
		if err == nil {
			err = appendResult(sinks, out, opts)
		}
		rep.Duration = time.Since(start)

		if err != nil {
			hooks.OnImageComplete(ctx, item.Name, 0, rep.Duration, err)
			// Write failures and cancellation are never skippable.
			if ctx.Err() != nil || !errors.Skippable(err) {
				return err
			}
			rep.Err = err
			res.Skipped++
			res.Reports = append(res.Reports, rep)
			r.Logger.Warn("skipping image", "image", item.Name, "err", err)
			report(rep)
			continue
		}

		rep.Bits = out.Stats.BitCount
		rep.Bytes = len(out.Bytes)
		rep.CacheHit = out.CacheInfo.ResultHit
		res.Images++
		res.Bytes += int64(len(out.Bytes))
		res.BitmapBytes += int64(len(out.Bitmap))
		res.Reports = append(res.Reports, rep)
		hooks.OnImageComplete(ctx, item.Name, rep.Bytes, rep.Duration, nil)

		r.Logger.Info("processed image",
			"image", item.Name,
			"bits", rep.Bits,
			"bytes", rep.Bytes,
			"cached", rep.CacheHit,
			"duration", rep.Duration)
		report(rep)
	}
}

// appendResult writes one image's buffers, one Append per sink.
func appendResult(sinks Sinks, res *Result, opts Options) error {
	if err := sinks.Output.Append(res.Bytes); err != nil {
		return err
	}
	if opts.ExportBitmap {
		return sinks.Bitmap.Append(res.Bitmap)
	}
	return nil
}
