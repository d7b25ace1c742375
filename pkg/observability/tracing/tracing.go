// Package tracing bridges the observability pipeline hooks to OpenTelemetry.
//
// Tracing is opt-in. [Setup] installs an OTLP/HTTP tracer provider only when
// an endpoint is configured, and [Hooks] turns batch, image and stage events
// into a span tree:
//
//	catbits.batch
//	└── catbits.image (one per source image)
//	    ├── catbits.stage crop
//	    ├── catbits.stage dither
//	    └── ...
package tracing

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/matzehuels/catbits/pkg/observability"
)

const instrumentationName = "github.com/matzehuels/catbits"

// Setup initialises OpenTelemetry tracing for the given service.
//
// When endpoint is empty Setup returns a no-op shutdown function and no
// global provider is registered. The returned shutdown function flushes
// pending spans and should be deferred by the caller.
func Setup(ctx context.Context, serviceName, endpoint string) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }
	if endpoint == "" {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return noop, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return noop, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}

// Hooks implements observability.PipelineHooks with spans.
//
// Images are keyed by name, so two images of the same name must not be in
// flight at once. The runner processes images sequentially.
type Hooks struct {
	tracer trace.Tracer

	mu     sync.Mutex
	batch  context.Context
	bspan  trace.Span
	images map[string]imageSpan
}

type imageSpan struct {
	ctx  context.Context
	span trace.Span
}

// NewHooks creates hooks using tp, or the global provider when tp is nil.
func NewHooks(tp trace.TracerProvider) *Hooks {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Hooks{
		tracer: tp.Tracer(instrumentationName),
		images: make(map[string]imageSpan),
	}
}

// OnBatchStart opens the root span of a batch.
func (h *Hooks) OnBatchStart(ctx context.Context, runID string) {
	ctx, span := h.tracer.Start(ctx, "catbits.batch",
		trace.WithAttributes(attribute.String("catbits.run_id", runID)))

	h.mu.Lock()
	h.batch, h.bspan = ctx, span
	h.mu.Unlock()
}

// OnBatchComplete closes the batch span.
func (h *Hooks) OnBatchComplete(_ context.Context, _ string, images, skipped int, _ time.Duration, err error) {
	h.mu.Lock()
	span := h.bspan
	h.batch, h.bspan = nil, nil
	h.mu.Unlock()
	if span == nil {
		return
	}

	span.SetAttributes(
		attribute.Int("catbits.images", images),
		attribute.Int("catbits.skipped", skipped),
	)
	end(span, err)
}

// OnImageStart opens an image span below the current batch, if any.
func (h *Hooks) OnImageStart(ctx context.Context, image string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.batch != nil {
		ctx = h.batch
	}
	ctx, span := h.tracer.Start(ctx, "catbits.image",
		trace.WithAttributes(attribute.String("catbits.image", image)))
	h.images[image] = imageSpan{ctx: ctx, span: span}
}

// OnImageComplete closes the image span.
func (h *Hooks) OnImageComplete(_ context.Context, image string, bytes int, _ time.Duration, err error) {
	h.mu.Lock()
	is, ok := h.images[image]
	delete(h.images, image)
	h.mu.Unlock()
	if !ok {
		return
	}

	is.span.SetAttributes(attribute.Int("catbits.bytes", bytes))
	end(is.span, err)
}

// OnStage records a finished stage as a child span spanning its duration.
func (h *Hooks) OnStage(ctx context.Context, image, stage string, d time.Duration, err error) {
	h.mu.Lock()
	if is, ok := h.images[image]; ok {
		ctx = is.ctx
	}
	h.mu.Unlock()

	now := time.Now()
	_, span := h.tracer.Start(ctx, "catbits.stage "+stage,
		trace.WithTimestamp(now.Add(-d)),
		trace.WithAttributes(attribute.String("catbits.stage", stage)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End(trace.WithTimestamp(now))
}

func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

var _ observability.PipelineHooks = (*Hooks)(nil)
