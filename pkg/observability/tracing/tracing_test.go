package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecorder() (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	sr := tracetest.NewSpanRecorder()
	return sr, sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
}

func TestSetupNoopWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), "catbits-test", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetupCreatesProvider(t *testing.T) {
	// Non-routable address so no actual export happens.
	shutdown, err := Setup(context.Background(), "catbits-test", "http://192.0.2.1:4318")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestHooksSpanTree(t *testing.T) {
	sr, tp := newRecorder()
	h := NewHooks(tp)
	ctx := context.Background()

	h.OnBatchStart(ctx, "run-1")
	h.OnImageStart(ctx, "a.jpg")
	h.OnStage(ctx, "a.jpg", "dither", 5*time.Millisecond, nil)
	h.OnStage(ctx, "a.jpg", "permute", 3*time.Millisecond, nil)
	h.OnImageComplete(ctx, "a.jpg", 8192, 10*time.Millisecond, nil)
	h.OnBatchComplete(ctx, "run-1", 1, 0, 10*time.Millisecond, nil)

	spans := sr.Ended()
	if len(spans) != 4 {
		t.Fatalf("ended spans = %d, want 4", len(spans))
	}

	byName := map[string]sdktrace.ReadOnlySpan{}
	for _, s := range spans {
		byName[s.Name()] = s
	}
	batch, image := byName["catbits.batch"], byName["catbits.image"]
	if batch == nil || image == nil {
		t.Fatalf("missing batch or image span: %v", byName)
	}
	if image.Parent().SpanID() != batch.SpanContext().SpanID() {
		t.Error("image span should be a child of the batch span")
	}

	dither := byName["catbits.stage dither"]
	if dither == nil {
		t.Fatal("missing dither stage span")
	}
	if dither.Parent().SpanID() != image.SpanContext().SpanID() {
		t.Error("stage span should be a child of the image span")
	}
	if got := dither.EndTime().Sub(dither.StartTime()); got != 5*time.Millisecond {
		t.Errorf("stage span duration = %v, want 5ms", got)
	}
}

func TestHooksRecordErrors(t *testing.T) {
	sr, tp := newRecorder()
	h := NewHooks(tp)
	ctx := context.Background()

	h.OnImageStart(ctx, "bad.jpg")
	h.OnImageComplete(ctx, "bad.jpg", 0, time.Millisecond, errors.New("decode failed"))

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", spans[0].Status().Code)
	}
	if spans[0].Parent().IsValid() {
		t.Error("image span without batch should be a root span")
	}
}

func TestHooksIgnoreUnknownImages(t *testing.T) {
	sr, tp := newRecorder()
	h := NewHooks(tp)

	h.OnImageComplete(context.Background(), "never-started", 0, 0, nil)
	h.OnBatchComplete(context.Background(), "none", 0, 0, 0, nil)

	if n := len(sr.Ended()); n != 0 {
		t.Errorf("ended spans = %d, want 0", n)
	}
}
