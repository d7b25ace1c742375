package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/matzehuels/catbits/pkg/analysis"
	"github.com/matzehuels/catbits/pkg/cache"
	"github.com/matzehuels/catbits/pkg/core/grid"
	"github.com/matzehuels/catbits/pkg/errors"
	"github.com/matzehuels/catbits/pkg/pipeline"
)

// onePixelPNG encodes an all-white 8x8 image with (1,2) black.
func onePixelPNG(t *testing.T) []byte {
	t.Helper()
	g := grid.Filled(8, 8, grid.White)
	g.Set(1, 2, grid.Black)
	var buf bytes.Buffer
	if err := png.Encode(&buf, g.Image()); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newTestServer(t *testing.T, maxBody int64) *httptest.Server {
	t.Helper()
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	runner := pipeline.NewRunner(c, nil, nil)
	t.Cleanup(func() { runner.Close() })

	s, err := New(runner, Config{
		MaxBodyBytes: maxBody,
		Options:      pipeline.Options{Width: 8, Height: 8, Iterations: 1},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, url, contentType string, body []byte) *http.Response {
	t.Helper()
	resp, err := http.Post(url, contentType, bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readAll(t *testing.T, r io.Reader) []byte {
	t.Helper()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func decodeError(t *testing.T, resp *http.Response) errorResponse {
	t.Helper()
	var e errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return e
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, 0)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestConfig(t *testing.T) {
	ts := newTestServer(t, 1024)
	resp, err := http.Get(ts.URL + "/v1/config")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var got configResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Options.Width != 8 || got.Options.Iterations != 1 || got.Options.Threshold != pipeline.DefaultThreshold {
		t.Errorf("options = %+v", got.Options)
	}
	if got.MaxBodyBytes != 1024 {
		t.Errorf("max body = %d", got.MaxBodyBytes)
	}
}

func TestBitstream(t *testing.T) {
	ts := newTestServer(t, 0)
	img := onePixelPNG(t)

	tests := []struct {
		name     string
		query    string
		wantBody []byte
		wantType string
	}{
		{"binary", "", []byte{0x40}, "application/octet-stream"},
		{"text", "?format=text", []byte("01000000"), "text/plain; charset=utf-8"},
		{"no permute", "?no_permute=true", []byte{0x80}, "application/octet-stream"},
		{"cat p zero", "?cat_p=0", []byte{0x80}, "application/octet-stream"},
		{"auto orient png", "?auto_orient=true", []byte{0x40}, "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, ts.URL+"/v1/bitstream"+tt.query, "image/png", img)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d: %s", resp.StatusCode, readAll(t, resp.Body))
			}
			if got := resp.Header.Get("Content-Type"); got != tt.wantType {
				t.Errorf("content type = %q, want %q", got, tt.wantType)
			}
			if got := resp.Header.Get(BitsHeader); got != "4" {
				t.Errorf("%s = %q, want 4", BitsHeader, got)
			}
			if got := readAll(t, resp.Body); !bytes.Equal(got, tt.wantBody) {
				t.Errorf("body = %q, want %q", got, tt.wantBody)
			}
		})
	}
}

func TestBitstreamCacheHeader(t *testing.T) {
	ts := newTestServer(t, 0)
	img := onePixelPNG(t)

	first := post(t, ts.URL+"/v1/bitstream", "image/png", img)
	second := post(t, ts.URL+"/v1/bitstream", "image/png", img)
	if got := first.Header.Get("X-Catbits-Cache"); got != "miss" {
		t.Errorf("first request cache = %q, want miss", got)
	}
	if got := second.Header.Get("X-Catbits-Cache"); got != "hit" {
		t.Errorf("second request cache = %q, want hit", got)
	}
}

func TestBitstreamErrors(t *testing.T) {
	ts := newTestServer(t, 256)

	tests := []struct {
		name       string
		query      string
		body       []byte
		wantStatus int
		wantCode   errors.Code
	}{
		{"empty body", "", nil, http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"not an image", "", []byte("hello"), http.StatusUnsupportedMediaType, errors.ErrCodeImageLoad},
		{"bad integer", "?iterations=many", []byte("x"), http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"zero threshold", "?threshold=0", []byte("x"), http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"threshold out of range", "?threshold=300", []byte("x"), http.StatusBadRequest, errors.ErrCodeInvalidConfig},
		{"zero width", "?width=0", []byte("x"), http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"zero iterations", "?iterations=0", []byte("x"), http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"negative cat q", "?cat_q=-1", []byte("x"), http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"bad bool", "?auto_orient=maybe", []byte("x"), http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"bad format", "?format=hex", []byte("x"), http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"crop too large", "?width=64&height=64", nil, http.StatusUnprocessableEntity, errors.ErrCodeInvalidCrop},
		{"too large", "", bytes.Repeat([]byte{1}, 1024), http.StatusRequestEntityTooLarge, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := tt.body
			if body == nil && tt.wantCode == errors.ErrCodeInvalidCrop {
				body = onePixelPNG(t)
			}
			resp := post(t, ts.URL+"/v1/bitstream"+tt.query, "application/octet-stream", body)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			e := decodeError(t, resp)
			if e.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", e.Code, tt.wantCode)
			}
			if e.Error == "" {
				t.Error("missing error message")
			}
		})
	}
}

func TestAnalyze(t *testing.T) {
	ts := newTestServer(t, 0)
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i)
	}

	resp := post(t, ts.URL+"/v1/analyze?format=bin", "application/octet-stream", data)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var report analysis.Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if report.Summary.Bytes != 256 || report.Summary.Entropy != 8 {
		t.Errorf("summary = %+v", report.Summary)
	}
}

func TestAnalyzeText(t *testing.T) {
	ts := newTestServer(t, 0)
	resp := post(t, ts.URL+"/v1/analyze", "text/plain", []byte("0100000011111111"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var report analysis.Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if report.Summary.Bytes != 2 || report.Histogram[0x40] != 1 || report.Histogram[0xFF] != 1 {
		t.Errorf("report = %+v", report.Summary)
	}
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	_, err := New(pipeline.NewRunner(nil, nil, nil), Config{Options: pipeline.Options{Width: 8, Height: 4}})
	if !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("err = %v, want INVALID_CONFIG", err)
	}
}

func TestListenAndServeShutdown(t *testing.T) {
	s, err := New(pipeline.NewRunner(nil, nil, nil), Config{Addr: "127.0.0.1:0"})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()
	cancel()
	if err := <-done; err != nil && !strings.Contains(err.Error(), "closed") {
		t.Errorf("ListenAndServe() = %v", err)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.New(errors.ErrCodeInvalidInput, "x"), http.StatusBadRequest},
		{errors.New(errors.ErrCodeDataAlignment, "x"), http.StatusUnprocessableEntity},
		{errors.New(errors.ErrCodeNotFound, "x"), http.StatusNotFound},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{io.EOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
