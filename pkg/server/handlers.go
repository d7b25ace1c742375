package server

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/catbits/pkg/analysis"
	"github.com/matzehuels/catbits/pkg/core/bits"
	"github.com/matzehuels/catbits/pkg/core/grid"
	"github.com/matzehuels/catbits/pkg/core/parity"
	"github.com/matzehuels/catbits/pkg/errors"
	pkgio "github.com/matzehuels/catbits/pkg/io"
	"github.com/matzehuels/catbits/pkg/pipeline"
	"github.com/matzehuels/catbits/pkg/source"
)

type errorResponse struct {
	Error     string      `json:"error"`
	Code      errors.Code `json:"code,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

type configResponse struct {
	Options      pipeline.Options `json:"options"`
	MaxBodyBytes int64            `json:"max_body_bytes"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, configResponse{Options: s.effective, MaxBodyBytes: s.maxBody})
}

func (s *Server) handleBitstream(w http.ResponseWriter, r *http.Request) {
	opts, err := s.requestOptions(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	format, err := parseFormat(r.URL.Query().Get("format"), pkgio.FormatBinary)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := readBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	item := source.Item{Name: "request-" + middleware.GetReqID(r.Context()), Data: data}
	res, err := s.runner.ProcessItem(r.Context(), item, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	body := res.Bytes
	w.Header().Set("Content-Type", "application/octet-stream")
	if format == pkgio.FormatText {
		body = pkgio.EncodeText(res.Bytes)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	w.Header().Set(BitsHeader, strconv.Itoa(len(res.Bits)))
	w.Header().Set("X-Catbits-Cache", cacheStatus(res.CacheInfo.ResultHit))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		s.logger.Debug("write response", "error", err)
	}
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	format, err := parseFormat(r.URL.Query().Get("format"), "")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := readBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	report, err := analysis.AnalyzeBytes(data, format)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// requestOptions layers query parameter overrides on the server defaults.
func (s *Server) requestOptions(r *http.Request) (pipeline.Options, error) {
	opts := s.base.Clone()
	q := r.URL.Query()

	// An explicit value is used as given; omit a parameter to keep the
	// server default. Zero is rejected where it would read as "default".
	ints := []struct {
		name string
		min  int
		set  func(int)
	}{
		{"iterations", 1, func(n int) { opts.Iterations = n }},
		{"threshold", 1, func(n int) { opts.Threshold = n }},
		{"width", 1, func(n int) { opts.Width = n }},
		{"height", 1, func(n int) { opts.Height = n }},
		{"cat_p", 0, func(n int) { opts.CatP = pipeline.Int(n) }},
		{"cat_q", 0, func(n int) { opts.CatQ = pipeline.Int(n) }},
	}
	for _, p := range ints {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, errors.New(errors.ErrCodeInvalidInput, "%s: not an integer: %q", p.name, v)
		}
		if n < p.min {
			return opts, errors.New(errors.ErrCodeInvalidInput, "%s must be >= %d, got %d", p.name, p.min, n)
		}
		p.set(n)
	}
	bools := []struct {
		name string
		dst  *bool
	}{
		{"no_permute", &opts.NoPermute},
		{"auto_orient", &opts.AutoOrient},
	}
	for _, p := range bools {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, errors.New(errors.ErrCodeInvalidInput, "%s: not a boolean: %q", p.name, v)
		}
		*p.dst = b
	}
	if v := q.Get("channel"); v != "" {
		opts.Channel = grid.Channel(v)
	}
	if v := q.Get("edge"); v != "" {
		opts.Edge = parity.EdgePolicy(v)
	}
	if v := q.Get("tail"); v != "" {
		opts.Tail = bits.TailPolicy(v)
	}
	// Per-request options never write debug images or bypass the cache.
	opts.DebugDir = ""
	opts.Refresh = false

	if err := opts.ValidateAndSetDefaults(); err != nil {
		return opts, err
	}
	return opts, nil
}

func parseFormat(v string, def pkgio.Format) (pkgio.Format, error) {
	if v == "" {
		return def, nil
	}
	f := pkgio.Format(v)
	if !pkgio.ValidFormats[f] {
		return "", errors.New(errors.ErrCodeInvalidInput, "format must be bin or text, got %q", v)
	}
	return f, nil
}

func readBody(r *http.Request) ([]byte, error) {
	data, err := pkgio.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "request body is empty")
	}
	return data, nil
}

func cacheStatus(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}

// statusFor maps an error to an HTTP status code.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidConfig:
		return http.StatusBadRequest
	case errors.ErrCodeImageLoad:
		return http.StatusUnsupportedMediaType
	case errors.ErrCodeInvalidCrop, errors.ErrCodeInvalidDimensions, errors.ErrCodeDataAlignment:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeNotFound, errors.ErrCodeFileNotFound:
		return http.StatusNotFound
	case errors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := errors.UserMessage(err)
	if status == http.StatusRequestEntityTooLarge {
		msg = "request body too large"
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      errors.GetCode(err),
		RequestID: middleware.GetReqID(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
