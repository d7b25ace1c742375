// Package server exposes the bitstream pipeline and artifact analysis over
// HTTP.
//
// Routes:
//
//	GET  /healthz       liveness probe
//	GET  /v1/config     effective pipeline options as JSON
//	POST /v1/bitstream  encoded image in, packed bytes out
//	POST /v1/analyze    artifact bytes in, JSON report out
//
// /v1/bitstream accepts the pipeline options as query parameters
// (width, height, channel, auto_orient, threshold, cat_p, cat_q, iterations,
// no_permute, edge, tail) on top of the server defaults, and format=text to
// receive ASCII bits instead of bytes. Parameters left out keep the server
// default; an explicit 0 is only accepted for cat_p and cat_q.
// The number of encoded bits is returned in the X-Catbits-Bits header.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/catbits/pkg/pipeline"
)

const (
	// DefaultMaxBodyBytes bounds request bodies when Config leaves it unset.
	DefaultMaxBodyBytes = 32 << 20

	// BitsHeader carries the bit count of a /v1/bitstream response.
	BitsHeader = "X-Catbits-Bits"

	readHeaderTimeout = 10 * time.Second
	requestTimeout    = 60 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Config configures a Server.
type Config struct {
	Addr         string
	MaxBodyBytes int64

	// Options are the defaults applied to every request.
	Options pipeline.Options

	Logger *log.Logger
}

// Server serves the HTTP API.
type Server struct {
	runner *pipeline.Runner

	// base holds the configured options before defaults; requests layer
	// their overrides on a copy. effective is base with defaults applied.
	base      pipeline.Options
	effective pipeline.Options

	maxBody int64
	logger  *log.Logger
	http    *http.Server
}

// New creates a server backed by runner. The default options are validated
// up front so that misconfiguration fails at startup.
func New(runner *pipeline.Runner, cfg Config) (*Server, error) {
	effective := cfg.Options.Clone()
	if err := effective.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("server options: %w", err)
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	s := &Server{
		runner:    runner,
		base:      cfg.Options.Clone(),
		effective: effective,
		maxBody:   cfg.MaxBodyBytes,
		logger:    cfg.Logger,
	}
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s, nil
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/config", s.handleConfig)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequestSize(s.maxBody))
			r.Post("/bitstream", s.handleBitstream)
			r.Post("/analyze", s.handleAnalyze)
		})
	})
	return r
}

// ListenAndServe runs the server until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	serveErr := make(chan error, 1)
	s.logger.Info("listening", "addr", s.http.Addr)
	go func() {
		serveErr <- s.http.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
