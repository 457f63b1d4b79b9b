// Package server exposes the engine's operations as a JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gaiakodi/gaiasource/internal/media"
	"github.com/gaiakodi/gaiasource/internal/pipeline"
	"github.com/gaiakodi/gaiasource/internal/ratelimit"
)

const maxRequestBody = 1 << 20

// Config holds HTTP server configuration
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// Timeout bounds one operation.
	Timeout time.Duration
}

// DefaultConfig returns a server config for addr.
func DefaultConfig(addr string) Config {
	return Config{
		Addr:         addr,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
		Timeout:      90 * time.Second,
	}
}

// Server serves the operation surface.
type Server struct {
	engine   *pipeline.Engine
	governor *ratelimit.Governor
	cfg      Config
	logger   *log.Logger
	now      func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithGovernor exposes budget usage on /v1/providers.
func WithGovernor(g *ratelimit.Governor) Option {
	return func(s *Server) { s.governor = g }
}

// WithLogger sets the request logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithClock replaces the clock used to read relative dates.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a server over engine.
func New(engine *pipeline.Engine, cfg Config, opts ...Option) *Server {
	s := &Server{engine: engine, cfg: cfg, logger: log.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logging)

	r.Get("/healthz", s.health)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/providers", s.providers)
		r.Get("/summary", s.summary)
		r.Post("/run", s.run)
		r.Get("/{op}", s.operation)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr)
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	}
}

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// providerInfo describes one registered provider.
type providerInfo struct {
	Name       string       `json:"name"`
	Enabled    bool         `json:"enabled"`
	Priority   int          `json:"priority"`
	Operations []media.Kind `json:"operations"`
	Usage      float64      `json:"usage"`
	AuthUsage  float64      `json:"auth_usage"`
}

func (s *Server) providers(w http.ResponseWriter, _ *http.Request) {
	reg := s.engine.Aggregator().Registry()
	out := make([]providerInfo, 0)
	for _, name := range reg.List() {
		c, _ := reg.Get(name)
		info := providerInfo{
			Name:       name,
			Enabled:    reg.IsEnabled(name),
			Priority:   reg.Priority(name),
			Operations: c.Capabilities().Operations,
		}
		if s.governor != nil {
			info.Usage = s.governor.Usage(name, false)
			info.AuthUsage = s.governor.Usage(name, true)
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) summary(w http.ResponseWriter, _ *http.Request) {
	sum := s.engine.Summary()
	writeJSON(w, http.StatusOK, map[string]any{
		"operations": sum.Operations,
		"incomplete": sum.Incomplete,
		"failed":     sum.Failed,
		"active":     sum.Active,
		"last":       sum.Last,
		"failures":   len(s.engine.Failures()),
	})
}

func (s *Server) run(w http.ResponseWriter, r *http.Request) {
	var req media.Request
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, fmt.Sprintf("decoding request: %v", err))
		return
	}
	s.respond(w, r, req)
}

func (s *Server) operation(w http.ResponseWriter, r *http.Request) {
	req, err := ParseValues(chi.URLParam(r, "op"), r.URL.Query(), s.now())
	if err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respond(w, r, req)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, req media.Request) {
	ctx := r.Context()
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}
	res := s.engine.Run(ctx, req)
	status := http.StatusOK
	if res.Error != nil {
		status = statusOf(req, res.Error)
		if res.Error.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(res.Error.RetryAfter))
		}
	}
	writeJSON(w, status, res)
}

// statusOf maps a failure to an HTTP status.
func statusOf(req media.Request, f *media.Failure) int {
	switch f.Code {
	case media.CodeNotFound:
		return http.StatusNotFound
	case media.CodeRateLimited:
		return http.StatusTooManyRequests
	case media.CodeNetwork, media.CodeServer, media.CodeIncomplete:
		return http.StatusBadGateway
	}
	if err := req.Normalized().Validate(); err != nil {
		return http.StatusBadRequest
	}
	return http.StatusUnprocessableEntity
}

func writeFailure(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, media.Result{Error: &media.Failure{Code: media.CodeUnknown, Message: msg}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
