package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MJE43/math-marauders-go/internal/config"
	"github.com/MJE43/math-marauders-go/internal/run"
	"github.com/MJE43/math-marauders-go/internal/scan"
	"github.com/MJE43/math-marauders-go/internal/store"
)

const maxBodyBytes = 1 << 20

// Server handles HTTP requests
type Server struct {
	tuning       config.Tuning
	store        *store.Store
	scanner      *scan.Scanner
	sessions     *sessionRegistry
	errorHandler *ErrorHandler
	logger       *log.Logger
	recorder     run.Recorder
	runOpts      []run.Option
	token        string
	startTime    time.Time
	httpServer   *http.Server
}

// Option configures a Server
type Option func(*Server)

// WithToken requires a bearer token on /api/v1 routes
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// WithLogger replaces the default "api" logger
func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMaxSessions caps the number of live runs
func WithMaxSessions(n int) Option {
	return func(s *Server) { s.sessions = newSessionRegistry(n) }
}

// WithRunOptions applies engine options to every run the server starts
func WithRunOptions(opts ...run.Option) Option {
	return func(s *Server) { s.runOpts = append(s.runOpts, opts...) }
}

// NewServer creates an API server. st may be nil to disable persistence.
func NewServer(t config.Tuning, st *store.Store, opts ...Option) *Server {
	s := &Server{
		tuning:    t,
		store:     st,
		scanner:   scan.NewScanner(t),
		sessions:  newSessionRegistry(DefaultMaxSessions),
		logger:    log.NewWithOptions(os.Stderr, log.Options{Prefix: "api", ReportTimestamp: true}),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.errorHandler = NewErrorHandler(s.logger)
	s.recorder = s.telemetryRecorder()
	return s
}

// telemetryRecorder logs run events at debug level
func (s *Server) telemetryRecorder() run.Recorder {
	return run.RecorderFunc(func(e run.Event) {
		s.logger.Debug(e.Name,
			"seed", hashSeed(e.Seed),
			"wave", e.Wave,
			"phase", e.Phase,
			"army", e.Army,
			"elapsed", e.Elapsed,
		)
	})
}

func (s *Server) engineOptions() []run.Option {
	return append([]run.Option{run.WithRecorder(s.recorder)}, s.runOpts...)
}

// Routes sets up the HTTP routes with middleware
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.RequestLoggingMiddleware)
	r.Use(s.errorHandler.RecoveryHandler)
	r.Use(s.CORSMiddleware)

	r.Get("/health", s.handleHealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.AuthMiddleware)

		// Websocket streams must not be wrapped by the timeout middleware.
		r.Get("/runs/{id}/chase/ws", s.handleChaseStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Post("/runs", s.handleStartRun)
			r.Get("/runs", s.handleListRuns)
			r.Get("/runs/export", s.handleExportRuns)
			r.Get("/runs/stored/{id}", s.handleStoredRun)
			r.Get("/runs/{id}", s.handleGetRun)
			r.Post("/runs/{id}/gates", s.handleResolveGate)
			r.Post("/runs/{id}/chase", s.handleAdvanceChase)
			r.Get("/runs/{id}/score", s.handleScore)
			r.Post("/runs/{id}/restart", s.handleRestart)

			r.Post("/waves/preview", s.handlePreview)
			r.Post("/simulate", s.handleSimulate)
			r.Post("/scan", s.handleScan)
			r.Get("/stars", s.handleStars)
		})
	})

	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.httpServer = &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("listening", "addr", ln.Addr().String(), "version", EngineVersion)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// writeJSON writes a JSON response with proper headers
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", EngineVersion)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("encode response", "err", err)
	}
}

// decode reads a JSON body into dst, writing a 400 on failure
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.errorHandler.Write(w, r, http.StatusBadRequest,
			NewError(ErrTypeInvalidJSON, "Invalid JSON format").WithCause(err).Build())
		return false
	}
	return true
}

// validationFailed writes a 400 for a validation error
func (s *Server) validationFailed(w http.ResponseWriter, r *http.Request, err error) {
	var fe fieldError
	if errors.As(err, &fe) {
		s.errorHandler.Validation(w, r, fe.field, fe.msg)
		return
	}
	s.errorHandler.Validation(w, r, "", err.Error())
}
