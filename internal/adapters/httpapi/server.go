package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/eleven-am/triggerflow/internal/adapters/health"
	"github.com/eleven-am/triggerflow/internal/domain"
	"github.com/eleven-am/triggerflow/internal/ports"
	"github.com/eleven-am/triggerflow/internal/xjson"
)

type Dependencies struct {
	Workflows ports.WorkflowStore
	Runs      ports.RunStore
	Timelines ports.TimelineStore
	Compiler  ports.CompilerPort
	Manager   ports.RunManagerPort
	Health    *health.Checker
	// Metrics, when set, is mounted at Config.MetricsPath.
	Metrics http.Handler
	NewID   func() string
	Logger  *slog.Logger
}

// Server exposes workflows and runs over HTTP.
type Server struct {
	deps        Dependencies
	config      domain.HTTPConfig
	metricsPath string
	logger      *slog.Logger
	router      chi.Router

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

func NewServer(config domain.HTTPConfig, metricsPath string, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	s := &Server{
		deps:        deps,
		config:      config,
		metricsPath: metricsPath,
		logger:      logger.With("component", "http-api"),
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(s.corsOptions()))

	r.Get("/health", s.handleHealth)
	if s.deps.Metrics != nil {
		r.Handle(s.metricsPath, s.deps.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/workflows", func(r chi.Router) {
			r.Get("/", s.handleListWorkflows)
			r.Post("/", s.handleCreateWorkflow)
			r.Post("/validate", s.handleValidate)

			r.Route("/{workflowID}", func(r chi.Router) {
				r.Get("/", s.handleGetWorkflow)
				r.Put("/", s.handleUpdateWorkflow)
				r.Delete("/", s.handleDeleteWorkflow)
				r.Post("/execute", s.handleExecute)
			})
		})

		r.Route("/runs/{runID}", func(r chi.Router) {
			r.Get("/", s.handleGetRun)
			r.Get("/timeline", s.handleTimeline)
			r.Get("/logs", s.handleLogs)
			r.Post("/cancel", s.handleCancel)
		})
	})

	return r
}

func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return domain.ErrAlreadyStarted
	}

	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Addr, err)
	}

	s.listener = listener
	s.server = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		ReadTimeout:       s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
	}

	go func(srv *http.Server, ln net.Listener) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", "error", err)
		}
	}(s.server, listener)

	s.logger.Info("http server listening", "addr", listener.Addr().String())
	return nil
}

// Addr is the bound listen address, useful when the configured port is 0.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()

	if srv == nil {
		return domain.ErrNotStarted
	}
	return srv.Shutdown(ctx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(started),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// corsOptions admits the configured origins. An empty list or "*" admits
// every origin, and then credentials are never allowed.
func (s *Server) corsOptions() cors.Options {
	origins := s.config.AllowedOrigins
	explicit := len(origins) > 0 && !slices.Contains(origins, "*")
	if !explicit {
		origins = []string{"*"}
	}

	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: explicit,
		MaxAge:           300,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = xjson.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var compileErr *domain.CompileError
	switch {
	case errors.As(err, &compileErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:  compileErr.Error(),
			Reason: compileErr.Code(),
			NodeID: compileErr.NodeID,
		})
		return
	case domain.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	case domain.IsInvalidInput(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	case domain.IsAtCapacity(err):
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: err.Error()})
		return
	case errors.Is(err, domain.ErrClosed):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	s.logger.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()),
		"error", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
}
