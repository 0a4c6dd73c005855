package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"confstack/internal/config"
	"confstack/internal/diag"
	"confstack/internal/dirstack"
	"confstack/internal/engine"
	"confstack/internal/logging"
	"confstack/internal/tree"
)

const shutdownTimeout = 5 * time.Second

// Backend is the lookup surface served over HTTP. *engine.Engine
// implements it.
type Backend interface {
	Get(ctx context.Context, path string) (*tree.Node, error)
	Reset(ctx context.Context) error
	Stack() dirstack.Stack
	Status(ctx context.Context) engine.Status
}

// Server exposes a Backend over HTTP.
type Server struct {
	bind    string
	token   string
	backend Backend
	logger  *slog.Logger

	listener net.Listener
	server   *http.Server
}

// NewServer builds a server for backend using the [api] settings.
func NewServer(cfg config.API, backend Backend, logger *slog.Logger) (*Server, error) {
	if backend == nil {
		return nil, errors.New("api server requires a backend")
	}
	bind := strings.TrimSpace(cfg.Bind)
	if bind == "" {
		return nil, errors.New("api server requires a bind address")
	}
	s := &Server{
		bind:    bind,
		token:   cfg.Token,
		backend: backend,
		logger:  logging.NewComponentLogger(logger, "api-server"),
	}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.correlate)
	r.Use(s.logRequests)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware(s.token))
		r.Get("/config", s.handleConfig)
		r.Get("/config/*", s.handleConfig)
		r.Post("/config/reset", s.handleReset)
		r.Get("/stack", s.handleStack)
		r.Get("/status", s.handleStatus)
	})
	return r
}

// Listen binds the listener. Addr is valid afterwards.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	return nil
}

// Addr returns the bound address, or the configured bind before Listen.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.bind
}

// Serve handles requests until ctx is cancelled, then shuts down
// gracefully. It calls Listen when needed.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(s.listener)
	}()
	s.logger.Info("api server listening", logging.String("address", s.Addr()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	s.logger.Info("api server stopped")
	return nil
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	path := tree.JoinPath(tree.SplitPath(chi.URLParam(r, "*")))
	value, err := s.backend.Get(r.Context(), path)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err.Error(), path)
		return
	}
	if value == nil {
		s.writeError(w, r, http.StatusNotFound, "configuration path not found", path)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, ConfigResponse{Path: path, Value: value})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.Reset(r.Context()); err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err.Error(), "")
		return
	}
	writeJSON(w, s.logger, http.StatusOK, ResetResponse{Reset: true})
}

func (s *Server) handleStack(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, FromStack(s.backend.Stack()))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, StatusResponse{Status: s.backend.Status(r.Context())})
}

// correlate stamps one correlation ID per request so diagnostics raised
// while serving it can be matched to the response.
func (s *Server) correlate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := strings.TrimSpace(r.Header.Get("X-Correlation-ID")); id != "" {
			ctx = logging.WithCorrelationID(ctx, id)
		}
		ctx = diag.Begin(ctx)
		if id, ok := logging.CorrelationIDFromContext(ctx); ok {
			w.Header().Set("X-Correlation-ID", id)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logging.WithContext(r.Context(), s.logger).Debug("api request",
			logging.String("method", r.Method),
			logging.String(logging.FieldPath, r.URL.Path),
			logging.Int("status", ww.Status()),
			logging.Int("bytes", ww.BytesWritten()),
			logging.Duration("elapsed", time.Since(start)))
	})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, message, path string) {
	id, _ := logging.CorrelationIDFromContext(r.Context())
	writeJSON(w, s.logger, status, ErrorResponse{Error: message, Path: path, CorrelationID: id})
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil && logger != nil {
		logger.Error("failed to encode response", logging.Error(err))
	}
}
