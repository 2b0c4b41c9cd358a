// Package server exposes the command router over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/jarvis/internal/auth"
	"github.com/tjfontaine/jarvis/internal/command"
	"github.com/tjfontaine/jarvis/internal/core/ports"
)

// DefaultShutdownTimeout bounds graceful shutdown.
const DefaultShutdownTimeout = 10 * time.Second

// BuildInfo is reported by the health endpoint.
type BuildInfo struct {
	Version string
	SHA     string
	Time    string
}

// Options configures a Server.
type Options struct {
	Port   int
	Logger *slog.Logger

	// Authenticator guards /v1 routes; nil leaves them open.
	Authenticator  *auth.Authenticator
	RequestTimeout time.Duration

	Commands      *command.Service
	HomeAssistant ports.HomeAssistant
	Build         BuildInfo
}

type Server struct {
	Router *chi.Mux
	Port   int
	logger *slog.Logger
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	// Apply middleware in order
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(TimeoutMiddleware(opts.RequestTimeout))
	r.Use(middleware.Recoverer)

	// Wrap with OpenTelemetry HTTP instrumentation
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "jarvis")
	})

	h := &handlers{
		commands: opts.Commands,
		ha:       opts.HomeAssistant,
		build:    opts.Build,
		started:  time.Now(),
		logger:   logger,
	}

	r.Get("/health", h.health)
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(opts.Authenticator))
		r.Post("/v1/command", h.command)
		r.Post("/v1/ha/service", h.haService)
	})

	return &Server{
		Router: r,
		Port:   opts.Port,
		logger: logger,
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", slog.Int("port", s.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
