package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/seantiz/hostrunner/internal/engine"
	"github.com/seantiz/hostrunner/internal/globalctx"
	"github.com/seantiz/hostrunner/internal/hostbridge"
	"github.com/seantiz/hostrunner/internal/operation"
	"github.com/seantiz/hostrunner/internal/store"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 30 * time.Second
)

// BridgeHealth reports the state of the host bridge connection.
type BridgeHealth interface {
	Health() hostbridge.Health
}

// Deps are the application components the HTTP surface exposes.
type Deps struct {
	Registry *operation.Registry
	Engine   *engine.Engine
	Store    store.Store
	Globals  *globalctx.Store
	Broker   *engine.EventBroker
	Ledger   *hostbridge.EventLedger
	Bridge   BridgeHealth
	Logger   *slog.Logger
}

// Server wraps the chi router and application dependencies.
type Server struct {
	router   *chi.Mux
	registry *operation.Registry
	engine   *engine.Engine
	store    store.Store
	globals  *globalctx.Store
	broker   *engine.EventBroker
	ledger   *hostbridge.EventLedger
	bridge   BridgeHealth
	logger   *slog.Logger
	addr     string
}

// NewServer creates and configures a new HTTP server.
func NewServer(addr string, d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	srv := &Server{
		router:   chi.NewRouter(),
		registry: d.Registry,
		engine:   d.Engine,
		store:    d.Store,
		globals:  d.Globals,
		broker:   d.Broker,
		ledger:   d.Ledger,
		bridge:   d.Bridge,
		logger:   logger,
		addr:     addr,
	}

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(srv.loggingMiddleware)
	srv.router.Use(metricsMiddleware)
	srv.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	srv.routes()

	return srv
}

// routes registers all HTTP routes on the router.
func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", metricsHandler())

	s.router.Get("/v1/stats", s.handleGetStats)
	s.router.Get("/v1/events", s.handleStreamEvents)
	s.router.Get("/v1/host/events", s.handleListHostEvents)
	s.router.Post("/v1/submissions", s.handleBatchSubmit)

	s.router.Route("/v1/operations", func(r chi.Router) {
		r.Get("/", s.handleListOperations)
		r.Get("/{name}", s.handleGetOperation)
		r.Post("/{name}/submissions", s.handleSubmit)
	})

	s.router.Route("/v1/context", func(r chi.Router) {
		r.Get("/", s.handleGetContext)
		r.Put("/{key}", s.handlePutContext)
	})

	s.router.Route("/v1/executions", func(r chi.Router) {
		r.Get("/", s.handleListExecutions)
		r.Get("/{id}", s.handleGetExecution)
	})
}

// Router returns the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down", "reason", context.Cause(ctx))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// loggingMiddleware logs each request using the structured logger.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
