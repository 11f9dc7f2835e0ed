// Package app wires the blog server's components and manages their lifecycle.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"google.golang.org/grpc"

	grpcapi "github.com/EHam1/very-professional-blog/internal/api/grpc"
	httpapi "github.com/EHam1/very-professional-blog/internal/api/http"
	"github.com/EHam1/very-professional-blog/internal/config"
	"github.com/EHam1/very-professional-blog/internal/content"
	"github.com/EHam1/very-professional-blog/internal/eventstore"
	"github.com/EHam1/very-professional-blog/internal/observability"
	"github.com/EHam1/very-professional-blog/internal/server"
	"github.com/EHam1/very-professional-blog/internal/sink"
)

// ServiceName identifies the server in health responses.
const ServiceName = "blog"

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status            string `json:"status"`
	Service           string `json:"service"`
	Env               string `json:"env"`
	StorageConfigured bool   `json:"storage_configured"`
}

// App manages the blog server's lifecycle.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	metrics  *observability.Metrics
	sink     *sink.Sink
	content  *content.Provider
	shutdown *server.ShutdownManager

	httpServer   *http.Server
	httpListener net.Listener
	grpcServer   *grpc.Server
	grpcListener net.Listener

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

// Option configures an App.
type Option func(*App)

// WithLogger replaces the logger built from the configuration.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		a.logger = observability.OrDiscard(logger)
	}
}

// New creates an App with the given configuration.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	a := &App{
		cfg:    cfg,
		logger: observability.NewLogger(cfg.Log.Level, cfg.Log.Format),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Start opens the event store and starts the HTTP server, plus the gRPC
// server when enabled.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app is already running")
	}
	a.running = true
	a.mu.Unlock()

	if err := a.initSharedResources(ctx); err != nil {
		a.cleanup()
		return fmt.Errorf("failed to initialize shared resources: %w", err)
	}

	if err := a.startHTTP(); err != nil {
		a.cleanup()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	if a.cfg.GRPC.Enabled {
		if err := a.startGRPC(); err != nil {
			a.cleanup()
			return fmt.Errorf("failed to start gRPC server: %w", err)
		}
	}

	a.logger.Info("blog started",
		slog.String("env", string(a.cfg.Env)),
		slog.Bool("storage_configured", a.sink.Configured()),
	)
	return nil
}

// initSharedResources builds metrics, the event store, the sink, the content
// provider and the shutdown manager.
func (a *App) initSharedResources(ctx context.Context) error {
	a.shutdown = server.NewShutdownManager(server.ShutdownConfig{Logger: a.logger})
	a.metrics = observability.NewMetrics()

	store, err := eventstore.Open(ctx, a.cfg.Storage.URL, a.cfg.Storage.Key, a.cfg.Storage.Table,
		eventstore.WithS3Config(a.cfg.S3()),
	)
	switch {
	case errors.Is(err, eventstore.ErrNotConfigured):
		a.logger.Warn("storage not configured, events will be logged only")
		store = nil
	case err != nil:
		return fmt.Errorf("failed to open event store: %w", err)
	default:
		a.logger.Info("event store opened", slog.String("table", a.cfg.Storage.Table))
	}

	a.sink = sink.New(store, sink.WithMetrics(a.metrics), sink.WithLogger(a.logger))
	a.shutdown.RegisterCloser("event store", a.sink)

	a.content = content.NewProvider(a.cfg.Content.Dir, content.WithLogger(a.logger))
	return nil
}

// Handler returns the HTTP routes.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	middleware := httpapi.ChainMiddleware(
		server.ShutdownMiddleware(a.shutdown),
		httpapi.DefaultMiddleware(a.logger),
	)

	mux.Handle(httpapi.LogPath, middleware(httpapi.NewLogHandler(a.sink, a.logger)))
	httpapi.NewPostsHandler(a.content).Register(mux, middleware)
	mux.HandleFunc("GET /health", a.healthHandler())
	mux.Handle("GET /metrics", a.metrics.Handler())
	return mux
}

func (a *App) startHTTP() error {
	lis, err := net.Listen("tcp", a.cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on HTTP address: %w", err)
	}
	a.httpListener = lis

	a.httpServer = &http.Server{
		Handler:      a.Handler(),
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}
	a.shutdown.RegisterCloser("http server", server.HTTPServerCloser(a.httpServer, 10*time.Second))

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.logger.Info("HTTP server listening", slog.String("addr", lis.Addr().String()))
		if err := a.httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()
	return nil
}

func (a *App) startGRPC() error {
	lis, err := net.Listen("tcp", a.cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on gRPC address: %w", err)
	}
	a.grpcListener = lis

	a.grpcServer = grpc.NewServer()
	grpcapi.Register(a.grpcServer, grpcapi.NewEventLogService(a.sink, a.logger))

	a.shutdown.RegisterCloser("grpc server", server.CloserFunc(func() error {
		a.grpcServer.GracefulStop()
		return nil
	}))

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.logger.Info("gRPC server listening", slog.String("addr", lis.Addr().String()))
		if err := a.grpcServer.Serve(lis); err != nil {
			a.logger.Error("gRPC server error", slog.String("error", err.Error()))
		}
	}()
	return nil
}

// HTTPAddr returns the HTTP listener's address once started.
func (a *App) HTTPAddr() string {
	if a.httpListener == nil {
		return ""
	}
	return a.httpListener.Addr().String()
}

// GRPCAddr returns the gRPC listener's address once started.
func (a *App) GRPCAddr() string {
	if a.grpcListener == nil {
		return ""
	}
	return a.grpcListener.Addr().String()
}

// Stop gracefully stops all servers and closes the event store.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.mu.Unlock()

	err := a.shutdown.Shutdown(ctx, "stop requested")
	a.wg.Wait()
	return err
}

// cleanup releases whatever a failed Start had opened.
func (a *App) cleanup() {
	if a.shutdown != nil {
		a.shutdown.Shutdown(context.Background(), "start failed")
	}
	a.wg.Wait()

	a.mu.Lock()
	a.running = false
	a.mu.Unlock()
}

// WaitForShutdown blocks until a termination signal or ctx cancellation,
// then stops the app.
func (a *App) WaitForShutdown(ctx context.Context) error {
	if err := a.shutdown.ListenForSignals(ctx); err != nil {
		a.logger.Error("shutdown error", slog.String("error", err.Error()))
	}
	return a.Stop(context.Background())
}

func (a *App) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(HealthResponse{
			Status:            "healthy",
			Service:           ServiceName,
			Env:               string(a.cfg.Env),
			StorageConfigured: a.sink.Configured(),
		})
	}
}
