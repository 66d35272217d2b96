// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/starford/notegraph/internal/analytics"
	"github.com/starford/notegraph/internal/api"
	"github.com/starford/notegraph/internal/graph"
	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/indexer"
	"github.com/starford/notegraph/internal/mcpserver"
	"github.com/starford/notegraph/internal/parser"
	"github.com/starford/notegraph/internal/sse"
	"github.com/starford/notegraph/internal/storage"
)

// runtime is the wired core shared by every command.
type runtime struct {
	logger   *slog.Logger
	vault    *storage.FS
	store    index.Store
	svc      *indexer.Service
	registry *prometheus.Registry
}

func (rt *runtime) Close() error {
	return rt.store.Close()
}

// open builds the logger, document source, index store and indexer.
func (a *application) open() (*runtime, error) {
	if a.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := a.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(a.logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("version", a.version),
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("index_backend", cfg.Index.Backend),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// The vault must already exist.
	vault, err := storage.NewFS(cfg.Vault.Path, storage.WithExtension(cfg.Vault.Extension))
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	store, err := openStore(cfg.Index, logger)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc := indexer.New(vault, store, graph.NewBuilder(),
		indexer.WithLogger(logger.With(slog.String("component", "indexer"))),
		indexer.WithWorkers(cfg.Vault.Workers),
		indexer.WithExtension(vault.Extension()),
		indexer.WithParser(parser.New(cfg.Parser.WordsPerMinute)),
		indexer.WithAnalytics(analytics.New(cfg.Analytics.Options())),
		indexer.WithMetrics(indexer.NewMetrics(reg)),
	)

	return &runtime{
		logger:   logger,
		vault:    vault,
		store:    store,
		svc:      svc,
		registry: reg,
	}, nil
}

func openStore(cfg IndexConfig, logger *slog.Logger) (index.Store, error) {
	switch cfg.Backend {
	case BackendBadger:
		return index.OpenBadger(index.BadgerConfig{
			Path:       cfg.Badger.Path,
			InMemory:   cfg.Badger.InMemory,
			SyncWrites: cfg.Badger.SyncWrites,
			Logger:     logger.With(slog.String("component", "badger")),
		})
	default:
		if dir := filepath.Dir(cfg.SQLite.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create index dir: %w", err)
			}
		}
		return index.Open(cfg.SQLite.Path)
	}
}

// Run starts the HTTP server, the watcher and the SSE broker.
func Run(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	rt, err := app.open()
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := app.config
	logger := rt.logger

	// SSE broker.
	broker := sse.NewBroker(cfg.Events.GraphThrottle)
	defer broker.Close()

	// Catch up with changes made while the server was down.
	if res, err := rt.svc.Sync(ctx); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	} else {
		broker.PublishSync(res)
	}

	httpMetrics := api.NewHTTPMetrics(rt.registry)
	apiRouter := api.NewRouter(rt.svc, broker, broker, httpMetrics.Instrument)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", readyHandler(rt.svc))
	r.Handle("/metrics", promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{}))

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Watch.Enabled {
		g.Go(func() error {
			return rt.svc.Watch(gCtx, rt.vault.Root(), cfg.Watch.Debounce, broker.PublishSync)
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// readyHandler reports ready once the persisted index answers.
func readyHandler(svc *indexer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := svc.Stats(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

// Initialize rebuilds the index from scratch and prints the run summary.
func Initialize(ctx context.Context, opts ...Option) error {
	return oneShot(ctx, opts, func(ctx context.Context, rt *runtime) (any, error) {
		return rt.svc.Initialize(ctx)
	})
}

// Sync applies document changes to the index and prints the run summary.
func Sync(ctx context.Context, opts ...Option) error {
	return oneShot(ctx, opts, func(ctx context.Context, rt *runtime) (any, error) {
		return rt.svc.Sync(ctx)
	})
}

// Stats prints the persisted index counts.
func Stats(ctx context.Context, opts ...Option) error {
	return oneShot(ctx, opts, func(ctx context.Context, rt *runtime) (any, error) {
		c, err := rt.svc.Stats(ctx)
		return map[string]int{"notes": c.Notes, "links": c.Links}, err
	})
}

func oneShot(ctx context.Context, opts []Option, fn func(context.Context, *runtime) (any, error)) error {
	app := newApplication(opts)
	rt, err := app.open()
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := fn(ctx, rt)
	if res != nil {
		enc := json.NewEncoder(app.out)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(res); encErr != nil {
			return errors.Join(err, encErr)
		}
	}
	return err
}

// ServeMCP syncs the index and serves MCP tools over stdio. Logs must not
// share stdout with the protocol; callers pass WithLogOutput(os.Stderr).
func ServeMCP(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	rt, err := app.open()
	if err != nil {
		return err
	}
	defer rt.Close()

	if _, err := rt.svc.Sync(ctx); err != nil {
		rt.logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	srv := mcpserver.New(rt.svc, app.version)
	rt.logger.Info("MCP server listening on stdio")
	return srv.ServeStdio()
}
