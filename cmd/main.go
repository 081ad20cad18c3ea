package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/bookrec/internal/adapters/catalog"
	"github.com/okian/bookrec/internal/adapters/embedding"
	"github.com/okian/bookrec/internal/adapters/http/api"
	"github.com/okian/bookrec/internal/adapters/http/swagger"
	"github.com/okian/bookrec/internal/adapters/repository"
	"github.com/okian/bookrec/internal/adapters/repository/postgres"
	"github.com/okian/bookrec/internal/adapters/repository/sqlite"
	app "github.com/okian/bookrec/internal/app"
	"github.com/okian/bookrec/internal/config"
	"github.com/okian/bookrec/pkg/logger"
	"github.com/okian/bookrec/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	writeTimeoutSlack         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	loggerInstance := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	auth, err := api.NewAuthenticator(cfg.JWTSecret)
	if err != nil {
		loggerInstance.Fatal(ctx, "jwt_secret must be set", logger.Error(err))
	}

	// A missing or corrupt model is fatal.
	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		loggerInstance.Fatal(ctx, "failed to load embedding model", logger.Error(err))
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		loggerInstance.Fatal(ctx, "failed to open store", logger.String("driver", cfg.DatabaseDriver), logger.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			loggerInstance.Error(ctx, "store close failed", logger.Error(err))
		}
	}()

	svc := app.New(
		app.WithLogger(loggerInstance.Named("service")),
		app.WithCatalog(newCatalog(cfg, loggerInstance.Named("catalog"))),
		app.WithEmbedder(embedder),
		app.WithStore(store),
		app.WithRequestTimeout(cfg.RequestTimeout()),
		app.WithMaxResults(cfg.CatalogMaxResults),
		app.WithHistoryWindow(cfg.HistoryWindow),
		app.WithSignalSource(cfg.SignalSource),
		app.WithSimilarity(cfg.Similarity),
		app.WithTopK(cfg.TopKSingle, cfg.TopKMulti),
		app.WithListLimit(cfg.ListLimit),
	)
	if err := svc.Start(ctx); err != nil {
		loggerInstance.Fatal(ctx, "failed to start service", logger.Error(err))
	}
	defer svc.Stop()

	// Start system metrics updater
	go startSystemMetricsUpdater(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(svc, auth),
		ReadTimeout:       readTimeout,
		WriteTimeout:      cfg.RequestTimeout() + writeTimeoutSlack,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Start the HTTP server
	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			loggerInstance.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
}

// newMux registers the docs and business routes.
func newMux(svc *app.Service, auth *api.Authenticator) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(mux)
	api.NewServer(svc, auth).Register(mux)
	return mux
}

func newEmbedder(ctx context.Context, cfg *config.Config) (embedding.Embedder, error) {
	return embedding.New(ctx, embedding.Options{
		Provider:    cfg.EmbedderProvider,
		VocabPath:   cfg.VocabPath,
		WeightsPath: cfg.WeightsPath,
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.OpenAIBaseURL,
		Model:       cfg.OpenAIModel,
	})
}

func newCatalog(cfg *config.Config, l logger.Logger) *catalog.Client {
	return catalog.New(cfg.CatalogBaseURL,
		catalog.WithAPIKey(cfg.CatalogAPIKey),
		catalog.WithTimeout(cfg.CatalogTimeout()),
		catalog.WithRateLimit(cfg.CatalogRatePerSec, cfg.CatalogBurst),
		catalog.WithConcurrency(cfg.CatalogParallel),
		catalog.WithLogger(l),
	)
}

// openStore opens the configured driver and applies its schema.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	var (
		store repository.Store
		err   error
	)
	switch cfg.DatabaseDriver {
	case repository.DriverSQLite:
		store, err = sqlite.Open(ctx, cfg.DatabaseDSN)
	case repository.DriverPostgres:
		store, err = postgres.Open(ctx, cfg.DatabaseDSN)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.DatabaseDriver)
	}
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval) // Update every 10 seconds
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)

	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		// Calculate average GC pause time
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
