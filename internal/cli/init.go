// Package cli provides common initialization shared by cmd/moneymanager and
// cmd/ledger-worker.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"moneymanager/internal/amqp"
	"moneymanager/internal/cache"
	"moneymanager/internal/config"
	"moneymanager/internal/core"
	"moneymanager/internal/localstore"
	"moneymanager/internal/localstore/memory"
	applog "moneymanager/internal/log"
	"moneymanager/internal/remote"
	"moneymanager/internal/session"
	"moneymanager/internal/storage"
	"moneymanager/internal/tracker"
)

// SetupLogger initializes structured logging at the given level and makes it
// the default logger. Unknown levels fall back to info.
func SetupLogger(level string, out io.Writer) *applog.Logger {
	cfg := applog.DefaultConfig()
	if lvl, err := applog.ParseLevel(level); err == nil {
		cfg.Level = lvl
	}
	if out != nil {
		cfg.Output = out
	}
	logger := applog.New(cfg)
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *slog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenKV opens the durable substrate at path. MemoryStorePath selects a
// process-local map instead of SQLite.
func OpenKV(path string, logger *slog.Logger) (localstore.KV, io.Closer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == config.MemoryStorePath {
		logger.Info("Local store opened in memory")
		return memory.New(), nopCloser{}, nil
	}
	repo, err := storage.NewSQLiteRepository(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open local store %s: %w", path, err)
	}
	version, dirty, err := repo.SchemaVersion()
	if err != nil {
		logger.Warn("Failed to read schema version", "path", path, "error", err)
	} else {
		logger.Info("Local store opened", "path", path, "schema_version", version, "dirty", dirty)
	}
	return repo, repo, nil
}

// NewLocalStore builds the local store with the configured seeds and token
// issuer.
func NewLocalStore(cfg *config.Config, kv localstore.KV, logger *slog.Logger) (*localstore.Store, error) {
	opts := []localstore.Option{localstore.WithLogger(logger)}
	if cfg.SeedCategoriesFile != "" {
		seeds, err := localstore.LoadSeeds(cfg.SeedCategoriesFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, localstore.WithSeeds(seeds))
	}
	issuer := localstore.JWTIssuer{Secret: []byte(cfg.LocalTokenSecret), TTL: cfg.LocalTokenTTL}
	return localstore.New(kv, issuer, opts...), nil
}

// App holds the wired façade and the resources it owns.
type App struct {
	Config  *config.Config
	Tracker *tracker.Tracker
	Local   *localstore.Store
	Events  *amqp.Client
	Caches  *cache.Manager
	Remote  *remote.Client

	logger  *slog.Logger
	closers []io.Closer
}

// BuildApp wires session, remote client, local store, category cache and
// the optional ledger event publisher into a Tracker. The persisted session
// is restored before returning.
func BuildApp(ctx context.Context, cfg *config.Config, logger *applog.Logger) (*App, error) {
	app := &App{Config: cfg, logger: logger.Slog()}

	kv, closer, err := OpenKV(cfg.LocalStorePath, logger.WithComponent(applog.ComponentLocalStore).Slog())
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, closer)

	local, err := NewLocalStore(cfg, kv, logger.WithComponent(applog.ComponentLocalStore).Slog())
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Local = local

	sess := session.New(local, logger.WithComponent(applog.ComponentSession).Slog())
	if err := sess.Restore(ctx); err != nil {
		app.Close()
		return nil, fmt.Errorf("restore session: %w", err)
	}

	rc := remote.New(cfg.APIURL, sess,
		remote.WithTimeout(cfg.RequestTimeout),
		remote.WithLogger(logger.WithComponent(applog.ComponentRemote).Slog()))

	categories := cache.NewLRUCache[[]core.Category](cfg.CategoryCacheSize, cfg.CategoryCacheTTL)
	app.Caches = cache.NewManager(logger.WithComponent(applog.ComponentCache).Slog())
	app.Caches.Register(categories)
	app.Caches.StartCleanup(cfg.CategoryCacheTTL)

	opts := []tracker.Option{
		tracker.WithLogger(logger.WithComponent(applog.ComponentTracker).Slog()),
		tracker.WithCategoryCache(categories),
		tracker.WithRecentLimit(cfg.DashboardRecentLimit),
	}

	if cfg.EventsEnabled() {
		events, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue,
			amqp.WithLogger(logger.WithComponent(applog.ComponentAMQP).Slog()))
		if err != nil {
			// Events are best effort; the façade works without them.
			app.logger.WarnContext(ctx, "Ledger events disabled, broker unreachable", "error", err)
		} else {
			app.Events = events
			app.closers = append(app.closers, events)
			opts = append(opts, tracker.WithNotifier(events))
		}
	}

	app.Tracker = tracker.New(sess, rc, local, opts...)
	app.Remote = rc
	return app, nil
}

// Close releases everything BuildApp opened, last opened first.
func (a *App) Close() {
	if a.Remote != nil {
		m := a.Remote.Metrics()
		a.logger.Debug("Remote store traffic",
			"total_requests", m.TotalRequests,
			"failed_requests", m.FailedRequests,
			"average_response_time", m.AverageResponseTime)
	}
	if a.Caches != nil {
		a.Caches.Stop()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Error("Failed to close resource", "error", err)
		}
	}
	a.closers = nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *slog.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		cancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup()
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-time.After(timeout):
			logger.Warn("Shutdown timeout reached")
		}
		close(done)
	}()

	return ctx, done
}
