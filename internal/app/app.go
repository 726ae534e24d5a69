// Package app provides the main application struct for centralized
// dependency management and lifecycle control of the odds feed cache
// service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"oddsfeed/config"
	"oddsfeed/internal/api"
	"oddsfeed/internal/cache"
	"oddsfeed/internal/core"
	"oddsfeed/internal/namedvalue"
	"oddsfeed/internal/server"
	"oddsfeed/internal/sportdata"
	"oddsfeed/internal/sportevent"
	"oddsfeed/internal/status"
)

// App represents the main application with all its dependencies.
// It provides centralized lifecycle management for all components.
type App struct {
	config    *config.Config
	manager   *cache.Manager
	router    *api.Client
	events    *sportevent.Cache
	sportData *sportdata.Cache
	statuses  *status.Cache
	named     map[string]core.Exporter
	snapshots cache.SnapshotStore
	server    *server.Server

	// MatchStatuses is the localized match-status table, exposed for
	// application-facing lookups.
	MatchStatuses *namedvalue.LocalizedCache

	// VoidReasons, BetStopReasons and BettingStatuses are the
	// non-localized named-value tables.
	VoidReasons     *namedvalue.Cache
	BetStopReasons  *namedvalue.Cache
	BettingStatuses *namedvalue.Cache

	shutdownMu sync.Mutex
	shutdown   bool
}

// New creates a new App with all dependencies initialized.
// The caller must call Shutdown to release resources.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	app := &App{config: cfg, named: make(map[string]core.Exporter)}

	snapshots, err := newSnapshotStore(cfg.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize snapshot store: %w", err)
	}
	app.snapshots = snapshots

	app.manager = cache.NewManager()
	app.router = api.NewClient(app.manager, api.Config{
		BaseURL:           cfg.API.BaseURL,
		Token:             cfg.API.Token,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
	})

	factory := sportevent.NewFactory(app.router)
	events, err := sportevent.New(app.manager, app.manager, app.router, factory, sportevent.Config{
		Locales:                 cfg.Feed.Locales,
		ScheduleRefreshInterval: cfg.Feed.ScheduleRefreshInterval,
		MaxLockHold:             cfg.Feed.MaxLockHold,
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to initialize sport event cache: %w", err), app.closeStores())
	}
	app.events = events

	sportData, err := sportdata.New(app.manager, events, app.router, sportdata.Config{
		Locales:         cfg.Feed.Locales,
		RefreshInterval: cfg.Feed.SportDataRefreshInterval,
	})
	if err != nil {
		events.Close()
		return nil, errors.Join(fmt.Errorf("failed to initialize sport data cache: %w", err), app.closeStores())
	}
	app.sportData = sportData

	statuses, err := status.New(app.manager, app.router, status.Config{
		StatusTTL:   cfg.Feed.StatusTTL,
		FetchLocale: firstLocale(cfg.Feed.Locales),
	})
	if err != nil {
		sportData.Close()
		events.Close()
		return nil, errors.Join(fmt.Errorf("failed to initialize status cache: %w", err), app.closeStores())
	}
	app.statuses = statuses

	strategy := core.ExceptionStrategy(cfg.Feed.ExceptionStrategy)
	app.MatchStatuses = namedvalue.NewLocalized(app.router, cfg.Feed.Locales, namedvalue.Config{
		Endpoint: "match_status",
		Strategy: strategy,
	})
	app.VoidReasons = namedvalue.New(app.router, namedvalue.Config{Endpoint: "void_reasons", Strategy: strategy})
	app.BetStopReasons = namedvalue.New(app.router, namedvalue.Config{Endpoint: "betstop_reasons", Strategy: strategy})
	app.BettingStatuses = namedvalue.New(app.router, namedvalue.Config{Endpoint: "betting_status", Strategy: strategy})
	app.named["MatchStatusCache"] = app.MatchStatuses
	app.named["VoidReasonsCache"] = app.VoidReasons
	app.named["BetStopReasonsCache"] = app.BetStopReasons
	app.named["BettingStatusCache"] = app.BettingStatuses

	app.logStartupInfo()

	if err := app.importSnapshot(ctx); err != nil {
		// A broken snapshot is not fatal: the caches rebuild from the
		// feed on demand.
		slog.Warn("failed to import snapshot", "error", err)
	}

	app.server = server.New(app.manager)

	return app, nil
}

// Manager returns the cache manager, the entry point for pushing feed
// messages into the caches.
func (a *App) Manager() *cache.Manager { return a.manager }

// Events returns the sport event cache.
func (a *App) Events() *sportevent.Cache { return a.events }

// SportData returns the sport data cache.
func (a *App) SportData() *sportdata.Cache { return a.sportData }

// Statuses returns the sport event status cache.
func (a *App) Statuses() *status.Cache { return a.statuses }

// Start starts the diagnostics HTTP server on the given address.
// This is a blocking call that returns when the server stops.
func (a *App) Start(addr string) error {
	if a.server == nil {
		return fmt.Errorf("server is not initialized")
	}
	slog.Info("starting server", "address", addr)
	if err := a.server.Start(addr); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			slog.Info("server stopped gracefully")
			return nil
		}
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown gracefully tears down app components in dependency order:
// the HTTP server stops first, then the background refresh loops, then
// the final snapshot is exported, then the snapshot store closes.
// Shutdown is idempotent and safe for repeated calls.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownMu.Lock()
	if a.shutdown {
		a.shutdownMu.Unlock()
		return nil
	}
	a.shutdown = true
	a.shutdownMu.Unlock()

	slog.Info("shutting down application...")

	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	}

	if a.events != nil {
		a.events.Close()
	}
	if a.sportData != nil {
		a.sportData.Close()
	}
	for _, c := range []*namedvalue.Cache{a.VoidReasons, a.BetStopReasons, a.BettingStatuses} {
		if c != nil {
			c.Close()
		}
	}

	if err := a.exportSnapshot(ctx); err != nil {
		slog.Error("snapshot export error", "error", err)
		errs = append(errs, fmt.Errorf("snapshot export: %w", err))
	}

	if err := a.closeStores(); err != nil {
		slog.Error("snapshot store close error", "error", err)
		errs = append(errs, fmt.Errorf("snapshot store close: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	slog.Info("application shutdown complete")
	return nil
}

func (a *App) closeStores() error {
	if a.snapshots == nil {
		return nil
	}
	return a.snapshots.Close()
}

// exporters returns every snapshot participant keyed by cache name.
func (a *App) exporters() map[string]core.Exporter {
	out := make(map[string]core.Exporter)
	for _, name := range a.manager.RegisteredCacheNames() {
		if c := a.manager.Cache(name); c != nil {
			out[name] = c
		}
	}
	for name, e := range a.named {
		out[name] = e
	}
	return out
}

// importSnapshot warm-starts the caches from the last exported
// snapshot, when one exists.
func (a *App) importSnapshot(ctx context.Context) error {
	if a.snapshots == nil {
		return nil
	}
	snap, err := a.snapshots.Get(ctx)
	if err != nil {
		return err
	}
	if snap == nil {
		return nil
	}
	if snap.Version != cache.SnapshotVersion {
		slog.Warn("ignoring snapshot with unknown version", "version", snap.Version)
		return nil
	}

	total := 0
	for name, exporter := range a.exporters() {
		entries, ok := snap.Caches[name]
		if !ok || len(entries) == 0 {
			continue
		}
		n, err := exporter.Import(ctx, entries)
		if err != nil {
			slog.Warn("cache import failed", "cache", name, "error", err)
			continue
		}
		total += n
	}
	slog.Info("imported snapshot", "id", snap.ID, "created_at", snap.CreatedAt, "items", total)
	return nil
}

// exportSnapshot captures every cache into one tagged snapshot and
// persists it.
func (a *App) exportSnapshot(ctx context.Context) error {
	if a.snapshots == nil {
		return nil
	}
	snap := &cache.Snapshot{
		Version:   cache.SnapshotVersion,
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Caches:    make(map[string][]core.ExportEntry),
	}
	for name, exporter := range a.exporters() {
		entries, err := exporter.Export(ctx)
		if err != nil {
			slog.Warn("cache export failed", "cache", name, "error", err)
			continue
		}
		if len(entries) > 0 {
			snap.Caches[name] = entries
		}
	}
	if err := a.snapshots.Set(ctx, snap); err != nil {
		return err
	}
	slog.Info("exported snapshot", "id", snap.ID, "caches", len(snap.Caches))
	return nil
}

// newSnapshotStore selects the snapshot backend from configuration.
func newSnapshotStore(cfg config.SnapshotConfig) (cache.SnapshotStore, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "local":
		return cache.NewLocalSnapshotStore(cfg.Path), nil
	case "sqlite":
		return cache.NewSQLiteSnapshotStore(cfg.Path)
	case "redis":
		return cache.NewRedisSnapshotStore(cache.RedisConfig{URL: cfg.RedisURL})
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", cfg.Backend)
	}
}

func firstLocale(locales []string) string {
	if len(locales) == 0 {
		return "en"
	}
	return locales[0]
}

// logStartupInfo logs the application configuration on startup.
func (a *App) logStartupInfo() {
	cfg := a.config

	slog.Info("feed configured",
		"locales", cfg.Feed.Locales,
		"schedule_refresh", cfg.Feed.ScheduleRefreshInterval,
		"sport_data_refresh", cfg.Feed.SportDataRefreshInterval,
		"status_ttl", cfg.Feed.StatusTTL,
		"exception_strategy", cfg.Feed.ExceptionStrategy,
	)

	if cfg.API.Token == "" {
		slog.Warn("API_TOKEN not set - feed requests will be rejected upstream")
	}

	if cfg.Snapshot.Backend == "" || cfg.Snapshot.Backend == "none" {
		slog.Info("snapshots disabled")
	} else {
		slog.Info("snapshots configured", "backend", cfg.Snapshot.Backend)
	}
}
