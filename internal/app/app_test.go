package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"oddsfeed/config"
	"oddsfeed/internal/core"
	"oddsfeed/internal/sportevent"
)

func testConfig(snapshotBackend, snapshotPath string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: "0"},
		API:    config.APIConfig{BaseURL: "http://localhost:0", Token: "test"},
		Feed: config.FeedConfig{
			Locales:                  []string{"en"},
			ScheduleRefreshInterval:  time.Hour,
			SportDataRefreshInterval: time.Hour,
			StatusTTL:                time.Minute,
			ExceptionStrategy:        "throw",
		},
		Snapshot: config.SnapshotConfig{Backend: snapshotBackend, Path: snapshotPath},
	}
}

func TestNew_WiresAllCaches(t *testing.T) {
	app, err := New(context.Background(), testConfig("none", ""))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer app.Shutdown(context.Background())

	names := app.Manager().RegisteredCacheNames()
	if len(names) != 3 {
		t.Fatalf("registered caches = %v, want 3", names)
	}
	if app.Events() == nil || app.SportData() == nil || app.Statuses() == nil {
		t.Fatal("cache accessor returned nil")
	}
	if app.MatchStatuses == nil || app.VoidReasons == nil {
		t.Fatal("named value cache not wired")
	}
}

func TestNew_RejectsUnknownSnapshotBackend(t *testing.T) {
	if _, err := New(context.Background(), testConfig("s3", "")); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	app, err := New(context.Background(), testConfig("none", ""))
	if err != nil {
		t.Fatal(err)
	}
	if err := app.Shutdown(context.Background()); err != nil {
		t.Fatalf("first shutdown: %v", err)
	}
	if err := app.Shutdown(context.Background()); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
}

func TestWarmRestartRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snapshot.json")
	id := core.MustParseURN("sr:match:1")

	app, err := New(ctx, testConfig("local", path))
	if err != nil {
		t.Fatal(err)
	}
	scheduled := time.Now().UTC()
	saved, err := app.Events().CacheAddDTO(ctx, id, &core.SportEventSummaryDTO{
		Name:      "Home vs Away",
		Scheduled: &scheduled,
	}, "en", core.DtoTypeMatchSummary, nil)
	if err != nil || !saved {
		t.Fatalf("CacheAddDTO = %v, %v", saved, err)
	}
	if err := app.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	restarted, err := New(ctx, testConfig("local", path))
	if err != nil {
		t.Fatal(err)
	}
	defer restarted.Shutdown(ctx)

	if !restarted.Events().CacheHasItem(id) {
		t.Fatal("event missing after warm restart")
	}
	var item sportevent.Item = restarted.Events().GetEventCacheItem(id)
	if item == nil || !item.HasTranslationsFor([]string{"en"}) {
		t.Fatal("restored item lost its locales")
	}
}
