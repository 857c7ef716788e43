package cli

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"moneymanager/internal/config"
	"moneymanager/internal/core"
	"moneymanager/internal/localstore/memory"
	"moneymanager/internal/storage"
)

func offlineConfig(storePath string) *config.Config {
	return &config.Config{
		APIURL:               "http://127.0.0.1:1/api",
		RequestTimeout:       time.Second,
		LocalStorePath:       storePath,
		LocalTokenSecret:     "0123456789abcdef",
		LocalTokenTTL:        time.Hour,
		CategoryCacheTTL:     time.Minute,
		CategoryCacheSize:    8,
		DashboardRecentLimit: 5,
		JournalLimit:         10,
		LogLevel:             "error",
	}
}

func TestOpenKV(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	kv, closer, err := OpenKV(config.MemoryStorePath, logger)
	if err != nil {
		t.Fatalf("OpenKV memory: %v", err)
	}
	if _, ok := kv.(*memory.Store); !ok {
		t.Fatalf("memory path opened %T", kv)
	}
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	kv, closer, err = OpenKV(filepath.Join(t.TempDir(), "store.db"), logger)
	if err != nil {
		t.Fatalf("OpenKV sqlite: %v", err)
	}
	defer closer.Close()
	if _, ok := kv.(*storage.SQLiteRepository); !ok {
		t.Fatalf("file path opened %T", kv)
	}
	if out := buf.String(); !strings.Contains(out, "schema_version=") || strings.Contains(out, "schema_version=0 ") {
		t.Fatalf("schema version not logged after migrations: %q", out)
	}
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger("warn", &buf)
	logger.Info("hidden")
	logger.Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("log output = %q", out)
	}
	if !strings.Contains(out, "component=app") {
		t.Fatalf("component missing: %q", out)
	}
}

func TestNewLocalStore_SeedFile(t *testing.T) {
	seeds := filepath.Join(t.TempDir(), "seeds.yaml")
	body := "categories:\n  - name: Pension\n    type: income\n  - name: Rent\n    type: expense\n    color: \"#111111\"\n"
	if err := os.WriteFile(seeds, []byte(body), 0644); err != nil {
		t.Fatalf("write seeds: %v", err)
	}
	cfg := offlineConfig(config.MemoryStorePath)
	cfg.SeedCategoriesFile = seeds

	local, err := NewLocalStore(cfg, memory.New(), nil)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	cats, err := local.ListCategories(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(cats) != 2 || cats[0].Name != "Pension" || cats[1].Color != "#111111" {
		t.Fatalf("seeded = %+v", cats)
	}

	cfg.SeedCategoriesFile = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := NewLocalStore(cfg, memory.New(), nil); err == nil {
		t.Fatal("missing seed file accepted")
	}
}

func TestBuildApp_OfflineRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "moneymanager.db")
	logger := SetupLogger("error", &bytes.Buffer{})

	app, err := BuildApp(ctx, offlineConfig(path), logger)
	if err != nil {
		t.Fatalf("BuildApp: %v", err)
	}
	if app.Events != nil {
		t.Fatal("events enabled without AMQP_URL")
	}

	sess, err := app.Tracker.Register(ctx, "ann", "ann@example.com", "secret-pw")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if sess.Mode != core.ModeLocal || sess.User == nil || !strings.HasPrefix(sess.User.ID, "local-") {
		t.Fatalf("session = %+v", sess)
	}
	created, err := app.Tracker.CreateExpense(ctx, core.NewTransaction{
		Category: "Food",
		Amount:   core.Money{Cents: 1250},
		Date:     core.NewDate(2026, 5, 1),
	})
	if err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}
	app.Close()

	app, err = BuildApp(ctx, offlineConfig(path), logger)
	if err != nil {
		t.Fatalf("BuildApp reopen: %v", err)
	}
	defer app.Close()

	if got := app.Tracker.Session(); got.Mode != core.ModeLocal || got.User == nil || got.User.ID != sess.User.ID {
		t.Fatalf("restored session = %+v", got)
	}
	expenses, err := app.Tracker.ListExpenses(ctx)
	if err != nil {
		t.Fatalf("ListExpenses: %v", err)
	}
	if len(expenses) != 1 || expenses[0].ID != created.ID {
		t.Fatalf("expenses after reopen = %+v", expenses)
	}
}

func TestAppCloseLogsRemoteTraffic(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	logger := SetupLogger("debug", &buf)

	app, err := BuildApp(ctx, offlineConfig(config.MemoryStorePath), logger)
	if err != nil {
		t.Fatalf("BuildApp: %v", err)
	}
	if app.Remote == nil {
		t.Fatal("remote client not exposed")
	}
	if _, err := app.Tracker.Register(ctx, "ann", "ann@example.com", "secret-pw"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	app.Close()

	out := buf.String()
	if !strings.Contains(out, "Remote store traffic") || !strings.Contains(out, "total_requests=1") || !strings.Contains(out, "failed_requests=1") {
		t.Fatalf("remote traffic not logged: %q", out)
	}
}
