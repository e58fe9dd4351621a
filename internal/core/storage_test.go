package core

import (
	"path/filepath"
	"testing"

	"logisticscore/internal/infra/persistence/memory"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("LOGISTICS_STORAGE_DRIVER", "")
	t.Setenv("LOGISTICS_SQLITE_PATH", "")
	t.Setenv("LOGISTICS_ARCHIVE_DRIVER", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.StorageDriver != "sqlite" {
		t.Fatalf("expected sqlite default, got %q", cfg.StorageDriver)
	}
	if cfg.SQLitePath != "./logisticscore.db" {
		t.Fatalf("unexpected sqlite path %q", cfg.SQLitePath)
	}
	if cfg.ArchiveDriver != "fs" {
		t.Fatalf("expected fs archive default, got %q", cfg.ArchiveDriver)
	}
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("LOGISTICS_STORAGE_DRIVER", "postgres")
	t.Setenv("LOGISTICS_POSTGRES_DSN", "postgres://db.example/logistics")
	t.Setenv("LOGISTICS_ACTIVE_INCIDENT", "inc-77")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.StorageDriver != "postgres" || cfg.PostgresDSN != "postgres://db.example/logistics" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.ActiveIncident != "inc-77" {
		t.Fatalf("expected active incident, got %q", cfg.ActiveIncident)
	}
}

func TestOpenPersistentStoreMemory(t *testing.T) {
	store, err := OpenPersistentStore(Config{StorageDriver: "memory"}, NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := store.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}
}

func TestOpenPersistentStoreSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logistics.db")
	store, err := OpenPersistentStore(Config{StorageDriver: "sqlite", SQLitePath: path}, NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	ctx := testContext()
	svc := NewService(store)
	if _, _, err := svc.CreateRequest(ctx, ResourceRequest{
		IncidentID: "inc-1", Title: "t", Section: "ops", Priority: PriorityLow,
	}); err != nil {
		t.Fatalf("sqlite-backed create: %v", err)
	}
}

func TestOpenPersistentStoreUnknownDriver(t *testing.T) {
	if _, err := OpenPersistentStore(Config{StorageDriver: "etcd"}, nil); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
