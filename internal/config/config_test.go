package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 3001 {
		t.Errorf("Expected port 3001, got %d", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("Expected 10s shutdown timeout, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Storage.Backend != "local" || cfg.Storage.Path != "./storage" {
		t.Errorf("Unexpected storage defaults %+v", cfg.Storage)
	}
	if cfg.Search.Index != "programs" {
		t.Errorf("Expected programs index, got %q", cfg.Search.Index)
	}
	if cfg.IsProduction() {
		t.Error("Expected development by default")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("NODE_ENV", "production")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("MEILISEARCH_HOST", "http://search:7700")
	t.Setenv("CORS_ORIGIN", "https://shop.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", cfg.Server.Port)
	}
	if !cfg.IsProduction() {
		t.Error("Expected production")
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Expected sqlite driver, got %q", cfg.Database.Driver)
	}
	if cfg.Search.Host != "http://search:7700" {
		t.Errorf("Unexpected search host %q", cfg.Search.Host)
	}
	if cfg.CORS.Origin != "https://shop.example.com" {
		t.Errorf("Unexpected CORS origin %q", cfg.CORS.Origin)
	}
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "n", SSLMode: "disable"}
	want := "host=db port=5432 user=u password=p dbname=n sslmode=disable"
	if got := d.DSN(); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("MILLPOINT_TEST_VALUE", "set")
	if got := GetEnvOrDefault("MILLPOINT_TEST_VALUE", "fallback"); got != "set" {
		t.Errorf("Expected set, got %q", got)
	}
	if got := GetEnvOrDefault("MILLPOINT_TEST_MISSING", "fallback"); got != "fallback" {
		t.Errorf("Expected fallback, got %q", got)
	}
}
