package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWithoutConfigFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.ServerAddr != ":8080" {
		t.Fatalf("unexpected server addr %q", cfg.ServerAddr)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Fatalf("unexpected redis addr %q", cfg.RedisAddr)
	}
	if cfg.Database.DBName != "brewstock" {
		t.Fatalf("unexpected database name %q", cfg.Database.DBName)
	}
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte("redis:\n  addr: redis.internal:6380\nserver:\n  addr: \":9090\"\ndatabase:\n  host: db.internal\n")
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.RedisAddr != "redis.internal:6380" {
		t.Fatalf("unexpected redis addr %q", cfg.RedisAddr)
	}
	if cfg.ServerAddr != ":9090" {
		t.Fatalf("unexpected server addr %q", cfg.ServerAddr)
	}
	if cfg.Database.Host != "db.internal" {
		t.Fatalf("unexpected database host %q", cfg.Database.Host)
	}
	// Keys the file omits keep their defaults.
	if cfg.Database.DBName != "brewstock" {
		t.Fatalf("unexpected database name %q", cfg.Database.DBName)
	}
}
