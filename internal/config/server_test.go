package config

import "testing"

func TestLoadServerDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://localhost:5432/undercity?sslmode=disable")

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer() error = %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.TickIntervalMs != 1000 {
		t.Fatalf("TickIntervalMs = %d, want 1000", cfg.TickIntervalMs)
	}
	if !cfg.PersistEnabled {
		t.Fatal("PersistEnabled = false, want true")
	}
}

func TestLoadServerAllowsEmptyDSN(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer() error = %v", err)
	}
	if cfg.PostgresDSN != "" {
		t.Fatalf("PostgresDSN = %q, want empty", cfg.PostgresDSN)
	}
}

func TestLoadServerParseTypes(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://localhost:5432/undercity?sslmode=disable")
	t.Setenv("WORLD_SEED", "42")
	t.Setenv("TICK_INTERVAL_MS", "250")
	t.Setenv("PERSIST_ENABLED", "false")

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer() error = %v", err)
	}
	if cfg.WorldSeed != 42 {
		t.Fatalf("WorldSeed = %d, want 42", cfg.WorldSeed)
	}
	if cfg.TickIntervalMs != 250 {
		t.Fatalf("TickIntervalMs = %d, want 250", cfg.TickIntervalMs)
	}
	if cfg.PersistEnabled {
		t.Fatal("PersistEnabled = true, want false")
	}
}
