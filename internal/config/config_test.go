package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigMatchesRuntimeDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.DefaultDeadlineMs != 60000 {
		t.Fatalf("expected 60000ms default deadline, got %d", cfg.DefaultDeadlineMs)
	}
	if cfg.CancelGraceMs != 100 {
		t.Fatalf("expected 100ms cancel grace, got %d", cfg.CancelGraceMs)
	}
	if cfg.EmitQueueCapacity != 64 {
		t.Fatalf("expected 64 emit queue capacity, got %d", cfg.EmitQueueCapacity)
	}
	if cfg.DefaultDeadline().Seconds() != 60 {
		t.Fatalf("expected DefaultDeadline() == 60s, got %v", cfg.DefaultDeadline())
	}
}

func TestLoadFromFileOverridesDefaultsOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "uv.json")
	if err := os.WriteFile(path, []byte(`{"install_dir":"/opt/uv/prisms","registry":{"max_loaded_handles":8}}`), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.InstallDir != "/opt/uv/prisms" {
		t.Fatalf("expected overridden install dir, got %q", cfg.InstallDir)
	}
	if cfg.Registry.MaxLoadedHandles != 8 {
		t.Fatalf("expected overridden max loaded handles, got %d", cfg.Registry.MaxLoadedHandles)
	}
	if cfg.DefaultDeadlineMs != 60000 {
		t.Fatalf("expected default deadline to survive partial override, got %d", cfg.DefaultDeadlineMs)
	}
}

func TestLoadFromEnvOverridesDefaults(t *testing.T) {
	cfg := DefaultConfig()
	t.Setenv("UV_INSTALL_DIR", "/var/lib/uv")
	t.Setenv("UV_CANCEL_GRACE_MS", "250")
	t.Setenv("UV_TRACING_ENABLED", "true")

	LoadFromEnv(cfg)

	if cfg.InstallDir != "/var/lib/uv" {
		t.Fatalf("expected env override of install dir, got %q", cfg.InstallDir)
	}
	if cfg.CancelGraceMs != 250 {
		t.Fatalf("expected env override of cancel grace, got %d", cfg.CancelGraceMs)
	}
	if !cfg.Tracing.Enabled {
		t.Fatal("expected env override to enable tracing")
	}
}

func TestBreakerConvertsToCircuitBreakerConfig(t *testing.T) {
	cfg := DefaultConfig()
	bc := cfg.Breaker()
	if bc.ErrorPct != cfg.Registry.Breaker.ErrorPct {
		t.Fatalf("expected breaker error pct to round-trip, got %v", bc.ErrorPct)
	}
}
