package daemonconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultHasSaneValues(t *testing.T) {
	cfg := Default()
	if cfg.Paths.LibDir == "" || cfg.Paths.ExtLogDir == "" {
		t.Fatalf("Default() left Paths empty: %+v", cfg.Paths)
	}
	if cfg.PollInterval <= 0 {
		t.Errorf("PollInterval = %v, want > 0", cfg.PollInterval)
	}
	if cfg.VersionOrder != "lexical" {
		t.Errorf("VersionOrder = %q, want lexical", cfg.VersionOrder)
	}
}

func TestLoadOverridesOnlySetFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.yaml")
	yaml := "lib_dir: /custom/lib\npoll_interval: 45s\n"
	if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Paths.LibDir != "/custom/lib" {
		t.Errorf("LibDir = %q, want /custom/lib", cfg.Paths.LibDir)
	}
	if cfg.PollInterval != 45*time.Second {
		t.Errorf("PollInterval = %v, want 45s", cfg.PollInterval)
	}
	if cfg.Paths.ExtLogDir != Default().Paths.ExtLogDir {
		t.Errorf("ExtLogDir should keep default, got %q", cfg.Paths.ExtLogDir)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.yaml")
	if err := os.WriteFile(path, []byte("poll_interval: not-a-duration\n"), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed poll_interval, got nil")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing config file, got nil")
	}
}
