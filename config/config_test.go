package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cellmesh/cell/config"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := config.Load("", false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.IdleSecs != config.Default().IdleSecs {
		t.Fatalf("got IdleSecs=%d, want default", cfg.IdleSecs)
	}
}

func TestDefaultMatchesDocumentedLayout(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("UserHomeDir: %v", err)
	}
	cfg := config.Default()
	if cfg.RuntimeDir != home+"/.cell/run" {
		t.Fatalf("got RuntimeDir=%q, want %q", cfg.RuntimeDir, home+"/.cell/run")
	}
	if cfg.DNADir != home+"/.cell/dna" {
		t.Fatalf("got DNADir=%q, want %q", cfg.DNADir, home+"/.cell/dna")
	}
	if cfg.SchemaDir != home+"/.cell/schema" {
		t.Fatalf("got SchemaDir=%q, want %q", cfg.SchemaDir, home+"/.cell/schema")
	}
	if cfg.RemotePort != 4433 {
		t.Fatalf("got RemotePort=%d, want 4433", cfg.RemotePort)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cell.toml")
	if err := os.WriteFile(path, []byte("idle_secs = 99\nremote_port = 5050\n"), 0o644); err != nil {
		t.Fatalf("write toml: %v", err)
	}
	t.Setenv("CELL_REMOTE_PORT", "6060")

	cfg, err := config.Load(path, false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.IdleSecs != 99 {
		t.Fatalf("got IdleSecs=%d, want 99 from file", cfg.IdleSecs)
	}
	if cfg.RemotePort != 6060 {
		t.Fatalf("got RemotePort=%d, want 6060 from env override", cfg.RemotePort)
	}
}
