package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultsWhenNoFile(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("", NewViper())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Chunking.ChunkSeconds != 1200 || cfg.Chunking.MaxWorkers != 3 || cfg.Analysis.MaxWorkers != 8 {
		t.Errorf("unexpected defaults: %+v %+v", cfg.Chunking, cfg.Analysis)
	}
	if cfg.Retry.InitialDelay != 800*time.Millisecond || cfg.Retry.MaxDelay != 8*time.Second {
		t.Errorf("unexpected retry defaults: %+v", cfg.Retry)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
chunking:
  chunk_seconds: 600
services:
  face:
    url: http://face:8000
retry:
  initial_delay: 1s
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CLAIMLENS_SERVICES_FACE_URL", "http://override:9000")

	cfg, err := Load(path, NewViper())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Chunking.ChunkSeconds != 600 {
		t.Errorf("chunk_seconds = %v, want 600", cfg.Chunking.ChunkSeconds)
	}
	if cfg.Chunking.MaxWorkers != 3 {
		t.Errorf("max_workers default lost: %d", cfg.Chunking.MaxWorkers)
	}
	if cfg.Services.Face.URL != "http://override:9000" {
		t.Errorf("face url = %q, want env override", cfg.Services.Face.URL)
	}
	if cfg.Retry.InitialDelay != time.Second {
		t.Errorf("initial_delay = %v", cfg.Retry.InitialDelay)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	_ = os.WriteFile(path, []byte("analysis:\n  acoustics: magic\n"), 0o644)
	if _, err := Load(path, NewViper()); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), NewViper()); err == nil {
		t.Fatal("expected error for explicit missing file")
	}
}

func TestDumpMasksAPIKey(t *testing.T) {
	cfg := Defaults()
	cfg.LLM.APIKey = "sk-secret"
	out, err := cfg.Dump()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(out), "sk-secret") {
		t.Errorf("dump leaks api key:\n%s", out)
	}
	if cfg.LLM.APIKey != "sk-secret" {
		t.Errorf("dump mutated config")
	}
}
