package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", FileName, err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[interpreter]
memory-size = 512

[server]
listen = ":9999"

[library]
path = "/tmp/bf.db"
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Interpreter.MemorySize != 512 {
		t.Errorf("memory-size = %d, want 512", cfg.Interpreter.MemorySize)
	}
	if cfg.Server.Listen != ":9999" {
		t.Errorf("listen = %q, want %q", cfg.Server.Listen, ":9999")
	}
	if cfg.Library.Path != "/tmp/bf.db" {
		t.Errorf("library path = %q, want %q", cfg.Library.Path, "/tmp/bf.db")
	}
	if cfg.Dir == "" {
		t.Error("Dir not set at load time")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[server]
listen = ":1234"
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Interpreter.MemorySize != 30000 {
		t.Errorf("default memory-size = %d, want 30000", cfg.Interpreter.MemorySize)
	}
	if cfg.Library.Path == "" {
		t.Error("default library path not applied")
	}
}

func TestLoadRejectsNegativeMemorySize(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[interpreter]
memory-size = -5
`)

	if _, err := Load(dir); err == nil {
		t.Error("Load accepted a negative memory size")
	}
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "[interpreter\nmemory")

	if _, err := Load(dir); err == nil {
		t.Error("Load accepted malformed TOML")
	}
}

func TestFindAndLoadWalksUp(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `
[interpreter]
memory-size = 64
`)

	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	cfg, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad: %v", err)
	}
	if cfg.Interpreter.MemorySize != 64 {
		t.Errorf("memory-size = %d, want 64 (config not found by walking up)", cfg.Interpreter.MemorySize)
	}
}

func TestFindAndLoadFallsBackToDefaults(t *testing.T) {
	cfg, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad: %v", err)
	}
	if cfg.Interpreter.MemorySize != 30000 || cfg.Server.Listen != ":4567" {
		t.Errorf("defaults = %d/%q, want 30000/%q", cfg.Interpreter.MemorySize, cfg.Server.Listen, ":4567")
	}
}
