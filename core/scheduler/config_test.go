package scheduler

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestDecodeConfigYAML(t *testing.T) {
	data := "prune_terminal: true\ncancel_timers_on_discard: true\n"
	cfg, err := DecodeConfig(bytes.NewBufferString(data), "yaml")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !cfg.PruneTerminal || !cfg.CancelTimersOnDiscard {
		t.Fatalf("bad cfg %#v", cfg)
	}
}

func TestDecodeConfigEmptyYAML(t *testing.T) {
	cfg, err := DecodeConfig(bytes.NewBufferString(""), "yml")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg != (Config{}) {
		t.Fatalf("expected zero config, got %#v", cfg)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.json")
	if err := os.WriteFile(path, []byte(`{"prune_terminal":true}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.PruneTerminal || cfg.CancelTimersOnDiscard {
		t.Fatalf("bad cfg %#v", cfg)
	}
	if _, err := LoadConfig(path + ".missing"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestDecodeErrors(t *testing.T) {
	if _, err := DecodeConfig(bytes.NewBufferString("{}"), "toml"); err == nil {
		t.Fatalf("expected error")
	}
	path := filepath.Join(t.TempDir(), "cfg.txt")
	if err := os.WriteFile(path, []byte("bad"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := DecodeConfig(bytes.NewBufferString(":"), "yaml"); err == nil {
		t.Fatalf("expected yaml error")
	}
	if _, err := DecodeConfig(bytes.NewBufferString("{"), "json"); err == nil {
		t.Fatalf("expected json error")
	}
}
