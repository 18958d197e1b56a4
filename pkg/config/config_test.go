package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/example/ptracekit/pkg/regs"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
output: /tmp/trace.jsonl.zst
compress: false
annotate: false
red_zones:
  linux/riscv64: 0
  plan9/amd64: 128
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Unexpected error loading config: %v", err)
	}
	if cfg.Output != "/tmp/trace.jsonl.zst" {
		t.Errorf("Expected output path, got %q", cfg.Output)
	}
	if cfg.Compress {
		t.Error("Expected compression disabled")
	}
	if got := cfg.RedZoneFor(regs.Platform{OS: "plan9", Arch: "amd64"}); got != 128 {
		t.Errorf("Expected 128-byte override, got %d", got)
	}
}

func TestDefaultsSurvivePartialFile(t *testing.T) {
	path := writeConfig(t, `output: trace.log`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Unexpected error loading config: %v", err)
	}
	if !cfg.Compress {
		t.Error("Expected compression to default to enabled")
	}
	if !cfg.Annotate {
		t.Error("Expected annotation to default to enabled")
	}
}

func TestRedZoneFallsBackToTable(t *testing.T) {
	cfg := Default()
	if got := cfg.RedZoneFor(regs.Platform{OS: "linux", Arch: "amd64"}); got != 128 {
		t.Errorf("Expected built-in 128-byte red zone, got %d", got)
	}
	if got := cfg.RedZoneFor(regs.Platform{OS: "linux", Arch: "arm64"}); got != 0 {
		t.Errorf("Expected no red zone for linux/arm64, got %d", got)
	}
}

func TestRedZoneOverrideWins(t *testing.T) {
	cfg := Default()
	cfg.RedZones = map[string]int64{"linux/amd64": 0}
	if got := cfg.RedZoneFor(regs.Platform{OS: "linux", Arch: "amd64"}); got != 0 {
		t.Errorf("Expected override to disable red zone, got %d", got)
	}
}

func TestValidateRejectsBadRedZones(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"negative size", Config{RedZones: map[string]int64{"linux/amd64": -1}}},
		{"malformed key", Config{RedZones: map[string]int64{"amd64": 128}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.cfg.Validate(); err == nil {
				t.Error("Expected validation error, got none")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}
