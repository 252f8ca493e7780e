package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load of missing file errored: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Bot.Lifetime != 4800*time.Second {
		t.Errorf("Bot.Lifetime = %s, want 4800s", cfg.Bot.Lifetime)
	}
	if cfg.Bot.ClosedWait != 5*time.Second {
		t.Errorf("Bot.ClosedWait = %s, want 5s", cfg.Bot.ClosedWait)
	}
	if cfg.Bot.StopGrace != 5*time.Second {
		t.Errorf("Bot.StopGrace = %s, want 5s", cfg.Bot.StopGrace)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `
server:
  port: 9090
  stream_interval: 250ms
bot:
  lifetime: 30m
  closed_wait: 10s
  max_transient_failures: 8
pollev:
  base_url: "http://localhost:9999"
log_level: debug
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.StreamInterval != 250*time.Millisecond {
		t.Errorf("StreamInterval = %s, want 250ms", cfg.Server.StreamInterval)
	}
	if cfg.Bot.Lifetime != 30*time.Minute {
		t.Errorf("Bot.Lifetime = %s, want 30m", cfg.Bot.Lifetime)
	}
	if cfg.Bot.ClosedWait != 10*time.Second {
		t.Errorf("Bot.ClosedWait = %s, want 10s", cfg.Bot.ClosedWait)
	}
	if cfg.Bot.MaxTransientFailures != 8 {
		t.Errorf("MaxTransientFailures = %d, want 8", cfg.Bot.MaxTransientFailures)
	}
	if cfg.PollEv.BaseURL != "http://localhost:9999" {
		t.Errorf("PollEv.BaseURL = %q", cfg.PollEv.BaseURL)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	// Untouched fields keep their defaults.
	if cfg.Bot.OpenWait != 2*time.Second {
		t.Errorf("Bot.OpenWait = %s, want default 2s", cfg.Bot.OpenWait)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load accepted malformed yaml")
	}
}
