package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
server_addr: ":9090"
widget:
  layout: single
  time_mode: absolute
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ServerAddr != ":9090" {
		t.Errorf("ServerAddr = %q", cfg.ServerAddr)
	}
	if cfg.Widget.Layout != "single" || cfg.Widget.TimeMode != "absolute" {
		t.Errorf("widget = %+v", cfg.Widget)
	}
	if !cfg.Widget.Icons || cfg.Widget.Limit != 50 || cfg.Widget.MaxBackoff != 30*time.Second {
		t.Errorf("defaults lost: %+v", cfg.Widget)
	}
	if cfg.WSPath != "/ws" {
		t.Errorf("WSPath = %q", cfg.WSPath)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7000")
	t.Setenv("EVENTFEED_DB", ":memory:")
	t.Setenv("GITHUB_WEBHOOK_SECRET", "s3cret")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ServerAddr != ":7000" || cfg.DBPath != ":memory:" || cfg.WebhookSecret != "s3cret" {
		t.Errorf("env not applied: %+v", cfg)
	}
}

func TestLoadConfigBadPort(t *testing.T) {
	t.Setenv("PORT", "eighty")
	if _, err := LoadConfig(""); err == nil {
		t.Error("expected error for non-numeric PORT")
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	path := writeConfig(t, `
ws_path: ws
widget:
  limit: -1
  time_mode: calendar
`)
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected validation error")
	}
}

func TestLoadConfigRetentionKeepZero(t *testing.T) {
	path := writeConfig(t, `
retention:
  schedule: "@every 1h"
  keep: 0
`)
	if _, err := LoadConfig(path); err == nil {
		t.Error("keep 0 with a schedule would empty the store, expected validation error")
	}

	path = writeConfig(t, `
retention:
  schedule: ""
  keep: 0
`)
	if _, err := LoadConfig(path); err != nil {
		t.Errorf("keep 0 without a schedule should load: %v", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
