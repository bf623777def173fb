package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "live.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Addr != ":8080" || c.Endpoint != "/live/update" {
		t.Errorf("got addr %q endpoint %q", c.Addr, c.Endpoint)
	}
	if c.Session.Driver != SessionMemory || c.Session.TTL != 24*time.Hour {
		t.Errorf("session = %+v", c.Session)
	}
	if !c.Loading.Enabled || c.Loading.Color != "#29d" {
		t.Errorf("loading = %+v", c.Loading)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, `
addr: ":9000"
title: Demo
secret_key: from-file
loading:
  enabled: false
  color: "#f00"
session:
  driver: sqlite
  dsn: /tmp/live.db
  ttl: 2h
`)
	t.Setenv("LIVE_ADDR", ":9100")
	t.Setenv("LIVE_LOADING_COLOR", "#0f0")
	t.Setenv("LIVE_SESSION_COOKIE", "sid")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	tests := []struct {
		name      string
		got, want any
	}{
		{"env wins", c.Addr, ":9100"},
		{"file title", c.Title, "Demo"},
		{"file key", c.SecretKey, "from-file"},
		{"file loading", c.Loading.Enabled, false},
		{"env nested", c.Loading.Color, "#0f0"},
		{"file driver", c.Session.Driver, SessionSQLite},
		{"file duration", c.Session.TTL, 2 * time.Hour},
		{"env cookie", c.Session.Cookie, "sid"},
		{"default kept", c.Endpoint, "/live/update"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Load(writeFile(t, "addr: [")); err == nil {
		t.Error("expected error for bad yaml")
	}
	t.Setenv("LIVE_DEBUG", "maybe")
	if _, err := Load(""); err == nil {
		t.Error("expected error for bad bool")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"ok", func(c *Config) {}, ""},
		{"debug without key", func(c *Config) { c.Debug, c.SecretKey = true, "" }, ""},
		{"missing key", func(c *Config) { c.SecretKey = "" }, "secret_key"},
		{"endpoint", func(c *Config) { c.Endpoint = "live" }, "must start with /"},
		{"driver", func(c *Config) { c.Session.Driver = "redis" }, "unknown session driver"},
		{"dsn", func(c *Config) { c.Session.Driver = SessionPostgres }, "dsn is required"},
		{"ttl", func(c *Config) { c.Session.TTL = 0 }, "ttl"},
		{"shutdown", func(c *Config) { c.ShutdownTimeout = 0 }, "shutdown_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			c.SecretKey = "k"
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestScriptsConfig(t *testing.T) {
	c := Default()
	c.Endpoint = "/app/update"
	c.Loading.Spinner = true
	cfg := c.ScriptsConfig()
	if cfg.Endpoint != "/app/update" || !cfg.Loading.Spinner || cfg.AssetPath == "" {
		t.Errorf("ScriptsConfig = %+v", cfg)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
