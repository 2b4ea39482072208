package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "paladium.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	t.Setenv("PALADIUM_CONFIG", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		t.Errorf("ValidateServer failed: %v", err)
	}
	if strings.Contains(cfg.Session.Path, "${HOME}") {
		t.Errorf("Session path not expanded: %s", cfg.Session.Path)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: https://annotate.example.com
  timeout: 5s
session:
  backend: redis
  redis:
    addr: cache:6379
    db: 2
reconcile:
  rollback: true
server:
  token_ttl: 1h
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.API.BaseURL != "https://annotate.example.com" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 5*time.Second {
		t.Errorf("Timeout = %s, want 5s", cfg.API.Timeout)
	}
	if cfg.API.Concurrency != 8 {
		t.Errorf("Concurrency = %d, want default 8", cfg.API.Concurrency)
	}
	if cfg.Session.Backend != SessionRedis || cfg.Session.Redis.Addr != "cache:6379" || cfg.Session.Redis.DB != 2 {
		t.Errorf("Session = %+v", cfg.Session)
	}
	if !cfg.Reconcile.Rollback {
		t.Error("Rollback not loaded")
	}
	if cfg.Server.TokenTTL != time.Hour {
		t.Errorf("TokenTTL = %s, want 1h", cfg.Server.TokenTTL)
	}
}

func TestLoadFromEnvPath(t *testing.T) {
	path := writeConfig(t, "api:\n  base_url: http://from-env-file\n")
	t.Setenv("PALADIUM_CONFIG", path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.API.BaseURL != "http://from-env-file" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "api:\n  base_url: http://file\nserver:\n  port: 9000\n")
	t.Setenv("PALADIUM_API_URL", "http://env")
	t.Setenv("PORT", "9100")
	t.Setenv("DB_PATH", "${HOME}/data.db")
	t.Setenv("HOME", "/home/ann")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.API.BaseURL != "http://env" {
		t.Errorf("BaseURL = %q, want env value", cfg.API.BaseURL)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Server.DBPath != "/home/ann/data.db" {
		t.Errorf("DBPath = %q", cfg.Server.DBPath)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty base url", func(c *Config) { c.API.BaseURL = "" }, "api.base_url"},
		{"unknown backend", func(c *Config) { c.Session.Backend = "etcd" }, "session.backend"},
		{"redis without addr", func(c *Config) {
			c.Session.Backend = SessionRedis
			c.Session.Redis.Addr = ""
		}, "session.redis.addr"},
		{"zero ttl", func(c *Config) { c.Notify.TTL = 0 }, "notify.ttl"},
		{"negative timeout", func(c *Config) { c.API.Timeout = -time.Second }, "api.timeout"},
		{"memory needs nothing", func(c *Config) {
			c.Session.Backend = SessionMemory
			c.Session.Path = ""
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tt.wantErr)
			}
		})
	}
}
