// Package config loads settings for the paladium CLI and the reference backend.
//
// Settings come from defaults, then an optional YAML file (--config flag or
// PALADIUM_CONFIG), then environment variables. ${HOME}-style variables in
// paths are expanded after loading.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Session backends.
const (
	SessionSQLite = "sqlite"
	SessionRedis  = "redis"
	SessionMemory = "memory"
)

// Config is the full configuration.
type Config struct {
	API       APIConfig       `yaml:"api"`
	Session   SessionConfig   `yaml:"session"`
	Notify    NotifyConfig    `yaml:"notify"`
	Drag      DragConfig      `yaml:"drag"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

// APIConfig configures the backend client.
type APIConfig struct {
	// BaseURL is the backend root, e.g. http://localhost:8000.
	BaseURL string `yaml:"base_url"`

	// Timeout bounds each request.
	Timeout time.Duration `yaml:"timeout"`

	// Concurrency caps parallel requests in batch operations.
	Concurrency int `yaml:"concurrency"`

	// MetricsFile, when set, receives the request metrics of each run in the
	// Prometheus text format (for node_exporter's textfile collector).
	MetricsFile string `yaml:"metrics_file"`
}

// SessionConfig configures where the signed-in session is kept.
type SessionConfig struct {
	// Backend is one of sqlite, redis or memory.
	Backend string `yaml:"backend"`

	// Path is the SQLite file for the sqlite backend.
	Path string `yaml:"path"`

	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig configures the redis session backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// NotifyConfig configures notifications.
type NotifyConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// DragConfig configures the drag controller.
type DragConfig struct {
	// ActivationDistance is how far a press must move before a drag starts.
	ActivationDistance float64 `yaml:"activation_distance"`
}

// ReconcileConfig configures the group reconciler.
type ReconcileConfig struct {
	// Rollback reverts local changes when the backend rejects them.
	Rollback bool `yaml:"rollback"`
}

// ServerConfig configures the reference backend.
type ServerConfig struct {
	Port      int           `yaml:"port"`
	DBPath    string        `yaml:"db_path"`
	UploadDir string        `yaml:"upload_dir"`
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:     "http://localhost:8000",
			Timeout:     30 * time.Second,
			Concurrency: 8,
		},
		Session: SessionConfig{
			Backend: SessionSQLite,
			Path:    filepath.Join("${HOME}", ".config", "paladium", "session.db"),
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		Notify: NotifyConfig{
			TTL: 3 * time.Second,
		},
		Drag: DragConfig{
			ActivationDistance: 8,
		},
		Server: ServerConfig{
			Port:      8000,
			DBPath:    "./data/paladium.db",
			UploadDir: "./uploads",
			JWTSecret: "dev-secret-change-in-production",
			TokenTTL:  24 * time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the config file at path, or PALADIUM_CONFIG when path is
// empty. With neither set only defaults and environment variables apply.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("PALADIUM_CONFIG")
	}

	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("failed to load config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// applyEnv overrides file values with environment variables.
func (c *Config) applyEnv() {
	c.API.BaseURL = getEnv("PALADIUM_API_URL", c.API.BaseURL)
	c.API.MetricsFile = getEnv("PALADIUM_METRICS_FILE", c.API.MetricsFile)
	c.Session.Backend = getEnv("PALADIUM_SESSION_BACKEND", c.Session.Backend)
	c.Session.Path = getEnv("PALADIUM_SESSION_PATH", c.Session.Path)
	c.Session.Redis.Addr = getEnv("PALADIUM_REDIS_ADDR", c.Session.Redis.Addr)
	c.Session.Redis.Password = getEnv("PALADIUM_REDIS_PASSWORD", c.Session.Redis.Password)
	c.Server.DBPath = getEnv("DB_PATH", c.Server.DBPath)
	c.Server.UploadDir = getEnv("UPLOAD_DIR", c.Server.UploadDir)
	c.Server.JWTSecret = getEnv("JWT_SECRET", c.Server.JWTSecret)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	if port, err := strconv.Atoi(getEnv("PORT", "")); err == nil {
		c.Server.Port = port
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	c.Session.Path = expandVars(c.Session.Path)
	c.API.MetricsFile = expandVars(c.API.MetricsFile)
	c.Server.DBPath = expandVars(c.Server.DBPath)
	c.Server.UploadDir = expandVars(c.Server.UploadDir)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if parts[1] == "HOME" {
			if home, err := os.UserHomeDir(); err == nil {
				return home
			}
		}
		return parts[2]
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("api.base_url is required"))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("api.timeout must be positive, got %s", c.API.Timeout))
	}
	if c.API.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("api.concurrency must be positive, got %d", c.API.Concurrency))
	}

	switch c.Session.Backend {
	case SessionSQLite:
		if c.Session.Path == "" {
			errs = append(errs, errors.New("session.path is required for the sqlite backend"))
		}
	case SessionRedis:
		if c.Session.Redis.Addr == "" {
			errs = append(errs, errors.New("session.redis.addr is required for the redis backend"))
		}
	case SessionMemory:
	default:
		errs = append(errs, fmt.Errorf("invalid session.backend: %q", c.Session.Backend))
	}

	if c.Notify.TTL <= 0 {
		errs = append(errs, fmt.Errorf("notify.ttl must be positive, got %s", c.Notify.TTL))
	}
	if c.Drag.ActivationDistance < 0 {
		errs = append(errs, fmt.Errorf("drag.activation_distance must not be negative, got %v", c.Drag.ActivationDistance))
	}

	return errors.Join(errs...)
}

// ValidateServer checks the settings the reference backend needs.
func (c *Config) ValidateServer() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Server.DBPath == "" {
		errs = append(errs, errors.New("server.db_path is required"))
	}
	if c.Server.UploadDir == "" {
		errs = append(errs, errors.New("server.upload_dir is required"))
	}
	if c.Server.JWTSecret == "" {
		errs = append(errs, errors.New("server.jwt_secret is required"))
	}
	if c.Server.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("server.token_ttl must be positive, got %s", c.Server.TokenTTL))
	}

	return errors.Join(errs...)
}
