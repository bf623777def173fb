// Package config loads the livecmp server configuration from an optional
// YAML file and the environment. Environment variables win over the file,
// the file wins over defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/pthm/livecmp"
	"github.com/pthm/livecmp/lib/protocol"
)

const logPrefix = "config:Load"

// EnvPrefix prefixes every environment variable (LIVE_ADDR, LIVE_DEBUG, ...).
const EnvPrefix = "LIVE"

// Session drivers.
const (
	SessionMemory   = "memory"
	SessionSQLite   = "sqlite"
	SessionPostgres = "postgres"
)

// Config holds the server configuration.
type Config struct {
	Addr  string `envconfig:"ADDR" yaml:"addr"`
	Debug bool   `envconfig:"DEBUG" yaml:"debug"`

	// SecretKey signs lazy mount parameters and session cookies.
	SecretKey string `envconfig:"SECRET_KEY" yaml:"secret_key"`

	Endpoint string `envconfig:"ENDPOINT" yaml:"endpoint"`
	Title    string `envconfig:"TITLE" yaml:"title"`

	Loading livecmp.LoadingConfig `envconfig:"LOADING" yaml:"loading"`

	Session Session `envconfig:"SESSION" yaml:"session"`

	// NATSURL enables publishing native calls when set.
	NATSURL     string `envconfig:"NATS_URL" yaml:"nats_url"`
	NATSSubject string `envconfig:"NATS_SUBJECT" yaml:"nats_subject"`

	LogLevel string `envconfig:"LOG_LEVEL" yaml:"log_level"`
	Metrics  bool   `envconfig:"METRICS" yaml:"metrics"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" yaml:"shutdown_timeout"`
}

// Session selects and configures the session store.
type Session struct {
	Driver string        `envconfig:"DRIVER" yaml:"driver"`
	DSN    string        `envconfig:"DSN" yaml:"dsn"`
	Cookie string        `envconfig:"COOKIE" yaml:"cookie"`
	TTL    time.Duration `envconfig:"TTL" yaml:"ttl"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Addr:     ":8080",
		Endpoint: protocol.DefaultEndpoint,
		Title:    "livecmp",
		Loading:  livecmp.DefaultScriptsConfig().Loading,
		Session: Session{
			Driver: SessionMemory,
			Cookie: "live_session",
			TTL:    24 * time.Hour,
		},
		NATSSubject:     "live.native",
		LogLevel:        "info",
		Metrics:         true,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Load reads path (skipped when empty) over the defaults, then applies the
// environment.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s - read %s: %w", logPrefix, path, err)
		}
		if err := yaml.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("%s - decode %s: %w", logPrefix, path, err)
		}
	}
	if err := envconfig.Process(EnvPrefix, &c); err != nil {
		return nil, fmt.Errorf("%s - environment: %w", logPrefix, err)
	}
	return &c, nil
}

// Validate checks the configuration before serving.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if !strings.HasPrefix(c.Endpoint, "/") {
		errs = append(errs, fmt.Errorf("endpoint %q must start with /", c.Endpoint))
	}
	if c.SecretKey == "" && !c.Debug {
		errs = append(errs, errors.New("secret_key is required outside debug mode"))
	}
	if err := c.Session.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown_timeout must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%s - invalid config: %w", logPrefix, err)
	}
	return nil
}

// Validate checks the session store settings.
func (s Session) Validate() error {
	switch s.Driver {
	case SessionMemory:
	case SessionSQLite, SessionPostgres:
		if s.DSN == "" {
			return fmt.Errorf("session dsn is required for driver %q", s.Driver)
		}
	default:
		return fmt.Errorf("unknown session driver %q", s.Driver)
	}
	if s.Cookie == "" {
		return errors.New("session cookie name is required")
	}
	if s.TTL <= 0 {
		return errors.New("session ttl must be positive")
	}
	return nil
}

// ScriptsConfig returns the browser runtime configuration.
func (c *Config) ScriptsConfig() livecmp.ScriptsConfig {
	cfg := livecmp.DefaultScriptsConfig()
	cfg.Endpoint = c.Endpoint
	cfg.Loading = c.Loading
	return cfg
}

// ParseLevel maps a LOG_LEVEL value to a slog level. Unknown values mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger returns a text logger writing to stdout at level.
func NewLogger(level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: ParseLevel(level)}))
}
