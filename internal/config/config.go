// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

// Package config loads server configuration in layers: compiled
// defaults, an optional YAML file, store URL environment variables,
// then command-line flags. Later layers win.
package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/nguyendan07/seminary-management-system/internal/auth"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// DefaultSweepInterval is how often expired sessions are swept.
const DefaultSweepInterval = time.Hour

// Config is the effective server configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Database      DatabaseConfig      `koanf:"database"`
	Redis         RedisConfig         `koanf:"redis"`
	Storage       StorageConfig       `koanf:"storage"`
	Auth          AuthConfig          `koanf:"auth"`
	Log           LogConfig           `koanf:"log"`
	Observability ObservabilityConfig `koanf:"observability"`
	Control       ControlConfig       `koanf:"control"`
}

// ServerConfig configures the HTTP API listener.
type ServerConfig struct {
	ListenAddr      string        `koanf:"listen_addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig configures the PostgreSQL store.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// RedisConfig configures the optional Redis session store.
type RedisConfig struct {
	URL string `koanf:"url"`
}

// StorageConfig selects where records live. Backend "memory" is demo
// mode: everything lives in process and the sessions setting is
// ignored.
type StorageConfig struct {
	Backend       string        `koanf:"backend"`  // postgres or memory
	Sessions      string        `koanf:"sessions"` // postgres, redis, or memory
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// AuthConfig carries the verification thresholds.
type AuthConfig struct {
	SessionTTL              time.Duration `koanf:"session_ttl"`
	StoreTimeout            time.Duration `koanf:"store_timeout"`
	MinSecretLength         int           `koanf:"min_secret_length"`
	AllowedIdentityPatterns []string      `koanf:"allowed_identity_patterns"`
	Lockout                 LockoutConfig `koanf:"lockout"`
}

// LockoutConfig mirrors auth.LockoutPolicy.
type LockoutConfig struct {
	Threshold int           `koanf:"threshold"`
	Window    time.Duration `koanf:"window"`
	Duration  time.Duration `koanf:"duration"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json or text
}

// ObservabilityConfig configures the metrics and health listener.
type ObservabilityConfig struct {
	Enabled    bool   `koanf:"enabled"`
	ListenAddr string `koanf:"listen_addr"`
}

// ControlConfig configures the owner-only control socket.
type ControlConfig struct {
	// SocketPath overrides the XDG runtime directory default.
	SocketPath string `koanf:"socket_path"`
}

// Defaults returns the compiled-in configuration.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr:      ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Backend:       BackendPostgres,
			Sessions:      BackendPostgres,
			SweepInterval: DefaultSweepInterval,
		},
		Auth: AuthConfig{
			SessionTTL:      auth.DefaultSessionTTL,
			StoreTimeout:    auth.DefaultStoreTimeout,
			MinSecretLength: auth.DefaultMinSecretLength,
			Lockout: LockoutConfig{
				Threshold: auth.DefaultLockoutThreshold,
				Window:    auth.DefaultLockoutWindow,
				Duration:  auth.DefaultLockoutDuration,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Observability: ObservabilityConfig{
			Enabled:    true,
			ListenAddr: ":9090",
		},
	}
}

// Load builds the effective configuration. path names an optional YAML
// file (empty skips the layer, a missing named file is an error).
// DATABASE_URL and REDIS_URL override file values; explicitly set
// flags override everything.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE_INVALID").
				With("path", path).
				Wrap(err)
		}
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		if err := k.Set("database.url", url); err != nil {
			return nil, oops.Code("CONFIG_INVALID").Wrap(err)
		}
	}
	if url := os.Getenv("REDIS_URL"); url != "" {
		if err := k.Set("redis.url", url); err != nil {
			return nil, oops.Code("CONFIG_INVALID").Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_INVALID").Wrap(err)
		}
	}

	cfg := Defaults()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("server listen address is required")
	}

	switch c.Storage.Backend {
	case BackendPostgres, BackendMemory:
	default:
		return oops.Code("CONFIG_INVALID").
			With("backend", c.Storage.Backend).
			Errorf("storage backend must be %q or %q", BackendPostgres, BackendMemory)
	}

	switch c.Storage.Sessions {
	case BackendPostgres, BackendRedis, BackendMemory:
	default:
		return oops.Code("CONFIG_INVALID").
			With("sessions", c.Storage.Sessions).
			Errorf("sessions backend must be %q, %q, or %q", BackendPostgres, BackendRedis, BackendMemory)
	}

	if c.Storage.Backend == BackendPostgres && c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").
			Errorf("database URL is required (set database.url or DATABASE_URL)")
	}
	if c.Storage.Backend == BackendPostgres && c.Storage.Sessions == BackendRedis && c.Redis.URL == "" {
		return oops.Code("CONFIG_INVALID").
			Errorf("redis URL is required for the redis sessions backend (set redis.url or REDIS_URL)")
	}

	if c.Storage.SweepInterval <= 0 {
		return oops.Code("CONFIG_INVALID").
			With("sweep_interval", c.Storage.SweepInterval.String()).
			Errorf("sweep interval must be positive")
	}

	if err := c.LockoutPolicy().Validate(); err != nil {
		return err
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return oops.Code("CONFIG_INVALID").
			With("format", c.Log.Format).
			Errorf("log format must be json or text")
	}

	if c.Observability.Enabled && c.Observability.ListenAddr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("observability listen address is required when enabled")
	}

	return nil
}

// LockoutPolicy maps the lockout section onto the domain policy.
func (c *Config) LockoutPolicy() auth.LockoutPolicy {
	return auth.LockoutPolicy{
		Threshold:    c.Auth.Lockout.Threshold,
		Window:       c.Auth.Lockout.Window,
		LockDuration: c.Auth.Lockout.Duration,
	}
}

// AuthServiceConfig maps the auth section onto the service config.
func (c *Config) AuthServiceConfig() auth.ServiceConfig {
	return auth.ServiceConfig{
		Lockout:                 c.LockoutPolicy(),
		SessionTTL:              c.Auth.SessionTTL,
		StoreTimeout:            c.Auth.StoreTimeout,
		MinSecretLength:         c.Auth.MinSecretLength,
		AllowedIdentityPatterns: c.Auth.AllowedIdentityPatterns,
	}
}

// ParseLevel converts a config level name to a slog.Level. An empty
// name means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, oops.Code("CONFIG_INVALID").
		With("level", s).
		Errorf("log level must be debug, info, warn, or error")
}
