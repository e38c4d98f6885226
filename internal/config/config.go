// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

// Package config loads vidshelf's configuration. Values come from, in
// increasing precedence: built-in defaults, an optional YAML file,
// command-line flags the user actually set, and the DATABASE_URL and
// VIDSHELF_SECRET environment variables.
package config

import (
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/vidshelf/vidshelf/internal/auth"
	"github.com/vidshelf/vidshelf/internal/library"
	"github.com/vidshelf/vidshelf/internal/logging"
)

// Environment variables read by Load.
const (
	EnvDatabaseURL = "DATABASE_URL"
	EnvSecret      = "VIDSHELF_SECRET"
)

// Config is the full service configuration.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Log      LogConfig      `koanf:"log"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	Library  LibraryConfig  `koanf:"library"`
}

// HTTPConfig configures the JSON API listener.
type HTTPConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// MetricsConfig configures the observability listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// DatabaseConfig configures the PostgreSQL pool. URL is normally supplied
// through DATABASE_URL.
type DatabaseConfig struct {
	URL            string        `koanf:"url"`
	MaxConns       int32         `koanf:"max_conns"`
	ConnectRetries uint64        `koanf:"connect_retries"`
	RetryInterval  time.Duration `koanf:"retry_interval"`
	AutoMigrate    bool          `koanf:"auto_migrate"`
}

// AuthConfig configures credentials and session tokens. Secret is normally
// supplied through VIDSHELF_SECRET.
type AuthConfig struct {
	Secret       string        `koanf:"secret"`
	Algorithm    string        `koanf:"algorithm"`
	SessionTTL   time.Duration `koanf:"session_ttl"`
	CookieName   string        `koanf:"cookie_name"`
	CookieSecure bool          `koanf:"cookie_secure"`
	HashWorkers  int           `koanf:"hash_workers"`
}

// LibraryConfig tunes the item registry and collection manager retries.
type LibraryConfig struct {
	CreateAttempts      int           `koanf:"create_attempts"`
	CreateRetryInterval time.Duration `koanf:"create_retry_interval"`
	CASAttempts         int           `koanf:"cas_attempts"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTP:    HTTPConfig{Addr: "127.0.0.1:8080", ShutdownTimeout: 10 * time.Second},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9100"},
		Log:     LogConfig{Format: "json", Level: "info"},
		Database: DatabaseConfig{
			MaxConns:       10,
			ConnectRetries: 5,
			RetryInterval:  time.Second,
		},
		Auth: AuthConfig{
			Algorithm:  auth.DefaultTokenAlgorithm,
			SessionTTL: auth.DefaultSessionTTL,
			CookieName: auth.DefaultCookieName,
		},
		Library: LibraryConfig{
			CreateAttempts:      library.DefaultCreateAttempts,
			CreateRetryInterval: library.DefaultRetryInterval,
			CASAttempts:         library.DefaultCASAttempts,
		},
	}
}

// flagKeys maps command-line flag names to configuration keys. Flags not
// listed here are ignored by Load.
var flagKeys = map[string]string{
	"http-addr":     "http.addr",
	"metrics-addr":  "metrics.addr",
	"log-format":    "log.format",
	"log-level":     "log.level",
	"auto-migrate":  "database.auto_migrate",
	"session-ttl":   "auth.session_ttl",
	"cookie-secure": "auth.cookie_secure",
	"hash-workers":  "auth.hash_workers",
}

// RegisterFlags adds the flags Load understands to fs, defaulted from
// Default().
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("http-addr", d.HTTP.Addr, "JSON API listen address")
	fs.String("metrics-addr", d.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.Bool("auto-migrate", d.Database.AutoMigrate, "apply pending migrations before serving")
	fs.Duration("session-ttl", d.Auth.SessionTTL, "default session token lifetime")
	fs.Bool("cookie-secure", d.Auth.CookieSecure, "mark the session cookie Secure")
	fs.Int("hash-workers", d.Auth.HashWorkers, "concurrent password hash operations (0 = one per CPU)")
}

// Load builds a Config. path may be empty; flags may be nil; getenv looks
// up environment variables (os.Getenv in production).
func Load(path string, flags *pflag.FlagSet, getenv func(string) string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_PARSE_FAILED").Wrap(err)
	}

	if getenv != nil {
		if v := getenv(EnvDatabaseURL); v != "" {
			cfg.Database.URL = v
		}
		if v := getenv(EnvSecret); v != "" {
			cfg.Auth.Secret = v
		}
	}
	return &cfg, nil
}

// Validate checks everything serve needs.
func (c *Config) Validate() error {
	if err := c.ValidateDatabase(); err != nil {
		return err
	}
	if c.HTTP.Addr == "" {
		return invalid("http.addr", "is required")
	}
	if !logging.ValidFormat(c.Log.Format) {
		return invalid("log.format", "must be json or text")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", "must be debug, info, warn or error")
	}
	if len(c.Auth.Secret) < auth.MinSecretLength {
		return oops.Code("CONFIG_INVALID").
			With("key", "auth.secret").
			Errorf("auth secret must be at least %d bytes; set %s", auth.MinSecretLength, EnvSecret)
	}
	switch c.Auth.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		return invalid("auth.algorithm", "must be HS256, HS384 or HS512")
	}
	if c.Auth.SessionTTL <= 0 {
		return invalid("auth.session_ttl", "must be positive")
	}
	if c.Auth.HashWorkers < 0 {
		return invalid("auth.hash_workers", "must not be negative")
	}
	if c.Library.CreateAttempts < 0 || c.Library.CASAttempts < 0 {
		return invalid("library", "attempt counts must not be negative")
	}
	return nil
}

// ValidateDatabase checks only what migrate needs.
func (c *Config) ValidateDatabase() error {
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").
			With("key", "database.url").
			Errorf("database url is required; set %s", EnvDatabaseURL)
	}
	return nil
}

func invalid(key, msg string) error {
	return oops.Code("CONFIG_INVALID").With("key", key).Errorf("%s %s", key, msg)
}
