package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hlop3z/strata/internal/alerr"
	"github.com/hlop3z/strata/internal/roles"
	"github.com/hlop3z/strata/pkg/strata"
)

const defaultConfigFile = "strata.yaml"

// Config represents the strata.yaml configuration file.
type Config struct {
	DatabaseURL      string        `yaml:"database_url"`
	Dialect          string        `yaml:"dialect"`
	LockTimeout      time.Duration `yaml:"lock_timeout"`
	TransactionalDDL *bool         `yaml:"transactional_ddl"`
	DefaultRole      string        `yaml:"default_role"`
	LogLevel         string        `yaml:"log_level"`
	LogFormat        string        `yaml:"log_format"`
	// Policy replaces the built-in role policy when set.
	Policy *roles.Policy `yaml:"policy"`
}

// loadConfig loads configuration from file, env vars, and CLI flags.
// Precedence: CLI flags > env vars > config file > defaults
func loadConfig() (*Config, error) {
	cfg := &Config{
		LogLevel:  "warn",
		LogFormat: "text",
	}

	data, err := os.ReadFile(configFile)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, alerr.Wrap(alerr.ErrConfigInvalid, err, "failed to parse config file").
				With("file", configFile)
		}
		// Handle env var interpolation in database_url
		cfg.DatabaseURL = expandEnvVars(cfg.DatabaseURL)
	case errors.Is(err, fs.ErrNotExist) && configFile == defaultConfigFile:
		// The default file is optional.
	default:
		return nil, alerr.Wrap(alerr.ErrConfigInvalid, err, "failed to read config file").
			With("file", configFile)
	}

	// Override with env vars
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("STRATA_DIALECT"); v != "" {
		cfg.Dialect = v
	}
	if v := os.Getenv("STRATA_DEFAULT_ROLE"); v != "" {
		cfg.DefaultRole = v
	}

	// Override with CLI flags (highest priority)
	if databaseURL != "" {
		cfg.DatabaseURL = databaseURL
	}
	if dialectName != "" {
		cfg.Dialect = dialectName
	}
	if defaultRole != "" {
		cfg.DefaultRole = defaultRole
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return alerr.Newf(alerr.ErrConfigInvalid, "unknown log_format %q", c.LogFormat).
			WithHelp("use \"text\" or \"json\"")
	}
	if c.LockTimeout < 0 {
		return alerr.New(alerr.ErrConfigInvalid, "lock_timeout must not be negative").
			With("lock_timeout", c.LockTimeout)
	}
	return nil
}

// expandEnvVars expands ${VAR} patterns in a string.
func expandEnvVars(s string) string {
	return os.Expand(s, os.Getenv)
}

// options converts the configuration into client options.
func (c *Config) options() []strata.Option {
	opts := []strata.Option{strata.WithDatabaseURL(c.DatabaseURL)}
	if c.Dialect != "" {
		opts = append(opts, strata.WithDialect(c.Dialect))
	}
	if c.LockTimeout > 0 {
		opts = append(opts, strata.WithLockTimeout(c.LockTimeout))
	}
	if c.TransactionalDDL != nil {
		opts = append(opts, strata.WithTransactionalDDL(*c.TransactionalDDL))
	}
	if c.Policy != nil {
		opts = append(opts, strata.WithPolicy(*c.Policy))
	}
	// After WithPolicy so it overrides the file policy's default.
	if c.DefaultRole != "" {
		opts = append(opts, strata.WithDefaultRole(c.DefaultRole))
	}
	return opts
}

// newClient opens a client from the merged configuration.
func newClient() (*strata.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, strata.ErrMissingDatabaseURL
	}
	return strata.Open(cfg.options()...)
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, alerr.Newf(alerr.ErrConfigInvalid, "unknown log level %q", s).
			WithHelp("use debug, info, warn or error")
	}
	return level, nil
}

// newLogger builds the slog logger used for the whole run.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("unknown log format %q", format)
}
