// Package config loads CLI configuration from medtrack.yaml and the
// environment.
//
// Precedence, lowest first: built-in defaults, the YAML file, MEDTRACK_*
// environment variables, command-line flags (applied by the CLI).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/medtrack/internal/model"
)

// DefaultFile is read when no file is named explicitly.
const DefaultFile = "medtrack.yaml"

// Environment variables that override the file.
const (
	EnvDatabase = "MEDTRACK_DB"
	EnvTimezone = "MEDTRACK_TZ"
	EnvLogLevel = "MEDTRACK_LOG_LEVEL"
	EnvSnooze   = "MEDTRACK_SNOOZE_MINUTES"
)

// Config is the CLI configuration.
type Config struct {
	// Database is the SQLite file holding the document.
	Database string `yaml:"database"`
	// Timezone is the IANA zone written to the document settings. Empty
	// keeps whatever the document has.
	Timezone string `yaml:"timezone"`
	LogLevel string `yaml:"log_level"`
	// AppVersion is recorded in exports.
	AppVersion string `yaml:"app_version"`
	// SnoozeMinutes is the default snooze length.
	SnoozeMinutes int `yaml:"snooze_minutes"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database:      "medtrack.db",
		LogLevel:      "info",
		AppVersion:    model.AppVersion,
		SnoozeMinutes: 10,
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path reads DefaultFile if it exists.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(bytes.NewReader(data), &cfg); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		// No file is fine; defaults and env apply.
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decode parses YAML into cfg, rejecting unknown keys so typos surface.
func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode yaml: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvDatabase); ok && v != "" {
		c.Database = v
	}
	if v, ok := lookup(EnvTimezone); ok && v != "" {
		c.Timezone = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup(EnvSnooze); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvSnooze, err)
		}
		c.SnoozeMinutes = n
	}
	return nil
}

// Validate checks values the CLI cannot start without.
func (c Config) Validate() error {
	if c.Database == "" {
		return fmt.Errorf("config: database is required")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("config: timezone: %w", err)
		}
	}
	if c.SnoozeMinutes < 1 {
		return fmt.Errorf("config: snooze_minutes must be at least 1")
	}
	return nil
}

// Level returns the slog level of LogLevel, info when unparseable.
func (c Config) Level() slog.Level {
	l, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

// ParseLevel maps debug/info/warn/error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Snooze returns the default snooze length.
func (c Config) Snooze() time.Duration {
	return time.Duration(c.SnoozeMinutes) * time.Minute
}
