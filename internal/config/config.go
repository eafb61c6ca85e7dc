// Package config loads orchestra settings from .orchestra/config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/orchestra/internal/errors"
	"github.com/felixgeelhaar/orchestra/internal/gate"
	"github.com/felixgeelhaar/orchestra/internal/log"
	"github.com/felixgeelhaar/orchestra/internal/telemetry"
)

// Directory is the per-project orchestra directory
const Directory = ".orchestra"

// DefaultPath is the config file location relative to the project root
var DefaultPath = filepath.Join(Directory, "config.yaml")

// Store backends
const (
	BackendFile   = "file"
	BackendBadger = "badger"
)

// Config is the full orchestra configuration
type Config struct {
	AgentID   string          `yaml:"agent_id,omitempty"`
	Pool      PoolConfig      `yaml:"pool"`
	Store     StoreConfig     `yaml:"store"`
	Gates     GatesConfig     `yaml:"gates"`
	Runner    RunnerConfig    `yaml:"runner"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// PoolConfig sizes the agent pool
type PoolConfig struct {
	Capacity int `yaml:"capacity"`
}

// StoreConfig selects the checkpoint backend
type StoreConfig struct {
	Backend    string `yaml:"backend"`
	Path       string `yaml:"path"`
	SyncWrites bool   `yaml:"sync_writes"`
}

// GatesConfig controls approval gates
type GatesConfig struct {
	Skip         []string      `yaml:"skip,omitempty"`
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
}

// RunnerConfig controls command execution
type RunnerConfig struct {
	Shell   string        `yaml:"shell,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
	Command string        `yaml:"command,omitempty"`
}

// LogConfig controls logging
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	// Addr serves /metrics when set, for example ":9464".
	Addr string `yaml:"addr,omitempty"`
}

// TelemetryConfig controls tracing
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
	Insecure bool   `yaml:"insecure,omitempty"`
}

// DefaultConfig returns the configuration used when no file exists
func DefaultConfig() *Config {
	return &Config{
		Pool: PoolConfig{Capacity: 4},
		Store: StoreConfig{
			Backend:    BackendFile,
			Path:       filepath.Join(Directory, "checkpoints"),
			SyncWrites: true,
		},
		Runner: RunnerConfig{Shell: "/bin/sh"},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path) // #nosec G304 -- operator supplied config path
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.NewConfigInvalidError(err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to path, creating its directory
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks field ranges and enumerations
func (c *Config) Validate() error {
	if c.Pool.Capacity < 1 {
		return errors.NewConfigInvalidError(fmt.Sprintf("pool.capacity must be at least 1, got %d", c.Pool.Capacity))
	}

	switch c.Store.Backend {
	case BackendFile, BackendBadger:
	default:
		return errors.NewConfigInvalidError(fmt.Sprintf("store.backend must be %q or %q, got %q", BackendFile, BackendBadger, c.Store.Backend))
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		return errors.NewConfigInvalidError("store.path is required")
	}

	if _, err := gate.ParseSkips(c.Gates.Skip); err != nil {
		return errors.NewConfigInvalidError(err.Error())
	}
	if c.Gates.PollInterval < 0 {
		return errors.NewConfigInvalidError("gates.poll_interval cannot be negative")
	}
	if c.Runner.Timeout < 0 {
		return errors.NewConfigInvalidError("runner.timeout cannot be negative")
	}

	switch c.Telemetry.Exporter {
	case "", telemetry.ExporterNone, telemetry.ExporterStdout:
	case telemetry.ExporterOTLP:
		if c.Telemetry.Endpoint == "" {
			return errors.NewConfigInvalidError("telemetry.endpoint is required for the otlp exporter")
		}
	default:
		return errors.NewConfigInvalidError(fmt.Sprintf("telemetry.exporter must be none, stdout or otlp, got %q", c.Telemetry.Exporter))
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return errors.NewConfigInvalidError(err.Error())
	}
	if _, err := log.ParseFormat(c.Log.Format); err != nil {
		return errors.NewConfigInvalidError(err.Error())
	}
	return nil
}

// LoggerConfig builds the logger configuration. Validate must have passed.
func (c *Config) LoggerConfig() log.Config {
	cfg := log.DefaultConfig()
	if level, err := log.ParseLevel(c.Log.Level); err == nil {
		cfg.Level = level
	}
	if format, err := log.ParseFormat(c.Log.Format); err == nil {
		cfg.Format = format
	}
	return cfg
}

// TelemetryConfig builds the tracer configuration
func (c *Config) TelemetryConfig(version string) telemetry.Config {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = version
	cfg.Enabled = c.Telemetry.Enabled
	if c.Telemetry.Exporter != "" {
		cfg.Exporter = c.Telemetry.Exporter
	}
	cfg.Endpoint = c.Telemetry.Endpoint
	cfg.Insecure = c.Telemetry.Insecure
	return cfg
}

// Skips returns the parsed skip directive. Validate must have passed.
func (c *Config) Skips() gate.StaticSkips {
	skips, _ := gate.ParseSkips(c.Gates.Skip)
	return skips
}
