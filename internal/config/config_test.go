package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/orchestra/internal/domain"
	"github.com/felixgeelhaar/orchestra/internal/errors"
	"github.com/felixgeelhaar/orchestra/internal/log"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
agent_id: ci-runner
pool:
  capacity: 8
store:
  backend: badger
  path: /var/lib/orchestra
gates:
  skip: [uat]
  poll_interval: 30s
runner:
  timeout: 10m
  command: make
log:
  level: debug
  format: json
metrics:
  addr: ":9464"
telemetry:
  enabled: true
  exporter: otlp
  endpoint: localhost:4317
  insecure: true
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ci-runner", cfg.AgentID)
	assert.Equal(t, 8, cfg.Pool.Capacity)
	assert.Equal(t, BackendBadger, cfg.Store.Backend)
	assert.Equal(t, "/var/lib/orchestra", cfg.Store.Path)
	assert.True(t, cfg.Store.SyncWrites, "unset fields keep their defaults")
	assert.Equal(t, 30*time.Second, cfg.Gates.PollInterval)
	assert.Equal(t, 10*time.Minute, cfg.Runner.Timeout)
	assert.Equal(t, "/bin/sh", cfg.Runner.Shell)
	assert.Equal(t, "make", cfg.Runner.Command)
	assert.Equal(t, ":9464", cfg.Metrics.Addr)
	assert.True(t, cfg.Telemetry.Enabled)

	tc := cfg.TelemetryConfig("1.2.3")
	assert.Equal(t, "otlp", tc.Exporter)
	assert.Equal(t, "localhost:4317", tc.Endpoint)
	assert.True(t, tc.Insecure)
	assert.Equal(t, "1.2.3", tc.ServiceVersion)

	assert.True(t, cfg.Skips().ShouldSkip("any", domain.GateUAT))

	lc := cfg.LoggerConfig()
	assert.Equal(t, log.LevelDebug, lc.Level)
	assert.Equal(t, log.FormatJSON, lc.Format)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero capacity", func(c *Config) { c.Pool.Capacity = 0 }},
		{"unknown backend", func(c *Config) { c.Store.Backend = "redis" }},
		{"empty store path", func(c *Config) { c.Store.Path = " " }},
		{"unknown gate", func(c *Config) { c.Gates.Skip = []string{"QA"} }},
		{"negative poll", func(c *Config) { c.Gates.PollInterval = -time.Second }},
		{"negative timeout", func(c *Config) { c.Runner.Timeout = -time.Second }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }},
		{"unknown exporter", func(c *Config) { c.Telemetry.Exporter = "zipkin" }},
		{"otlp without endpoint", func(c *Config) { c.Telemetry.Exporter = "otlp" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))
		})
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pool: [\n"), 0600))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), Directory, "config.yaml")
	cfg := DefaultConfig()
	cfg.AgentID = "me"
	cfg.Gates.PollInterval = 2 * time.Second
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
