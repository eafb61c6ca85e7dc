package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/orchestra/internal/config"
)

// CommandContext holds the persistent flags of one invocation. Commands build
// it in RunE instead of reading package globals.
type CommandContext struct {
	ConfigPath   string
	AgentID      string
	LogLevel     string
	LogFormat    string
	StoreBackend string
	StorePath    string
}

// NewCommandContext extracts command context from cobra.Command flags.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	flags := cmd.Flags()
	cc := &CommandContext{}
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"config", &cc.ConfigPath},
		{"agent-id", &cc.AgentID},
		{"log-level", &cc.LogLevel},
		{"log-format", &cc.LogFormat},
		{"store-backend", &cc.StoreBackend},
		{"store-path", &cc.StorePath},
	} {
		v, err := flags.GetString(f.name)
		if err != nil {
			return nil, err
		}
		*f.dst = v
	}
	return cc, nil
}

// LoadConfig reads the config file and applies flag overrides. overrides run
// after the persistent flags, then the result is validated.
func (c *CommandContext) LoadConfig(overrides ...func(*config.Config)) (*config.Config, error) {
	cfg, err := config.Load(c.ConfigPath)
	if err != nil {
		return nil, err
	}

	if c.AgentID != "" {
		cfg.AgentID = c.AgentID
	}
	if cfg.AgentID == "" {
		cfg.AgentID = defaultAgentID()
	}
	if c.LogLevel != "" {
		cfg.Log.Level = c.LogLevel
	}
	if c.LogFormat != "" {
		cfg.Log.Format = c.LogFormat
	}
	if c.StoreBackend != "" {
		cfg.Store.Backend = c.StoreBackend
	}
	if c.StorePath != "" {
		cfg.Store.Path = c.StorePath
	}
	for _, o := range overrides {
		o(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaultAgentID is stable across restarts of the same host so that resume
// finds the checkpoints this machine wrote.
func defaultAgentID() string {
	host, err := os.Hostname()
	if err != nil {
		return ""
	}
	return host
}
