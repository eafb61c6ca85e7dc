// Package cmd implements the orchestra command line.
package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/orchestra/internal/config"
)

// NewRootCommand builds the orchestra command tree
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "orchestra",
		Short: "Run dependency-ordered work items with checkpoints and approval gates",
		Long: `orchestra runs the work items of a feature plan in dependency order on a
bounded pool of agents. Progress is checkpointed after every item so an
interrupted run can be resumed by the agent that owns it, and items can be held
behind human approval gates (REQUIREMENTS, ARCHITECTURE, UAT).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", config.DefaultPath, "config file")
	flags.String("agent-id", "", "identity this process checkpoints under (default: config agent_id, then hostname)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: text or json")
	flags.String("store-backend", "", "checkpoint store backend: file or badger")
	flags.String("store-path", "", "checkpoint store location")

	root.AddCommand(
		newRunCommand(),
		newResumeCommand(),
		newRecoverCommand(),
		newCheckpointCommand(),
		newGateCommand(),
		newConfigCommand(),
		newCompletionCommand(),
		newVersionCommand(),
	)
	return root
}

// ExecuteContext runs the command tree with ctx
func ExecuteContext(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}
