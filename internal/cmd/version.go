package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/orchestra/internal/version"
)

func newVersionCommand() *cobra.Command {
	var verbose, asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long: `Print version information including version number, git commit,
build date, Go version, and platform.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.GetInfo()
			out := cmd.OutOrStdout()

			switch {
			case asJSON:
				return writeJSON(out, info)
			case verbose:
				_, err := fmt.Fprintln(out, info.String())
				return err
			default:
				_, err := fmt.Fprintf(out, "orchestra %s\n", info.Short())
				return err
			}
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show detailed version information")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output version information as JSON")
	return cmd
}
