// Package cli implements the fieldsync command line client.
package cli

import (
	"time"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	ServerURL  string
	DBPath     string
	Token      string
	Timeout    time.Duration
	Verbose    bool
}

// NewRootCommand creates the root command for the fieldsync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "fieldsync",
		Short:         "Edit remote fields with optimistic saves",
		Long:          "Edit single fields of remote entities. Saves are conditional on the field version; unsent edits survive as local drafts.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "fieldsync.yaml", "path to configuration file")
	cmd.PersistentFlags().StringVar(&opts.ServerURL, "server", "", "store URL (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "path to local draft database (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", "", "bearer token (overrides stored token)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "how long to wait for saves to settle")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewEditCommand(opts))
	cmd.AddCommand(NewAttachCommand(opts))
	cmd.AddCommand(NewDraftsCommand(opts))
	cmd.AddCommand(NewRestoreCommand(opts))
	cmd.AddCommand(NewDiscardCommand(opts))
	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))

	return cmd
}
