package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show store reachability and pending drafts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			ctx := cmd.Context()

			a, err := openApp(ctx, cmd, rootOpts)
			if err != nil {
				return err
			}
			defer func() {
				err = multierr.Append(err, a.Close(ctx))
			}()

			state := "unreachable"
			if a.prober.Online() {
				state = "reachable"
			}
			a.io.Printf("Store:  %s (%s)\n", a.cfg.ServerURL, state)

			drafts := 0
			for _, entityID := range a.drafts.Entities(ctx) {
				drafts += len(a.drafts.LoadAll(ctx, entityID))
			}
			a.io.Printf("Drafts: %d\n", drafts)
			return nil
		},
	}

	return cmd
}
