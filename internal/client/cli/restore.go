package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

// NewRestoreCommand creates the restore command.
func NewRestoreCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore [entity]",
		Short: "Resubmit local drafts",
		Long: `Resubmit local drafts to the store.

Drafts that conflict with a newer remote value are kept; inspect them with
"fieldsync get" and resolve with "fieldsync edit" or "fieldsync discard".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()

			a, err := openApp(ctx, cmd, rootOpts)
			if err != nil {
				return err
			}
			defer func() {
				err = multierr.Append(err, a.Close(ctx))
			}()

			if !a.prober.Online() {
				return errors.New("store is unreachable, drafts were left untouched")
			}

			entities := args
			if len(entities) == 0 {
				entities = a.drafts.Entities(ctx)
			}
			if len(entities) == 0 {
				a.io.Println("No drafts")
				return nil
			}

			var failures error
			for _, entityID := range entities {
				n, err := a.coord.RestoreDrafts(ctx, entityID)
				if err != nil {
					return err
				}
				if n == 0 {
					continue
				}

				waitCtx, cancel := a.waitContext(ctx)
				summary := a.coord.FlushAll(waitCtx, entityID)
				cancel()

				for _, key := range summary.Saved {
					a.io.Printf("%s: saved\n", key)
				}
				for _, key := range summary.Pending {
					a.io.Printf("%s: still pending, kept as draft\n", key)
				}
				for _, key := range summary.Failed {
					a.io.Printf("%s: failed\n", key)
				}
				failures = multierr.Append(failures, summary.Err)
			}

			if failures != nil {
				return fmt.Errorf("some drafts were not saved: %w", failures)
			}
			return nil
		},
	}

	return cmd
}
