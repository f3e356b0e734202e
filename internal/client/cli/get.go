package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <entity> <field>",
		Short: "Show the stored value of a field and any local draft",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()

			a, err := openApp(ctx, cmd, rootOpts)
			if err != nil {
				return err
			}
			defer func() {
				err = multierr.Append(err, a.Close(ctx))
			}()

			field, err := a.client.Get(ctx, args[0], args[1])
			if err != nil {
				return err
			}

			a.io.Printf("%s (version %d)\n", field.Key(), field.Version)
			a.io.Println(field.Value)

			if draft, ok := a.drafts.Load(ctx, args[0], args[1]); ok {
				a.io.Printf("\nlocal draft on version %d, saved %s ago:\n", draft.Version, a.since(draft.SavedLocallyAt))
				a.io.Println(draft.Value)
			}
			return nil
		},
	}

	return cmd
}
