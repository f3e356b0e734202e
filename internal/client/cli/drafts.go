package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

// NewDraftsCommand creates the drafts command.
func NewDraftsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drafts [entity]",
		Short: "List local drafts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()

			kv, store, err := openStore(ctx, cmd, rootOpts)
			if err != nil {
				return err
			}
			defer func() {
				err = multierr.Append(err, kv.Close())
			}()

			entities := args
			if len(entities) == 0 {
				entities = store.Entities(ctx)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "FIELD\tVERSION\tSAVED\tVALUE")
			count := 0
			for _, entityID := range entities {
				for _, d := range store.LoadAll(ctx, entityID) {
					_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", d.Key(), d.Version, d.SavedLocallyAt.Format(time.RFC3339), preview(d.Value))
					count++
				}
			}
			if count == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No drafts")
				return nil
			}
			return w.Flush()
		},
	}

	return cmd
}

// NewDiscardCommand creates the discard command.
func NewDiscardCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discard <entity> <field>",
		Short: "Delete the local draft of a field",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()

			kv, store, err := openStore(ctx, cmd, rootOpts)
			if err != nil {
				return err
			}
			defer func() {
				err = multierr.Append(err, kv.Close())
			}()

			if _, ok := store.Load(ctx, args[0], args[1]); !ok {
				return fmt.Errorf("no draft for %s/%s", args[0], args[1])
			}
			if err := store.Delete(ctx, args[0], args[1]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Draft for %s/%s discarded\n", args[0], args[1])
			return nil
		},
	}

	return cmd
}

// preview обрезает длинные значения для таблицы
func preview(value string) string {
	const limit = 40
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-3]) + "..."
}
