package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/iudanet/fieldsync/internal/client/upload"
	"github.com/iudanet/fieldsync/internal/models"
)

// NewAttachCommand creates the attach command.
func NewAttachCommand(rootOpts *RootOptions) *cobra.Command {
	var onConflict string

	cmd := &cobra.Command{
		Use:   "attach <entity> <field> <file>...",
		Short: "Replace an attachments field with the given files",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkConflictPolicy(onConflict); err != nil {
				return err
			}
			files, err := collectFiles(args[2:])
			if err != nil {
				return err
			}
			return runAttach(cmd, rootOpts, args[0], args[1], files, onConflict)
		},
	}

	cmd.Flags().StringVar(&onConflict, "on-conflict", OnConflictFail, "conflict policy (fail|keep|discard|ask)")

	return cmd
}

func collectFiles(paths []string) ([]upload.File, error) {
	files := make([]upload.File, 0, len(paths))
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory", path)
		}
		files = append(files, upload.File{Name: filepath.Base(abs), Path: abs, Size: info.Size()})
	}
	return files, nil
}

func runAttach(cmd *cobra.Command, opts *RootOptions, entityID, fieldID string, files []upload.File, onConflict string) (err error) {
	ctx := cmd.Context()

	a, err := openApp(ctx, cmd, opts)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, a.Close(ctx))
	}()

	key := models.FieldKey{EntityID: entityID, FieldID: fieldID}
	a.router.markAttachments(key)
	a.router.attachments.OnProgress(func(k models.FieldKey, p upload.Progress) {
		if k == key && p.Done() {
			a.io.Printf("%s: uploaded %d file(s), %d bytes\n", k, p.Files, p.Total)
		}
	})

	value, err := upload.EncodeFiles(files)
	if err != nil {
		return err
	}

	s, err := a.openSession(ctx, entityID, fieldID)
	if err != nil {
		return err
	}
	if err := s.Edit(value); err != nil {
		return err
	}

	return a.settle(ctx, s, onConflict)
}
