package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/iudanet/fieldsync/internal/client/session"
	"github.com/iudanet/fieldsync/internal/models"
)

// Conflict policies of the edit and attach commands.
const (
	OnConflictFail    = "fail"
	OnConflictKeep    = "keep"
	OnConflictDiscard = "discard"
	OnConflictAsk     = "ask"
)

// ErrConflict is returned when a save conflicts and the policy is fail.
var ErrConflict = errors.New("field was changed remotely")

// maxConflictRounds ограничивает повторы KeepLocal, если поле продолжают менять
const maxConflictRounds = 3

// NewEditCommand creates the edit command.
func NewEditCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		fromStdin  bool
		onConflict string
	)

	cmd := &cobra.Command{
		Use:   "edit <entity> <field> [value]",
		Short: "Set a field value",
		Long: `Set a field value with a conditional save.

The save is based on the version fetched from the store. When the store is
unreachable the edit is kept as a local draft; run "fieldsync restore" later.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := editValue(cmd, args, fromStdin)
			if err != nil {
				return err
			}
			if err := checkConflictPolicy(onConflict); err != nil {
				return err
			}
			return runEdit(cmd, rootOpts, args[0], args[1], value, onConflict)
		},
	}

	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "read the value from stdin")
	cmd.Flags().StringVar(&onConflict, "on-conflict", OnConflictFail, "conflict policy (fail|keep|discard|ask)")

	return cmd
}

func editValue(cmd *cobra.Command, args []string, fromStdin bool) (string, error) {
	switch {
	case fromStdin && len(args) == 3:
		return "", errors.New("value and --stdin are mutually exclusive")
	case fromStdin:
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return strings.TrimRight(string(data), "\n"), nil
	case len(args) == 3:
		return args[2], nil
	default:
		return "", errors.New("value is required (or use --stdin)")
	}
}

func checkConflictPolicy(policy string) error {
	switch policy {
	case OnConflictFail, OnConflictKeep, OnConflictDiscard, OnConflictAsk:
		return nil
	default:
		return fmt.Errorf("invalid conflict policy %q", policy)
	}
}

func runEdit(cmd *cobra.Command, opts *RootOptions, entityID, fieldID, value, onConflict string) (err error) {
	ctx := cmd.Context()

	a, err := openApp(ctx, cmd, opts)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, a.Close(ctx))
	}()

	s, err := a.openSession(ctx, entityID, fieldID)
	if err != nil {
		return err
	}
	if err := s.Edit(value); err != nil {
		return err
	}

	return a.settle(ctx, s, onConflict)
}

func (a *app) openSession(ctx context.Context, entityID, fieldID string) (*session.Session, error) {
	field, confirmed, err := a.fetch(ctx, entityID, fieldID)
	if err != nil {
		return nil, err
	}
	if confirmed {
		return a.coord.Open(field)
	}
	a.io.Println("Store is unreachable, the edit will be kept as a draft")
	return a.coord.OpenUnconfirmed(field)
}

// settle submits the pending save and reports how the session settled
func (a *app) settle(ctx context.Context, s *session.Session, onConflict string) error {
	for round := 0; ; round++ {
		s.FlushNow()

		waitCtx, cancel := a.waitContext(ctx)
		waitErr := s.Wait(waitCtx)
		cancel()

		snap := s.Snapshot()
		if waitErr != nil {
			a.io.Printf("%s: still %s, the edit will be kept as a draft\n", snap.Key, snap.State)
			return nil
		}

		switch snap.State {
		case models.StateSaved, models.StateIdle:
			a.io.Printf("%s: saved at version %d\n", snap.Key, snap.Version)
			return nil
		case models.StateOffline:
			a.io.Printf("%s: store unreachable, edit kept as a local draft\n", snap.Key)
			if snap.DraftErr != nil {
				return fmt.Errorf("failed to keep draft: %w", snap.DraftErr)
			}
			return nil
		case models.StateError:
			return snap.Err
		case models.StateConflict:
			if round >= maxConflictRounds {
				return fmt.Errorf("%s: %w repeatedly", snap.Key, ErrConflict)
			}
			keep, err := a.decideConflict(snap, onConflict)
			if err != nil {
				return err
			}
			if !keep {
				if err := s.DiscardLocal(); err != nil {
					return err
				}
				a.io.Printf("%s: kept remote value at version %d\n", snap.Key, snap.ConflictVersion)
				return nil
			}
			if err := s.KeepLocal(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%s: unexpected state %s", snap.Key, snap.State)
		}
	}
}

func (a *app) decideConflict(snap session.Snapshot, policy string) (keep bool, err error) {
	switch policy {
	case OnConflictKeep:
		return true, nil
	case OnConflictDiscard:
		return false, nil
	case OnConflictAsk:
		a.io.Printf("%s changed remotely (version %d)\n", snap.Key, snap.ConflictVersion)
		a.io.Printf("  remote: %s\n", snap.ConflictValue)
		a.io.Printf("  local:  %s\n", snap.Value)
		for {
			answer, err := a.io.ReadInput("Keep [l]ocal or [r]emote? ")
			if err != nil {
				return false, fmt.Errorf("failed to read answer: %w", err)
			}
			switch strings.ToLower(answer) {
			case "l", "local":
				return true, nil
			case "r", "remote":
				return false, nil
			}
		}
	default:
		a.io.Printf("%s changed remotely (version %d): %s\n", snap.Key, snap.ConflictVersion, snap.ConflictValue)
		return false, fmt.Errorf("%s: %w, rerun with --on-conflict=keep or --on-conflict=discard", snap.Key, ErrConflict)
	}
}
