package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/iudanet/fieldsync/internal/client/api"
	"github.com/iudanet/fieldsync/internal/client/iocli"
	"github.com/iudanet/fieldsync/internal/syncerr"
)

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a bearer token for later commands",
		Long:  "Store a bearer token in the local database. The token is read from --token or prompted without echo.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			ctx := cmd.Context()
			term := iocli.NewStdio(cmd.InOrStdin(), cmd.OutOrStdout())

			token := rootOpts.Token
			if token == "" {
				token, err = term.ReadSecret("Token: ")
				if err != nil {
					return fmt.Errorf("failed to read token: %w", err)
				}
			}
			token = strings.TrimSpace(token)
			if token == "" {
				return errors.New("token cannot be empty")
			}

			cfg, err := loadClientConfig(rootOpts)
			if err != nil {
				return err
			}

			// Проверяем токен до сохранения
			client := api.NewClient(cfg.ServerURL)
			client.SetToken(token)
			if _, err := client.Get(ctx, "login-check", "token"); err != nil && syncerr.Classify(err) == syncerr.KindPermission {
				return fmt.Errorf("token rejected by the store: %w", err)
			}

			kv, _, err := openStore(ctx, cmd, rootOpts)
			if err != nil {
				return err
			}
			defer func() {
				err = multierr.Append(err, kv.Close())
			}()

			if err := kv.Set(ctx, tokenKey, []byte(token)); err != nil {
				return fmt.Errorf("failed to store token: %w", err)
			}
			term.Println("Token stored")
			return nil
		},
	}

	return cmd
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			ctx := cmd.Context()

			kv, _, err := openStore(ctx, cmd, rootOpts)
			if err != nil {
				return err
			}
			defer func() {
				err = multierr.Append(err, kv.Close())
			}()

			if err := kv.Delete(ctx, tokenKey); err != nil {
				return fmt.Errorf("failed to remove token: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Token removed")
			return nil
		},
	}

	return cmd
}
