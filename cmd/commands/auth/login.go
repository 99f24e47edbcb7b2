package auth

import (
	"errors"
	"fmt"
	"strings"

	"nathanbeddoewebdev/linops/internal/providers"
	"nathanbeddoewebdev/linops/internal/services/auth"
	"nathanbeddoewebdev/linops/internal/tui"

	"github.com/spf13/cobra"
)

func LoginCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login [account]",
		Short: "Store an API key for an account",
		Long: `Store a Linode API key in the local keychain. The account defaults
to "linode".

Example:
  linops auth login
  linops auth login --token "$KEY"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account := providers.DefaultAccount
			if len(args) == 1 {
				account = strings.TrimSpace(args[0])
			}
			if account == "" {
				return errors.New("account is required")
			}

			token, _ := cmd.Flags().GetString("token")
			token = strings.TrimSpace(token)
			if token == "" {
				secret, err := tui.ReadSecret(cmd.OutOrStdout(), "Enter API key: ")
				if errors.Is(err, tui.ErrNotTerminal) {
					return errors.New("no terminal to prompt on: use --token")
				}
				if err != nil {
					return err
				}
				token = strings.TrimSpace(secret)
			}
			if token == "" {
				return errors.New("token cannot be empty")
			}

			if err := auth.DefaultStore().SetToken(account, token); err != nil {
				return fmt.Errorf("failed to store token: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Saved API key for account %s\n", account)
			return nil
		},
		SilenceUsage: true,
	}

	cmd.Flags().String("token", "", "API key (optional, overrides prompt)")

	return cmd
}

func LogoutCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout [account]",
		Short: "Remove the stored API key for an account",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account := providers.DefaultAccount
			if len(args) == 1 {
				account = strings.TrimSpace(args[0])
			}

			err := auth.DefaultStore().DeleteToken(account)
			if errors.Is(err, auth.ErrTokenNotFound) {
				fmt.Fprintf(cmd.OutOrStdout(), "No API key stored for account %s\n", account)
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to remove token: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Removed API key for account %s\n", account)
			return nil
		},
		SilenceUsage: true,
	}

	return cmd
}
