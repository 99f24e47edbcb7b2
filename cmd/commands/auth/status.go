package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"nathanbeddoewebdev/linops/internal/providers"
	"nathanbeddoewebdev/linops/internal/services/auth"
	"nathanbeddoewebdev/linops/internal/tui/styles"

	"github.com/spf13/cobra"
)

func StatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show which accounts have API keys",
		Long: `Show which registered accounts have a stored API key.

Example:
  linops auth status`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := auth.DefaultStore()
			out := cmd.OutOrStdout()

			if strings.TrimSpace(os.Getenv(auth.EnvAPIKey)) != "" {
				fmt.Fprintf(out, "%s is set and overrides stored keys.\n", auth.EnvAPIKey)
			}

			accounts := providers.List()
			if len(accounts) == 0 {
				fmt.Fprintln(out, "No accounts registered.")
				return nil
			}

			for _, account := range accounts {
				_, err := store.GetToken(account)
				switch {
				case err == nil:
					fmt.Fprintf(out, "%s: %s\n", account, styles.SuccessText.Render("logged in"))
				case errors.Is(err, auth.ErrTokenNotFound):
					fmt.Fprintf(out, "%s: %s\n", account, styles.MutedText.Render("not logged in"))
				default:
					fmt.Fprintf(out, "%s: %s\n", account, styles.ErrorText.Render(fmt.Sprintf("error (%v)", err)))
				}
			}
			return nil
		},
		SilenceUsage: true,
	}

	return cmd
}
