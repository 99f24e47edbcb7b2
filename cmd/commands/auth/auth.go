package auth

import (
	"github.com/spf13/cobra"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage Linode API keys",
		Long: `Manage Linode API keys.

Keys are stored in the OS keychain, one per account. The LINODE_API_KEY
environment variable takes precedence over a stored key.`,
	}

	cmd.AddCommand(LoginCommand())
	cmd.AddCommand(LogoutCommand())
	cmd.AddCommand(StatusCommand())

	return cmd
}
