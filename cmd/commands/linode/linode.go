package linode

import (
	"context"
	"fmt"
	"log/slog"

	"nathanbeddoewebdev/linops/internal/job"
	"nathanbeddoewebdev/linops/internal/providers"
	"nathanbeddoewebdev/linops/internal/services/auth"
	"nathanbeddoewebdev/linops/internal/services/jobs"
	"nathanbeddoewebdev/linops/internal/tui"

	"github.com/spf13/cobra"
)

// NewCommand returns the "linode" parent command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "linode",
		Short: "Inspect and operate existing Linodes",
		Long: `List, inspect, boot, shut down, resize and delete Linodes.

Actions that start a job wait for it to finish unless --no-wait is given.
Waiting jobs are journaled, so an interrupted wait can be resumed with
"linops job resume".`,
	}

	cmd.AddCommand(ListCommand())
	cmd.AddCommand(ShowCommand())
	cmd.AddCommand(BootCommand())
	cmd.AddCommand(RebootCommand())
	cmd.AddCommand(ShutdownCommand())
	cmd.AddCommand(ResizeCommand())
	cmd.AddCommand(RenameCommand())
	cmd.AddCommand(CloneCommand())
	cmd.AddCommand(DeleteCommand())
	cmd.AddCommand(DiskCommand())

	cmd.PersistentFlags().String("account", providers.DefaultAccount, "Account whose API key to use")

	return cmd
}

func providerFor(cmd *cobra.Command) (*providers.LinodeProvider, error) {
	account, _ := cmd.Flags().GetString("account")
	return providers.Get(account, auth.DefaultStore())
}

// waitForJob journals h and blocks until it finishes, unless --no-wait was
// given, in which case the job stays pending in the journal.
func waitForJob(ctx context.Context, cmd *cobra.Command, h *job.Handle, title string) error {
	journal := jobs.OpenDefault(slog.Default())
	defer journal.Close()

	journal.Track(h)

	if noWait, _ := cmd.Flags().GetBool("no-wait"); noWait {
		run := journal.RunID()[:jobs.ShortRunIDLen]
		fmt.Fprintf(cmd.ErrOrStderr(), "Job %d started; check it with \"linops job list --run %s\".\n", h.ID(), run)
		return nil
	}

	err := tui.Run(ctx, cmd.ErrOrStderr(), title, func(ctx context.Context) error {
		_, err := h.Wait(ctx)
		return err
	})
	if h.Done() {
		journal.Finalize(h)
	}
	return err
}
