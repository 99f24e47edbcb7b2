package linode

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"nathanbeddoewebdev/linops/internal/job"
	"nathanbeddoewebdev/linops/internal/providers"

	"github.com/spf13/cobra"
)

// powerAction starts a job on a Linode.
type powerAction func(ctx context.Context, p *providers.LinodeProvider, id, configID int64) (*job.Handle, error)

func BootCommand() *cobra.Command {
	cmd := powerCommand("boot", "Boot a Linode", "Booting", "booted",
		func(ctx context.Context, p *providers.LinodeProvider, id, configID int64) (*job.Handle, error) {
			return p.BootLinode(ctx, id, configID)
		})
	cmd.Flags().Int64("config", 0, "Configuration profile to boot (defaults to the last used)")
	return cmd
}

func RebootCommand() *cobra.Command {
	cmd := powerCommand("reboot", "Reboot a Linode", "Rebooting", "rebooted",
		func(ctx context.Context, p *providers.LinodeProvider, id, configID int64) (*job.Handle, error) {
			return p.RebootLinode(ctx, id, configID)
		})
	cmd.Flags().Int64("config", 0, "Configuration profile to boot (defaults to the last used)")
	return cmd
}

func ShutdownCommand() *cobra.Command {
	return powerCommand("shutdown", "Shut a Linode down", "Shutting down", "shut down",
		func(ctx context.Context, p *providers.LinodeProvider, id, _ int64) (*job.Handle, error) {
			return p.ShutdownLinode(ctx, id)
		})
}

func powerCommand(use, short, progress, done string, action powerAction) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long: short + `.

The command waits for the job to finish. With --no-wait it returns as soon
as the job has started; the job stays in the journal until "linops job
resume" waits for it.

Examples:
  linops linode ` + use + ` --id 12345`,
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := providerFor(cmd)
			if err != nil {
				return err
			}
			id, _ := cmd.Flags().GetInt64("id")
			var configID int64
			if cmd.Flags().Lookup("config") != nil {
				configID, _ = cmd.Flags().GetInt64("config")
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			fmt.Fprintf(cmd.ErrOrStderr(), "%s linode %d...\n", progress, id)
			h, err := action(ctx, provider, id, configID)
			if err != nil {
				return err
			}
			if err := waitForJob(ctx, cmd, h, progress+"..."); err != nil {
				return err
			}
			if !h.Done() {
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Linode %d %s successfully.\n", id, done)
			return nil
		},
		SilenceUsage: true,
	}

	cmd.Flags().Int64("id", 0, "Linode ID (required)")
	cmd.Flags().Bool("no-wait", false, "Return once the job has started")
	cmd.MarkFlagRequired("id")

	return cmd
}
