package job

import (
	"context"
	"fmt"
	"log/slog"

	"nathanbeddoewebdev/linops/internal/jobstore"
	"nathanbeddoewebdev/linops/internal/services/jobs"

	"github.com/spf13/cobra"
)

// ListCommand returns a cobra.Command that lists journaled jobs.
func ListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List journaled jobs",
		Long: `Show jobs started by previous linops invocations.

By default only pending jobs are shown. Use --all to include finished
jobs as well, or --run to show every job of one invocation.

Examples:
  linops job list                  # Pending jobs
  linops job list --all            # All recent jobs
  linops job list --run 1b4e28ba   # Jobs of one run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			showAll, _ := cmd.Flags().GetBool("all")
			runID, _ := cmd.Flags().GetString("run")

			journal := jobs.OpenDefault(slog.Default())
			defer journal.Close()

			var (
				records []jobstore.Record
				err     error
			)
			switch {
			case runID != "":
				showAll = true
				records, err = journal.ListRun(runID)
			case showAll:
				records, err = journal.ListRecent(20)
			default:
				records, err = journal.ListPending()
			}
			if err != nil {
				return fmt.Errorf("error listing jobs: %w", err)
			}

			if len(records) == 0 {
				if showAll {
					fmt.Fprintln(cmd.OutOrStdout(), "No recent jobs.")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "No pending jobs.")
				}
				return nil
			}

			printRecords(cmd, records)

			if !showAll {
				fmt.Fprintf(cmd.ErrOrStderr(), "\nUse \"linops job resume\" to wait for these jobs.\n")
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.Flags().Bool("all", false, "Show all recent jobs, not just pending")
	cmd.Flags().String("run", "", "Only show jobs of this run (full ID or 8-character prefix)")

	return cmd
}

// StatusCommand returns a cobra.Command that lists a Linode's jobs as the
// API reports them.
func StatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "List a Linode's jobs from the API",
		Long: `List the jobs the API holds for a Linode, including ones not started
by linops.

Examples:
  linops job status --linode 12345
  linops job status --linode 12345 --pending`,
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := providerFor(cmd)
			if err != nil {
				return err
			}
			linodeID, _ := cmd.Flags().GetInt64("linode")
			pending, _ := cmd.Flags().GetBool("pending")

			list, err := provider.ListJobs(context.Background(), linodeID, pending)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs found.")
				return nil
			}
			printJobs(cmd, list)
			return nil
		},
		SilenceUsage: true,
	}

	cmd.Flags().Int64("linode", 0, "Linode ID (required)")
	cmd.Flags().Bool("pending", false, "Only show jobs that have not finished")
	cmd.MarkFlagRequired("linode")

	return cmd
}

// PruneCommand returns a cobra.Command that removes old finished records.
func PruneCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove finished jobs from the journal",
		Long: `Remove finished jobs older than --older-than from the journal.
Pending jobs are never removed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			age, _ := cmd.Flags().GetDuration("older-than")
			if age < 0 {
				return fmt.Errorf("--older-than must not be negative, got %s", age)
			}

			journal := jobs.OpenDefault(slog.Default())
			defer journal.Close()

			n, err := journal.Cleanup(age)
			if err != nil {
				return fmt.Errorf("error pruning jobs: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d job(s).\n", n)
			return nil
		},
		SilenceUsage: true,
	}

	cmd.Flags().Duration("older-than", jobs.PruneAge, "Minimum age of removed jobs")

	return cmd
}
