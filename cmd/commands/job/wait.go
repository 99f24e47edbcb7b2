package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"nathanbeddoewebdev/linops/internal/domain"
	"nathanbeddoewebdev/linops/internal/jobstore"
	"nathanbeddoewebdev/linops/internal/services/jobs"
	"nathanbeddoewebdev/linops/internal/tui"

	"github.com/spf13/cobra"
)

// WaitCommand returns a cobra.Command that waits for jobs by ID.
func WaitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wait",
		Short: "Wait for jobs on a Linode to finish",
		Long: `Poll the given jobs of one Linode until all of them have finished, or
with --any until the first one has. All jobs are looked up in a single
batched request per poll.

The command fails if a job it waited for finished unsuccessfully.

Examples:
  linops job wait --linode 12345 --job 100 --job 101
  linops job wait --linode 12345 --job 100 --job 101 --any`,
		RunE:         runWait,
		SilenceUsage: true,
	}

	cmd.Flags().Int64("linode", 0, "Linode ID (required)")
	cmd.Flags().Int64Slice("job", nil, "Job ID (can be specified multiple times)")
	cmd.Flags().Bool("any", false, "Return as soon as one job has finished")
	cmd.MarkFlagRequired("linode")
	cmd.MarkFlagRequired("job")

	return cmd
}

func runWait(cmd *cobra.Command, args []string) error {
	provider, err := providerFor(cmd)
	if err != nil {
		return err
	}
	linodeID, _ := cmd.Flags().GetInt64("linode")
	jobIDs, _ := cmd.Flags().GetInt64Slice("job")
	waitAny, _ := cmd.Flags().GetBool("any")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	poller := provider.Poller()
	var finished []domain.Job
	err = tui.Run(ctx, cmd.ErrOrStderr(), fmt.Sprintf("Waiting for %d job(s)...", len(jobIDs)), func(ctx context.Context) error {
		if waitAny {
			j, err := poller.WaitAny(ctx, linodeID, jobIDs)
			if err != nil {
				return err
			}
			finished = []domain.Job{*j}
			return nil
		}
		var err error
		finished, err = poller.WaitAll(ctx, linodeID, jobIDs)
		return err
	})
	if err != nil {
		return err
	}

	printJobs(cmd, finished)
	return failures(finished)
}

// ResumeCommand returns a cobra.Command that waits for every pending
// journaled job.
func ResumeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Wait for all pending journaled jobs",
		Long: `Resume waiting for every job the journal still lists as pending, for
example after an interrupted "linops provision". All pending jobs are
polled together and their final state is journaled. Jobs whose Linode
has since been deleted are marked abandoned.

Examples:
  linops job resume                  # Every pending job
  linops job resume --run 1b4e28ba   # Pending jobs of one run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, _ := cmd.Flags().GetString("run")

			journal := jobs.OpenDefault(slog.Default())
			defer journal.Close()

			pending, err := pendingRecords(journal, runID)
			if err != nil {
				return fmt.Errorf("error listing pending jobs: %w", err)
			}
			if len(pending) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No pending jobs to resume.")
				return nil
			}

			provider, err := providerFor(cmd)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Resuming %d pending job(s)...\n", len(pending))

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			var final []domain.Job
			err = tui.Run(ctx, cmd.ErrOrStderr(), "Waiting for jobs...", func(ctx context.Context) error {
				var err error
				final, err = journal.Resume(ctx, provider.Poller(), pending)
				return err
			})
			var failed *domain.JobFailedError
			if err != nil && !errors.As(err, &failed) {
				return err
			}

			var finished []domain.Job
			for i := range final {
				if final[i].IsTerminal() {
					finished = append(finished, final[i])
				}
			}
			if abandoned := len(final) - len(finished); abandoned > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "%d job(s) abandoned: their Linode no longer exists.\n", abandoned)
			}
			if len(finished) > 0 {
				printJobs(cmd, finished)
			}
			return failures(finished)
		},
		SilenceUsage: true,
	}

	cmd.Flags().String("run", "", "Only resume jobs of this run (full ID or 8-character prefix)")

	return cmd
}

func pendingRecords(journal *jobs.Service, runID string) ([]jobstore.Record, error) {
	if runID == "" {
		return journal.ListPending()
	}
	all, err := journal.ListRun(runID)
	if err != nil {
		return nil, err
	}
	var pending []jobstore.Record
	for _, r := range all {
		if r.Status == jobstore.StatusPending {
			pending = append(pending, r)
		}
	}
	return pending, nil
}

// failures reports how many of jobs finished unsuccessfully.
func failures(jobs []domain.Job) error {
	n := 0
	for i := range jobs {
		if jobs[i].IsTerminal() && !jobs[i].Succeeded() {
			n++
		}
	}
	if n > 0 {
		return fmt.Errorf("%d job(s) failed", n)
	}
	return nil
}
