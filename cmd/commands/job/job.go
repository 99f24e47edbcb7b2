package job

import (
	"fmt"
	"text/tabwriter"
	"time"

	"nathanbeddoewebdev/linops/internal/domain"
	"nathanbeddoewebdev/linops/internal/jobstore"
	"nathanbeddoewebdev/linops/internal/providers"
	"nathanbeddoewebdev/linops/internal/services/auth"
	"nathanbeddoewebdev/linops/internal/services/jobs"
	"nathanbeddoewebdev/linops/internal/tui/styles"

	"github.com/spf13/cobra"
)

// NewCommand returns the "job" parent command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Inspect, wait for and resume Linode jobs",
		Long: `Every job linops starts is journaled locally while it runs. If a
command is interrupted (Ctrl+C) its jobs stay pending in the journal;
"linops job resume" waits for all of them in one polling loop.`,
	}

	cmd.AddCommand(ListCommand())
	cmd.AddCommand(StatusCommand())
	cmd.AddCommand(WaitCommand())
	cmd.AddCommand(ResumeCommand())
	cmd.AddCommand(PruneCommand())

	cmd.PersistentFlags().String("account", providers.DefaultAccount, "Account whose API key to use")

	return cmd
}

func providerFor(cmd *cobra.Command) (*providers.LinodeProvider, error) {
	account, _ := cmd.Flags().GetString("account")
	return providers.Get(account, auth.DefaultStore())
}

func printRecords(cmd *cobra.Command, records []jobstore.Record) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "RUN\tJOB\tLINODE\tACTION\tSTATUS\tAGE\n")

	for _, r := range records {
		status := r.Status
		if r.Status != jobstore.StatusPending && r.Status != jobstore.StatusSuccess && r.Message != "" {
			status = fmt.Sprintf("%s: %s", r.Status, truncate(r.Message, 40))
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\t%s\n",
			shortRun(r.RunID), r.JobID, r.LinodeID, r.Action, status, formatDuration(time.Since(r.CreatedAt).Truncate(time.Second)))
	}

	w.Flush()
}

func printJobs(cmd *cobra.Command, jobs []domain.Job) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "JOB\tLINODE\tACTION\tLABEL\tRESULT\tMESSAGE\n")

	for _, j := range jobs {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\n",
			j.ID, j.LinodeID, j.Action, j.Label,
			styles.OutcomeStyle(j.Outcome).Render(j.Outcome.String()),
			truncate(j.Message, 40))
	}

	w.Flush()
}

func shortRun(id string) string {
	if len(id) > jobs.ShortRunIDLen {
		return id[:jobs.ShortRunIDLen]
	}
	if id == "" {
		return "-"
	}
	return id
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh", int(d.Hours()))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
