package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"nathanbeddoewebdev/linops/cmd/commands/auth"
	"nathanbeddoewebdev/linops/cmd/commands/catalog"
	cfgcmd "nathanbeddoewebdev/linops/cmd/commands/config"
	jobcmd "nathanbeddoewebdev/linops/cmd/commands/job"
	"nathanbeddoewebdev/linops/cmd/commands/linode"
	"nathanbeddoewebdev/linops/cmd/commands/provision"
	"nathanbeddoewebdev/linops/internal/config"
	"nathanbeddoewebdev/linops/internal/job"
	"nathanbeddoewebdev/linops/internal/providers"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
func rootCmd() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "linops",
		Short: "Provision and operate Linodes from the command line",
		Long: `linops drives the Linode API: it provisions complete Linodes, runs
power and disk actions, and waits on the jobs they start.

Every job linops starts is journaled locally, so an interrupted wait can
be resumed later.

Quick start:
  linops auth login                         # Store your API key
  linops catalog datacenters                # Where can I deploy?
  linops provision --datacenter newark --distribution "Debian 7"
  linops job resume                         # Finish interrupted waits`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			verbose, _ := cmd.Flags().GetBool("verbose")
			setupLogging(verbose)
		},
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Log API calls and job polls to stderr")

	cmd.AddCommand(auth.NewCommand())
	cmd.AddCommand(catalog.NewCommand())
	cmd.AddCommand(cfgcmd.NewCommand())
	cmd.AddCommand(jobcmd.NewCommand())
	cmd.AddCommand(linode.NewCommand())
	cmd.AddCommand(provision.NewCommand())

	return cmd
}

// setupLogging installs the default slog handler. Library packages log
// through slog.Default, so this controls all diagnostic output.
func setupLogging(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// pollerOptions derives job polling settings from the user config. Invalid
// values are reported and replaced by the defaults.
func pollerOptions(cfg *config.Config) []job.Option {
	var opts []job.Option
	interval, err := cfg.PollIntervalOr(job.DefaultInterval)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	} else {
		opts = append(opts, job.WithInterval(interval))
	}
	timeout, err := cfg.WaitTimeoutOr(0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	} else {
		opts = append(opts, job.WithTimeout(timeout))
	}
	return opts
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		cfg = &config.Config{}
	}
	providers.RegisterLinode(providers.WithPollerOptions(pollerOptions(cfg)...))

	var root = rootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
