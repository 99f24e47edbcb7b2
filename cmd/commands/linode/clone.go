package linode

import (
	"context"
	"fmt"
	"log/slog"

	"nathanbeddoewebdev/linops/internal/cache"
	"nathanbeddoewebdev/linops/internal/catalog"
	"nathanbeddoewebdev/linops/internal/config"

	"github.com/spf13/cobra"
)

func CloneCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clone",
		Short: "Copy a Linode into a new one",
		Long: `Create a new Linode with copies of the disks and configuration
profiles of an existing one. The copy is left powered off.

Examples:
  linops linode clone --id 12345 --datacenter london --plan 2048`,
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := providerFor(cmd)
			if err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			id, _ := cmd.Flags().GetInt64("id")
			dcQuery, _ := cmd.Flags().GetString("datacenter")
			planQuery, _ := cmd.Flags().GetString("plan")
			term, _ := cmd.Flags().GetInt("payment-term")
			switch term {
			case 1, 12, 24:
			default:
				return fmt.Errorf("payment term must be 1, 12 or 24 months, got %d", term)
			}
			if dcQuery == "" {
				dcQuery = cfg.DefaultDatacenter
			}
			if planQuery == "" {
				planQuery = cfg.DefaultPlan
			}
			if dcQuery == "" || planQuery == "" {
				return fmt.Errorf("--datacenter and --plan are required unless defaults are configured")
			}

			dir := cfg.CacheDir
			if dir == "" {
				dir = cache.DefaultDir()
			}
			resolver := catalog.NewResolver(provider, cache.NewFile(dir), slog.Default())

			ctx := context.Background()
			dc, err := resolver.Datacenter(ctx, dcQuery)
			if err != nil {
				return err
			}
			plan, err := resolver.Plan(ctx, planQuery)
			if err != nil {
				return err
			}

			l, err := provider.CloneLinode(ctx, id, dc.ID, plan.ID, term)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Linode %d cloned to %d (%s, %s).\n", id, l.ID, dc.Location, plan.Label)
			return nil
		},
		SilenceUsage: true,
	}

	cmd.Flags().Int64("id", 0, "Source Linode ID (required)")
	cmd.Flags().String("datacenter", "", "Datacenter query for the copy")
	cmd.Flags().String("plan", "", "Plan query for the copy")
	cmd.Flags().Int("payment-term", 1, "Payment term in months: 1, 12 or 24")
	cmd.MarkFlagRequired("id")

	return cmd
}
