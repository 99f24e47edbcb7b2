package linode

import (
	"context"
	"fmt"
	"log/slog"

	"nathanbeddoewebdev/linops/internal/cache"
	"nathanbeddoewebdev/linops/internal/catalog"
	"nathanbeddoewebdev/linops/internal/config"
	"nathanbeddoewebdev/linops/internal/services/jobs"
	"nathanbeddoewebdev/linops/internal/util"

	"github.com/spf13/cobra"
)

func DeleteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a Linode",
		Long: `Delete a Linode.

The API refuses to delete a Linode that still has disks unless --force is
given, in which case the disks are removed with it.

Examples:
  linops linode delete --id 12345 --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := providerFor(cmd)
			if err != nil {
				return err
			}
			id, _ := cmd.Flags().GetInt64("id")
			force, _ := cmd.Flags().GetBool("force")

			fmt.Fprintf(cmd.ErrOrStderr(), "Deleting linode %d...\n", id)
			if err := provider.DeleteLinode(context.Background(), id, force); err != nil {
				return err
			}

			journal := jobs.OpenDefault(slog.Default())
			journal.AbandonLinode(id, "linode deleted")
			journal.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Linode %d deleted successfully.\n", id)
			return nil
		},
		SilenceUsage: true,
	}

	cmd.Flags().Int64("id", 0, "Linode ID (required)")
	cmd.Flags().Bool("force", false, "Delete the Linode even if it still has disks")
	cmd.MarkFlagRequired("id")

	return cmd
}

func ResizeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resize",
		Short: "Move a Linode to another plan",
		Long: `Move a Linode to another plan. The plan is a catalog query matched
against the end of plan labels.

Examples:
  linops linode resize --id 12345 --plan 2048`,
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
			query, _ := cmd.Flags().GetString("plan")

			dir := cfg.CacheDir
			if dir == "" {
				dir = cache.DefaultDir()
			}
			resolver := catalog.NewResolver(provider, cache.NewFile(dir), slog.Default())

			ctx := context.Background()
			plan, err := resolver.Plan(ctx, query)
			if err != nil {
				return err
			}
			if err := provider.ResizeLinode(ctx, id, plan.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Linode %d moved to %s.\n", id, plan.Label)
			return nil
		},
		SilenceUsage: true,
	}

	cmd.Flags().Int64("id", 0, "Linode ID (required)")
	cmd.Flags().String("plan", "", "Plan query (required)")
	cmd.MarkFlagRequired("id")
	cmd.MarkFlagRequired("plan")

	return cmd
}

func RenameCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rename",
		Short: "Change the label of a Linode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetInt64("id")
			label, _ := cmd.Flags().GetString("label")
			if err := util.ValidateLabel(label); err != nil {
				return err
			}

			provider, err := providerFor(cmd)
			if err != nil {
				return err
			}
			if err := provider.UpdateLinode(context.Background(), id, label); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Linode %d renamed to %q.\n", id, label)
			return nil
		},
		SilenceUsage: true,
	}

	cmd.Flags().Int64("id", 0, "Linode ID (required)")
	cmd.Flags().String("label", "", "New label (required)")
	cmd.MarkFlagRequired("id")
	cmd.MarkFlagRequired("label")

	return cmd
}
