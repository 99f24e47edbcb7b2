package linode

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"

	"nathanbeddoewebdev/linops/internal/domain"
	"nathanbeddoewebdev/linops/internal/util"

	"github.com/spf13/cobra"
)

// DiskCommand returns the "linode disk" command group.
func DiskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disk",
		Short: "Manage the disks of a Linode",
	}

	cmd.AddCommand(diskListCommand())
	cmd.AddCommand(diskResizeCommand())
	cmd.AddCommand(diskRenameCommand())
	cmd.AddCommand(diskDeleteCommand())

	return cmd
}

func diskListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the disks of a Linode",
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := providerFor(cmd)
			if err != nil {
				return err
			}
			linodeID, _ := cmd.Flags().GetInt64("linode")

			disks, err := provider.ListDisks(context.Background(), linodeID)
			if err != nil {
				return err
			}
			if len(disks) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No disks found.")
				return nil
			}
			printDisks(cmd, disks)
			return nil
		},
		SilenceUsage: true,
	}

	cmd.Flags().Int64("linode", 0, "Linode ID (required)")
	cmd.MarkFlagRequired("linode")

	return cmd
}

func printDisks(cmd *cobra.Command, disks []domain.Disk) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tLABEL\tTYPE\tSIZE\tREAD-ONLY")
	for _, d := range disks {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d MB\t%t\n", d.ID, d.Label, d.Type, d.SizeMB, d.ReadOnly)
	}
	w.Flush()
}

func diskResizeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resize",
		Short: "Change the size of a disk",
		Long: `Change the size of a disk. The Linode should be powered off.

Examples:
  linops linode disk resize --linode 12345 --disk 678 --size 20480`,
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := providerFor(cmd)
			if err != nil {
				return err
			}
			linodeID, _ := cmd.Flags().GetInt64("linode")
			diskID, _ := cmd.Flags().GetInt64("disk")
			size, _ := cmd.Flags().GetInt("size")
			if size <= 0 {
				return fmt.Errorf("--size must be positive, got %d", size)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			h, err := provider.ResizeDisk(ctx, linodeID, diskID, size)
			if err != nil {
				return err
			}
			if err := waitForJob(ctx, cmd, h, "Resizing disk..."); err != nil {
				return err
			}
			if h.Done() {
				fmt.Fprintf(cmd.OutOrStdout(), "Disk %d resized to %d MB.\n", diskID, size)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.Flags().Int64("linode", 0, "Linode ID (required)")
	cmd.Flags().Int64("disk", 0, "Disk ID (required)")
	cmd.Flags().Int("size", 0, "New size in MB (required)")
	cmd.Flags().Bool("no-wait", false, "Return once the job has started")
	cmd.MarkFlagRequired("linode")
	cmd.MarkFlagRequired("disk")
	cmd.MarkFlagRequired("size")

	return cmd
}

func diskRenameCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rename",
		Short: "Change the label or read-only flag of a disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := providerFor(cmd)
			if err != nil {
				return err
			}
			linodeID, _ := cmd.Flags().GetInt64("linode")
			diskID, _ := cmd.Flags().GetInt64("disk")
			ctx := context.Background()

			disks, err := provider.ListDisks(ctx, linodeID)
			if err != nil {
				return err
			}
			var disk *domain.Disk
			for i := range disks {
				if disks[i].ID == diskID {
					disk = &disks[i]
				}
			}
			if disk == nil {
				return fmt.Errorf("disk %d not found on linode %d", diskID, linodeID)
			}

			if cmd.Flags().Changed("label") {
				disk.Label, _ = cmd.Flags().GetString("label")
				if err := util.ValidateDiskLabel(disk.Label); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("read-only") {
				disk.ReadOnly, _ = cmd.Flags().GetBool("read-only")
			}

			if err := provider.UpdateDisk(ctx, *disk); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Disk %d updated.\n", diskID)
			return nil
		},
		SilenceUsage: true,
	}

	cmd.Flags().Int64("linode", 0, "Linode ID (required)")
	cmd.Flags().Int64("disk", 0, "Disk ID (required)")
	cmd.Flags().String("label", "", "New label")
	cmd.Flags().Bool("read-only", false, "Mark the disk read-only")
	cmd.MarkFlagRequired("linode")
	cmd.MarkFlagRequired("disk")
	cmd.MarkFlagsOneRequired("label", "read-only")

	return cmd
}

func diskDeleteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := providerFor(cmd)
			if err != nil {
				return err
			}
			linodeID, _ := cmd.Flags().GetInt64("linode")
			diskID, _ := cmd.Flags().GetInt64("disk")

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			h, err := provider.DeleteDisk(ctx, linodeID, diskID)
			if err != nil {
				return err
			}
			if err := waitForJob(ctx, cmd, h, "Deleting disk..."); err != nil {
				return err
			}
			if h.Done() {
				fmt.Fprintf(cmd.OutOrStdout(), "Disk %d deleted.\n", diskID)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.Flags().Int64("linode", 0, "Linode ID (required)")
	cmd.Flags().Int64("disk", 0, "Disk ID (required)")
	cmd.Flags().Bool("no-wait", false, "Return once the job has started")
	cmd.MarkFlagRequired("linode")
	cmd.MarkFlagRequired("disk")

	return cmd
}
