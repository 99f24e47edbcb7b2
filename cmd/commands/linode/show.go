package linode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"nathanbeddoewebdev/linops/internal/domain"
	"nathanbeddoewebdev/linops/internal/tui/styles"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// details is everything "linode show" prints about one Linode.
type details struct {
	*domain.Linode
	IPs []domain.IPAddress `json:"ips"`
}

func ShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a Linode with its disks, profiles and addresses",
		Long: `Show a single Linode together with its disks, configuration profiles
and IP addresses.

Examples:
  linops linode show --id 12345
  linops linode show --id 12345 -o json`,
		RunE:         runShow,
		SilenceUsage: true,
	}

	cmd.Flags().Int64("id", 0, "Linode ID (required)")
	cmd.Flags().StringP("output", "o", "table", "Output format: table or json")
	cmd.MarkFlagRequired("id")

	return cmd
}

func runShow(cmd *cobra.Command, args []string) error {
	provider, err := providerFor(cmd)
	if err != nil {
		return err
	}
	id, _ := cmd.Flags().GetInt64("id")

	var (
		d       details
		disks   []domain.Disk
		configs []domain.Config
	)
	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		var err error
		d.Linode, err = provider.GetLinode(ctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		disks, err = provider.ListDisks(ctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		configs, err = provider.ListConfigs(ctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		d.IPs, err = provider.ListIPs(ctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("linode %d not found", id)
		}
		return err
	}
	d.Disks = disks
	d.Configs = configs

	if output, _ := cmd.Flags().GetString("output"); output == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	}

	printDetails(cmd, d)
	return nil
}

func printDetails(cmd *cobra.Command, d details) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "  ID:\t%d\n", d.ID)
	fmt.Fprintf(w, "  Label:\t%s\n", d.Label)
	fmt.Fprintf(w, "  Status:\t%s\n", styles.StatusStyle(d.Status).Render(styles.LinodeStatus(d.Status)))
	fmt.Fprintf(w, "  Datacenter:\t%d\n", d.DatacenterID)
	fmt.Fprintf(w, "  Plan:\t%d\n", d.PlanID)
	fmt.Fprintf(w, "  RAM:\t%d MB\n", d.TotalRAM)
	fmt.Fprintf(w, "  Disk:\t%d MB\n", d.TotalHD)

	for _, ip := range d.IPs {
		kind := "Private IP"
		if ip.Public {
			kind = "Public IP"
		}
		fmt.Fprintf(w, "  %s:\t%s\n", kind, ip.Address)
	}

	for _, disk := range d.Disks {
		fmt.Fprintf(w, "  Disk %d:\t%s (%s, %d MB)\n", disk.ID, disk.Label, disk.Type, disk.SizeMB)
	}

	for _, c := range d.Configs {
		ids := make([]string, len(c.DiskIDs))
		for i, id := range c.DiskIDs {
			ids[i] = fmt.Sprint(id)
		}
		fmt.Fprintf(w, "  Profile %d:\t%s (kernel %d, disks %s)\n", c.ID, c.Label, c.KernelID, strings.Join(ids, ","))
	}

	w.Flush()
}
