package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"text/tabwriter"

	"nathanbeddoewebdev/linops/internal/cache"
	"nathanbeddoewebdev/linops/internal/catalog"
	"nathanbeddoewebdev/linops/internal/config"
	"nathanbeddoewebdev/linops/internal/domain"
	"nathanbeddoewebdev/linops/internal/providers"
	"nathanbeddoewebdev/linops/internal/services/auth"

	"github.com/spf13/cobra"
)

// NewCommand returns the "catalog" parent command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse datacenters, plans, distributions and kernels",
		Long: `Browse the catalog entries provisioning resolves queries against.

Listings are cached on disk after the first fetch; "linops catalog
clear-cache" forces a refetch. Pass a query to see which entry it
resolves to.

Examples:
  linops catalog datacenters
  linops catalog distributions "^Debian"
  linops catalog kernels "Latest 64"`,
	}

	cmd.AddCommand(listCommand("datacenters", "datacenter", listDatacenters))
	cmd.AddCommand(listCommand("plans", "plan", listPlans))
	cmd.AddCommand(listCommand("distributions", "distribution", listDistributions))
	cmd.AddCommand(listCommand("kernels", "kernel", listKernels))
	cmd.AddCommand(ClearCacheCommand())

	cmd.PersistentFlags().String("account", providers.DefaultAccount, "Account whose API key to use")

	return cmd
}

// lister prints either every entry or the one query resolves to.
type lister func(ctx context.Context, cmd *cobra.Command, r *catalog.Resolver, query string) (any, error)

func listCommand(use, noun string, list lister) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " [query]",
		Short: fmt.Sprintf("List %s, or resolve a %s query", use, noun),
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := newResolver(cmd)
			if err != nil {
				return err
			}
			var query string
			if len(args) == 1 {
				query = args[0]
			}

			v, err := list(context.Background(), cmd, r, query)
			if err != nil || v == nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(v)
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringP("output", "o", "table", "Output format: table or json")

	return cmd
}

func newResolver(cmd *cobra.Command) (*catalog.Resolver, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	account, _ := cmd.Flags().GetString("account")
	provider, err := providers.Get(account, auth.DefaultStore())
	if err != nil {
		return nil, err
	}
	return catalog.NewResolver(provider, fileCache(cfg), slog.Default()), nil
}

func fileCache(cfg *config.Config) *cache.FileCache {
	if cfg.CacheDir != "" {
		return cache.NewFile(cfg.CacheDir)
	}
	return cache.NewDefault()
}

// tableOrJSON returns v for JSON output, or prints rows and returns nil.
func tableOrJSON(cmd *cobra.Command, v any, header string, rows func(w *tabwriter.Writer)) any {
	if output, _ := cmd.Flags().GetString("output"); output == "json" {
		return v
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, header)
	rows(w)
	w.Flush()
	return nil
}

func listDatacenters(ctx context.Context, cmd *cobra.Command, r *catalog.Resolver, query string) (any, error) {
	var list []domain.Datacenter
	if query != "" {
		dc, err := r.Datacenter(ctx, query)
		if err != nil {
			return nil, err
		}
		list = []domain.Datacenter{dc}
	} else {
		var err error
		if list, err = r.Datacenters(ctx); err != nil {
			return nil, err
		}
	}
	return tableOrJSON(cmd, list, "ID\tABBR\tLOCATION", func(w *tabwriter.Writer) {
		for _, dc := range list {
			fmt.Fprintf(w, "%d\t%s\t%s\n", dc.ID, dc.Abbr, dc.Location)
		}
	}), nil
}

func listPlans(ctx context.Context, cmd *cobra.Command, r *catalog.Resolver, query string) (any, error) {
	var list []domain.Plan
	if query != "" {
		p, err := r.Plan(ctx, query)
		if err != nil {
			return nil, err
		}
		list = []domain.Plan{p}
	} else {
		var err error
		if list, err = r.Plans(ctx); err != nil {
			return nil, err
		}
	}
	return tableOrJSON(cmd, list, "ID\tLABEL\tRAM\tDISK\tPRICE", func(w *tabwriter.Writer) {
		for _, p := range list {
			fmt.Fprintf(w, "%d\t%s\t%d MB\t%d MB\t%s\n", p.ID, p.Label, p.RAM, p.DiskMB, p.Price)
		}
	}), nil
}

func listDistributions(ctx context.Context, cmd *cobra.Command, r *catalog.Resolver, query string) (any, error) {
	var list []domain.Distribution
	if query != "" {
		d, err := r.Distribution(ctx, query)
		if err != nil {
			return nil, err
		}
		list = []domain.Distribution{d}
	} else {
		var err error
		if list, err = r.Distributions(ctx); err != nil {
			return nil, err
		}
	}
	return tableOrJSON(cmd, list, "ID\tLABEL\t64-BIT\tMIN SIZE", func(w *tabwriter.Writer) {
		for _, d := range list {
			fmt.Fprintf(w, "%d\t%s\t%t\t%d MB\n", d.ID, d.Label, d.Is64Bit, d.MinImageSizeMB)
		}
	}), nil
}

func listKernels(ctx context.Context, cmd *cobra.Command, r *catalog.Resolver, query string) (any, error) {
	var list []domain.Kernel
	if query != "" {
		k, err := r.Kernel(ctx, query)
		if err != nil {
			return nil, err
		}
		list = []domain.Kernel{k}
	} else {
		var err error
		if list, err = r.Kernels(ctx); err != nil {
			return nil, err
		}
	}
	return tableOrJSON(cmd, list, "ID\tLABEL\tXEN\tPVOPS", func(w *tabwriter.Writer) {
		for _, k := range list {
			fmt.Fprintf(w, "%d\t%s\t%t\t%t\n", k.ID, k.Label, k.IsXen, k.PVOPS)
		}
	}), nil
}

// ClearCacheCommand returns the "catalog clear-cache" command.
func ClearCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear-cache",
		Short: "Remove cached catalog listings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			c := fileCache(cfg)
			if err := c.Clear(); err != nil {
				return fmt.Errorf("failed to clear cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared catalog cache at %s.\n", c.Dir())
			return nil
		},
		SilenceUsage: true,
	}

	return cmd
}
