package provision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"nathanbeddoewebdev/linops/internal/cache"
	"nathanbeddoewebdev/linops/internal/catalog"
	"nathanbeddoewebdev/linops/internal/config"
	"nathanbeddoewebdev/linops/internal/domain"
	"nathanbeddoewebdev/linops/internal/providers"
	"nathanbeddoewebdev/linops/internal/provision"
	"nathanbeddoewebdev/linops/internal/services/auth"
	"nathanbeddoewebdev/linops/internal/services/jobs"
	"nathanbeddoewebdev/linops/internal/tui"
	"nathanbeddoewebdev/linops/internal/tui/styles"

	"github.com/spf13/cobra"
)

// NewCommand returns the "provision" command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Build and boot a new Linode",
		Long: `Create a Linode, install a distribution on it, add a swap disk and a
boot profile, and boot it.

Datacenter, plan, distribution and kernel are catalog queries: datacenters
match on a prefix of their location, plans on the end of their label, and
distributions and kernels as case-insensitive regular expressions.

If any step fails the Linode is deleted again. Jobs are journaled while
they run; see "linops job".

Examples:
  linops provision --datacenter newark --distribution "Debian 7 64bit"
  linops provision --datacenter dallas --plan 2048 --distribution "^Ubuntu 12.04$" \
    --swap 512 --label web01 -o json`,
		RunE:         runProvision,
		SilenceUsage: true,
	}

	cmd.Flags().String("account", providers.DefaultAccount, "Account whose API key to use")
	cmd.Flags().String("datacenter", "", "Datacenter query (defaults to config default-datacenter)")
	cmd.Flags().String("distribution", "", "Distribution query (required)")
	cmd.Flags().String("plan", "", "Plan query (defaults to config default-plan, then "+provision.DefaultPlan+")")
	cmd.Flags().String("kernel", "", "Kernel query (defaults to the latest kernel for the distribution)")
	cmd.Flags().String("label", "", "Label for the new Linode")
	cmd.Flags().Int("disk-size", 0, "Main disk size in MB (0 uses the plan's whole disk minus swap)")
	cmd.Flags().Int("swap", provision.DefaultSwapMB, "Swap disk size in MB (0 for none)")
	cmd.Flags().Int("payment-term", provision.DefaultPaymentTerm, "Payment term in months: 1, 12 or 24")
	cmd.Flags().String("root-pass", "", "Root password (prompted for when omitted)")
	cmd.Flags().StringP("output", "o", "table", "Output format: table or json")

	cmd.MarkFlagRequired("distribution")

	return cmd
}

func runProvision(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	req, err := buildRequest(cmd, cfg)
	if err != nil {
		return err
	}

	account, _ := cmd.Flags().GetString("account")
	provider, err := providers.Get(account, auth.DefaultStore())
	if err != nil {
		return err
	}

	journal := jobs.OpenDefault(slog.Default())
	defer journal.Close()

	w := cmd.ErrOrStderr()
	interactive := tui.IsTerminal(w)
	p := provision.New(provider, newResolver(provider, cfg),
		provision.WithTracker(journal),
		provision.OnStage(func(stage provision.Stage, linodeID int64) {
			if !interactive {
				fmt.Fprintln(w, stageLine(stage, linodeID))
			}
		}),
	)

	fmt.Fprintf(w, "Provisioning %s in %q (plan %s)...\n", req.Distribution, req.Datacenter, req.Plan)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var l *domain.Linode
	err = tui.Run(ctx, w, "Provisioning Linode...", func(ctx context.Context) error {
		var err error
		l, err = p.Provision(ctx, req)
		return err
	})
	if err != nil {
		var perr *provision.ProvisionError
		if errors.As(err, &perr) && perr.LinodeID != 0 && !perr.RolledBack() {
			fmt.Fprintln(w, styles.WarningText.Render(
				fmt.Sprintf("Linode %d may still exist; remove it with \"linops linode delete --id %d --force\".", perr.LinodeID, perr.LinodeID)))
		}
		return err
	}

	fmt.Fprintln(w, styles.SuccessText.Render(fmt.Sprintf("Linode %d is running.", l.ID)))

	output, _ := cmd.Flags().GetString("output")
	switch output {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(l)
	default:
		printLinode(cmd, l)
	}
	return nil
}

// buildRequest reads the request from flags, falling back to configured
// defaults and prompting for the root password on a terminal.
func buildRequest(cmd *cobra.Command, cfg *config.Config) (provision.Request, error) {
	datacenter, _ := cmd.Flags().GetString("datacenter")
	distribution, _ := cmd.Flags().GetString("distribution")
	plan, _ := cmd.Flags().GetString("plan")
	rootPass, _ := cmd.Flags().GetString("root-pass")

	if strings.TrimSpace(datacenter) == "" {
		datacenter = cfg.DefaultDatacenter
	}
	if strings.TrimSpace(datacenter) == "" {
		return provision.Request{}, fmt.Errorf("no datacenter specified: use --datacenter or set a default with 'linops config set default-datacenter <query>'")
	}
	if plan == "" {
		plan = cfg.DefaultPlan
	}

	if rootPass == "" {
		var err error
		rootPass, err = tui.ReadSecret(cmd.ErrOrStderr(), "Root password: ")
		if errors.Is(err, tui.ErrNotTerminal) {
			return provision.Request{}, fmt.Errorf("a root password is required: use --root-pass")
		}
		if err != nil {
			return provision.Request{}, err
		}
	}

	req := provision.NewRequest(rootPass, datacenter, distribution)
	if plan != "" {
		req.Plan = plan
	}
	req.Kernel, _ = cmd.Flags().GetString("kernel")
	req.Label, _ = cmd.Flags().GetString("label")
	req.DiskSizeMB, _ = cmd.Flags().GetInt("disk-size")
	req.SwapMB, _ = cmd.Flags().GetInt("swap")
	req.PaymentTerm, _ = cmd.Flags().GetInt("payment-term")
	return req, nil
}

// newResolver returns a catalog resolver over the configured cache.
func newResolver(provider *providers.LinodeProvider, cfg *config.Config) *catalog.Resolver {
	dir := cfg.CacheDir
	if dir == "" {
		dir = cache.DefaultDir()
	}
	return catalog.NewResolver(provider, cache.NewFile(dir), slog.Default())
}

func stageLine(stage provision.Stage, linodeID int64) string {
	if linodeID == 0 {
		return fmt.Sprintf("  %s", stage)
	}
	return fmt.Sprintf("  %s (linode %d)", stage, linodeID)
}

func printLinode(cmd *cobra.Command, l *domain.Linode) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "  ID:\t%d\n", l.ID)
	fmt.Fprintf(w, "  Label:\t%s\n", l.Label)
	fmt.Fprintf(w, "  Status:\t%s\n", styles.LinodeStatus(l.Status))
	fmt.Fprintf(w, "  Datacenter:\t%d\n", l.DatacenterID)
	fmt.Fprintf(w, "  Plan:\t%d\n", l.PlanID)
	for _, d := range l.Disks {
		fmt.Fprintf(w, "  Disk:\t%d %s (%s, %d MB)\n", d.ID, d.Label, d.Type, d.SizeMB)
	}
	for _, c := range l.Configs {
		fmt.Fprintf(w, "  Profile:\t%d %s (kernel %d)\n", c.ID, c.Label, c.KernelID)
	}

	w.Flush()
}
