package linode

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"nathanbeddoewebdev/linops/internal/tui/styles"

	"github.com/spf13/cobra"
)

func ListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all Linodes",
		Long:  `List all Linodes on the account.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := providerFor(cmd)
			if err != nil {
				return err
			}

			linodes, err := provider.ListLinodes(context.Background())
			if err != nil {
				return err
			}

			if output, _ := cmd.Flags().GetString("output"); output == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(linodes)
			}

			if len(linodes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No linodes found.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tLABEL\tSTATUS\tDATACENTER\tPLAN\tRAM\tDISK")
			fmt.Fprintln(w, "--\t-----\t------\t----------\t----\t---\t----")
			for _, l := range linodes {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%d\t%d\n",
					l.ID,
					l.Label,
					styles.LinodeStatus(l.Status),
					l.DatacenterID,
					l.PlanID,
					l.TotalRAM,
					l.TotalHD,
				)
			}
			return w.Flush()
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringP("output", "o", "table", "Output format: table or json")

	return cmd
}
