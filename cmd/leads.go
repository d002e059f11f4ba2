package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/prospect-cli/internal/model"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Inspect and maintain stored leads",
}

// -- leads list --

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List leads by client code",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("migrate"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		seller, _ := cmd.Flags().GetString("seller")
		unassigned, _ := cmd.Flags().GetBool("unassigned")
		limit, _ := cmd.Flags().GetInt("limit")

		leads, err := st.ListLeads(ctx, model.LeadFilter{
			SellerID:   seller,
			Unassigned: unassigned,
			Limit:      limit,
		})
		if err != nil {
			return eris.Wrap(err, "leads list")
		}
		if len(leads) == 0 {
			fmt.Fprintln(os.Stderr, "No leads found.")
			return nil
		}

		formatLeadsList(cmd.OutOrStdout(), leads)
		return nil
	},
}

// -- leads purge --

var leadsPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete a lead and its comments",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("migrate"); err != nil {
			return err
		}

		id, _ := cmd.Flags().GetString("id")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		if err := st.DeleteLead(ctx, id); err != nil {
			return eris.Wrap(err, "leads purge")
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted lead %s\n", id)
		return nil
	},
}

// formatLeadsList writes a tabular list of leads to w.
func formatLeadsList(out io.Writer, leads []model.Lead) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CODE\tNAME\tCITY\tCEP\tSTATUS\tPRIORITY\tSELLER")
	_, _ = fmt.Fprintln(w, "----\t----\t----\t---\t------\t--------\t------")
	for _, l := range leads {
		name := l.Name
		if r := []rune(name); len(r) > 30 {
			name = string(r[:27]) + "..."
		}
		seller := "-"
		if l.Assigned() {
			seller = *l.SellerID
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			l.ClientCode,
			name,
			l.Address.City,
			l.Address.PostalCode,
			l.Status,
			l.Priority,
			seller,
		)
	}
	_ = w.Flush()
}

func init() {
	leadsListCmd.Flags().String("seller", "", "only leads assigned to this seller ID")
	leadsListCmd.Flags().Bool("unassigned", false, "only leads without a seller")
	leadsListCmd.Flags().Int("limit", 100, "maximum leads to list")

	leadsPurgeCmd.Flags().String("id", "", "lead ID (required)")
	_ = leadsPurgeCmd.MarkFlagRequired("id")

	leadsCmd.AddCommand(leadsListCmd)
	leadsCmd.AddCommand(leadsPurgeCmd)
	rootCmd.AddCommand(leadsCmd)
}
