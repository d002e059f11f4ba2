package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/prospect-cli/internal/model"
)

var sellersCmd = &cobra.Command{
	Use:   "sellers",
	Short: "Manage sellers and their territories",
}

// -- sellers load --

var sellersLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load sellers from a territory file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("migrate"); err != nil {
			return err
		}

		path, _ := cmd.Flags().GetString("file")
		if path == "" {
			path = cfg.Territory.File
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		m, err := syncSellers(ctx, st, path, true)
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Loaded sellers from %s (%d active)\n", path, m.Len())
		return nil
	},
}

// -- sellers list --

var sellersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sellers",
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

		sellers, err := st.ListSellers(ctx)
		if err != nil {
			return eris.Wrap(err, "sellers list")
		}
		if len(sellers) == 0 {
			fmt.Fprintln(os.Stderr, "No sellers found.")
			return nil
		}

		formatSellersList(cmd.OutOrStdout(), sellers)
		return nil
	},
}

// formatSellersList writes a tabular list of sellers to w.
func formatSellersList(out io.Writer, sellers []model.Seller) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tACTIVE\tTERRITORY")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t---------")
	for _, s := range sellers {
		active := "no"
		if s.Active {
			active = "yes"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.Name, active, describeTerritory(s.Territory))
	}
	_ = w.Flush()
}

// describeTerritory renders a territory on one line.
func describeTerritory(t model.Territory) string {
	if t.Default {
		def := t
		def.Default = false
		return describeTerritory(def) + " (default)"
	}
	switch t.Kind {
	case model.TerritoryRange:
		parts := make([]string, 0, len(t.Ranges))
		for _, r := range t.Ranges {
			parts = append(parts, r.Start+"-"+r.End)
		}
		return "range " + strings.Join(parts, ", ")
	case model.TerritoryRadius:
		if t.Radius == nil {
			return "radius"
		}
		return fmt.Sprintf("radius %gkm around %.4f,%.4f", t.Radius.KM, t.Radius.Center.Lat, t.Radius.Center.Lng)
	default:
		return string(t.Kind)
	}
}

func init() {
	sellersLoadCmd.Flags().String("file", "", "territory file (default from config)")

	sellersCmd.AddCommand(sellersLoadCmd)
	sellersCmd.AddCommand(sellersListCmd)
	rootCmd.AddCommand(sellersCmd)
}
